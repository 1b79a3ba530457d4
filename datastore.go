package main

import (
	"fmt"
	"strings"
)

// Document is a catalogued row flattened for full-text search.
type Document struct {
	ID      string `json:"id"`
	Table   string `json:"table"`
	Kind    string `json:"kind"`
	Row     int    `json:"row"`
	Name    string `json:"name"`
	Comment string `json:"comment"`
	Tags    string `json:"tags"`
}

// Datastore is the interface that any search backend must implement.
type Datastore interface {
	// Initialize prepares the datastore (e.g., create tables, open index).
	Initialize(path string) error

	// Close cleans up resources.
	Close() error

	// IndexBatch adds or updates a batch of documents.
	IndexBatch(batch []*Document) error

	// Count returns the total number of documents.
	Count() (int, error)

	// Search returns documents matching the query string.
	// If query is empty, it returns every document.
	Search(query string) ([]Document, error)

	// Clear removes all documents from the store.
	Clear() error
}

// documentsOf flattens every row of t. Row numbers are 1-based like the CLI.
func documentsOf(t *Table) []*Document {
	docs := make([]*Document, 0, t.Len())
	for _, r := range t.Rows() {
		var tags []string
		for _, u := range t.Kind.Utilities {
			tags = append(tags, r.Tags[u]...)
		}
		docs = append(docs, &Document{
			ID:      fmt.Sprintf("%s/%d", t.UID, r.ID),
			Table:   t.Name,
			Kind:    t.Kind.Name,
			Row:     r.Position + 1,
			Name:    FormatValue(r.Value(t.Kind, "name")),
			Comment: FormatValue(r.Value(t.Kind, "comment")),
			Tags:    strings.Join(tags, ", "),
		})
	}
	return docs
}

// Reindex replaces the content of store with every row of c.
func Reindex(store Datastore, c *Collection) (int, error) {
	if err := store.Clear(); err != nil {
		return 0, err
	}
	total := 0
	const batchSize = 500
	for _, t := range c.Tables() {
		docs := documentsOf(t)
		for i := 0; i < len(docs); i += batchSize {
			end := min(i+batchSize, len(docs))
			if err := store.IndexBatch(docs[i:end]); err != nil {
				return total, fmt.Errorf("index %q: %w", t.Name, err)
			}
			total += end - i
		}
	}
	return total, nil
}

// searchTerms is a parsed search input. Like-type terms are ORed and the
// groups ANDed.
type searchTerms struct {
	kinds, tables, tags, names, multi []string
}

func parseSearch(input string) searchTerms {
	var s searchTerms
	for _, word := range strings.Split(input, ",") {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		if strings.HasPrefix(word, "!") {
			s.kinds = append(s.kinds, word[1:])
		} else if strings.HasPrefix(word, "@") {
			s.tables = append(s.tables, word[1:])
		} else if strings.HasPrefix(word, "#") {
			s.tags = append(s.tags, word[1:])
		} else if strings.HasPrefix(word, "$") {
			s.names = append(s.names, word[1:])
		} else {
			s.multi = append(s.multi, word)
		}
	}
	return s
}
