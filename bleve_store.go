package main

import (
	"cmp"
	"os"
	"slices"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
)

// BleveStore is the document search backend. An empty path or ":memory:"
// keeps the index in memory.
type BleveStore struct {
	index bleve.Index
}

func (b *BleveStore) Initialize(path string) error {
	if path == "" || path == ":memory:" {
		index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return err
		}
		b.index = index
		return nil
	}

	// Bleve indexes are directories.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		mapping := bleve.NewIndexMapping()
		index, err := bleve.New(path, mapping)
		if err != nil {
			return err
		}
		b.index = index
	} else {
		index, err := bleve.Open(path)
		if err != nil {
			return err
		}
		b.index = index
	}
	return nil
}

func (b *BleveStore) Close() error {
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// Clear deletes every document; bleve has no truncate.
func (b *BleveStore) Clear() error {
	ids, err := b.allIDs()
	if err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

func (b *BleveStore) IndexBatch(batch []*Document) error {
	batchIndex := b.index.NewBatch()
	for _, d := range batch {
		if err := batchIndex.Index(d.ID, d); err != nil {
			return err
		}
	}
	return b.index.Batch(batchIndex)
}

func (b *BleveStore) Count() (int, error) {
	c, err := b.index.DocCount()
	return int(c), err
}

func (b *BleveStore) allIDs() ([]string, error) {
	n, err := b.index.DocCount()
	if err != nil || n == 0 {
		return nil, err
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(n)
	req.Fields = []string{}

	res, err := b.index.Search(req)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (b *BleveStore) Search(input string) ([]Document, error) {
	if strings.TrimSpace(input) == "" {
		return b.runQuery(bleve.NewMatchAllQuery())
	}
	// Prefixed or comma separated input uses the search syntax; anything else
	// is handed to bleve's query string parser, which enables fuzzy matches
	// and field scoping.
	if strings.ContainsAny(input, "!@#$") || strings.Contains(input, ",") {
		return b.searchTerms(input)
	}
	return b.runQuery(bleve.NewQueryStringQuery(input))
}

func (b *BleveStore) searchTerms(input string) ([]Document, error) {
	terms := parseSearch(input)
	mainBoolQuery := bleve.NewBooleanQuery()

	addOrGroup := func(values []string, fields ...string) {
		if len(values) == 0 {
			return
		}
		subQuery := bleve.NewBooleanQuery()
		for _, v := range values {
			for _, f := range fields {
				mq := bleve.NewMatchQuery(v)
				mq.SetField(f)
				subQuery.AddShould(mq)
			}
		}
		mainBoolQuery.AddMust(subQuery)
	}

	addOrGroup(terms.kinds, "kind")
	addOrGroup(terms.tables, "table")
	addOrGroup(terms.tags, "tags")
	addOrGroup(terms.names, "name")
	addOrGroup(terms.multi, "name", "comment", "tags")

	return b.runQuery(mainBoolQuery)
}

func (b *BleveStore) runQuery(q bleveQuery.Query) ([]Document, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = 1000
	req.Fields = []string{"*"}
	req.SortBy([]string{"-_score", "_id"})

	res, err := b.index.Search(req)
	if err != nil {
		return nil, err
	}

	var results []Document
	for _, hit := range res.Hits {
		getStr := func(f string) string {
			if v, ok := hit.Fields[f].(string); ok {
				return v
			}
			return ""
		}
		getInt := func(f string) int {
			if v, ok := hit.Fields[f].(float64); ok {
				return int(v)
			}
			return 0
		}
		results = append(results, Document{
			ID:      hit.ID,
			Table:   getStr("table"),
			Kind:    getStr("kind"),
			Row:     getInt("row"),
			Name:    getStr("name"),
			Comment: getStr("comment"),
			Tags:    getStr("tags"),
		})
	}
	// Same order as the SQLite backend, so results group by table.
	slices.SortStableFunc(results, func(a, b Document) int {
		return cmp.Or(strings.Compare(a.Table, b.Table), cmp.Compare(a.Row, b.Row))
	})
	return results, nil
}
