package main

import (
	"fmt"
	"strings"
)

// columnTerm matches one column, either by containment (':') or equality ('=').
type columnTerm struct {
	column Column
	equal  bool
	negate bool
	text   string
	value  any
}

// Query is a parsed filter. Like-type terms are ORed together and the groups
// are ANDed; negated column terms are each ANDed.
type Query struct {
	kind    *Kind
	text    []string
	tags    []string
	columns map[string][]columnTerm
	negated []columnTerm
	order   []string
}

// ParseQuery parses a comma-separated filter:
//
//	#value        a utility value contains value
//	column:value  the column contains value
//	column=value  the column equals value
//	!column:value negation of a column term
//	value         name or comment contains value
func ParseQuery(k *Kind, input string) (*Query, error) {
	q := &Query{kind: k, columns: map[string][]columnTerm{}}
	for _, word := range strings.Split(input, ",") {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		if strings.HasPrefix(word, "#") {
			if v := strings.TrimSpace(word[1:]); v != "" {
				q.tags = append(q.tags, v)
			}
			continue
		}
		negate := strings.HasPrefix(word, "!")
		body := word
		if negate {
			body = strings.TrimSpace(word[1:])
		}
		term, ok, err := parseColumnTerm(k, body)
		if err != nil {
			return nil, err
		}
		if !ok {
			if negate {
				return nil, fmt.Errorf("%w: %q needs column:value or column=value", ErrUnknownColumn, word)
			}
			q.text = append(q.text, word)
			continue
		}
		term.negate = negate
		if negate {
			q.negated = append(q.negated, term)
			continue
		}
		name := term.column.Name
		if _, seen := q.columns[name]; !seen {
			q.order = append(q.order, name)
		}
		q.columns[name] = append(q.columns[name], term)
	}
	return q, nil
}

// parseColumnTerm reports ok=false when body does not start with a column name.
func parseColumnTerm(k *Kind, body string) (columnTerm, bool, error) {
	i := strings.IndexAny(body, ":=")
	if i <= 0 {
		return columnTerm{}, false, nil
	}
	ci := k.ColumnIndex(strings.ToLower(strings.TrimSpace(body[:i])))
	if ci < 0 {
		return columnTerm{}, false, nil
	}
	term := columnTerm{
		column: k.Columns[ci],
		equal:  body[i] == '=',
		text:   strings.TrimSpace(body[i+1:]),
	}
	if term.equal {
		v, err := ParseValue(term.column.Type, term.text)
		if err != nil {
			return columnTerm{}, false, fmt.Errorf("%s: %w", term.column.Name, err)
		}
		term.value = v
	}
	return term, true, nil
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func (c columnTerm) sql() (string, []any) {
	col := quoteIdent(c.column.Name)
	switch {
	case c.equal && c.value == nil:
		return col + " IS NULL", nil
	case c.equal:
		return col + " = ?", []any{toSQL(c.value)}
	case c.column.Type == ColBool:
		v, err := ParseValue(ColBool, c.text)
		if err != nil || v == nil {
			return col + " IS NOT NULL", nil
		}
		return col + " = ?", []any{toSQL(v)}
	}
	return "CAST(" + col + " AS TEXT) LIKE ? ESCAPE '\\'", []any{likePattern(c.text)}
}

// SQL builds the WHERE clause selecting the matching rows of t.
func (q *Query) SQL(t *Table) (string, []any) {
	var (
		parts []string
		args  []any
	)
	or := func(sub []string) {
		if len(sub) > 0 {
			parts = append(parts, "("+strings.Join(sub, " OR ")+")")
		}
	}

	var sub []string
	for _, text := range q.text {
		sub = append(sub, `("name" LIKE ? ESCAPE '\' OR "comment" LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(text), likePattern(text))
	}
	or(sub)

	sub = nil
	for _, tag := range q.tags {
		for _, u := range t.Kind.Utilities {
			sub = append(sub, fmt.Sprintf(
				`id IN (SELECT l.item FROM %s l JOIN %s v ON v.id = l.value WHERE v.fold LIKE ? ESCAPE '\')`,
				t.linkTable(u), t.utilTable(u)))
			args = append(args, likePattern(foldValue(tag)))
		}
	}
	if len(q.tags) > 0 && len(sub) == 0 {
		// A kind without utilities cannot match a tag term.
		sub = append(sub, "0")
	}
	or(sub)

	for _, name := range q.order {
		sub = nil
		for _, term := range q.columns[name] {
			s, a := term.sql()
			sub = append(sub, s)
			args = append(args, a...)
		}
		or(sub)
	}

	for _, term := range q.negated {
		s, a := term.sql()
		parts = append(parts, "NOT COALESCE("+s+", 0)")
		args = append(args, a...)
	}

	if len(parts) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(parts, " AND "), args
}

const syntaxGuide = `
# Filter syntax

Filters chain terms together, separated by commas. Like-type terms are
logically ORed and unlike-type terms are logically ANDed together.

#<some string>                      - Rows with a category, author, actor... containing the string
<column>:<some string>              - Rows whose column contains the string
<column>=<value>                    - Rows whose column equals the value (empty value: empty cell)
!<column>:<some string>             - Rows whose column does not contain the string
<some string>                       - Rows whose name or comment contains the string

Strings are matched case-insensitively and on partial hits.

## Examples

#rpg, #strategy                     - Games tagged either RPG or strategy
#rpg, finished=no                   - Unfinished RPGs
year=1999, year=2000, #sci-fi       - Science fiction from 1999 or 2000
!comment:borrowed                   - Everything not marked as borrowed

# Search syntax (mediacat search)

Search looks through every table of the collection.

!<kind>                             - Rows of tables of that kind (game, movie, series, books, common)
@<table>                            - Rows of the named tables
#<tag>                              - Rows with a matching utility value
$<name>                             - Rows whose name matches
<some string>                       - Rows whose name, comment or tags match

With --document-backend, input without these prefixes is a bleve query string:

name:zelda~1                        - Fuzzy match on the name
+kind:movie -tags:horror            - Movies, but no horror
`
