package main

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrRowRange = errors.New("row out of range")

// SortOrder selects the direction of Table.Sort.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// Row is one cached item of a table.
type Row struct {
	ID       int64
	Position int
	// Values holds one entry per Kind column, nil for an empty cell.
	Values []any
	// Tags maps a utility name to the values linked to this row.
	Tags map[string][]string
}

func (r *Row) Value(k *Kind, column string) any {
	if i := k.ColumnIndex(column); i >= 0 {
		return r.Values[i]
	}
	return nil
}

// Table mirrors one SQL item table into an ordered list of rows.
// Every mutation is written to the database first and then applied to the
// cache, so the cache never holds state the database does not.
type Table struct {
	c    *Collection
	id   int64
	UID  string
	Name string
	Kind *Kind

	rows    []*Row
	filter  *Query
	visible []*Row
}

func (t *Table) sqlName() string {
	return fmt.Sprintf("tbl_%d", t.id)
}

func (t *Table) utilTable(u string) string {
	return fmt.Sprintf("tbl_%d_%s", t.id, u)
}

func (t *Table) linkTable(u string) string {
	return fmt.Sprintf("tbl_%d_%s_link", t.id, u)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (t *Table) columnList() string {
	names := make([]string, len(t.Kind.Columns))
	for i, c := range t.Kind.Columns {
		names[i] = quoteIdent(c.Name)
	}
	return strings.Join(names, ", ")
}

func (t *Table) schema() []string {
	var cols []string
	for _, c := range t.Kind.Columns {
		cols = append(cols, quoteIdent(c.Name)+" "+c.Type.sqlType())
	}
	stmts := []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position INTEGER NOT NULL,
		%s
	)`, t.sqlName(), strings.Join(cols, ",\n\t\t"))}
	for _, u := range t.Kind.Utilities {
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				value TEXT NOT NULL,
				fold TEXT NOT NULL UNIQUE
			)`, t.utilTable(u)),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
				item INTEGER NOT NULL,
				value INTEGER NOT NULL,
				PRIMARY KEY (item, value)
			)`, t.linkTable(u)),
		)
	}
	return stmts
}

// Load re-reads every row and its utility links from the database.
func (t *Table) Load() error {
	rows, err := t.c.db.Query(fmt.Sprintf("SELECT id, position, %s FROM %s ORDER BY position, id", t.columnList(), t.sqlName()))
	if err != nil {
		return err
	}
	var (
		loaded []*Row
		byID   = map[int64]*Row{}
	)
	n := len(t.Kind.Columns)
	for rows.Next() {
		r := &Row{Values: make([]any, n), Tags: map[string][]string{}}
		raw := make([]any, n)
		dest := []any{&r.ID, &r.Position}
		for i := range raw {
			dest = append(dest, &raw[i])
		}
		if err := rows.Scan(dest...); err != nil {
			rows.Close()
			return err
		}
		for i, c := range t.Kind.Columns {
			r.Values[i] = fromSQL(c.Type, raw[i])
		}
		loaded = append(loaded, r)
		byID[r.ID] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	// Close gaps left in stored positions so they match the list index.
	if err := t.writePositions(t.c.db, loaded, 0); err != nil {
		return err
	}
	for i, r := range loaded {
		r.Position = i
	}

	for _, u := range t.Kind.Utilities {
		links, err := t.readLinks(u)
		if err != nil {
			return err
		}
		for id, values := range links {
			if r := byID[id]; r != nil {
				r.Tags[u] = values
			}
		}
	}
	t.rows = loaded
	return t.refilter()
}

// readLinks returns the values of utility u linked to each item.
func (t *Table) readLinks(u string) (map[int64][]string, error) {
	rows, err := t.c.db.Query(fmt.Sprintf(
		"SELECT l.item, v.value FROM %s l JOIN %s v ON v.id = l.value ORDER BY v.fold",
		t.linkTable(u), t.utilTable(u)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	links := map[int64][]string{}
	for rows.Next() {
		var (
			id    int64
			value string
		)
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		links[id] = append(links[id], value)
	}
	return links, rows.Err()
}

func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns every cached row in position order. The slice must not be modified.
func (t *Table) Rows() []*Row {
	return t.rows
}

func (t *Table) Row(i int) (*Row, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, fmt.Errorf("%w: %d of %d in %q", ErrRowRange, i, len(t.rows), t.Name)
	}
	return t.rows[i], nil
}

// Visible returns the rows matching the current filter, in position order.
func (t *Table) Visible() []*Row {
	return t.visible
}

func (t *Table) normalize(values []any) ([]any, error) {
	if len(values) > len(t.Kind.Columns) {
		return nil, fmt.Errorf("%w: %d values for %d columns", ErrInvalidValue, len(values), len(t.Kind.Columns))
	}
	out := make([]any, len(t.Kind.Columns))
	for i, v := range values {
		if err := CheckValue(t.Kind.Columns[i], v); err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Append adds a row after the last one.
func (t *Table) Append(values ...any) (*Row, error) {
	return t.Insert(len(t.rows), values...)
}

// Insert adds a row at position at, shifting the following rows down.
// values are given in column order and may be shorter than the column list.
func (t *Table) Insert(at int, values ...any) (*Row, error) {
	if at < 0 || at > len(t.rows) {
		return nil, fmt.Errorf("%w: insert at %d of %d", ErrRowRange, at, len(t.rows))
	}
	vals, err := t.normalize(values)
	if err != nil {
		return nil, err
	}

	tx, err := t.c.db.Begin()
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(fmt.Sprintf("UPDATE %s SET position = position + 1 WHERE position >= ?", t.sqlName()), at); err != nil {
		tx.Rollback()
		return nil, err
	}
	args := []any{at}
	marks := []string{"?"}
	for _, v := range vals {
		args = append(args, toSQL(v))
		marks = append(marks, "?")
	}
	res, err := tx.Exec(fmt.Sprintf("INSERT INTO %s (position, %s) VALUES (%s)", t.sqlName(), t.columnList(), strings.Join(marks, ", ")), args...)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	r := &Row{ID: id, Values: vals, Tags: map[string][]string{}}
	t.rows = slices.Insert(t.rows, at, r)
	t.renumber(at)
	return r, t.changed()
}

// Set writes one cell.
func (t *Table) Set(row int, column string, value any) error {
	r, err := t.Row(row)
	if err != nil {
		return err
	}
	ci, col, err := t.Kind.Column(column)
	if err != nil {
		return err
	}
	if err := CheckValue(col, value); err != nil {
		return err
	}
	q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", t.sqlName(), quoteIdent(col.Name))
	if _, err := t.c.db.Exec(q, toSQL(value), r.ID); err != nil {
		return err
	}
	r.Values[ci] = value
	return t.changed()
}

// SetText parses text for the column type and writes the cell.
func (t *Table) SetText(row int, column, text string) error {
	_, col, err := t.Kind.Column(column)
	if err != nil {
		return err
	}
	v, err := ParseValue(col.Type, text)
	if err != nil {
		return fmt.Errorf("%s: %w", col.Name, err)
	}
	return t.Set(row, col.Name, v)
}

// Remove deletes the given rows and their utility links.
func (t *Table) Remove(rows ...int) error {
	if len(rows) == 0 {
		return nil
	}
	idx := slices.Clone(rows)
	slices.Sort(idx)
	idx = slices.Compact(idx)
	for _, i := range idx {
		if _, err := t.Row(i); err != nil {
			return err
		}
	}

	tx, err := t.c.db.Begin()
	if err != nil {
		return err
	}
	for _, i := range idx {
		id := t.rows[i].ID
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.sqlName()), id); err != nil {
			tx.Rollback()
			return err
		}
		for _, u := range t.Kind.Utilities {
			if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE item = ?", t.linkTable(u)), id); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	kept := make([]*Row, 0, len(t.rows)-len(idx))
	for i, r := range t.rows {
		if _, found := slices.BinarySearch(idx, i); !found {
			kept = append(kept, r)
		}
	}
	if err := t.writePositions(tx, kept, idx[0]); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	t.rows = kept
	t.renumber(idx[0])
	return t.changed()
}

// Move moves the row at from to position to.
func (t *Table) Move(from, to int) error {
	if _, err := t.Row(from); err != nil {
		return err
	}
	if _, err := t.Row(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	moved := slices.Clone(t.rows)
	r := moved[from]
	moved = slices.Delete(moved, from, from+1)
	moved = slices.Insert(moved, to, r)

	lo := min(from, to)
	tx, err := t.c.db.Begin()
	if err != nil {
		return err
	}
	if err := t.writePositions(tx, moved[:max(from, to)+1], lo); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	t.rows = moved
	t.renumber(lo)
	return t.changed()
}

// Sort orders the rows by column. The sort is stable and empty cells always
// come last; text compares case-insensitively.
func (t *Table) Sort(column string, order SortOrder) error {
	ci, _, err := t.Kind.Column(column)
	if err != nil {
		return err
	}
	sorted := slices.Clone(t.rows)
	slices.SortStableFunc(sorted, func(a, b *Row) int {
		va, vb := a.Values[ci], b.Values[ci]
		switch {
		case va == nil && vb == nil:
			return 0
		case va == nil:
			return 1
		case vb == nil:
			return -1
		}
		c := compareValues(va, vb)
		if order == Descending {
			return -c
		}
		return c
	})

	tx, err := t.c.db.Begin()
	if err != nil {
		return err
	}
	if err := t.writePositions(tx, sorted, 0); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	t.rows = sorted
	t.renumber(0)
	return t.changed()
}

// writePositions stores the list index as position for rows[from:] whose
// position changed.
func (t *Table) writePositions(ex execer, rows []*Row, from int) error {
	q := fmt.Sprintf("UPDATE %s SET position = ? WHERE id = ?", t.sqlName())
	for i := from; i < len(rows); i++ {
		if rows[i].Position == i {
			continue
		}
		if _, err := ex.Exec(q, i, rows[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) renumber(from int) {
	for i := from; i < len(t.rows); i++ {
		t.rows[i].Position = i
	}
}

// changed re-applies the filter and flags the collection as modified.
func (t *Table) changed() error {
	if err := t.refilter(); err != nil {
		return err
	}
	return t.c.markDirty()
}

// SetFilter restricts Visible to the rows matching input, see ParseQuery.
// An empty input clears the filter.
func (t *Table) SetFilter(input string) error {
	if strings.TrimSpace(input) == "" {
		return t.ClearFilter()
	}
	q, err := ParseQuery(t.Kind, input)
	if err != nil {
		return err
	}
	t.filter = q
	return t.refilter()
}

func (t *Table) ClearFilter() error {
	t.filter = nil
	return t.refilter()
}

func (t *Table) refilter() error {
	if t.filter == nil {
		t.visible = t.rows
		return nil
	}
	where, args := t.filter.SQL(t)
	rows, err := t.c.db.Query(fmt.Sprintf("SELECT id FROM %s WHERE %s", t.sqlName(), where), args...)
	if err != nil {
		return fmt.Errorf("filter %q: %w", t.Name, err)
	}
	match := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		match[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	visible := make([]*Row, 0, len(match))
	for _, r := range t.rows {
		if match[r.ID] {
			visible = append(visible, r)
		}
	}
	t.visible = visible
	return nil
}

// compareValues compares two non-nil cell values, returning -1, 0, or 1.
func compareValues(a, b any) int {
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			if c := cmp.Compare(strings.ToLower(va), strings.ToLower(vb)); c != 0 {
				return c
			}
			return cmp.Compare(va, vb)
		}
	case int64:
		if vb, ok := b.(int64); ok {
			return cmp.Compare(va, vb)
		}
	case float64:
		if vb, ok := b.(float64); ok {
			return cmp.Compare(va, vb)
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0
			case !va:
				return -1
			}
			return 1
		}
	}
	return cmp.Compare(FormatValue(a), FormatValue(b))
}
