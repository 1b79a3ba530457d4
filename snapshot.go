package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// snapshot flattens one cached table, including unlinked utility values.
func (t *Table) snapshot() (TableSnapshot, error) {
	ts := TableSnapshot{UID: t.UID, Name: t.Name, Kind: t.Kind.Name}
	for _, c := range t.Kind.Columns {
		ts.Columns = append(ts.Columns, c.Name)
	}
	index := make([]map[string]uint32, len(t.Kind.Utilities))
	for ui, u := range t.Kind.Utilities {
		values, err := t.Values(u)
		if err != nil {
			return TableSnapshot{}, err
		}
		index[ui] = make(map[string]uint32, len(values))
		for i, v := range values {
			index[ui][foldValue(v)] = uint32(i)
		}
		ts.Utilities = append(ts.Utilities, UtilitySnapshot{Name: u, Values: values})
	}
	for _, r := range t.rows {
		rs := RowSnapshot{Values: append([]any(nil), r.Values...)}
		if len(t.Kind.Utilities) > 0 {
			rs.Tags = make([][]uint32, len(t.Kind.Utilities))
		}
		for ui, u := range t.Kind.Utilities {
			for _, v := range r.Tags[u] {
				rs.Tags[ui] = append(rs.Tags[ui], index[ui][foldValue(v)])
			}
		}
		ts.Rows = append(ts.Rows, rs)
	}
	return ts, nil
}

// Snapshot flattens the whole collection.
func (c *Collection) Snapshot() (*Snapshot, error) {
	s := &Snapshot{Type: TypeCollection, Version: FormatVersion, UID: c.uid}
	for _, t := range c.tables {
		ts, err := t.snapshot()
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
		s.Tables = append(s.Tables, ts)
	}
	return s, nil
}

// Restore replaces the whole collection with the content of s.
func (c *Collection) Restore(s *Snapshot) error {
	if s.Type != TypeCollection {
		return fmt.Errorf("%w: %q, want %q", ErrBadType, s.Type, TypeCollection)
	}
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if err := c.reset(tx); err != nil {
		tx.Rollback()
		return err
	}
	uid := s.UID
	if uid == "" {
		uid = uuid.New().String()
	}
	if err := c.setMeta(tx, "uid", uid); err != nil {
		tx.Rollback()
		return err
	}
	seen := map[string]bool{}
	for i := range s.Tables {
		ts := &s.Tables[i]
		key := strings.ToLower(strings.TrimSpace(ts.Name))
		if seen[key] {
			tx.Rollback()
			return fmt.Errorf("%w: %q", ErrTableExists, ts.Name)
		}
		seen[key] = true
		if _, err := c.restoreTable(tx, ts, i); err != nil {
			tx.Rollback()
			return fmt.Errorf("table %q: %w", ts.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.uid = uid
	c.tables = nil
	if err := c.loadTables(); err != nil {
		return err
	}
	return c.markDirty()
}

// restoreTable creates a table from ts at position and fills it.
// Columns and utilities the kind does not know are dropped.
func (c *Collection) restoreTable(ex execer, ts *TableSnapshot, position int) (*Table, error) {
	k, err := KindByName(ts.Kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ts.Name) == "" {
		return nil, ErrEmptyName
	}
	uid := ts.UID
	if uid == "" {
		uid = uuid.New().String()
	}
	t, err := c.createTable(ex, uid, strings.TrimSpace(ts.Name), k, position)
	if err != nil {
		return nil, err
	}

	colMap := make([]int, len(ts.Columns))
	for i, name := range ts.Columns {
		colMap[i] = k.ColumnIndex(name)
	}
	utilMap := make([]string, len(ts.Utilities))
	for i, u := range ts.Utilities {
		if k.HasUtility(u.Name) {
			utilMap[i] = u.Name
		}
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(k.Columns)+1), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (position, %s) VALUES (%s)", t.sqlName(), t.columnList(), marks)
	for pos, rs := range ts.Rows {
		values := make([]any, len(k.Columns))
		for i, v := range rs.Values {
			if i >= len(colMap) || colMap[i] < 0 {
				continue
			}
			ci := colMap[i]
			v = fromSQL(k.Columns[ci].Type, v)
			if err := CheckValue(k.Columns[ci], v); err != nil {
				return nil, fmt.Errorf("row %d: %w", pos, err)
			}
			values[ci] = v
		}
		args := []any{pos}
		for _, v := range values {
			args = append(args, toSQL(v))
		}
		res, err := ex.Exec(insert, args...)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		for ui, tags := range rs.Tags {
			if ui >= len(utilMap) || utilMap[ui] == "" {
				continue
			}
			values := ts.Utilities[ui].Values
			var names []string
			for _, idx := range tags {
				if int(idx) >= len(values) {
					return nil, fmt.Errorf("%w: %s index %d of %d values", ErrCorrupt, utilMap[ui], idx, len(values))
				}
				names = append(names, values[idx])
			}
			if _, err := t.setTags(ex, id, utilMap[ui], cleanValues(names)); err != nil {
				return nil, err
			}
		}
	}
	// Unlinked values survive a round trip too.
	for ui, u := range ts.Utilities {
		if utilMap[ui] == "" {
			continue
		}
		for _, v := range cleanValues(u.Values) {
			if _, err := t.ensureValue(ex, utilMap[ui], v); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// Save writes the collection to a save file. The file is replaced atomically.
func (c *Collection) Save(path string) error {
	s, err := c.Snapshot()
	if err != nil {
		return err
	}
	if err := writeSnapshot(path, s); err != nil {
		return err
	}
	if err := c.setMeta(c.db, "file", path); err != nil {
		return err
	}
	slog.Info("Saved collection", "path", path, "tables", len(s.Tables))
	return c.MarkClean()
}

// Load replaces the collection with the content of a collection save file.
func (c *Collection) Load(path string) error {
	s, err := readSnapshot(path)
	if err != nil {
		return err
	}
	if err := c.Restore(s); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := c.setMeta(c.db, "file", path); err != nil {
		return err
	}
	slog.Info("Loaded collection", "path", path, "version", s.Version, "tables", len(s.Tables))
	return c.MarkClean()
}

// ExportTable writes one table to a table save file.
func (c *Collection) ExportTable(name, path string) error {
	t, err := c.Table(name)
	if err != nil {
		return err
	}
	ts, err := t.snapshot()
	if err != nil {
		return err
	}
	return writeSnapshot(path, &Snapshot{Type: TypeTable, Version: FormatVersion, Tables: []TableSnapshot{ts}})
}

// ImportTable appends a table read from a save file. from picks the table of a
// collection file and may be empty when the file holds a single table; as
// renames it.
func (c *Collection) ImportTable(path, from, as string) (*Table, error) {
	s, err := readSnapshot(path)
	if err != nil {
		return nil, err
	}
	var ts *TableSnapshot
	for i := range s.Tables {
		if from == "" || strings.EqualFold(s.Tables[i].Name, from) {
			if ts != nil {
				return nil, fmt.Errorf("%w: %s holds several tables, pick one", ErrBadType, path)
			}
			ts = &s.Tables[i]
		}
	}
	if ts == nil {
		return nil, fmt.Errorf("%w: %q in %s", ErrNoTable, from, path)
	}
	if as != "" {
		ts.Name = as
	}
	if c.tableIndex(strings.TrimSpace(ts.Name)) >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, ts.Name)
	}
	for _, t := range c.tables {
		if t.UID == ts.UID {
			ts.UID = ""
			break
		}
	}

	tx, err := c.db.Begin()
	if err != nil {
		return nil, err
	}
	t, err := c.restoreTable(tx, ts, len(c.tables))
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if err := t.Load(); err != nil {
		return nil, err
	}
	c.tables = append(c.tables, t)
	return t, c.markDirty()
}

func writeSnapshot(path string, s *Snapshot) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	w := bufio.NewWriter(f)
	if err := Encode(w, s); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func readSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
