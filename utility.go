package main

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrUnknownValue = errors.New("unknown utility value")

// foldValue is the key utility values are compared and indexed by.
func foldValue(v string) string {
	return strings.ToLower(v)
}

// cleanValues trims values, drops blanks and removes case-insensitive duplicates.
func cleanValues(values []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := foldValue(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func sortFold(values []string) {
	slices.SortFunc(values, func(a, b string) int {
		return strings.Compare(foldValue(a), foldValue(b))
	})
}

// Values returns every value of utility u, linked or not, sorted.
func (t *Table) Values(u string) ([]string, error) {
	u, err := t.Kind.utility(u)
	if err != nil {
		return nil, err
	}
	rows, err := t.c.db.Query(fmt.Sprintf("SELECT value FROM %s ORDER BY fold", t.utilTable(u)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (t *Table) valueID(ex execer, u, value string) (int64, error) {
	var id int64
	err := ex.QueryRow(fmt.Sprintf("SELECT id FROM %s WHERE fold = ?", t.utilTable(u)), foldValue(value)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s %q", ErrUnknownValue, u, value)
	}
	return id, err
}

// ensureValue returns the id of value, creating it when missing.
func (t *Table) ensureValue(ex execer, u, value string) (int64, error) {
	if _, err := ex.Exec(fmt.Sprintf("INSERT OR IGNORE INTO %s (value, fold) VALUES (?, ?)", t.utilTable(u)), value, foldValue(value)); err != nil {
		return 0, err
	}
	return t.valueID(ex, u, value)
}

// AddValue registers value for utility u without linking it to any row.
func (t *Table) AddValue(u, value string) error {
	u, err := t.Kind.utility(u)
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if _, err := t.ensureValue(t.c.db, u, value); err != nil {
		return err
	}
	return t.c.markDirty()
}

// RenameValue renames a utility value. Renaming onto an existing value merges
// the two, keeping every link.
func (t *Table) RenameValue(u, oldValue, newValue string) error {
	u, err := t.Kind.utility(u)
	if err != nil {
		return err
	}
	newValue = strings.TrimSpace(newValue)
	if newValue == "" {
		return fmt.Errorf("%s: %w", u, ErrEmptyName)
	}
	tx, err := t.c.db.Begin()
	if err != nil {
		return err
	}
	if err := t.renameValue(tx, u, strings.TrimSpace(oldValue), newValue); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if err := t.reloadTags(u); err != nil {
		return err
	}
	return t.changed()
}

func (t *Table) renameValue(tx *sql.Tx, u, oldValue, newValue string) error {
	oldID, err := t.valueID(tx, u, oldValue)
	if err != nil {
		return err
	}
	newID, err := t.valueID(tx, u, newValue)
	if errors.Is(err, ErrUnknownValue) || (err == nil && newID == oldID) {
		_, err := tx.Exec(fmt.Sprintf("UPDATE %s SET value = ?, fold = ? WHERE id = ?", t.utilTable(u)), newValue, foldValue(newValue), oldID)
		return err
	}
	if err != nil {
		return err
	}
	stmts := []string{
		fmt.Sprintf("UPDATE OR IGNORE %s SET value = ? WHERE value = ?", t.linkTable(u)),
		fmt.Sprintf("DELETE FROM %s WHERE value = ?", t.linkTable(u)),
	}
	if _, err := tx.Exec(stmts[0], newID, oldID); err != nil {
		return err
	}
	if _, err := tx.Exec(stmts[1], oldID); err != nil {
		return err
	}
	_, err = tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.utilTable(u)), oldID)
	return err
}

// RemoveValue deletes a utility value and unlinks it from every row.
func (t *Table) RemoveValue(u, value string) error {
	u, err := t.Kind.utility(u)
	if err != nil {
		return err
	}
	tx, err := t.c.db.Begin()
	if err != nil {
		return err
	}
	id, err := t.valueID(tx, u, strings.TrimSpace(value))
	if err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE value = ?", t.linkTable(u)), id); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.utilTable(u)), id); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if err := t.reloadTags(u); err != nil {
		return err
	}
	return t.changed()
}

// PruneValues deletes the values of u that no row links to.
func (t *Table) PruneValues(u string) (int, error) {
	u, err := t.Kind.utility(u)
	if err != nil {
		return 0, err
	}
	res, err := t.c.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id NOT IN (SELECT value FROM %s)", t.utilTable(u), t.linkTable(u)))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return int(n), t.c.markDirty()
	}
	return 0, nil
}

// Tags returns the values of u linked to row.
func (t *Table) Tags(row int, u string) ([]string, error) {
	r, err := t.Row(row)
	if err != nil {
		return nil, err
	}
	u, err = t.Kind.utility(u)
	if err != nil {
		return nil, err
	}
	return r.Tags[u], nil
}

// SetTags rebuilds the links of row for utility u. Missing values are created.
func (t *Table) SetTags(row int, u string, values []string) error {
	r, err := t.Row(row)
	if err != nil {
		return err
	}
	u, err = t.Kind.utility(u)
	if err != nil {
		return err
	}
	values = cleanValues(values)

	tx, err := t.c.db.Begin()
	if err != nil {
		return err
	}
	stored, err := t.setTags(tx, r.ID, u, values)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if len(stored) == 0 {
		delete(r.Tags, u)
	} else {
		r.Tags[u] = stored
	}
	return t.changed()
}

// setTags replaces the links of item and returns the stored spelling of each value.
func (t *Table) setTags(ex execer, item int64, u string, values []string) ([]string, error) {
	if _, err := ex.Exec(fmt.Sprintf("DELETE FROM %s WHERE item = ?", t.linkTable(u)), item); err != nil {
		return nil, err
	}
	link := fmt.Sprintf("INSERT OR IGNORE INTO %s (item, value) VALUES (?, ?)", t.linkTable(u))
	lookup := fmt.Sprintf("SELECT value FROM %s WHERE id = ?", t.utilTable(u))
	stored := make([]string, 0, len(values))
	for _, v := range values {
		id, err := t.ensureValue(ex, u, v)
		if err != nil {
			return nil, err
		}
		if _, err := ex.Exec(link, item, id); err != nil {
			return nil, err
		}
		var s string
		if err := ex.QueryRow(lookup, id).Scan(&s); err != nil {
			return nil, err
		}
		stored = append(stored, s)
	}
	sortFold(stored)
	return stored, nil
}

// AddTags links additional values to row, keeping the existing ones.
func (t *Table) AddTags(row int, u string, values []string) error {
	current, err := t.Tags(row, u)
	if err != nil {
		return err
	}
	return t.SetTags(row, u, append(slices.Clone(current), values...))
}

// RemoveTags unlinks values from row. The values themselves are kept.
func (t *Table) RemoveTags(row int, u string, values []string) error {
	current, err := t.Tags(row, u)
	if err != nil {
		return err
	}
	drop := map[string]bool{}
	for _, v := range values {
		drop[foldValue(strings.TrimSpace(v))] = true
	}
	kept := slices.DeleteFunc(slices.Clone(current), func(v string) bool {
		return drop[foldValue(v)]
	})
	return t.SetTags(row, u, kept)
}

func (t *Table) reloadTags(u string) error {
	links, err := t.readLinks(u)
	if err != nil {
		return err
	}
	for _, r := range t.rows {
		if values := links[r.ID]; len(values) > 0 {
			r.Tags[u] = values
		} else {
			delete(r.Tags, u)
		}
	}
	return nil
}
