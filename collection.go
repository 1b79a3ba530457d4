package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNoTable     = errors.New("no such table")
	ErrTableExists = errors.New("table already exists")
	ErrEmptyName   = errors.New("name must not be empty")
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Collection is the working store of one media collection: a SQLite database
// holding a catalogue of tables, each mirrored by a Table model.
type Collection struct {
	db     *sql.DB
	path   string
	uid    string
	tables []*Table
	dirty  bool
}

// OpenCollection opens or creates the collection database at path.
// ":memory:" gives a collection that lives as long as the returned value.
func OpenCollection(path string) (*Collection, error) {
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers the same way the file-backed store would.
	db.SetMaxOpenConns(1)

	c := &Collection{db: db, path: path}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := c.loadTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load tables: %w", err)
	}
	slog.Debug("Opened collection", "path", path, "tables", len(c.tables))
	return c, nil
}

func (c *Collection) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta(
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tables(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return err
		}
	}

	uid, err := c.meta("uid")
	if err != nil {
		return err
	}
	if uid == "" {
		uid = uuid.New().String()
		if err := c.setMeta(c.db, "uid", uid); err != nil {
			return err
		}
	}
	c.uid = uid
	dirty, err := c.meta("dirty")
	if err != nil {
		return err
	}
	c.dirty = dirty == "1"
	return nil
}

func (c *Collection) meta(key string) (string, error) {
	var v string
	err := c.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (c *Collection) setMeta(ex execer, key, value string) error {
	_, err := ex.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	return err
}

func (c *Collection) loadTables() error {
	rows, err := c.db.Query("SELECT id, uid, name, kind, position FROM tables ORDER BY position, id")
	if err != nil {
		return err
	}
	var tables []*Table
	for rows.Next() {
		var (
			t    Table
			kind string
			pos  int
		)
		if err := rows.Scan(&t.id, &t.UID, &t.Name, &kind, &pos); err != nil {
			rows.Close()
			return err
		}
		k, err := KindByName(kind)
		if err != nil {
			rows.Close()
			return fmt.Errorf("table %q: %w", t.Name, err)
		}
		t.Kind = k
		t.c = c
		tables = append(tables, &t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, t := range tables {
		if err := t.Load(); err != nil {
			return fmt.Errorf("table %q: %w", t.Name, err)
		}
	}
	c.tables = tables
	return nil
}

func (c *Collection) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the database path the collection was opened with.
func (c *Collection) Path() string {
	return c.path
}

// UID identifies the collection across save files.
func (c *Collection) UID() string {
	return c.uid
}

// Dirty reports whether the collection changed since it was last saved or loaded.
func (c *Collection) Dirty() bool {
	return c.dirty
}

func (c *Collection) MarkClean() error {
	if err := c.setMeta(c.db, "dirty", "0"); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *Collection) markDirty() error {
	if c.dirty {
		return nil
	}
	if err := c.setMeta(c.db, "dirty", "1"); err != nil {
		return err
	}
	c.dirty = true
	return nil
}

// Tables returns the tables in display order.
func (c *Collection) Tables() []*Table {
	return c.tables
}

func (c *Collection) tableIndex(name string) int {
	for i, t := range c.tables {
		if strings.EqualFold(t.Name, name) {
			return i
		}
	}
	return -1
}

func (c *Collection) Table(name string) (*Table, error) {
	i := c.tableIndex(strings.TrimSpace(name))
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoTable, name)
	}
	return c.tables[i], nil
}

// AddTable creates an empty table of the given kind at the end of the collection.
func (c *Collection) AddTable(name, kind string) (*Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("table: %w", ErrEmptyName)
	}
	if c.tableIndex(name) >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, name)
	}
	k, err := KindByName(kind)
	if err != nil {
		return nil, err
	}

	tx, err := c.db.Begin()
	if err != nil {
		return nil, err
	}
	t, err := c.createTable(tx, uuid.New().String(), name, k, len(c.tables))
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	c.tables = append(c.tables, t)
	slog.Info("Added table", "name", name, "kind", k.Name)
	return t, c.markDirty()
}

// createTable registers a table and creates its SQL tables inside ex.
func (c *Collection) createTable(ex execer, uid, name string, k *Kind, position int) (*Table, error) {
	res, err := ex.Exec("INSERT INTO tables (uid, name, kind, position) VALUES (?, ?, ?, ?)", uid, name, k.Name, position)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	t := &Table{c: c, id: id, UID: uid, Name: name, Kind: k}
	for _, s := range t.schema() {
		if _, err := ex.Exec(s); err != nil {
			return nil, fmt.Errorf("create %s: %w", t.sqlName(), err)
		}
	}
	return t, nil
}

func (c *Collection) dropTable(ex execer, t *Table) error {
	for _, u := range t.Kind.Utilities {
		if _, err := ex.Exec("DROP TABLE IF EXISTS " + t.linkTable(u)); err != nil {
			return err
		}
		if _, err := ex.Exec("DROP TABLE IF EXISTS " + t.utilTable(u)); err != nil {
			return err
		}
	}
	if _, err := ex.Exec("DROP TABLE IF EXISTS " + t.sqlName()); err != nil {
		return err
	}
	_, err := ex.Exec("DELETE FROM tables WHERE id = ?", t.id)
	return err
}

func (c *Collection) RemoveTable(name string) error {
	t, err := c.Table(name)
	if err != nil {
		return err
	}
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if err := c.dropTable(tx, t); err != nil {
		tx.Rollback()
		return err
	}
	rest := slices.DeleteFunc(slices.Clone(c.tables), func(o *Table) bool { return o == t })
	if err := writeTablePositions(tx, rest); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.tables = rest
	slog.Info("Removed table", "name", t.Name)
	return c.markDirty()
}

func (c *Collection) RenameTable(oldName, newName string) error {
	t, err := c.Table(oldName)
	if err != nil {
		return err
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("table: %w", ErrEmptyName)
	}
	if i := c.tableIndex(newName); i >= 0 && c.tables[i] != t {
		return fmt.Errorf("%w: %q", ErrTableExists, newName)
	}
	if _, err := c.db.Exec("UPDATE tables SET name = ? WHERE id = ?", newName, t.id); err != nil {
		return err
	}
	t.Name = newName
	return c.markDirty()
}

// MoveTable moves the named table to display position to.
func (c *Collection) MoveTable(name string, to int) error {
	from := c.tableIndex(name)
	if from < 0 {
		return fmt.Errorf("%w: %q", ErrNoTable, name)
	}
	if to < 0 || to >= len(c.tables) {
		return fmt.Errorf("%w: position %d of %d tables", ErrRowRange, to, len(c.tables))
	}
	if from == to {
		return nil
	}
	moved := slices.Clone(c.tables)
	t := moved[from]
	moved = slices.Delete(moved, from, from+1)
	moved = slices.Insert(moved, to, t)

	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if err := writeTablePositions(tx, moved); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.tables = moved
	return c.markDirty()
}

func writeTablePositions(ex execer, tables []*Table) error {
	for i, t := range tables {
		if _, err := ex.Exec("UPDATE tables SET position = ? WHERE id = ?", i, t.id); err != nil {
			return err
		}
	}
	return nil
}

// Reset drops every table of the collection.
func (c *Collection) Reset() error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if err := c.reset(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.tables = nil
	return c.markDirty()
}

func (c *Collection) reset(ex execer) error {
	for _, t := range c.tables {
		if err := c.dropTable(ex, t); err != nil {
			return fmt.Errorf("drop %q: %w", t.Name, err)
		}
	}
	return nil
}
