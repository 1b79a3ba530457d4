package main

import (
	"database/sql"
	"strings"
)

// SQLiteStore is the default search backend: a flat documents table queried
// with LIKE clauses.
type SQLiteStore struct {
	db *sql.DB
}

func (s *SQLiteStore) Initialize(path string) error {
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	s.db = db

	sqlStmt := `CREATE TABLE IF NOT EXISTS documents(
		id TEXT PRIMARY KEY,
		tbl TEXT,
		kind TEXT,
		rownum INTEGER,
		name TEXT,
		comment TEXT,
		tags TEXT
	);`
	_, err = s.db.Exec(sqlStmt)
	return err
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM documents")
	return err
}

func (s *SQLiteStore) IndexBatch(batch []*Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO documents (id, tbl, kind, rownum, name, comment, tags) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, d := range batch {
		if _, err := stmt.Exec(d.ID, d.Table, d.Kind, d.Row, d.Name, d.Comment, d.Tags); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

const documentOrder = " ORDER BY tbl, rownum"

func (s *SQLiteStore) Search(input string) ([]Document, error) {
	const sel = "SELECT id, tbl, kind, rownum, name, comment, tags FROM documents"
	if strings.TrimSpace(input) == "" {
		rows, err := s.db.Query(sel + documentOrder)
		if err != nil {
			return nil, err
		}
		return s.scanRows(rows)
	}

	terms := parseSearch(input)
	var (
		sqlParts []string
		args     []any
	)
	addOrGroup := func(params []string, clause string) {
		if len(params) == 0 {
			return
		}
		var subParts []string
		for _, p := range params {
			subParts = append(subParts, clause)
			n := strings.Count(clause, "?")
			for range n {
				args = append(args, likePattern(p))
			}
		}
		sqlParts = append(sqlParts, "("+strings.Join(subParts, " OR ")+")")
	}
	addOrGroup(terms.kinds, `kind LIKE ? ESCAPE '\'`)
	addOrGroup(terms.tables, `tbl LIKE ? ESCAPE '\'`)
	addOrGroup(terms.tags, `tags LIKE ? ESCAPE '\'`)
	addOrGroup(terms.names, `name LIKE ? ESCAPE '\'`)
	addOrGroup(terms.multi, `(name LIKE ? ESCAPE '\' OR comment LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`)

	query := sel
	if len(sqlParts) > 0 {
		query += " WHERE " + strings.Join(sqlParts, " AND ")
	}
	query += documentOrder

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return s.scanRows(rows)
}

func (s *SQLiteStore) scanRows(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	var results []Document
	for rows.Next() {
		var d Document
		err := rows.Scan(&d.ID, &d.Table, &d.Kind, &d.Row, &d.Name, &d.Comment, &d.Tags)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}
