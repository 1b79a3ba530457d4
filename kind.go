package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrUnknownKind    = errors.New("unknown kind")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrUnknownUtility = errors.New("unknown utility")
	ErrInvalidValue   = errors.New("invalid value")
)

// ColumnType is the storage type of a table column.
type ColumnType byte

const (
	ColText ColumnType = iota + 1
	ColInt
	ColReal
	ColBool
)

func (t ColumnType) String() string {
	switch t {
	case ColText:
		return "text"
	case ColInt:
		return "int"
	case ColReal:
		return "real"
	case ColBool:
		return "bool"
	}
	return fmt.Sprintf("ColumnType(%d)", byte(t))
}

func (t ColumnType) sqlType() string {
	switch t {
	case ColInt, ColBool:
		return "INTEGER"
	case ColReal:
		return "REAL"
	}
	return "TEXT"
}

// Column describes one editable cell of a row.
type Column struct {
	Name string
	Type ColumnType
}

// Kind describes the columns and utilities of one media type.
type Kind struct {
	Name      string
	Columns   []Column
	Utilities []string
	// Person is the utility filled from a media file's artist tag on import.
	Person string
}

var kinds = []*Kind{
	{
		Name: "game",
		Columns: []Column{
			{"name", ColText}, {"platform", ColText}, {"year", ColInt},
			{"rating", ColReal}, {"finished", ColBool}, {"comment", ColText},
		},
		Utilities: []string{"category", "developer"},
		Person:    "developer",
	},
	{
		Name: "movie",
		Columns: []Column{
			{"name", ColText}, {"year", ColInt}, {"duration", ColInt},
			{"rating", ColReal}, {"seen", ColBool}, {"comment", ColText},
		},
		Utilities: []string{"category", "director", "actor"},
		Person:    "director",
	},
	{
		Name: "series",
		Columns: []Column{
			{"name", ColText}, {"year", ColInt}, {"seasons", ColInt}, {"episodes", ColInt},
			{"rating", ColReal}, {"finished", ColBool}, {"comment", ColText},
		},
		Utilities: []string{"category", "actor"},
		Person:    "actor",
	},
	{
		Name: "books",
		Columns: []Column{
			{"name", ColText}, {"year", ColInt}, {"pages", ColInt},
			{"rating", ColReal}, {"read", ColBool}, {"comment", ColText},
		},
		Utilities: []string{"category", "author", "publisher"},
		Person:    "author",
	},
	{
		Name: "common",
		Columns: []Column{
			{"name", ColText}, {"type", ColText}, {"rating", ColReal}, {"comment", ColText},
		},
		Utilities: []string{"category"},
	},
}

// Kinds returns every known media kind in display order.
func Kinds() []*Kind {
	return kinds
}

func KindByName(name string) (*Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range kinds {
		if k.Name == name {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// ColumnIndex returns the index of the named column, or -1.
func (k *Kind) ColumnIndex(name string) int {
	for i, c := range k.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (k *Kind) Column(name string) (int, Column, error) {
	i := k.ColumnIndex(strings.ToLower(strings.TrimSpace(name)))
	if i < 0 {
		return -1, Column{}, fmt.Errorf("%w: %s has no column %q", ErrUnknownColumn, k.Name, name)
	}
	return i, k.Columns[i], nil
}

func (k *Kind) HasUtility(name string) bool {
	for _, u := range k.Utilities {
		if u == name {
			return true
		}
	}
	return false
}

func (k *Kind) utility(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !k.HasUtility(name) {
		return "", fmt.Errorf("%w: %s has no utility %q", ErrUnknownUtility, k.Name, name)
	}
	return name, nil
}

// ParseValue converts user input into the Go value stored for a column type.
// Blank input yields nil, an empty cell.
func ParseValue(t ColumnType, text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	switch t {
	case ColText:
		return text, nil
	case ColInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, text)
		}
		return n, nil
	case ColReal:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, text)
		}
		return f, nil
	case ColBool:
		switch strings.ToLower(text) {
		case "1", "y", "yes", "true", "x":
			return true, nil
		case "0", "n", "no", "false", "-":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not a yes/no value", ErrInvalidValue, text)
	}
	return nil, fmt.Errorf("%w: column type %v", ErrInvalidValue, t)
}

// CheckValue verifies v has the Go type stored for column c.
func CheckValue(c Column, v any) error {
	if v == nil {
		return nil
	}
	ok := false
	switch c.Type {
	case ColText:
		_, ok = v.(string)
	case ColInt:
		_, ok = v.(int64)
	case ColReal:
		var f float64
		f, ok = v.(float64)
		if ok && c.Name == "rating" && (f < 0 || f > 10) {
			return fmt.Errorf("%w: rating %v out of range [0, 10]", ErrInvalidValue, f)
		}
	case ColBool:
		_, ok = v.(bool)
	}
	if !ok {
		return fmt.Errorf("%w: %T for %s column %q", ErrInvalidValue, v, c.Type, c.Name)
	}
	return nil
}

func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "yes"
		}
		return "no"
	}
	return fmt.Sprint(v)
}

// fromSQL normalizes a scanned column value to the column's Go type.
func fromSQL(t ColumnType, v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case []byte:
		return fromSQL(t, string(v))
	case int64:
		switch t {
		case ColBool:
			return v != 0
		case ColReal:
			return float64(v)
		case ColText:
			return strconv.FormatInt(v, 10)
		}
		return v
	case float64:
		if t == ColInt {
			return int64(v)
		}
		return v
	case bool:
		if t == ColInt {
			if v {
				return int64(1)
			}
			return int64(0)
		}
		return v
	case string:
		if t == ColText {
			return v
		}
		parsed, err := ParseValue(t, v)
		if err != nil {
			return nil
		}
		return parsed
	}
	return v
}

func toSQL(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}
