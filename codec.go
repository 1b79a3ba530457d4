package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Save file layout, all integers big-endian:
//
//	magic    [8]byte "MEDIACAT"
//	type     [3]byte "COL" or "TBL"
//	version  uint32
//	body
//	sentinel byte 0xE0
const (
	fileMagic     = "MEDIACAT"
	fileSentinel  = byte(0xE0)
	FormatVersion = uint32(2)

	TypeCollection = "COL"
	TypeTable      = "TBL"

	// maxLength bounds every length and count read from a file.
	maxLength = 64 << 20
)

var (
	ErrBadMagic           = errors.New("not a mediacat file")
	ErrBadType            = errors.New("unexpected file type")
	ErrUnsupportedVersion = errors.New("unsupported file version")
	ErrBadSentinel        = errors.New("missing end of file marker")
	ErrTrailingData       = errors.New("trailing data after end of file marker")
	ErrCorrupt            = errors.New("corrupt file")
)

const (
	tagNil byte = iota
	tagText
	tagInt
	tagReal
	tagBool
)

// Snapshot is the flattened content of a collection or a single table.
type Snapshot struct {
	Type    string
	Version uint32
	UID     string
	Tables  []TableSnapshot
}

type TableSnapshot struct {
	UID       string
	Name      string
	Kind      string
	Columns   []string
	Utilities []UtilitySnapshot
	Rows      []RowSnapshot
}

type UtilitySnapshot struct {
	Name   string
	Values []string
}

type RowSnapshot struct {
	Values []any
	// Tags[i] indexes into Utilities[i].Values.
	Tags [][]uint32
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) write(p []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(p)
	}
}

func (e *encoder) byte(b byte) {
	if e.err == nil {
		e.err = e.w.WriteByte(b)
	}
}

func (e *encoder) uint32(v uint32) {
	e.write(binary.BigEndian.AppendUint32(nil, v))
}

func (e *encoder) uint64(v uint64) {
	e.write(binary.BigEndian.AppendUint64(nil, v))
}

func (e *encoder) count(n int) {
	if n > maxLength && e.err == nil {
		e.err = fmt.Errorf("%w: %d entries", ErrCorrupt, n)
	}
	e.uint32(uint32(n))
}

func (e *encoder) string(s string) {
	e.count(len(s))
	e.write([]byte(s))
}

func (e *encoder) value(v any) {
	switch v := v.(type) {
	case nil:
		e.byte(tagNil)
	case string:
		e.byte(tagText)
		e.string(v)
	case int64:
		e.byte(tagInt)
		e.uint64(uint64(v))
	case float64:
		e.byte(tagReal)
		e.uint64(math.Float64bits(v))
	case bool:
		e.byte(tagBool)
		if v {
			e.byte(1)
		} else {
			e.byte(0)
		}
	default:
		if e.err == nil {
			e.err = fmt.Errorf("%w: cannot encode %T", ErrInvalidValue, v)
		}
	}
}

// Encode writes s in the current format version. s.Type selects the file type;
// a table file must hold exactly one table.
func Encode(w io.Writer, s *Snapshot) error {
	switch s.Type {
	case TypeCollection:
	case TypeTable:
		if len(s.Tables) != 1 {
			return fmt.Errorf("%w: table file with %d tables", ErrBadType, len(s.Tables))
		}
	default:
		return fmt.Errorf("%w: %q", ErrBadType, s.Type)
	}
	e := &encoder{w: bufio.NewWriter(w)}
	e.write([]byte(fileMagic))
	e.write([]byte(s.Type))
	e.uint32(FormatVersion)
	if s.Type == TypeCollection {
		e.string(s.UID)
		e.count(len(s.Tables))
	}
	for i := range s.Tables {
		encodeTable(e, &s.Tables[i])
	}
	e.byte(fileSentinel)
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

func encodeTable(e *encoder, t *TableSnapshot) {
	e.string(t.UID)
	e.string(t.Name)
	e.string(t.Kind)
	e.count(len(t.Columns))
	for _, c := range t.Columns {
		e.string(c)
	}
	e.count(len(t.Utilities))
	for _, u := range t.Utilities {
		e.string(u.Name)
		e.count(len(u.Values))
		for _, v := range u.Values {
			e.string(v)
		}
	}
	e.count(len(t.Rows))
	for _, r := range t.Rows {
		if len(r.Values) != len(t.Columns) && e.err == nil {
			e.err = fmt.Errorf("%w: table %q row with %d values for %d columns", ErrCorrupt, t.Name, len(r.Values), len(t.Columns))
		}
		for _, v := range r.Values {
			e.value(v)
		}
		for ui := range t.Utilities {
			var tags []uint32
			if ui < len(r.Tags) {
				tags = r.Tags[ui]
			}
			e.count(len(tags))
			for _, tag := range tags {
				e.uint32(tag)
			}
		}
	}
}

type decoder struct {
	r       *bufio.Reader
	version uint32
}

func (d *decoder) full(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: unexpected end of file", ErrCorrupt)
		}
		return nil, err
	}
	return b, nil
}

func (d *decoder) byte() (byte, error) {
	b, err := d.full(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) uint32() (uint32, error) {
	b, err := d.full(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) uint64() (uint64, error) {
	b, err := d.full(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) count() (int, error) {
	n, err := d.uint32()
	if err != nil {
		return 0, err
	}
	if n > maxLength {
		return 0, fmt.Errorf("%w: length %d exceeds limit", ErrCorrupt, n)
	}
	return int(n), nil
}

func (d *decoder) string() (string, error) {
	n, err := d.count()
	if err != nil {
		return "", err
	}
	b, err := d.full(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid UTF-8 string", ErrCorrupt)
	}
	return string(b), nil
}

func (d *decoder) value() (any, error) {
	tag, err := d.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNil:
		return nil, nil
	case tagText:
		return d.string()
	case tagInt:
		v, err := d.uint64()
		return int64(v), err
	case tagReal:
		v, err := d.uint64()
		return math.Float64frombits(v), err
	case tagBool:
		b, err := d.byte()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, fmt.Errorf("%w: bool value %d", ErrCorrupt, b)
		}
		return b == 1, nil
	}
	return nil, fmt.Errorf("%w: unknown value tag %d", ErrCorrupt, tag)
}

// Decode reads a save file of any supported version.
func Decode(r io.Reader) (*Snapshot, error) {
	d := &decoder{r: bufio.NewReader(r)}
	magic, err := d.full(len(fileMagic))
	if err != nil || string(magic) != fileMagic {
		return nil, ErrBadMagic
	}
	typ, err := d.full(3)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{Type: string(typ)}
	if s.Type != TypeCollection && s.Type != TypeTable {
		return nil, fmt.Errorf("%w: %q", ErrBadType, s.Type)
	}
	if s.Version, err = d.uint32(); err != nil {
		return nil, err
	}
	if s.Version < 1 || s.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	d.version = s.Version

	n := 1
	if s.Type == TypeCollection {
		if d.version >= 2 {
			if s.UID, err = d.string(); err != nil {
				return nil, err
			}
		}
		if n, err = d.count(); err != nil {
			return nil, err
		}
	}
	for range n {
		t, err := d.table()
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, *t)
	}

	sentinel, err := d.byte()
	if err != nil || sentinel != fileSentinel {
		return nil, ErrBadSentinel
	}
	if _, err := d.r.ReadByte(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, ErrTrailingData
	}
	return s, nil
}

func (d *decoder) table() (*TableSnapshot, error) {
	t := &TableSnapshot{}
	var err error
	if d.version >= 2 {
		if t.UID, err = d.string(); err != nil {
			return nil, err
		}
	}
	if t.Name, err = d.string(); err != nil {
		return nil, err
	}
	if t.Kind, err = d.string(); err != nil {
		return nil, err
	}

	if d.version == 1 {
		// Version 1 files store the kind's columns in declaration order.
		k, err := KindByName(t.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: table %q: %v", ErrCorrupt, t.Name, err)
		}
		for _, c := range k.Columns {
			t.Columns = append(t.Columns, c.Name)
		}
	} else {
		n, err := d.count()
		if err != nil {
			return nil, err
		}
		for range n {
			c, err := d.string()
			if err != nil {
				return nil, err
			}
			t.Columns = append(t.Columns, c)
		}
		if n, err = d.count(); err != nil {
			return nil, err
		}
		for range n {
			var u UtilitySnapshot
			if u.Name, err = d.string(); err != nil {
				return nil, err
			}
			m, err := d.count()
			if err != nil {
				return nil, err
			}
			for range m {
				v, err := d.string()
				if err != nil {
					return nil, err
				}
				u.Values = append(u.Values, v)
			}
			t.Utilities = append(t.Utilities, u)
		}
	}

	rows, err := d.count()
	if err != nil {
		return nil, err
	}
	for range rows {
		r := RowSnapshot{Values: make([]any, len(t.Columns))}
		for i := range t.Columns {
			if r.Values[i], err = d.value(); err != nil {
				return nil, err
			}
		}
		if len(t.Utilities) > 0 {
			r.Tags = make([][]uint32, len(t.Utilities))
		}
		for ui, u := range t.Utilities {
			m, err := d.count()
			if err != nil {
				return nil, err
			}
			for range m {
				idx, err := d.uint32()
				if err != nil {
					return nil, err
				}
				if int(idx) >= len(u.Values) {
					return nil, fmt.Errorf("%w: %s index %d of %d values", ErrCorrupt, u.Name, idx, len(u.Values))
				}
				r.Tags[ui] = append(r.Tags[ui], idx)
			}
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}
