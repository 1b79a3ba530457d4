package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowNames(rows []*Row) []string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, FormatValue(r.Values[0]))
	}
	return names
}

// newGamesTable returns a game table holding Zelda, Doom, Portal and Metroid.
func newGamesTable(t *testing.T) *Table {
	t.Helper()
	c := newTestCollection(t)
	games, err := c.AddTable("Games", "game")
	require.NoError(t, err)
	for _, values := range [][]any{
		{"Zelda", "NES", int64(1986), 9.0, true},
		{"Doom", "PC", int64(1993), 8.5, true, "shareware"},
		{"Portal", "PC", int64(2007), 9.5, false},
		{"Metroid", "NES"},
	} {
		_, err := games.Append(values...)
		require.NoError(t, err)
	}
	return games
}

// assertReloads checks the database holds the same order as the cache.
func assertReloads(t *testing.T, tbl *Table) {
	t.Helper()
	want := rowNames(tbl.Rows())
	require.NoError(t, tbl.Load())
	assert.Equal(t, want, rowNames(tbl.Rows()))
	for i, r := range tbl.Rows() {
		assert.Equal(t, i, r.Position)
	}
}

func TestTableInsert(t *testing.T) {
	games := newGamesTable(t)
	assert.Equal(t, []string{"Zelda", "Doom", "Portal", "Metroid"}, rowNames(games.Rows()))

	r, err := games.Insert(0, "Tetris", "Game Boy")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Position)
	assert.Equal(t, []any{"Tetris", "Game Boy", nil, nil, nil, nil}, r.Values)

	_, err = games.Insert(5, "Quake")
	require.NoError(t, err)
	_, err = games.Insert(2, "Myst")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tetris", "Zelda", "Myst", "Doom", "Portal", "Metroid", "Quake"}, rowNames(games.Rows()))
	assertReloads(t, games)

	t.Run("out of range", func(t *testing.T) {
		_, err := games.Insert(8, "Outlaw")
		assert.ErrorIs(t, err, ErrRowRange)
		_, err = games.Insert(-1, "Outlaw")
		assert.ErrorIs(t, err, ErrRowRange)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := games.Append("Thief", "PC", 1998)
		assert.ErrorIs(t, err, ErrInvalidValue)
		_, err = games.Append("Thief", "PC", int64(1998), 12.0)
		assert.ErrorIs(t, err, ErrInvalidValue)
		_, err = games.Append("Thief", "PC", int64(1998), 8.0, true, "", "extra")
		assert.ErrorIs(t, err, ErrInvalidValue)
		assert.Equal(t, 7, games.Len())
	})
}

func TestTableSet(t *testing.T) {
	games := newGamesTable(t)

	require.NoError(t, games.Set(3, "year", int64(1986)))
	require.NoError(t, games.SetText(0, "rating", "7"))
	require.NoError(t, games.SetText(0, "Finished", "no"))
	require.NoError(t, games.SetText(1, "comment", ""))

	assert.ErrorIs(t, games.SetText(0, "year", "abc"), ErrInvalidValue)
	assert.ErrorIs(t, games.Set(0, "year", "1986"), ErrInvalidValue)
	assert.ErrorIs(t, games.Set(9, "year", int64(1)), ErrRowRange)
	assert.ErrorIs(t, games.Set(0, "director", "Miyamoto"), ErrUnknownColumn)

	require.NoError(t, games.Load())
	rows := games.Rows()
	assert.Equal(t, int64(1986), rows[3].Value(games.Kind, "year"))
	assert.Equal(t, 7.0, rows[0].Value(games.Kind, "rating"))
	assert.Equal(t, false, rows[0].Value(games.Kind, "finished"))
	assert.Nil(t, rows[1].Value(games.Kind, "comment"))
	assert.Equal(t, int64(1986), rows[0].Value(games.Kind, "year"))
}

func TestTableRemove(t *testing.T) {
	games := newGamesTable(t)
	require.NoError(t, games.SetTags(0, "category", []string{"Adventure"}))

	require.NoError(t, games.Remove(3, 0, 0))
	assert.Equal(t, []string{"Doom", "Portal"}, rowNames(games.Rows()))
	assertReloads(t, games)

	var links int
	require.NoError(t, games.c.db.QueryRow("SELECT COUNT(*) FROM "+games.linkTable("category")).Scan(&links))
	assert.Zero(t, links)

	assert.ErrorIs(t, games.Remove(0, 5), ErrRowRange)
	assert.Equal(t, 2, games.Len())
	assert.NoError(t, games.Remove())
}

func TestTableMove(t *testing.T) {
	games := newGamesTable(t)

	require.NoError(t, games.Move(0, 3))
	assert.Equal(t, []string{"Doom", "Portal", "Metroid", "Zelda"}, rowNames(games.Rows()))
	require.NoError(t, games.Move(3, 1))
	assert.Equal(t, []string{"Doom", "Zelda", "Portal", "Metroid"}, rowNames(games.Rows()))
	require.NoError(t, games.Move(1, 1))
	assertReloads(t, games)

	assert.ErrorIs(t, games.Move(0, 4), ErrRowRange)
	assert.ErrorIs(t, games.Move(-1, 0), ErrRowRange)
}

func TestTableSort(t *testing.T) {
	games := newGamesTable(t)

	require.NoError(t, games.Sort("year", Descending))
	assert.Equal(t, []string{"Portal", "Doom", "Zelda", "Metroid"}, rowNames(games.Rows()))

	require.NoError(t, games.Sort("name", Ascending))
	assert.Equal(t, []string{"Doom", "Metroid", "Portal", "Zelda"}, rowNames(games.Rows()))

	// Empty cells go last in both directions and ties keep their order.
	require.NoError(t, games.Sort("finished", Ascending))
	assert.Equal(t, []string{"Portal", "Doom", "Zelda", "Metroid"}, rowNames(games.Rows()))
	require.NoError(t, games.Sort("finished", Descending))
	assert.Equal(t, []string{"Doom", "Zelda", "Portal", "Metroid"}, rowNames(games.Rows()))
	assertReloads(t, games)

	assert.ErrorIs(t, games.Sort("director", Ascending), ErrUnknownColumn)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, compareValues("apple", "Banana"))
	assert.Equal(t, 1, compareValues("apple", "Apple"))
	assert.Equal(t, 0, compareValues("Apple", "Apple"))
	assert.Equal(t, -1, compareValues(int64(2), int64(10)))
	assert.Equal(t, 1, compareValues(9.5, 9.0))
	assert.Equal(t, -1, compareValues(false, true))
	assert.Equal(t, 0, compareValues(true, true))
}

func TestTableFilter(t *testing.T) {
	games := newGamesTable(t)
	require.NoError(t, games.SetTags(0, "category", []string{"Adventure", "RPG"}))
	require.NoError(t, games.SetTags(1, "category", []string{"Shooter"}))
	require.NoError(t, games.SetTags(2, "category", []string{"Puzzle"}))
	require.NoError(t, games.SetTags(2, "developer", []string{"Valve"}))
	require.NoError(t, games.SetText(2, "comment", "100% complete"))

	tests := []struct {
		filter string
		want   []string
	}{
		{"#rpg", []string{"Zelda"}},
		{"#rpg, #shooter", []string{"Zelda", "Doom"}},
		{"#valve", []string{"Portal"}},
		{"platform:nes", []string{"Zelda", "Metroid"}},
		{"platform:nes, finished=yes", []string{"Zelda"}},
		{"year=", []string{"Metroid"}},
		{"year=1993, year=2007", []string{"Doom", "Portal"}},
		{"year:19", []string{"Zelda", "Doom"}},
		{"finished:no", []string{"Portal"}},
		{"!comment:share", []string{"Zelda", "Portal", "Metroid"}},
		{"port", []string{"Portal"}},
		{"comment:100%", []string{"Portal"}},
		{"comment:1_0", nil},
		{"studio:valve", nil},
		{"#puzzle, platform:nes", nil},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			require.NoError(t, games.SetFilter(tt.filter))
			got := rowNames(games.Visible())
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	t.Run("invalid", func(t *testing.T) {
		assert.ErrorIs(t, games.SetFilter("!nocolumn:x"), ErrUnknownColumn)
		assert.ErrorIs(t, games.SetFilter("year=abc"), ErrInvalidValue)
	})

	t.Run("follows edits", func(t *testing.T) {
		require.NoError(t, games.SetFilter("platform:nes"))
		_, err := games.Append("Kirby", "NES")
		require.NoError(t, err)
		assert.Equal(t, []string{"Zelda", "Metroid", "Kirby"}, rowNames(games.Visible()))
		require.NoError(t, games.Set(0, "platform", "Switch"))
		assert.Equal(t, []string{"Metroid", "Kirby"}, rowNames(games.Visible()))
		require.NoError(t, games.Move(4, 0))
		assert.Equal(t, []string{"Kirby", "Metroid"}, rowNames(games.Visible()))
	})

	require.NoError(t, games.SetFilter(" "))
	assert.Len(t, games.Visible(), games.Len())
}
