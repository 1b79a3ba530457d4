package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSampleCollection holds a game table with tags and a books table with an
// unlinked publisher.
func newSampleCollection(t *testing.T) *Collection {
	t.Helper()
	c := newTestCollection(t)
	games, err := c.AddTable("Games", "game")
	require.NoError(t, err)
	_, err = games.Append("Zelda", "NES", int64(1986), 9.0, true)
	require.NoError(t, err)
	_, err = games.Append("Doom", "PC", int64(1993), nil, false, "shareware")
	require.NoError(t, err)
	require.NoError(t, games.SetTags(0, "category", []string{"Adventure", "RPG"}))
	require.NoError(t, games.SetTags(1, "developer", []string{"id Software"}))

	books, err := c.AddTable("Book Shelf", "books")
	require.NoError(t, err)
	_, err = books.Append("Dune", int64(1965), int64(412))
	require.NoError(t, err)
	require.NoError(t, books.SetTags(0, "author", []string{"Frank Herbert"}))
	require.NoError(t, books.AddValue("publisher", "Chilton"))
	return c
}

func assertSameTables(t *testing.T, want, got *Collection) {
	t.Helper()
	require.Equal(t, tableNames(want), tableNames(got))
	for i, wt := range want.Tables() {
		gt := got.Tables()[i]
		assert.Equal(t, wt.UID, gt.UID)
		assert.Equal(t, wt.Kind, gt.Kind)
		require.Equal(t, wt.Len(), gt.Len(), wt.Name)
		for j, wr := range wt.Rows() {
			gr := gt.Rows()[j]
			assert.Equal(t, wr.Values, gr.Values, "%s row %d", wt.Name, j)
			assert.Equal(t, wr.Tags, gr.Tags, "%s row %d", wt.Name, j)
		}
		for _, u := range wt.Kind.Utilities {
			wv, err := wt.Values(u)
			require.NoError(t, err)
			gv, err := gt.Values(u)
			require.NoError(t, err)
			assert.Equal(t, wv, gv, "%s %s", wt.Name, u)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	src := newSampleCollection(t)
	path := filepath.Join(t.TempDir(), "media.mcat")
	require.True(t, src.Dirty())
	require.NoError(t, src.Save(path))
	assert.False(t, src.Dirty())

	dst := newTestCollection(t)
	_, err := dst.AddTable("Scratch", "common")
	require.NoError(t, err)
	require.NoError(t, dst.Load(path))
	assert.False(t, dst.Dirty())
	assert.Equal(t, src.UID(), dst.UID())
	assertSameTables(t, src, dst)

	file, err := dst.meta("file")
	require.NoError(t, err)
	assert.Equal(t, path, file)

	// The restored tables are fully functional.
	books, err := dst.Table("book shelf")
	require.NoError(t, err)
	require.NoError(t, books.SetTags(0, "publisher", []string{"chilton"}))
	assert.Equal(t, []string{"Chilton"}, books.Rows()[0].Tags["publisher"])
	assert.True(t, dst.Dirty())
}

func TestLoadErrorsKeepCollection(t *testing.T) {
	c := newSampleCollection(t)
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.mcat")
	require.NoError(t, os.WriteFile(garbage, []byte("MEDIACATCOL\x00\x00\x00\x02junk"), 0o644))
	assert.ErrorIs(t, c.Load(garbage), ErrCorrupt)

	tableFile := filepath.Join(dir, "games.mcat")
	require.NoError(t, c.ExportTable("Games", tableFile))
	assert.ErrorIs(t, c.Load(tableFile), ErrBadType)

	assert.Error(t, c.Load(filepath.Join(dir, "missing.mcat")))

	s, err := c.Snapshot()
	require.NoError(t, err)
	s.Tables = append(s.Tables, s.Tables[0])
	assert.ErrorIs(t, c.Restore(s), ErrTableExists)

	assert.ErrorIs(t, c.Restore(&Snapshot{
		Type: TypeCollection,
		Tables: []TableSnapshot{{
			Name:      "Broken",
			Kind:      "game",
			Columns:   []string{"name"},
			Utilities: []UtilitySnapshot{{Name: "category"}},
			Rows:      []RowSnapshot{{Values: []any{"Doom"}, Tags: [][]uint32{{3}}}},
		}},
	}), ErrCorrupt)

	assert.Equal(t, []string{"Games", "Book Shelf"}, tableNames(c))
	games, err := c.Table("Games")
	require.NoError(t, err)
	require.NoError(t, games.Load())
	assert.Equal(t, []string{"Zelda", "Doom"}, rowNames(games.Rows()))
}

func TestLoadVersion1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.mcat")
	require.NoError(t, os.WriteFile(path, v1File(), 0o644))

	c := newTestCollection(t)
	require.NoError(t, c.Load(path))
	lib, err := c.Table("Library")
	require.NoError(t, err)
	assert.Equal(t, "common", lib.Kind.Name)
	assert.NotEmpty(t, lib.UID)
	assert.Equal(t, []string{"Chess set", "Kite"}, rowNames(lib.Rows()))
	assert.Equal(t, 7.5, lib.Rows()[0].Value(lib.Kind, "rating"))
}

func TestExportImportTable(t *testing.T) {
	src := newSampleCollection(t)
	dir := t.TempDir()
	tableFile := filepath.Join(dir, "games.mcat")
	require.NoError(t, src.ExportTable("games", tableFile))
	assert.ErrorIs(t, src.ExportTable("Films", tableFile), ErrNoTable)

	dst := newTestCollection(t)
	games, err := dst.ImportTable(tableFile, "", "")
	require.NoError(t, err)
	srcGames, err := src.Table("Games")
	require.NoError(t, err)
	assert.Equal(t, "Games", games.Name)
	assert.Equal(t, srcGames.UID, games.UID)
	assert.Equal(t, []string{"Zelda", "Doom"}, rowNames(games.Rows()))
	assert.Equal(t, []string{"id Software"}, games.Rows()[1].Tags["developer"])
	assert.True(t, dst.Dirty())

	_, err = dst.ImportTable(tableFile, "", "")
	assert.ErrorIs(t, err, ErrTableExists)

	again, err := dst.ImportTable(tableFile, "", "Games 2")
	require.NoError(t, err)
	assert.NotEqual(t, games.UID, again.UID)
	assert.Equal(t, []string{"Games", "Games 2"}, tableNames(dst))

	t.Run("from collection file", func(t *testing.T) {
		collFile := filepath.Join(dir, "all.mcat")
		require.NoError(t, src.Save(collFile))

		_, err := dst.ImportTable(collFile, "", "")
		assert.ErrorIs(t, err, ErrBadType)
		_, err = dst.ImportTable(collFile, "Films", "")
		assert.ErrorIs(t, err, ErrNoTable)

		books, err := dst.ImportTable(collFile, "book shelf", "")
		require.NoError(t, err)
		assert.Equal(t, "Book Shelf", books.Name)
		publishers, err := books.Values("publisher")
		require.NoError(t, err)
		assert.Equal(t, []string{"Chilton"}, publishers)
	})

	// Imported tables survive a reopen of the working store.
	require.NoError(t, dst.loadTables())
	assert.Equal(t, []string{"Games", "Games 2", "Book Shelf"}, tableNames(dst))
}
