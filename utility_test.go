package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagsOf(t *testing.T, tbl *Table, row int, u string) []string {
	t.Helper()
	tags, err := tbl.Tags(row, u)
	require.NoError(t, err)
	return tags
}

func utilValues(t *testing.T, tbl *Table, u string) []string {
	t.Helper()
	v, err := tbl.Values(u)
	require.NoError(t, err)
	return v
}

func TestSetTags(t *testing.T) {
	games := newGamesTable(t)

	require.NoError(t, games.SetTags(0, "Category", []string{"RPG", " rpg ", "Adventure", ""}))
	assert.Equal(t, []string{"Adventure", "RPG"}, tagsOf(t, games, 0, "category"))
	assert.Equal(t, []string{"Adventure", "RPG"}, utilValues(t, games, "category"))

	// Existing values keep their stored spelling.
	require.NoError(t, games.SetTags(1, "category", []string{"adventure"}))
	assert.Equal(t, []string{"Adventure"}, tagsOf(t, games, 1, "category"))

	require.NoError(t, games.AddTags(1, "category", []string{"Shooter", "ADVENTURE"}))
	assert.Equal(t, []string{"Adventure", "Shooter"}, tagsOf(t, games, 1, "category"))

	require.NoError(t, games.RemoveTags(1, "category", []string{"adventure"}))
	assert.Equal(t, []string{"Shooter"}, tagsOf(t, games, 1, "category"))
	assert.Equal(t, []string{"Adventure", "RPG", "Shooter"}, utilValues(t, games, "category"))

	require.NoError(t, games.SetTags(0, "category", nil))
	assert.Empty(t, tagsOf(t, games, 0, "category"))
	_, ok := games.Rows()[0].Tags["category"]
	assert.False(t, ok)

	assert.ErrorIs(t, games.SetTags(0, "director", []string{"Miyamoto"}), ErrUnknownUtility)
	assert.ErrorIs(t, games.SetTags(7, "category", []string{"RPG"}), ErrRowRange)
	_, err := games.Tags(0, "actor")
	assert.ErrorIs(t, err, ErrUnknownUtility)

	require.NoError(t, games.Load())
	assert.Equal(t, []string{"Shooter"}, tagsOf(t, games, 1, "category"))
}

func TestRenameValue(t *testing.T) {
	games := newGamesTable(t)
	require.NoError(t, games.SetTags(0, "category", []string{"Adventure", "RPG"}))
	require.NoError(t, games.SetTags(1, "category", []string{"Shooter", "Adventure"}))
	require.NoError(t, games.SetTags(2, "category", []string{"Shooter"}))

	require.NoError(t, games.RenameValue("category", "rpg", "Role-Playing"))
	assert.Equal(t, []string{"Adventure", "Role-Playing"}, tagsOf(t, games, 0, "category"))

	t.Run("merge", func(t *testing.T) {
		require.NoError(t, games.RenameValue("category", "Shooter", "Adventure"))
		assert.Equal(t, []string{"Adventure"}, tagsOf(t, games, 1, "category"))
		assert.Equal(t, []string{"Adventure"}, tagsOf(t, games, 2, "category"))
		assert.Equal(t, []string{"Adventure", "Role-Playing"}, utilValues(t, games, "category"))
	})

	t.Run("respell", func(t *testing.T) {
		require.NoError(t, games.RenameValue("category", "adventure", "ADVENTURE"))
		assert.Equal(t, []string{"ADVENTURE", "Role-Playing"}, tagsOf(t, games, 0, "category"))
	})

	t.Run("errors", func(t *testing.T) {
		assert.ErrorIs(t, games.RenameValue("category", "Racing", "Driving"), ErrUnknownValue)
		assert.ErrorIs(t, games.RenameValue("category", "ADVENTURE", " "), ErrEmptyName)
		assert.ErrorIs(t, games.RenameValue("actor", "a", "b"), ErrUnknownUtility)
	})

	require.NoError(t, games.SetFilter("#role"))
	assert.Equal(t, []string{"Zelda"}, rowNames(games.Visible()))
	assert.True(t, games.c.Dirty())
}

func TestRemoveAndPruneValues(t *testing.T) {
	games := newGamesTable(t)
	require.NoError(t, games.SetTags(0, "category", []string{"Adventure", "RPG"}))
	require.NoError(t, games.AddValue("developer", " Nintendo "))
	require.NoError(t, games.AddValue("developer", ""))
	assert.Equal(t, []string{"Nintendo"}, utilValues(t, games, "developer"))

	require.NoError(t, games.RemoveValue("category", "rpg"))
	assert.Equal(t, []string{"Adventure"}, tagsOf(t, games, 0, "category"))
	assert.Equal(t, []string{"Adventure"}, utilValues(t, games, "category"))
	assert.ErrorIs(t, games.RemoveValue("category", "rpg"), ErrUnknownValue)

	n, err := games.PruneValues("category")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = games.PruneValues("developer")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, utilValues(t, games, "developer"))

	_, err = games.PruneValues("author")
	assert.ErrorIs(t, err, ErrUnknownUtility)
}

func TestNonASCIIValues(t *testing.T) {
	games := newGamesTable(t)
	require.NoError(t, games.AddValue("developer", "Émile Zola"))
	require.NoError(t, games.AddValue("developer", "émile zola"))
	assert.Equal(t, []string{"Émile Zola"}, utilValues(t, games, "developer"))

	require.NoError(t, games.SetTags(0, "category", []string{"Émile"}))
	require.NoError(t, games.SetTags(1, "category", []string{"émile", "ÉMILE"}))
	assert.Equal(t, []string{"Émile"}, tagsOf(t, games, 1, "category"))
	assert.Equal(t, []string{"Émile"}, utilValues(t, games, "category"))

	require.NoError(t, games.RenameValue("category", "ÉMILE", "Ökonomie"))
	require.NoError(t, games.SetTags(2, "category", []string{"ökonomie"}))
	assert.Equal(t, []string{"Ökonomie"}, tagsOf(t, games, 2, "category"))

	require.NoError(t, games.SetFilter("#ÖKO"))
	assert.Equal(t, []string{"Zelda", "Doom", "Portal"}, rowNames(games.Visible()))

	path := filepath.Join(t.TempDir(), "media.mcat")
	require.NoError(t, games.c.Save(path))
	dst := newTestCollection(t)
	require.NoError(t, dst.Load(path))
	assertSameTables(t, games.c, dst)
	loaded, err := dst.Table("Games")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ökonomie"}, loaded.Rows()[0].Tags["category"])
	assert.Equal(t, []string{"Émile Zola"}, utilValues(t, loaded, "developer"))
}

func TestCleanValues(t *testing.T) {
	assert.Equal(t, []string{"Sci-Fi", "Drama"}, cleanValues([]string{" Sci-Fi", "", "sci-fi ", "Drama", "  "}))
	assert.Equal(t, []string{"Ångström"}, cleanValues([]string{"Ångström", "ÅNGSTRÖM", "ångström"}))
	assert.Nil(t, cleanValues(nil))
}
