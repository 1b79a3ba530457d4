package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteExport(t *testing.T) {
	games := newGamesTable(t)
	require.NoError(t, games.SetTags(0, "category", []string{"Adventure"}))
	require.NoError(t, games.SetFilter("platform:nes"))

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteExport(&buf, games, "json", 2))
		var got exportedTable
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "Games", got.Name)
		assert.Equal(t, "game", got.Kind)
		require.Len(t, got.Items, 2)
		assert.Equal(t, 1, got.Items[0].Row)
		assert.Equal(t, "Zelda", got.Items[0].Values["name"])
		assert.Equal(t, 1986.0, got.Items[0].Values["year"])
		assert.Equal(t, true, got.Items[0].Values["finished"])
		assert.Equal(t, []string{"Adventure"}, got.Items[0].Tags["category"])
		assert.Equal(t, 4, got.Items[1].Row)
		assert.NotContains(t, got.Items[1].Values, "year")
		assert.Empty(t, got.Items[1].Tags)
		assert.Contains(t, buf.String(), "\n  \"name\"")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteExport(&buf, games, "YAML", 0))
		var got exportedTable
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got.Items, 2)
		assert.Equal(t, "Metroid", got.Items[1].Values["name"])
		assert.Equal(t, 1986, got.Items[0].Values["year"])
	})

	assert.ErrorContains(t, WriteExport(&bytes.Buffer{}, games, "csv", 0), "unsupported format")
}

func TestRenderRows(t *testing.T) {
	games := newGamesTable(t)
	require.NoError(t, games.SetTags(2, "developer", []string{"Valve"}))
	require.NoError(t, games.SetFilter("platform:pc"))

	var buf bytes.Buffer
	require.NoError(t, renderRows(&buf, games, games.Visible()))
	out := buf.String()
	for _, want := range []string{"platform", "developer", "Doom", "Portal", "Valve", "shareware", "2 of 4 rows"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Zelda")
	assert.True(t, strings.HasSuffix(out, "rows\n"))
}

func TestCountLine(t *testing.T) {
	assert.Equal(t, "1,234 rows", countLine(1234, 1234))
	assert.Equal(t, "3 of 12,000 rows", countLine(3, 12000))
}
