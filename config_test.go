package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Run("missing file", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(home, "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".mediacat.sqlite"), cfg.Database)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, DefaultExtensions, cfg.Extensions)
	})

	t.Run("overrides", func(t *testing.T) {
		path := filepath.Join(home, "mediacat.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
database: ~/collections/media.sqlite
log_level: debug
workers: 3
extensions: [MP3, " .ogg"]
`), 0o644))
		cfg, err := LoadConfig("~/mediacat.yaml")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "collections", "media.sqlite"), cfg.Database)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 3, cfg.Workers)
		assert.Equal(t, []string{".mp3", ".ogg"}, cfg.Extensions)
	})

	t.Run("memory database", func(t *testing.T) {
		path := filepath.Join(home, "memory.yaml")
		require.NoError(t, os.WriteFile(path, []byte("database: \":memory:\"\n"), 0o644))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, ":memory:", cfg.Database)
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(home, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("workers: -2\n"), 0o644))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "workers")

		require.NoError(t, os.WriteFile(path, []byte("workers: [1\n"), 0o644))
		_, err = LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging("debug"))
	assert.NoError(t, setupLogging("WARN"))
	assert.Error(t, setupLogging("chatty"))
}
