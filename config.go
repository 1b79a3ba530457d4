package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the settings read from ~/.mediacat.yaml. Command line flags
// override them.
type Config struct {
	Database   string   `yaml:"database"`
	LogLevel   string   `yaml:"log_level"`
	Workers    int      `yaml:"workers"`
	Extensions []string `yaml:"extensions"`
}

func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Database:   filepath.Join(home, ".mediacat.sqlite"),
		LogLevel:   "info",
		Extensions: slices.Clone(DefaultExtensions),
	}
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mediacat.yaml")
}

// LoadConfig reads path on top of DefaultConfig. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(truePath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Workers < 0 {
		return cfg, fmt.Errorf("parse %s: workers must not be negative", path)
	}
	for i, ext := range cfg.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Extensions[i] = ext
	}
	cfg.Database = truePath(cfg.Database)
	return cfg, nil
}

func truePath(path string) string {
	if path == "" || path == ":memory:" {
		return path
	}
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	abs, _ := filepath.Abs(path)
	return abs
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
