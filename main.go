// Command mediacat catalogues personal media collections (games, movies,
// series, books and generic lists) in sortable, filterable tables kept in a
// SQLite working store, and saves them to a versioned binary file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "mediacat: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// app carries the state shared by every subcommand.
type app struct {
	configPath   string
	databasePath string
	logLevel     string

	cfg Config
	c   *Collection
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mediacat",
		Short: "Catalogue games, movies, series, books and other collections",
		Long: `Keep media collections in editable, sortable, filterable tables.

The working collection lives in a SQLite database; save and load move it
to and from a portable .mcat file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.c != nil {
				return a.c.Close()
			}
			return nil
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", defaultConfigPath(), "configuration file")
	f.StringVar(&a.databasePath, "database", "", "the location of the working collection database")
	f.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newTableCmd(a))
	root.AddCommand(newItemCmd(a))
	root.AddCommand(newTagCmd(a))
	root.AddCommand(newSaveCmd(a))
	root.AddCommand(newLoadCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newImportTableCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newSearchCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(&cobra.Command{
		Use:   "syntax",
		Short: "Show the filter and search syntax guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), syntaxGuide)
			return nil
		},
	})
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.databasePath != "" {
		cfg.Database = truePath(a.databasePath)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	return setupLogging(cfg.LogLevel)
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      l,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
	return nil
}

// collection opens the working collection on first use.
func (a *app) collection() (*Collection, error) {
	if a.c != nil {
		return a.c, nil
	}
	c, err := OpenCollection(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.cfg.Database, err)
	}
	a.c = c
	return c, nil
}

func (a *app) table(name string) (*Table, error) {
	c, err := a.collection()
	if err != nil {
		return nil, err
	}
	return c.Table(name)
}
