package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		watch   bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "import <table> <directory>",
		Short: "Add a row per media file found below a directory",
		Long: `Read the tags of audio and video files and add one row per title.

The title fills the name, the genre the category and the artist the
kind's person utility (developer, director, actor or author).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			root := truePath(args[1])
			if !isDir(root) {
				return fmt.Errorf("cannot scan a nonexistent path: %q", root)
			}
			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Workers
			}
			im := &Importer{Table: t, Workers: workers, Extensions: a.cfg.Extensions}
			added, err := im.Run(cmd.Context(), root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Importer: added %d rows to %s.\n", added, t.Name)
			if watch {
				return im.Watch(cmd.Context(), root)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and import new files as they appear")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel tag readers, 0 for one per CPU")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		useDocBackend bool
		reindex       bool
		outputJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every table of the collection (see mediacat syntax)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			var store Datastore
			path := ":memory:"
			fresh := true
			if useDocBackend {
				store = &BleveStore{}
				if c.Path() != ":memory:" {
					path = strings.TrimSuffix(c.Path(), ".sqlite") + ".bleve"
					fresh = reindex || indexStale(c.Path(), path)
				}
			} else {
				store = &SQLiteStore{}
			}
			if err := store.Initialize(path); err != nil {
				return err
			}
			defer store.Close()

			if !fresh {
				if n, err := store.Count(); err != nil || n == 0 {
					fresh = true
				}
			}
			if fresh {
				start := time.Now()
				n, err := Reindex(store, c)
				if err != nil {
					return err
				}
				if path != ":memory:" {
					if err := touch(path + ".stamp"); err != nil {
						return err
					}
				}
				slog.Debug("Indexed collection", "documents", n, "elapsed", time.Since(start).Round(time.Millisecond))
			}

			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			results, err := store.Search(query)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			if len(results) == 0 {
				fmt.Fprintln(w, "No results found.")
				return nil
			}
			var lastTable string
			for _, d := range results {
				if d.Table != lastTable {
					fmt.Fprintf(w, "\n %s\n%s\n", d.Table, strings.Repeat("=", len(d.Table)+2))
					lastTable = d.Table
				}
				line := fmt.Sprintf("  [ %d ] %s", d.Row, d.Name)
				if d.Tags != "" {
					line += "  (" + d.Tags + ")"
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useDocBackend, "document-backend", false, "use the bleve document index")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "with --document-backend, rebuild the index")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output matching results in JSON")
	return cmd
}

// indexStale reports whether the database changed after the index was built.
func indexStale(dbPath, indexPath string) bool {
	db, err := os.Stat(dbPath)
	if err != nil {
		return true
	}
	stamp, err := os.Stat(indexPath + ".stamp")
	if err != nil {
		return true
	}
	return db.ModTime().After(stamp.ModTime())
}

func touch(path string) error {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	}
	return os.WriteFile(path, nil, 0o644)
}
