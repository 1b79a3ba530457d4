package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>",
		Short: "Save the collection to a .mcat file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			return c.Save(truePath(args[0]))
		},
	}
}

func newLoadCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Replace the collection with the content of a .mcat file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			if c.Dirty() && !force {
				return fmt.Errorf("the collection has unsaved changes, save it first or use --force")
			}
			return c.Load(truePath(args[0]))
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "discard unsaved changes")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		indent int
	)
	cmd := &cobra.Command{
		Use:   "export <table> <file>",
		Short: "Export one table as a .mcat table file, JSON or YAML",
		Long:  `Export one table. "-" as file writes JSON or YAML to stdout.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case "mcat", "bin":
				return c.ExportTable(args[0], truePath(args[1]))
			}
			t, err := c.Table(args[0])
			if err != nil {
				return err
			}
			if args[1] == "-" {
				return WriteExport(cmd.OutOrStdout(), t, format, indent)
			}
			f, err := os.Create(truePath(args[1]))
			if err != nil {
				return err
			}
			if err := WriteExport(f, t, format, indent); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&format, "format", "mcat", "mcat, json or yaml")
	cmd.Flags().IntVarP(&indent, "indent", "i", 2, "with --format json, # of spaces to indent by")
	return cmd
}

func newImportTableCmd(a *app) *cobra.Command {
	var from, as string
	cmd := &cobra.Command{
		Use:   "import-table <file>",
		Short: "Append a table from a .mcat table or collection file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			t, err := c.ImportTable(truePath(args[0]), from, as)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s, %s)\n", t.Name, t.Kind.Name, countLine(t.Len(), t.Len()))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "table to take from a collection file")
	cmd.Flags().StringVar(&as, "as", "", "name of the imported table")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the collection and whether it has unsaved changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Collection %s (%s)\n", c.UID(), c.Path())
			file, err := c.meta("file")
			if err != nil {
				return err
			}
			if file != "" {
				fmt.Fprintf(w, "Save file: %s\n", file)
			}
			if c.Dirty() {
				fmt.Fprintln(w, "Unsaved changes.")
			}
			for _, t := range c.Tables() {
				fmt.Fprintf(w, "  %-20s %-7s %s\n", t.Name, t.Kind.Name, countLine(t.Len(), t.Len()))
			}
			return nil
		},
	}
}
