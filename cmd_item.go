package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newItemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Add, edit, reorder and list the rows of a table",
	}
	cmd.AddCommand(newItemAddCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "set <table> <row> <column=value>...",
		Short: "Edit cells of a row; utilities take values separated by ';'",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			row, err := parseRow(t, args[1])
			if err != nil {
				return err
			}
			as, err := parseAssignments(t, args[2:])
			if err != nil {
				return err
			}
			return applyAssignments(t, row, as)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "remove <table> <row>...",
		Aliases: []string{"rm"},
		Short:   "Remove rows",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			var rows []int
			for _, arg := range args[1:] {
				row, err := parseRow(t, arg)
				if err != nil {
					return err
				}
				rows = append(rows, row)
			}
			return t.Remove(rows...)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "move <table> <from> <to>",
		Aliases: []string{"mv"},
		Short:   "Move a row to another position",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			from, err := parseRow(t, args[1])
			if err != nil {
				return err
			}
			to, err := parseRow(t, args[2])
			if err != nil {
				return err
			}
			return t.Move(from, to)
		},
	})
	cmd.AddCommand(newItemSortCmd(a))
	cmd.AddCommand(newItemListCmd(a))
	return cmd
}

func newItemAddCmd(a *app) *cobra.Command {
	var at int
	cmd := &cobra.Command{
		Use:   "add <table> <column=value>...",
		Short: "Add a row at the end, or before --at",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			as, err := parseAssignments(t, args[1:])
			if err != nil {
				return err
			}
			values := make([]any, len(t.Kind.Columns))
			for _, x := range as {
				if x.column == "" {
					continue
				}
				i, col, _ := t.Kind.Column(x.column)
				if values[i], err = ParseValue(col.Type, x.text); err != nil {
					return fmt.Errorf("%s: %w", col.Name, err)
				}
			}
			pos := t.Len()
			if cmd.Flags().Changed("at") {
				if at < 1 || at > t.Len()+1 {
					return fmt.Errorf("%w: --at takes a value from 1 to %d", ErrRowRange, t.Len()+1)
				}
				pos = at - 1
			}
			r, err := t.Insert(pos, values...)
			if err != nil {
				return err
			}
			for _, x := range as {
				if x.utility != "" {
					if err := t.SetTags(r.Position, x.utility, x.tags()); err != nil {
						return err
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added row %d to %s\n", r.Position+1, t.Name)
			return nil
		},
	}
	cmd.Flags().IntVar(&at, "at", 0, "1-based position of the new row")
	return cmd
}

func newItemSortCmd(a *app) *cobra.Command {
	var desc bool
	cmd := &cobra.Command{
		Use:   "sort <table> <column>",
		Short: "Sort the rows by a column; empty cells go last",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			order := Ascending
			if desc {
				order = Descending
			}
			return t.Sort(args[1], order)
		},
	}
	cmd.Flags().BoolVar(&desc, "desc", false, "sort in descending order")
	return cmd
}

func newItemListCmd(a *app) *cobra.Command {
	var (
		filter string
		format string
		indent int
	)
	cmd := &cobra.Command{
		Use:     "list <table>",
		Aliases: []string{"ls"},
		Short:   "Show the rows of a table, optionally filtered (see mediacat syntax)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			if err := t.SetFilter(filter); err != nil {
				return err
			}
			if format != "" {
				return WriteExport(cmd.OutOrStdout(), t, format, indent)
			}
			if len(t.Visible()) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
				return nil
			}
			return renderRows(cmd.OutOrStdout(), t, t.Visible())
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "filter expression")
	cmd.Flags().StringVar(&format, "format", "", "print as json or yaml instead of a grid")
	cmd.Flags().IntVarP(&indent, "indent", "i", 2, "with --format json, # of spaces to indent by")
	return cmd
}

func newTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage utility values (category, author, actor...)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <table> <utility>",
		Short: "List the values of a utility",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			values, err := t.Values(args[1])
			if err != nil {
				return err
			}
			for _, v := range values {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "new <table> <utility> <value>",
		Short: "Add a value without linking it to a row",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			return t.AddValue(args[1], args[2])
		},
	})
	rowTags := func(use, short string, fn func(t *Table, row int, u string, values []string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <table> <row> <utility> <value>...",
			Short: short,
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := a.table(args[0])
				if err != nil {
					return err
				}
				row, err := parseRow(t, args[1])
				if err != nil {
					return err
				}
				return fn(t, row, args[2], args[3:])
			},
		}
	}
	cmd.AddCommand(rowTags("add", "Link values to a row", (*Table).AddTags))
	cmd.AddCommand(rowTags("remove", "Unlink values from a row", (*Table).RemoveTags))
	cmd.AddCommand(rowTags("set", "Replace the values linked to a row", (*Table).SetTags))
	cmd.AddCommand(&cobra.Command{
		Use:   "rename <table> <utility> <old> <new>",
		Short: "Rename a value, merging it into an existing one",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			return t.RenameValue(args[1], args[2], args[3])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <table> <utility> <value>",
		Short: "Delete a value and unlink it from every row",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			return t.RemoveValue(args[1], args[2])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "prune <table> <utility>",
		Short: "Delete the values no row uses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.table(args[0])
			if err != nil {
				return err
			}
			n, err := t.PruneValues(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruner: Removed %s unused %s values.\n", strconv.Itoa(n), strings.ToLower(args[1]))
			return nil
		},
	})
	return cmd
}
