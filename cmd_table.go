package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newTableCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Manage the tables of the collection",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <kind>",
		Short: "Add an empty table (kinds: game, movie, series, books, common)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			_, err = c.AddTable(args[0], args[1])
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			if len(c.Tables()) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tables.")
				return nil
			}
			for i, t := range c.Tables() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (%s, %s)\n", i+1, t.Name, t.Kind.Name, countLine(t.Len(), t.Len()))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a table and its rows",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			return c.RemoveTable(args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			return c.RenameTable(args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "move <name> <position>",
		Aliases: []string{"mv"},
		Short:   "Move a table to a 1-based position",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position %q: %w", args[1], err)
			}
			return c.MoveTable(args[0], pos-1)
		},
	})
	return cmd
}

// parseRow converts a 1-based row argument into a cache index.
func parseRow(t *Table, arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("row %q: %w", arg, err)
	}
	if n < 1 || n > t.Len() {
		return 0, fmt.Errorf("%w: enter a value from 1 to %d", ErrRowRange, t.Len())
	}
	return n - 1, nil
}

// assignment is one column=value or utility=a;b argument.
type assignment struct {
	column  string
	utility string
	text    string
}

func parseAssignments(t *Table, args []string) ([]assignment, error) {
	var out []assignment
	for _, arg := range args {
		name, text, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected column=value", arg)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if t.Kind.HasUtility(name) {
			out = append(out, assignment{utility: name, text: text})
			continue
		}
		if _, _, err := t.Kind.Column(name); err != nil {
			return nil, err
		}
		out = append(out, assignment{column: name, text: text})
	}
	return out, nil
}

func (as assignment) tags() []string {
	return strings.Split(as.text, ";")
}

// apply writes assignments to an existing row.
func applyAssignments(t *Table, row int, as []assignment) error {
	for _, x := range as {
		if x.utility != "" {
			if err := t.SetTags(row, x.utility, x.tags()); err != nil {
				return err
			}
			continue
		}
		if err := t.SetText(row, x.column, x.text); err != nil {
			return err
		}
	}
	return nil
}
