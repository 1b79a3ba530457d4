package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// renderRows draws rows of t as a grid: row number, columns, then utilities.
func renderRows(w io.Writer, t *Table, rows []*Row) error {
	headers := []string{"#"}
	for _, c := range t.Kind.Columns {
		headers = append(headers, c.Name)
	}
	headers = append(headers, t.Kind.Utilities...)

	grid := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := []string{strconv.Itoa(r.Position + 1)}
		for _, v := range r.Values {
			line = append(line, FormatValue(v))
		}
		for _, u := range t.Kind.Utilities {
			line = append(line, strings.Join(r.Tags[u], ", "))
		}
		grid = append(grid, line)
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(grid...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if _, err := io.WriteString(w, tbl.Render()+"\n"); err != nil {
		return err
	}
	_, err := io.WriteString(w, countLine(len(rows), t.Len())+"\n")
	return err
}

func countLine(shown, total int) string {
	if shown == total {
		return humanize.Comma(int64(total)) + " rows"
	}
	return humanize.Comma(int64(shown)) + " of " + humanize.Comma(int64(total)) + " rows"
}
