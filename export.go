package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type exportedItem struct {
	Row    int                 `json:"row" yaml:"row"`
	Values map[string]any      `json:"values" yaml:"values"`
	Tags   map[string][]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type exportedTable struct {
	Name  string         `json:"name" yaml:"name"`
	Kind  string         `json:"kind" yaml:"kind"`
	Items []exportedItem `json:"items" yaml:"items"`
}

func exportRows(t *Table, rows []*Row) exportedTable {
	out := exportedTable{Name: t.Name, Kind: t.Kind.Name, Items: []exportedItem{}}
	for _, r := range rows {
		item := exportedItem{Row: r.Position + 1, Values: map[string]any{}}
		for i, c := range t.Kind.Columns {
			if r.Values[i] != nil {
				item.Values[c.Name] = r.Values[i]
			}
		}
		if len(r.Tags) > 0 {
			item.Tags = r.Tags
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// WriteExport writes the visible rows of t as JSON or YAML. indent applies to JSON.
func WriteExport(w io.Writer, t *Table, format string, indent int) error {
	doc := exportRows(t, t.Visible())
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		if indent > 0 {
			enc.SetIndent("", strings.Repeat(" ", indent))
		}
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(doc)
	}
	return fmt.Errorf("unsupported format: %s (choose json or yaml)", format)
}
