package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// FormatHeader returns a Markdown header.
func FormatHeader(level int, title string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + title
}

// FormatKeyValue returns a Markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

// Table renders rows under header, as a box table in text mode and as a
// Markdown table otherwise.
func (r *Renderer) Table(header []string, rows [][]string) {
	if len(rows) == 0 {
		r.Println("(0 rows)")
		return
	}
	if r.EffectiveMode() == ModeText {
		renderBoxTable(r.out, header, rows)
		return
	}
	renderMarkdownTable(r.out, header, rows)
}

func renderBoxTable(w io.Writer, header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(toRow(header))
	for _, row := range rows {
		t.AppendRow(toRow(row))
	}
	t.Render()
}

func renderMarkdownTable(w io.Writer, header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(toRow(header))
	for _, row := range rows {
		t.AppendRow(toRow(row))
	}
	t.RenderMarkdown()
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
