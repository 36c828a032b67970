package ui

import (
	"regexp"
	"strings"
)

// Align controls how a cell is padded within its column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

// Column describes one table column.
type Column struct {
	Name  string
	Width int
	Align Align
}

// Table renders fixed-width text tables for CLI output. Cell values may
// carry ANSI styling; layout is computed on the plain text so styled
// cells line up.
type Table struct {
	columns   []Column
	rows      [][]string
	headerSep bool
	indent    string
}

// NewTable creates a table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:   columns,
		headerSep: true,
		indent:    "  ",
	}
}

// SetIndent sets the prefix for every rendered line.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator toggles the rule under the header row.
func (t *Table) SetHeaderSeparator(on bool) *Table {
	t.headerSep = on
	return t
}

// AddRow appends a row. Missing cells are padded with empty strings and
// extra cells are dropped.
func (t *Table) AddRow(values ...string) *Table {
	row := make([]string, len(t.columns))
	for i := range t.columns {
		if i < len(values) {
			row[i] = values[i]
		}
	}
	t.rows = append(t.rows, row)
	return t
}

const columnGap = "  "

// Render returns the table as text, one line per row, each ending in a
// newline.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var b strings.Builder

	header := make([]string, len(t.columns))
	for i, col := range t.columns {
		header[i] = t.pad(Bold.Render(col.Name), col.Name, col.Width, col.Align)
	}
	b.WriteString(t.indent + strings.Join(header, columnGap) + "\n")

	if t.headerSep {
		sep := make([]string, len(t.columns))
		for i, col := range t.columns {
			sep[i] = strings.Repeat("─", col.Width)
		}
		b.WriteString(t.indent + Dim.Render(strings.Join(sep, columnGap)) + "\n")
	}

	for _, row := range t.rows {
		cells := make([]string, len(t.columns))
		for i, col := range t.columns {
			cell := row[i]
			plain := stripAnsi(cell)
			if len(plain) > col.Width {
				cell = truncate(plain, col.Width)
				plain = cell
			}
			cells[i] = t.pad(cell, plain, col.Width, col.Align)
		}
		b.WriteString(t.indent + strings.Join(cells, columnGap) + "\n")
	}

	return b.String()
}

// pad aligns styled text within width using the plain text's length.
// Text at or over width is returned untouched.
func (t *Table) pad(styled, plain string, width int, align Align) string {
	gap := width - len(plain)
	if gap <= 0 {
		return styled
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + styled
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + styled + strings.Repeat(" ", gap-left)
	default:
		return styled + strings.Repeat(" ", gap)
	}
}

func truncate(s string, width int) string {
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripAnsi removes ANSI escape sequences for width math.
func stripAnsi(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
