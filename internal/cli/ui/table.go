// Package ui renders class metadata for terminal output.
package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/keystone-orm/keystone/internal/meta"
)

// Table renders aligned tabular output with an optional colored header
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, headers []string, noColor bool) *Table {
	return &Table{
		writer:  w,
		headers: headers,
		noColor: noColor,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the table to the writer
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	header := color.New(color.Bold, color.FgCyan)
	rule := color.New(color.FgHiBlack)
	if t.noColor {
		header.DisableColor()
		rule.DisableColor()
	}

	for i, h := range t.headers {
		header.Fprint(t.writer, padRight(h, widths[i]))
		if i < len(t.headers)-1 {
			fmt.Fprint(t.writer, "  ")
		}
	}
	fmt.Fprintln(t.writer)

	for i, width := range widths {
		rule.Fprint(t.writer, strings.Repeat("─", width))
		if i < len(widths)-1 {
			rule.Fprint(t.writer, "  ")
		}
	}
	fmt.Fprintln(t.writer)

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprint(t.writer, padRight(cell, widths[i]))
				if i < len(row)-1 {
					fmt.Fprint(t.writer, "  ")
				}
			}
		}
		fmt.Fprintln(t.writer)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// RenderClassList writes a summary table of registered classes
func RenderClassList(w io.Writer, classes []*meta.ClassMetaData, noColor bool) {
	table := NewTable(w, []string{"CLASS", "IDENTITY", "INHERITANCE", "TABLE", "STATE"}, noColor)
	for _, cmd := range classes {
		table.AddRow(
			cmd.FullName,
			cmd.IdentityType.String(),
			cmd.Inheritance.String(),
			tableCell(cmd),
			cmd.State().String(),
		)
	}
	table.Render()
}

func tableCell(cmd *meta.ClassMetaData) string {
	if cmd.ViewDefinition != "" {
		return cmd.Table + " (view)"
	}
	if owner := cmd.TableOwner(); owner != nil && owner != cmd {
		return owner.Table + " (inherited)"
	}
	if cmd.Table == "" {
		return "-"
	}
	return cmd.Table
}

// RenderClassDetail writes the full member layout of a resolved class
func RenderClassDetail(w io.Writer, cmd *meta.ClassMetaData, noColor bool) error {
	title := color.New(color.Bold)
	if noColor {
		title.DisableColor()
	}

	title.Fprintln(w, cmd.FullName)
	fmt.Fprintf(w, "  identity:    %s", cmd.IdentityType)
	if cmd.ObjectIDClass != "" {
		fmt.Fprintf(w, " (%s)", cmd.ObjectIDClass)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  inheritance: %s\n", cmd.Inheritance)
	if cmd.SuperclassName != "" {
		fmt.Fprintf(w, "  extends:     %s\n", cmd.SuperclassName)
	}
	if d := cmd.Discriminator; d != nil && d.Strategy != meta.DiscriminatorNone {
		fmt.Fprintf(w, "  discriminator: %s = %q in %q\n",
			d.Strategy, cmd.DiscriminatorValue(), d.Column)
	}
	if v := cmd.Version; v != nil && v.Strategy != meta.VersionNone {
		fmt.Fprintf(w, "  version:     %s in %q\n", v.Strategy, v.Column)
	}
	fmt.Fprintln(w)

	count, err := cmd.MemberCount()
	if err != nil {
		return err
	}

	table := NewTable(w, []string{"POS", "MEMBER", "TYPE", "COLUMN", "FLAGS"}, noColor)
	for pos := 0; pos < count; pos++ {
		m, err := cmd.MemberAtPosition(pos)
		if err != nil {
			return err
		}
		table.AddRow(
			strconv.Itoa(pos),
			m.Name,
			m.Type.String(),
			m.Column,
			memberFlags(m),
		)
	}
	table.Render()
	return nil
}

func memberFlags(m *meta.MemberMetaData) string {
	var flags []string
	if m.PrimaryKey {
		flags = append(flags, "pk")
	}
	if m.InDefaultFetchGroup() {
		flags = append(flags, "dfg")
	}
	if m.IsSCOMutable() {
		flags = append(flags, "sco")
	}
	if m.IsRelation() {
		flags = append(flags, m.RelationType().String())
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}
