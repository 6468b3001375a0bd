package ui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// Table represents a formatted table
type Table struct {
	Headers []string
	Rows    [][]string
	Colors  [][]*color.Color // Optional colors for cells
	Align   []Alignment      // Column alignment
}

// Alignment defines text alignment in table cells
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// NewTable creates a new table
func NewTable(headers []string) *Table {
	return &Table{
		Headers: headers,
		Rows:    make([][]string, 0),
		Colors:  make([][]*color.Color, 0),
		Align:   make([]Alignment, len(headers)),
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
	t.Colors = append(t.Colors, nil)
}

// AddColoredRow adds a row with one color per cell; nil cells print plain
func (t *Table) AddColoredRow(cells []string, colors []*color.Color) {
	t.Rows = append(t.Rows, cells)
	t.Colors = append(t.Colors, colors)
}

// SetColumnAlignment sets alignment for a specific column
func (t *Table) SetColumnAlignment(col int, align Alignment) {
	if col >= 0 && col < len(t.Align) {
		t.Align[col] = align
	}
}

// Print prints the table to stdout
func (t *Table) Print() {
	if len(t.Headers) == 0 {
		return
	}

	widths := t.calculateColumnWidths()

	t.printBorder(widths, "┌", "┬", "┐")
	t.printRow(t.Headers, widths, true, nil)
	t.printBorder(widths, "├", "┼", "┤")
	for i, row := range t.Rows {
		t.printRow(row, widths, false, t.Colors[i])
	}
	t.printBorder(widths, "└", "┴", "┘")
}

// PrintSimple prints a simple table without borders
func (t *Table) PrintSimple() {
	if len(t.Headers) == 0 {
		return
	}

	widths := t.calculateColumnWidths()

	for i, header := range t.Headers {
		BoldCyan.Print(t.padCell(header, widths[i], t.Align[i]))
		if i < len(t.Headers)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()

	for i, width := range widths {
		fmt.Print(strings.Repeat("─", width))
		if i < len(widths)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()

	for i, row := range t.Rows {
		for j, cell := range row {
			if j >= len(widths) {
				break
			}
			printCell(t.padCell(cell, widths[j], t.Align[j]), colorAt(t.Colors[i], j))
			if j < len(row)-1 {
				fmt.Print("  ")
			}
		}
		fmt.Println()
	}
}

// calculateColumnWidths calculates the display width of each column
func (t *Table) calculateColumnWidths() []int {
	widths := make([]int, len(t.Headers))

	for i, header := range t.Headers {
		widths[i] = displayWidth(header)
	}

	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				if w := displayWidth(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	return widths
}

// printBorder prints a horizontal border
func (t *Table) printBorder(widths []int, left, mid, right string) {
	fmt.Print(left)
	for i, width := range widths {
		fmt.Print(strings.Repeat("─", width+2))
		if i < len(widths)-1 {
			fmt.Print(mid)
		}
	}
	fmt.Println(right)
}

// printRow prints a table row
func (t *Table) printRow(cells []string, widths []int, isHeader bool, colors []*color.Color) {
	fmt.Print("│")
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		fmt.Print(" ")
		padded := t.padCell(cell, widths[i], t.Align[i])
		if isHeader {
			BoldCyan.Print(padded)
		} else {
			printCell(padded, colorAt(colors, i))
		}
		fmt.Print(" │")
	}
	fmt.Println()
}

// padCell pads a cell to the specified width with alignment
func (t *Table) padCell(cell string, width int, align Alignment) string {
	cellLen := displayWidth(cell)
	if cellLen >= width {
		return cell
	}

	padding := width - cellLen

	switch align {
	case AlignRight:
		return strings.Repeat(" ", padding) + cell
	case AlignCenter:
		leftPad := padding / 2
		rightPad := padding - leftPad
		return strings.Repeat(" ", leftPad) + cell + strings.Repeat(" ", rightPad)
	default: // AlignLeft
		return cell + strings.Repeat(" ", padding)
	}
}

func colorAt(colors []*color.Color, i int) *color.Color {
	if i < len(colors) {
		return colors[i]
	}
	return nil
}

func printCell(s string, c *color.Color) {
	if c != nil {
		c.Print(s)
		return
	}
	fmt.Print(s)
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripAnsiCodes removes ANSI color codes for length calculation
func stripAnsiCodes(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// displayWidth is the number of terminal columns s occupies
func displayWidth(s string) int {
	return runewidth.StringWidth(stripAnsiCodes(s))
}

// PrintKeyValue prints aligned key/value pairs in the given order
func PrintKeyValue(pairs [][2]string) {
	maxKeyLen := 0
	for _, kv := range pairs {
		if w := displayWidth(kv[0]); w > maxKeyLen {
			maxKeyLen = w
		}
	}

	for _, kv := range pairs {
		BoldBlue.Print(kv[0])
		fmt.Print(strings.Repeat(" ", maxKeyLen-displayWidth(kv[0])+2))
		fmt.Println(kv[1])
	}
}

// TableBuilder is a fluent interface for building tables
type TableBuilder struct {
	table *Table
}

// NewTableBuilder creates a new table builder
func NewTableBuilder(headers ...string) *TableBuilder {
	return &TableBuilder{
		table: NewTable(headers),
	}
}

// Row adds a row
func (tb *TableBuilder) Row(cells ...string) *TableBuilder {
	tb.table.AddRow(cells...)
	return tb
}

// ColoredRow adds a colored row
func (tb *TableBuilder) ColoredRow(cells []string, colors []*color.Color) *TableBuilder {
	tb.table.AddColoredRow(cells, colors)
	return tb
}

// Align sets column alignment
func (tb *TableBuilder) Align(col int, align Alignment) *TableBuilder {
	tb.table.SetColumnAlignment(col, align)
	return tb
}

// Build returns the table
func (tb *TableBuilder) Build() *Table {
	return tb.table
}

// Print prints the table
func (tb *TableBuilder) Print() {
	tb.table.Print()
}

// PrintSimple prints simple format
func (tb *TableBuilder) PrintSimple() {
	tb.table.PrintSimple()
}
