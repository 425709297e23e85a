package resultset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// Format selects how a Table is printed
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
)

// Write prints t to w in the given format
func Write(w io.Writer, t *Table, f Format) error {
	switch f {
	case FormatTable, "":
		return Render(w, t)
	case FormatCSV:
		return WriteCSV(w, t)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// Render prints t as a box table with a name row and a type row, the way the
// engine's own shell prints results. Tables without columns print nothing.
func Render(w io.Writer, t *Table) error {
	if len(t.Columns) == 0 {
		return nil
	}

	cells := make([][]string, len(t.Rows))
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = max(runewidth.StringWidth(c.Name), runewidth.StringWidth(c.Type))
	}
	for r, row := range t.Rows {
		cells[r] = make([]string, len(t.Columns))
		for i, v := range row {
			s := FormatValue(v, t.Columns[i].Type)
			cells[r][i] = s
			widths[i] = max(widths[i], runewidth.StringWidth(s))
		}
	}

	var b strings.Builder
	border(&b, widths, "┌", "┬", "┐")
	line(&b, widths, func(i int) string { return center(t.Columns[i].Name, widths[i]) })
	line(&b, widths, func(i int) string { return center(t.Columns[i].Type, widths[i]) })
	border(&b, widths, "├", "┼", "┤")
	for _, row := range cells {
		line(&b, widths, func(i int) string {
			if numeric(t.Columns[i].Type) || row[i] == "NULL" {
				return runewidth.FillLeft(row[i], widths[i])
			}
			return runewidth.FillRight(row[i], widths[i])
		})
	}
	border(&b, widths, "└", "┴", "┘")

	_, err := io.WriteString(w, b.String())
	return err
}

func border(b *strings.Builder, widths []int, left, mid, right string) {
	b.WriteString(left)
	for i, w := range widths {
		if i > 0 {
			b.WriteString(mid)
		}
		b.WriteString(strings.Repeat("─", w+2))
	}
	b.WriteString(right)
	b.WriteByte('\n')
}

func line(b *strings.Builder, widths []int, cell func(i int) string) {
	b.WriteString("│")
	for i := range widths {
		if i > 0 {
			b.WriteString("│")
		}
		b.WriteByte(' ')
		b.WriteString(cell(i))
		b.WriteByte(' ')
	}
	b.WriteString("│\n")
}

func center(s string, width int) string {
	pad := width - runewidth.StringWidth(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func numeric(typ string) bool {
	switch typ {
	case "int8", "int16", "int32", "int64", "int128",
		"uint8", "uint16", "uint32", "uint64", "uint128",
		"float", "double", "decimal":
		return true
	}
	return false
}

// WriteCSV prints t as CSV with a header row
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			if v == nil {
				record[i] = ""
				continue
			}
			record[i] = FormatValue(v, t.Columns[i].Type)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders a single value of the given column type as text
func FormatValue(v any, typ string) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case time.Time:
		switch typ {
		case "date":
			return x.Format("2006-01-02")
		case "time":
			return x.Format("15:04:05.999999")
		default:
			return x.Format("2006-01-02 15:04:05.999999")
		}
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e15 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, bits)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
