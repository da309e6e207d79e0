package sheetstore

import (
	"fmt"
	"strings"
)

// headerRows is the number of rows above the first data row.
const headerRows = 1

// Layout describes where a record kind lives inside a spreadsheet.
type Layout struct {
	// Title is the sheet tab name. Empty means the first tab. Ranges and the
	// numeric sheet id used for row deletes both resolve through it.
	Title string
	// Columns are the header labels, in storage order. Column A is identity.
	Columns []string
}

// Width returns the number of columns in the layout.
func (l Layout) Width() int {
	return len(l.Columns)
}

// DataRange is the full occupied range, for example "A:F".
func (l Layout) DataRange() string {
	return l.prefix() + "A:" + columnLetter(l.Width())
}

// IdentityRange is the identity column, "A:A".
func (l Layout) IdentityRange() string {
	return l.prefix() + "A:A"
}

// RowRange addresses exactly one full row, for example "A7:F7".
func (l Layout) RowRange(row int) string {
	return fmt.Sprintf("%sA%d:%s%d", l.prefix(), row, columnLetter(l.Width()), row)
}

// HeaderRange addresses the header row.
func (l Layout) HeaderRange() string {
	return l.RowRange(1)
}

func (l Layout) prefix() string {
	if l.Title == "" {
		return ""
	}
	return "'" + strings.ReplaceAll(l.Title, "'", "''") + "'!"
}

// rowForOffset converts a 0-based data row offset to a 1-based sheet row.
func rowForOffset(offset int) int {
	return offset + headerRows + 1
}

// columnLetter converts a 1-based column number to its A1 letters.
func columnLetter(n int) string {
	if n <= 0 {
		return "A"
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
