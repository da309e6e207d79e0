package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// a1Range is a parsed A1 reference such as "'Exames'!A2:F9" or "A:A".
// Rows and columns are 1-based; a zero row bound means unbounded.
type a1Range struct {
	title    string
	startCol int
	startRow int
	endCol   int
	endRow   int
}

func parseA1(ref string) (a1Range, error) {
	var r a1Range

	if i := strings.LastIndex(ref, "!"); i >= 0 {
		r.title = unquoteTitle(ref[:i])
		ref = ref[i+1:]
	}

	start, end, hasEnd := strings.Cut(ref, ":")
	var err error
	if r.startCol, r.startRow, err = parseCell(start); err != nil {
		return a1Range{}, err
	}
	if !hasEnd {
		r.endCol, r.endRow = r.startCol, r.startRow
		return r, nil
	}
	if r.endCol, r.endRow, err = parseCell(end); err != nil {
		return a1Range{}, err
	}
	if r.endCol < r.startCol {
		return a1Range{}, fmt.Errorf("range %q: end column before start", ref)
	}
	return r, nil
}

func unquoteTitle(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = s[1 : len(s)-1]
		s = strings.ReplaceAll(s, "''", "'")
	}
	return s
}

// parseCell reads "F", "F9" or "AA10" into a column and optional row.
func parseCell(s string) (col, row int, err error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		col = col*26 + int(s[i]-'A'+1)
		i++
	}
	if col == 0 {
		return 0, 0, fmt.Errorf("cell %q: missing column", s)
	}
	if i == len(s) {
		return col, 0, nil
	}
	row, err = strconv.Atoi(s[i:])
	if err != nil || row <= 0 {
		return 0, 0, fmt.Errorf("cell %q: bad row", s)
	}
	return col, row, nil
}
