package sheetstore

import (
	"fmt"
	"strings"
	"time"
)

// Codec converts between a record and a row of cells in a fixed column order.
//
// Decode must never fail on bad data: unusable cells become absent fields and
// rows that are not records (blank patient name) report ok == false. Encode
// returns ErrInvalidRecord for records that cannot be persisted.
type Codec[R any] interface {
	Columns() []string
	Decode(row []string, offset int) (rec R, ok bool)
	Encode(rec R) ([]string, error)
	Identity(rec R) string
	WithIdentity(rec R, id string) R
	WithRow(rec R, row int) R
}

const (
	// DateLayout is how received dates are written to the sheet (dd/MM/yyyy).
	DateLayout = "02/01/2006"

	// dateParseLayout accepts one- or two-digit day and month, four-digit year.
	dateParseLayout = "2/1/2006"

	placeholderPrefix = "MISSING_ID_ROW_"
)

// cell returns row[i], or "" when the backend trimmed trailing cells.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// placeholderID stands in for rows that were typed into the sheet by hand and
// never received an identity. It never matches a real identity cell.
func placeholderID(row int) string {
	return fmt.Sprintf("%s%d", placeholderPrefix, row)
}

// IsPlaceholderID reports whether id was synthesized for a row with a blank
// identity cell.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}

func decodeIdentity(s string, row int) string {
	if id := strings.TrimSpace(s); id != "" {
		return id
	}
	return placeholderID(row)
}

// parseDate parses dd/MM/yyyy text. Anything else yields nil.
func parseDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(dateParseLayout, s, loc)
	if err != nil {
		return nil
	}
	return &t
}

func formatDate(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format(DateLayout)
}

// pad returns row padded with empty cells up to width.
func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
