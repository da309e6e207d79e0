package sheetstore

import "context"

// Backend is the tabular service the store persists to.
//
// Cell values cross this boundary as strings; the backend renders whatever
// the sheet holds as display text. Each call is expected to be atomic at the
// backend for the single range it addresses.
type Backend interface {
	// ReadRange returns the occupied cells of rng. Trailing empty cells and
	// rows may be omitted.
	ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]string, error)

	// AppendRow adds one row after the last occupied row of rng.
	AppendRow(ctx context.Context, spreadsheetID, rng string, row []string) error

	// UpdateRow overwrites exactly the cells addressed by rng.
	UpdateRow(ctx context.Context, spreadsheetID, rng string, row []string) error

	// DeleteRows removes rows [start, end) (0-based) and shifts later rows up.
	DeleteRows(ctx context.Context, spreadsheetID string, sheetID, start, end int64) error

	// SheetID returns the numeric id of the tab named title. An empty title
	// selects the first tab, the same tab an unprefixed A1 range addresses.
	SheetID(ctx context.Context, spreadsheetID, title string) (int64, error)
}
