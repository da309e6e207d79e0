package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/labtrack/internal/sheetstore"
)

// Memory is an in-process tabular backend. It mimics the parts of the Sheets
// values API the store relies on: reads drop trailing empty cells and rows,
// appends land after the last occupied row, and row deletes shift later rows
// up. It backs demo mode and tests.
type Memory struct {
	mu     sync.Mutex
	books  map[string][]*memTab
	nextID int64
}

type memTab struct {
	id    int64
	title string
	rows  [][]string
}

var _ sheetstore.Backend = (*Memory)(nil)

// NewMemory returns an empty backend.
func NewMemory() *Memory {
	return &Memory{books: make(map[string][]*memTab), nextID: 1000}
}

// AddSheet creates a tab in spreadsheetID, optionally seeded with rows, and
// returns its numeric id. Spreadsheets are created on first use.
func (m *Memory) AddSheet(spreadsheetID, title string, rows [][]string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	t := &memTab{id: m.nextID, title: title}
	for _, r := range rows {
		t.rows = append(t.rows, append([]string(nil), r...))
	}
	m.books[spreadsheetID] = append(m.books[spreadsheetID], t)
	return t.id
}

// Rows returns a copy of every row of the tab, untrimmed.
func (m *Memory) Rows(spreadsheetID, title string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tab(spreadsheetID, title)
	if err != nil {
		return nil
	}
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// SetCell overwrites one cell, growing the grid as needed. Tests use it to
// simulate hand edits made in the spreadsheet UI.
func (m *Memory) SetCell(spreadsheetID, title string, row, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tab(spreadsheetID, title)
	if err != nil {
		return err
	}
	t.set(row, col, value)
	return nil
}

func (m *Memory) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := parseA1(rng)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tab(spreadsheetID, r.title)
	if err != nil {
		return nil, err
	}

	first := max(r.startRow, 1)
	last := len(t.rows)
	if r.endRow > 0 {
		last = min(last, r.endRow)
	}

	var out [][]string
	for n := first; n <= last; n++ {
		src := t.rows[n-1]
		var row []string
		for c := r.startCol; c <= r.endCol && c <= len(src); c++ {
			row = append(row, src[c-1])
		}
		out = append(out, trimCells(row))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *Memory) AppendRow(ctx context.Context, spreadsheetID, rng string, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := parseA1(rng)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tab(spreadsheetID, r.title)
	if err != nil {
		return err
	}

	// Like the Sheets API, an append never lands above the range start.
	target := max(t.lastOccupied(r.startCol, r.endCol)+1, r.startRow)
	for i, v := range row {
		t.set(target, r.startCol+i, v)
	}
	return nil
}

func (m *Memory) UpdateRow(ctx context.Context, spreadsheetID, rng string, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := parseA1(rng)
	if err != nil {
		return err
	}
	if r.startRow == 0 {
		return fmt.Errorf("update %q: range must name a row", rng)
	}
	if width := r.endCol - r.startCol + 1; len(row) > width {
		return fmt.Errorf("update %q: %d values exceed range width %d", rng, len(row), width)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tab(spreadsheetID, r.title)
	if err != nil {
		return err
	}
	for i, v := range row {
		t.set(r.startRow, r.startCol+i, v)
	}
	return nil
}

func (m *Memory) DeleteRows(ctx context.Context, spreadsheetID string, sheetID, start, end int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if start < 0 || end <= start {
		return fmt.Errorf("delete rows [%d,%d): empty range", start, end)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.books[spreadsheetID] {
		if t.id != sheetID {
			continue
		}
		if start >= int64(len(t.rows)) {
			return nil
		}
		end = min(end, int64(len(t.rows)))
		t.rows = append(t.rows[:start], t.rows[end:]...)
		return nil
	}
	return fmt.Errorf("spreadsheet %q has no sheet %d", spreadsheetID, sheetID)
}

func (m *Memory) SheetID(ctx context.Context, spreadsheetID, title string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tab(spreadsheetID, title)
	if err != nil {
		return 0, err
	}
	return t.id, nil
}

// tab looks up a tab by title; an empty title selects the first tab.
func (m *Memory) tab(spreadsheetID, title string) (*memTab, error) {
	tabs, ok := m.books[spreadsheetID]
	if !ok || len(tabs) == 0 {
		return nil, fmt.Errorf("spreadsheet %q not found", spreadsheetID)
	}
	if title == "" {
		return tabs[0], nil
	}
	for _, t := range tabs {
		if t.title == title {
			return t, nil
		}
	}
	return nil, fmt.Errorf("spreadsheet %q has no sheet %q", spreadsheetID, title)
}

func (t *memTab) set(row, col int, v string) {
	for len(t.rows) < row {
		t.rows = append(t.rows, nil)
	}
	r := t.rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = v
	t.rows[row-1] = r
}

// lastOccupied returns the last 1-based row with a non-empty cell between
// columns from and to, or 0.
func (t *memTab) lastOccupied(from, to int) int {
	for n := len(t.rows); n > 0; n-- {
		r := t.rows[n-1]
		for c := from; c <= to && c <= len(r); c++ {
			if strings.TrimSpace(r[c-1]) != "" {
				return n
			}
		}
	}
	return 0
}

func trimCells(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	if end == 0 {
		return []string{}
	}
	return row[:end]
}
