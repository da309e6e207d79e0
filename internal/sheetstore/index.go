package sheetstore

import (
	"context"
	"fmt"
	"strings"
)

// Index resolves identities to sheet rows.
//
// Every call reads the identity column afresh. Results must be used for the
// immediately following write only.
type Index struct {
	backend       Backend
	spreadsheetID string
	layout        Layout
}

// NewIndex returns an index over the identity column of layout.
func NewIndex(backend Backend, spreadsheetID string, layout Layout) Index {
	return Index{backend: backend, spreadsheetID: spreadsheetID, layout: layout}
}

// Resolve returns the 1-based row holding id. found is false when no data
// row carries it.
func (ix Index) Resolve(ctx context.Context, id string) (row int, found bool, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, false, nil
	}

	rng := ix.layout.IdentityRange()
	ids, err := ix.backend.ReadRange(ctx, ix.spreadsheetID, rng)
	if err != nil {
		return 0, false, fmt.Errorf("%w: resolve %s: %w", ErrBackendUnavailable, rng, err)
	}

	for i := headerRows; i < len(ids); i++ {
		if strings.TrimSpace(cell(ids[i], 0)) == id {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}
