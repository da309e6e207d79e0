package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/labtrack/internal/records"
)

// Registry is the catalog of configured spreadsheets, in configuration order.
type Registry struct {
	sheets []Sheet
	byKey  map[string]int
}

// NewRegistry validates and indexes sheets. Keys must be unique and every
// sheet needs a spreadsheet id and a known kind. Two sheets of different
// kinds may not share a spreadsheet.
func NewRegistry(sheets ...Sheet) (*Registry, error) {
	r := &Registry{byKey: make(map[string]int, len(sheets))}
	kinds := make(map[string]records.Kind)

	var errs []string
	for _, s := range sheets {
		s.Key = strings.TrimSpace(s.Key)
		switch {
		case s.Key == "":
			errs = append(errs, "sheet with empty key")
			continue
		case !s.Kind.Valid():
			errs = append(errs, fmt.Sprintf("%s: unknown kind %q", s.Key, s.Kind))
			continue
		case strings.TrimSpace(s.SpreadsheetID) == "":
			errs = append(errs, fmt.Sprintf("%s: missing spreadsheet id", s.Key))
			continue
		}
		if _, dup := r.byKey[s.Key]; dup {
			errs = append(errs, fmt.Sprintf("%s: registered twice", s.Key))
			continue
		}
		if k, ok := kinds[s.SpreadsheetID]; ok && k != s.Kind {
			errs = append(errs, fmt.Sprintf("%s: spreadsheet already holds %s records", s.Key, k))
			continue
		}
		if s.Label == "" {
			s.Label = s.Key
		}
		kinds[s.SpreadsheetID] = s.Kind
		r.byKey[s.Key] = len(r.sheets)
		r.sheets = append(r.sheets, s)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("sheet registry: %s", strings.Join(errs, "; "))
	}
	return r, nil
}

// Get returns a sheet by key.
func (r *Registry) Get(key string) (Sheet, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Sheet{}, false
	}
	return r.sheets[i], true
}

// All returns every sheet in configuration order.
func (r *Registry) All() []Sheet {
	return append([]Sheet(nil), r.sheets...)
}

// ByKind returns the sheets holding kind.
func (r *Registry) ByKind(kind records.Kind) []Sheet {
	var out []Sheet
	for _, s := range r.sheets {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Public returns the exam sheets exposed in the read-only view.
func (r *Registry) Public() []Sheet {
	var out []Sheet
	for _, s := range r.sheets {
		if s.Public && s.Kind == records.KindExam {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of sheets.
func (r *Registry) Len() int {
	return len(r.sheets)
}
