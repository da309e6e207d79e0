package sheetstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UpdateOutcome tells the caller how Update persisted a record.
type UpdateOutcome int

const (
	// OutcomeUpdated means the row holding the identity was overwritten.
	OutcomeUpdated UpdateOutcome = iota
	// OutcomeAppended means the identity was not found and the record was
	// appended as a new row.
	OutcomeAppended
)

func (o UpdateOutcome) String() string {
	if o == OutcomeAppended {
		return "appended"
	}
	return "updated"
}

// Observer receives one call per store operation. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveStoreOp(store, op, outcome string, elapsed time.Duration)
}

// Config identifies the spreadsheet a store operates on.
type Config struct {
	// Name labels the store in logs and metrics, for example "sao-lucas".
	Name          string
	SpreadsheetID string
	Layout        Layout
}

// Option customizes a Store.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	newID    func() string
	strict   bool
	observer Observer
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIDGenerator replaces the UUID generator used by Append.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithStrictUpdate makes Update return ErrNotFound when the identity does not
// resolve, instead of appending the record.
func WithStrictUpdate() Option {
	return func(o *options) { o.strict = true }
}

// WithObserver reports operation outcomes and latency.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Store persists one record kind in one spreadsheet.
type Store[R any] struct {
	name          string
	backend       Backend
	spreadsheetID string
	layout        Layout
	codec         Codec[R]
	index         Index
	newID         func() string
	strict        bool
	log           *slog.Logger
	observer      Observer

	// sheetID is resolved on first delete and kept; it is tab metadata and
	// does not move when rows do. mu guards the cached value only.
	mu      sync.Mutex
	sheetID *int64
}

// New builds a store. It fails with ErrConfiguration when the backend or
// spreadsheet id is missing.
func New[R any](backend Backend, cfg Config, codec Codec[R], opts ...Option) (*Store[R], error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: store %q has no backend", ErrConfiguration, cfg.Name)
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("%w: store %q has no spreadsheet id", ErrConfiguration, cfg.Name)
	}
	if codec == nil {
		return nil, fmt.Errorf("%w: store %q has no codec", ErrConfiguration, cfg.Name)
	}

	o := options{
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}

	layout := cfg.Layout
	if len(layout.Columns) == 0 {
		layout.Columns = codec.Columns()
	}

	return &Store[R]{
		name:          cfg.Name,
		backend:       backend,
		spreadsheetID: cfg.SpreadsheetID,
		layout:        layout,
		codec:         codec,
		index:         NewIndex(backend, cfg.SpreadsheetID, layout),
		newID:         o.newID,
		strict:        o.strict,
		log:           o.logger.With("component", "sheetstore", "store", cfg.Name),
		observer:      o.observer,
	}, nil
}

// Name returns the store label.
func (s *Store[R]) Name() string { return s.name }

// Layout returns the column layout in use.
func (s *Store[R]) Layout() Layout { return s.layout }

// List returns every record in sheet order. Rows that do not decode are
// skipped.
func (s *Store[R]) List(ctx context.Context) (out []R, err error) {
	defer s.observe("list", time.Now(), &err, nil)

	rng := s.layout.DataRange()
	rows, err := s.backend.ReadRange(ctx, s.spreadsheetID, rng)
	if err != nil {
		s.log.Error("read failed", "range", rng, "error", err)
		return nil, fmt.Errorf("%w: read %s: %w", ErrBackendUnavailable, rng, err)
	}

	out = make([]R, 0, max(len(rows)-headerRows, 0))
	if len(rows) <= headerRows {
		return out, nil
	}

	skipped := 0
	for i, row := range rows[headerRows:] {
		rec, ok := s.codec.Decode(row, i)
		if !ok {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	if skipped > 0 {
		s.log.Debug("skipped blank rows", "count", skipped)
	}
	return out, nil
}

// Append mints a new identity for rec and adds it as a new row. Any identity
// already set on rec is replaced.
func (s *Store[R]) Append(ctx context.Context, rec R) (out R, err error) {
	defer s.observe("append", time.Now(), &err, nil)

	rec = s.codec.WithRow(s.codec.WithIdentity(rec, s.newID()), 0)
	if err := s.appendRecord(ctx, rec); err != nil {
		return out, err
	}
	return rec, nil
}

// Update overwrites the row holding rec's identity.
//
// The row is resolved right before the write. If no row holds the identity
// (deleted concurrently, or never persisted) the record is appended with the
// same identity and the outcome is OutcomeAppended. Records read from rows
// without an identity carry a placeholder id; those are appended under a
// freshly minted identity because placeholders are never written.
//
// Two concurrent updates of the same record are last-write-wins.
func (s *Store[R]) Update(ctx context.Context, rec R) (out R, outcome UpdateOutcome, err error) {
	defer s.observe("update", time.Now(), &err, &outcome)

	id := strings.TrimSpace(s.codec.Identity(rec))
	if id == "" {
		return out, outcome, fmt.Errorf("%w: update without identity", ErrInvalidRecord)
	}
	row, err := s.codec.Encode(rec)
	if err != nil {
		return out, outcome, err
	}

	n, found, err := s.index.Resolve(ctx, id)
	if err != nil {
		s.log.Error("resolve failed", "id", id, "error", err)
		return out, outcome, err
	}

	if !found {
		if s.strict {
			return out, outcome, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if IsPlaceholderID(id) {
			rec = s.codec.WithIdentity(rec, s.newID())
		}
		s.log.Warn("identity not found on update, appending",
			"id", id,
			"appended_id", s.codec.Identity(rec),
		)
		rec = s.codec.WithRow(rec, 0)
		if err := s.appendRecord(ctx, rec); err != nil {
			return out, outcome, err
		}
		return rec, OutcomeAppended, nil
	}

	rng := s.layout.RowRange(n)
	if err := s.backend.UpdateRow(ctx, s.spreadsheetID, rng, row); err != nil {
		s.log.Error("update failed", "id", id, "range", rng, "error", err)
		return out, outcome, fmt.Errorf("%w: update %s: %w", ErrBackendUnavailable, rng, err)
	}
	return s.codec.WithRow(rec, n), OutcomeUpdated, nil
}

// Delete physically removes the row holding id. It reports false, without
// error, when no row holds id.
func (s *Store[R]) Delete(ctx context.Context, id string) (removed bool, err error) {
	defer s.observe("delete", time.Now(), &err, nil)

	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("%w: delete without identity", ErrInvalidRecord)
	}

	n, found, err := s.index.Resolve(ctx, id)
	if err != nil {
		s.log.Error("resolve failed", "id", id, "error", err)
		return false, err
	}
	if !found {
		s.log.Warn("identity not found on delete", "id", id)
		return false, nil
	}

	sheetID, err := s.numericSheetID(ctx)
	if err != nil {
		return false, err
	}

	start := int64(n - 1)
	if err := s.backend.DeleteRows(ctx, s.spreadsheetID, sheetID, start, start+1); err != nil {
		s.log.Error("delete failed", "id", id, "row", n, "error", err)
		return false, fmt.Errorf("%w: delete row %d: %w", ErrBackendUnavailable, n, err)
	}
	return true, nil
}

// EnsureHeader writes the header row when row 1 is empty. It reports whether
// it wrote anything.
func (s *Store[R]) EnsureHeader(ctx context.Context) (bool, error) {
	rng := s.layout.HeaderRange()
	rows, err := s.backend.ReadRange(ctx, s.spreadsheetID, rng)
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %w", ErrBackendUnavailable, rng, err)
	}
	for _, row := range rows {
		for _, c := range row {
			if !blank(c) {
				return false, nil
			}
		}
	}
	if err := s.backend.UpdateRow(ctx, s.spreadsheetID, rng, s.layout.Columns); err != nil {
		return false, fmt.Errorf("%w: write header: %w", ErrBackendUnavailable, err)
	}
	return true, nil
}

func (s *Store[R]) appendRecord(ctx context.Context, rec R) error {
	row, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}
	rng := s.layout.DataRange()
	if err := s.backend.AppendRow(ctx, s.spreadsheetID, rng, pad(row, s.layout.Width())); err != nil {
		s.log.Error("append failed", "range", rng, "error", err)
		return fmt.Errorf("%w: append %s: %w", ErrBackendUnavailable, rng, err)
	}
	return nil
}

// numericSheetID resolves the tab by title and caches it. The lookup runs
// outside the lock; concurrent first callers may both fetch, and they get
// the same id.
func (s *Store[R]) numericSheetID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	cached := s.sheetID
	s.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	id, err := s.backend.SheetID(ctx, s.spreadsheetID, s.layout.Title)
	if err != nil {
		return 0, fmt.Errorf("%w: resolve sheet id of tab %q: %w", ErrBackendUnavailable, s.layout.Title, err)
	}

	s.mu.Lock()
	if s.sheetID == nil {
		s.sheetID = &id
	}
	s.mu.Unlock()
	return id, nil
}

func (s *Store[R]) observe(op string, start time.Time, errp *error, outcome *UpdateOutcome) {
	if s.observer == nil {
		return
	}
	result := "ok"
	switch {
	case errp != nil && *errp != nil && errors.Is(*errp, ErrInvalidRecord):
		result = "invalid"
	case errp != nil && *errp != nil:
		result = "error"
	case outcome != nil && *outcome == OutcomeAppended:
		result = "appended"
	}
	s.observer.ObserveStoreOp(s.name, op, result, time.Since(start))
}
