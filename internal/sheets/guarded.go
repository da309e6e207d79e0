package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/JonMunkholm/labtrack/internal/sheetstore"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("sheets circuit open")

// Observer receives backend call metrics. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveBackendCall(call, outcome string, elapsed time.Duration)
	SetBreakerState(name string, state int)
}

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of trial calls allowed while half-open.
	HalfOpenRequests uint32
}

// Guarded wraps a backend with a circuit breaker and call metrics. A quota
// outage at the sheets API fails fast instead of piling up timeouts.
type Guarded struct {
	next     sheetstore.Backend
	cb       *gobreaker.CircuitBreaker[any]
	observer Observer
	log      *slog.Logger
}

var _ sheetstore.Backend = (*Guarded)(nil)

// NewGuarded wraps next. observer may be nil.
func NewGuarded(next sheetstore.Backend, cfg BreakerConfig, observer Observer, log *slog.Logger) *Guarded {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "sheets"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	g := &Guarded{
		next:     next,
		observer: observer,
		log:      log.With("component", "sheets_breaker"),
	}
	g.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// Callers giving up is not a backend fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			if g.observer != nil {
				g.observer.SetBreakerState(name, int(to))
			}
		},
	})
	if observer != nil {
		observer.SetBreakerState(cfg.Name, int(gobreaker.StateClosed))
	}
	return g
}

// State reports the breaker state as "closed", "half-open" or "open".
func (g *Guarded) State() string {
	return g.cb.State().String()
}

func (g *Guarded) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	var rows [][]string
	err := g.call("read", func() error {
		var err error
		rows, err = g.next.ReadRange(ctx, spreadsheetID, rng)
		return err
	})
	return rows, err
}

func (g *Guarded) AppendRow(ctx context.Context, spreadsheetID, rng string, row []string) error {
	return g.call("append", func() error {
		return g.next.AppendRow(ctx, spreadsheetID, rng, row)
	})
}

func (g *Guarded) UpdateRow(ctx context.Context, spreadsheetID, rng string, row []string) error {
	return g.call("update", func() error {
		return g.next.UpdateRow(ctx, spreadsheetID, rng, row)
	})
}

func (g *Guarded) DeleteRows(ctx context.Context, spreadsheetID string, sheetID, start, end int64) error {
	return g.call("delete", func() error {
		return g.next.DeleteRows(ctx, spreadsheetID, sheetID, start, end)
	})
}

func (g *Guarded) SheetID(ctx context.Context, spreadsheetID, title string) (int64, error) {
	var id int64
	err := g.call("sheet_id", func() error {
		var err error
		id, err = g.next.SheetID(ctx, spreadsheetID, title)
		return err
	})
	return id, err
}

func (g *Guarded) call(name string, fn func() error) error {
	start := time.Now()
	_, err := g.cb.Execute(func() (any, error) {
		return nil, fn()
	})

	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
		err = fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	case err != nil:
		outcome = "error"
	}
	if g.observer != nil {
		g.observer.ObserveBackendCall(name, outcome, time.Since(start))
	}
	return err
}
