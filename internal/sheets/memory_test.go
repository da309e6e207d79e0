package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseA1(t *testing.T) {
	tests := []struct {
		in   string
		want a1Range
	}{
		{"A:F", a1Range{startCol: 1, endCol: 6}},
		{"A:A", a1Range{startCol: 1, endCol: 1}},
		{"A7:F7", a1Range{startCol: 1, startRow: 7, endCol: 6, endRow: 7}},
		{"'Exames'!A1:E1", a1Range{title: "Exames", startCol: 1, startRow: 1, endCol: 5, endRow: 1}},
		{"'O''Brien'!A:A", a1Range{title: "O'Brien", startCol: 1, endCol: 1}},
		{"AA10", a1Range{startCol: 27, startRow: 10, endCol: 27, endRow: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseA1(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "7", "A0", "F:A"} {
		_, err := parseA1(bad)
		assert.Error(t, err, bad)
	}
}

func TestMemory_ReadTrimsLikeSheets(t *testing.T) {
	m := NewMemory()
	m.AddSheet("book", "", [][]string{
		{"ID", "Paciente"},
		{"1", "Ana", "", ""},
		{},
		{"", "Bruno"},
		{"", "", ""},
	})

	rows, err := m.ReadRange(context.Background(), "book", "A:F")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ID", "Paciente"},
		{"1", "Ana"},
		{},
		{"", "Bruno"},
	}, rows)

	ids, err := m.ReadRange(context.Background(), "book", "A:A")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID"}, {"1"}}, ids)
}

func TestMemory_AppendAfterLastOccupiedRow(t *testing.T) {
	m := NewMemory()
	m.AddSheet("book", "", [][]string{{"ID"}, {"1"}, {}, {"3"}})

	require.NoError(t, m.AppendRow(context.Background(), "book", "A:B", []string{"4", "x"}))

	rows := m.Rows("book", "")
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"4", "x"}, rows[4])
}

func TestMemory_UpdateWritesExactRange(t *testing.T) {
	m := NewMemory()
	m.AddSheet("book", "", [][]string{{"ID", "P"}, {"1", "a"}, {"2", "b"}})

	require.NoError(t, m.UpdateRow(context.Background(), "book", "A2:B2", []string{"1", "z"}))
	assert.Equal(t, [][]string{{"ID", "P"}, {"1", "z"}, {"2", "b"}}, m.Rows("book", ""))

	err := m.UpdateRow(context.Background(), "book", "A2:B2", []string{"1", "z", "extra"})
	assert.Error(t, err)
}

func TestMemory_DeleteShiftsRowsUp(t *testing.T) {
	m := NewMemory()
	id := m.AddSheet("book", "", [][]string{{"ID"}, {"1"}, {"2"}, {"3"}})

	got, err := m.SheetID(context.Background(), "book", "")
	require.NoError(t, err)
	require.Equal(t, id, got)

	require.NoError(t, m.DeleteRows(context.Background(), "book", id, 2, 3))
	assert.Equal(t, [][]string{{"ID"}, {"1"}, {"3"}}, m.Rows("book", ""))

	assert.Error(t, m.DeleteRows(context.Background(), "book", id+1, 1, 2))
}

func TestMemory_SheetIDByTitle(t *testing.T) {
	m := NewMemory()
	first := m.AddSheet("book", "Outra", nil)
	second := m.AddSheet("book", "Exames", nil)
	ctx := context.Background()

	got, err := m.SheetID(ctx, "book", "Exames")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	got, err = m.SheetID(ctx, "book", "")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	_, err = m.SheetID(ctx, "book", "Recoletas")
	assert.Error(t, err)
}

func TestMemory_UnknownSpreadsheet(t *testing.T) {
	m := NewMemory()
	_, err := m.ReadRange(context.Background(), "missing", "A:A")
	assert.Error(t, err)
	_, err = m.SheetID(context.Background(), "missing", "")
	assert.Error(t, err)
}

func TestMemory_HonorsCancelledContext(t *testing.T) {
	m := NewMemory()
	m.AddSheet("book", "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ReadRange(ctx, "book", "A:A")
	assert.ErrorIs(t, err, context.Canceled)
}

// failingBackend fails every call until healed.
type failingBackend struct {
	*Memory
	fail  bool
	calls int
}

func (f *failingBackend) ReadRange(ctx context.Context, id, rng string) ([][]string, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("quota exceeded")
	}
	return f.Memory.ReadRange(ctx, id, rng)
}

type recordingObserver struct {
	calls  map[string]int
	states []int
}

func (r *recordingObserver) ObserveBackendCall(call, outcome string, _ time.Duration) {
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[call+":"+outcome]++
}

func (r *recordingObserver) SetBreakerState(_ string, state int) {
	r.states = append(r.states, state)
}

func TestGuarded_TripsAndRejects(t *testing.T) {
	mem := NewMemory()
	mem.AddSheet("book", "", [][]string{{"ID"}})
	inner := &failingBackend{Memory: mem, fail: true}
	obs := &recordingObserver{}

	g := NewGuarded(inner, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour}, obs, nil)
	ctx := context.Background()

	for range 2 {
		_, err := g.ReadRange(ctx, "book", "A:A")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, "open", g.State())

	_, err := g.ReadRange(ctx, "book", "A:A")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the backend")

	assert.Equal(t, 2, obs.calls["read:error"])
	assert.Equal(t, 1, obs.calls["read:rejected"])
	assert.NotEmpty(t, obs.states)
}

func TestGuarded_CancelDoesNotTrip(t *testing.T) {
	mem := NewMemory()
	mem.AddSheet("book", "", [][]string{{"ID"}})
	g := NewGuarded(mem, BreakerConfig{ConsecutiveFailures: 1, OpenTimeout: time.Hour}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.ReadRange(ctx, "book", "A:A")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", g.State())

	rows, err := g.ReadRange(context.Background(), "book", "A:A")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID"}}, rows)
}
