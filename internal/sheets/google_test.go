package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

type sheetsCall struct {
	method     string
	path       string
	valueInput string
	values     [][]any
}

// fakeSheetsAPI answers the few Sheets v4 endpoints the backend uses and
// records what it was sent.
type fakeSheetsAPI struct {
	mu    sync.Mutex
	calls []sheetsCall
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := sheetsCall{
		method:     r.Method,
		path:       r.URL.Path,
		valueInput: r.URL.Query().Get("valueInputOption"),
	}
	if r.Body != nil {
		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		call.values = body.Values
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet && !strings.Contains(r.URL.Path, "/values/") {
		_, _ = w.Write([]byte(`{"sheets":[
			{"properties":{"sheetId":0,"title":"Outra"}},
			{"properties":{"sheetId":77,"title":"Exames"}}]}`))
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func newTestGoogle(t *testing.T) (*Google, *fakeSheetsAPI) {
	t.Helper()
	api := &fakeSheetsAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := gsheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return newGoogle(svc, GoogleConfig{}), api
}

func TestGoogle_WritesCellsAsTyped(t *testing.T) {
	g, api := newTestGoogle(t)
	ctx := context.Background()
	row := []string{"id-1", `=HYPERLINK("http://x")`, "1/2", "0012"}

	require.NoError(t, g.AppendRow(ctx, "book", "'Exames'!A:F", row))
	require.NoError(t, g.UpdateRow(ctx, "book", "'Exames'!A2:F2", row))

	require.Len(t, api.calls, 2)
	for _, c := range api.calls {
		assert.Equal(t, "RAW", c.valueInput, "%s %s", c.method, c.path)
		require.Len(t, c.values, 1)
		assert.Equal(t, []any{"id-1", `=HYPERLINK("http://x")`, "1/2", "0012"}, c.values[0])
	}
}

func TestGoogle_SheetIDByTitle(t *testing.T) {
	g, _ := newTestGoogle(t)
	ctx := context.Background()

	id, err := g.SheetID(ctx, "book", "Exames")
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)

	id, err = g.SheetID(ctx, "book", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)

	_, err = g.SheetID(ctx, "book", "Recoletas")
	assert.ErrorContains(t, err, `no sheet "Recoletas"`)
}

func TestFindSheetID(t *testing.T) {
	tabs := []*gsheets.Sheet{
		{Properties: nil},
		{Properties: &gsheets.SheetProperties{SheetId: 5, Title: "A"}},
		{Properties: &gsheets.SheetProperties{SheetId: 9, Title: "B"}},
	}

	id, err := findSheetID(tabs, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	id, err = findSheetID(tabs, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	_, err = findSheetID(nil, "")
	assert.Error(t, err)
}
