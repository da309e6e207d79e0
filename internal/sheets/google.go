package sheets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/JonMunkholm/labtrack/internal/sheetstore"
)

const (
	// RAW stores cell text as typed: no formulas, no date or number coercion.
	valueInputRaw = "RAW"
	insertRows    = "INSERT_ROWS"
	dimensionRows = "ROWS"

	tracerName = "github.com/JonMunkholm/labtrack/internal/sheets"
)

// ErrCredentials is returned when the service-account key cannot be decoded.
var ErrCredentials = errors.New("invalid google credentials")

// Google talks to the Sheets v4 API with a service account.
type Google struct {
	svc     *gsheets.Service
	timeout time.Duration
	log     *slog.Logger
	tracer  trace.Tracer
}

var _ sheetstore.Backend = (*Google)(nil)

// GoogleConfig configures the Sheets client.
type GoogleConfig struct {
	// CredentialsBase64 is the service-account JSON key, base64 encoded.
	CredentialsBase64 string
	// CallTimeout bounds each API call. Zero means the caller's context only.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// NewGoogle decodes the service-account key and builds a Sheets client.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	raw := strings.TrimSpace(cfg.CredentialsBase64)
	if raw == "" {
		return nil, fmt.Errorf("%w: credentials are empty", ErrCredentials)
	}
	creds, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrCredentials, err)
	}

	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newGoogle(svc, cfg), nil
}

func newGoogle(svc *gsheets.Service, cfg GoogleConfig) *Google {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Google{
		svc:     svc,
		timeout: cfg.CallTimeout,
		log:     log.With("component", "sheets"),
		tracer:  otel.Tracer(tracerName),
	}
}

func (g *Google) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	ctx, end := g.start(ctx, "sheets.values.get", spreadsheetID, rng)
	var err error
	defer func() { end(err) }()

	var resp *gsheets.ValueRange
	resp, err = g.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, g.wrap("values.get", rng, err)
	}

	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellString(v)
		}
		out[i] = cells
	}
	return out, nil
}

func (g *Google) AppendRow(ctx context.Context, spreadsheetID, rng string, row []string) error {
	ctx, end := g.start(ctx, "sheets.values.append", spreadsheetID, rng)
	var err error
	defer func() { end(err) }()

	_, err = g.svc.Spreadsheets.Values.Append(spreadsheetID, rng, valueRange(row)).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	if err != nil {
		return g.wrap("values.append", rng, err)
	}
	return nil
}

func (g *Google) UpdateRow(ctx context.Context, spreadsheetID, rng string, row []string) error {
	ctx, end := g.start(ctx, "sheets.values.update", spreadsheetID, rng)
	var err error
	defer func() { end(err) }()

	_, err = g.svc.Spreadsheets.Values.Update(spreadsheetID, rng, valueRange(row)).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return g.wrap("values.update", rng, err)
	}
	return nil
}

func (g *Google) DeleteRows(ctx context.Context, spreadsheetID string, sheetID, start, endIdx int64) error {
	ctx, end := g.start(ctx, "sheets.batchUpdate.deleteDimension", spreadsheetID, "")
	var err error
	defer func() { end(err) }()

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteDimension: &gsheets.DeleteDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  dimensionRows,
					StartIndex: start,
					EndIndex:   endIdx,
					// Zero is a valid sheet id and start index.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err = g.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return g.wrap("batchUpdate", fmt.Sprintf("sheet %d rows [%d,%d)", sheetID, start, endIdx), err)
	}
	return nil
}

func (g *Google) SheetID(ctx context.Context, spreadsheetID, title string) (int64, error) {
	ctx, end := g.start(ctx, "sheets.spreadsheets.get", spreadsheetID, "")
	var err error
	defer func() { end(err) }()

	var ss *gsheets.Spreadsheet
	ss, err = g.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets(properties(sheetId,title))").
		Context(ctx).
		Do()
	if err != nil {
		return 0, g.wrap("spreadsheets.get", "", err)
	}
	var id int64
	id, err = findSheetID(ss.Sheets, title)
	return id, err
}

// findSheetID matches a tab by title; an empty title selects the first tab.
func findSheetID(tabs []*gsheets.Sheet, title string) (int64, error) {
	for _, t := range tabs {
		if t == nil || t.Properties == nil {
			continue
		}
		if title == "" || t.Properties.Title == title {
			return t.Properties.SheetId, nil
		}
	}
	if title == "" {
		return 0, errors.New("spreadsheet has no sheets")
	}
	return 0, fmt.Errorf("spreadsheet has no sheet %q", title)
}

// start opens a span and applies the per-call timeout. The returned func
// ends both.
func (g *Google) start(ctx context.Context, name, spreadsheetID, rng string) (context.Context, func(error)) {
	cancel := context.CancelFunc(func() {})
	if g.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	attrs := []attribute.KeyValue{attribute.String("sheets.spreadsheet_id", spreadsheetID)}
	if rng != "" {
		attrs = append(attrs, attribute.String("sheets.range", rng))
	}
	ctx, span := g.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		cancel()
	}
}

// wrap logs API error details and returns an error naming the call.
func (g *Google) wrap(call, target string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		g.log.Error("sheets api error",
			"call", call,
			"target", target,
			"status", apiErr.Code,
			"message", apiErr.Message,
		)
		return fmt.Errorf("%s %s: status %d: %w", call, target, apiErr.Code, err)
	}
	g.log.Error("sheets call failed", "call", call, "target", target, "error", err)
	return fmt.Errorf("%s %s: %w", call, target, err)
}

func valueRange(row []string) *gsheets.ValueRange {
	vals := make([]interface{}, len(row))
	for i, v := range row {
		vals[i] = v
	}
	return &gsheets.ValueRange{Values: [][]interface{}{vals}}
}

// cellString renders a formatted cell value. The API returns strings for
// FORMATTED_VALUE reads; anything else is printed.
func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
