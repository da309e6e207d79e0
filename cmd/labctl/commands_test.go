package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/labtrack/internal/application"
	"github.com/JonMunkholm/labtrack/internal/config"
	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/logging"
)

// sharedApp builds one demo app and hands it to every command, so changes
// made by one command are visible to the next.
func sharedApp(t *testing.T) opener {
	t.Helper()
	cfg := &config.Config{
		Sheets: config.SheetsConfig{
			Backend:                 config.SheetsMemory,
			Timezone:                "America/Sao_Paulo",
			CallTimeout:             time.Second,
			BreakerFailures:         5,
			BreakerOpenTimeout:      time.Second,
			BreakerHalfOpenRequests: 1,
		},
		Attachments: config.AttachmentsConfig{
			Backend:       config.AttachmentsMemory,
			MaxFileSize:   1 << 20,
			MaxConcurrent: 1,
			MaxWaitTime:   time.Second,
		},
	}
	app, err := application.Build(context.Background(), cfg, logging.Discard(), application.Options{})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	return func(context.Context, *slog.Logger, application.Options) (*application.App, error) {
		return app, nil
	}
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSheets(t *testing.T) {
	out, err := run(t, sharedApp(t), "sheets")
	require.NoError(t, err)
	assert.Contains(t, out, "sao-lucas")
	assert.Contains(t, out, "recoleta")
	assert.Contains(t, out, "KIND")
}

func TestList_Exams(t *testing.T) {
	out, err := run(t, sharedApp(t), "list", "sao-lucas", "-q", "joao")
	require.NoError(t, err)
	assert.Contains(t, out, "EXM001")
	assert.Contains(t, out, "04/09/2024")
	assert.NotContains(t, out, "EXM002")
}

func TestList_Recoletas(t *testing.T) {
	out, err := run(t, sharedApp(t), "list", "recoleta")
	require.NoError(t, err)
	assert.Contains(t, out, "REC001")
	assert.Contains(t, out, "REC002")
	assert.Contains(t, out, "NOTIFIED")
}

func TestList_UnknownSheet(t *testing.T) {
	_, err := run(t, sharedApp(t), "list", "nowhere")
	assert.ErrorIs(t, err, core.ErrUnknownSheet)
}

func TestExport_CSV(t *testing.T) {
	out, err := run(t, sharedApp(t), "export", "sao-lucas", "--from", "01/09/2024", "--to", "03/09/2024")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Paciente", rows[0][0])
	assert.Equal(t, "Sarah Miller", rows[1][0])
	assert.Equal(t, "Robert Brown", rows[2][0])
}

func TestExport_JSON(t *testing.T) {
	out, err := run(t, sharedApp(t), "export", "sao-lucas", "-f", "json", "--withdrawn-by", "retirado")
	require.NoError(t, err)

	var docs []examDoc
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 3)
	assert.Equal(t, "Sarah Miller", docs[0].PatientName)
	assert.Equal(t, "03/09/2024", docs[0].ReceivedDate)
}

func TestExport_YAMLRecoletas(t *testing.T) {
	out, err := run(t, sharedApp(t), "export", "recoleta", "-f", "yaml")
	require.NoError(t, err)

	var docs []recoletaDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "Maria Oliveira", docs[0].PatientName)
	assert.True(t, docs[0].Notified)
	assert.False(t, docs[1].Notified)
}

func TestExport_Rejects(t *testing.T) {
	open := sharedApp(t)

	_, err := run(t, open, "export", "sao-lucas", "-f", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = run(t, open, "export", "sao-lucas", "--from", "2024/09/01")
	assert.ErrorContains(t, err, "--from")
}

func TestDelete(t *testing.T) {
	open := sharedApp(t)

	out, err := run(t, open, "delete", "sao-lucas", "EXM004")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted EXM004")

	out, err = run(t, open, "list", "sao-lucas")
	require.NoError(t, err)
	assert.NotContains(t, out, "EXM004")

	_, err = run(t, open, "delete", "sao-lucas", "EXM004")
	assert.Error(t, err)
}

func TestInitSheet(t *testing.T) {
	open := sharedApp(t)

	out, err := run(t, open, "init-sheet", "sao-lucas")
	require.NoError(t, err)
	assert.Contains(t, out, "already has data")

	_, err = run(t, open, "init-sheet", "nowhere")
	assert.ErrorIs(t, err, core.ErrUnknownSheet)
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	d, err := parseDate("05/09/2024", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 5, 0, 0, 0, 0, loc), d)

	d, err = parseDate("2024-09-05", loc)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Day())

	d, err = parseDate("", loc)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = parseDate("yesterday", loc)
	assert.Error(t, err)
}
