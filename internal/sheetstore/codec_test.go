package sheetstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/labtrack/internal/records"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestExamCodec_RoundTrip(t *testing.T) {
	c := ExamCodec{}
	in := records.Exam{
		ID:           "7d1c6f7e-2d1f-4a8e-9d55-0e0f1c2a3b4c",
		PatientName:  "Ana Souza",
		ReceivedDate: date(2024, time.September, 10),
		WithdrawnBy:  "Municipal",
		Observations: "jejum",
		Attachments: []records.Attachment{
			{URL: "https://cdn.example/a.pdf", Name: "a.pdf"},
			{URL: "https://cdn.example/b.pdf", Name: "b.pdf"},
			{URL: "https://cdn.example/c.pdf", Name: "c.pdf"},
		},
	}

	row, err := c.Encode(in)
	require.NoError(t, err)
	require.Len(t, row, len(ExamColumns))
	assert.Equal(t, "10/09/2024", row[examColReceived])

	out, ok := c.Decode(row, 3)
	require.True(t, ok)
	assert.Equal(t, 5, out.Row)
	out.Row = 0
	assert.Equal(t, in, out)
}

func TestExamCodec_EmptyFields(t *testing.T) {
	c := ExamCodec{}
	row, err := c.Encode(records.Exam{ID: "x", PatientName: "Bia"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "Bia", "", "", "", ""}, row)

	out, ok := c.Decode(row, 0)
	require.True(t, ok)
	assert.Nil(t, out.ReceivedDate)
	assert.NotNil(t, out.Attachments)
	assert.Empty(t, out.Attachments)
}

func TestExamCodec_EncodeRequiresPatient(t *testing.T) {
	_, err := ExamCodec{}.Encode(records.Exam{ID: "x", PatientName: "   "})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = ExamCodec{}.Encode(records.Exam{
		ID:          "x",
		PatientName: "Ana",
		Attachments: []records.Attachment{{Name: "no url"}},
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestExamCodec_DecodeTolerance(t *testing.T) {
	c := ExamCodec{}
	tests := []struct {
		name    string
		row     []string
		ok      bool
		wantID  string
		hasDate bool
	}{
		{"blank patient", []string{"id", "", "10/09/2024", "Municipal"}, false, "", false},
		{"whitespace patient", []string{"id", "  ", "", "", "", "[]"}, false, "", false},
		{"empty row", []string{}, false, "", false},
		{"bad date kept", []string{"id", "Ana", "2024-09-10"}, true, "id", false},
		{"single digit date", []string{"id", "Ana", "1/9/2024"}, true, "id", true},
		{"impossible date", []string{"id", "Ana", "31/02/2024"}, true, "id", false},
		{"missing id", []string{"", "Ana"}, true, "MISSING_ID_ROW_4", false},
		{"trimmed row", []string{"id", "Ana"}, true, "id", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Decode(tt.row, 2)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.hasDate, got.ReceivedDate != nil)
		})
	}
}

func TestExamCodec_Location(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	c := ExamCodec{Location: loc}

	got, ok := c.Decode([]string{"id", "Ana", "10/09/2024"}, 0)
	require.True(t, ok)
	require.NotNil(t, got.ReceivedDate)
	assert.Equal(t, loc, got.ReceivedDate.Location())

	// An instant late on the 9th in UTC is still the 9th in BRT.
	late := time.Date(2024, time.September, 10, 1, 0, 0, 0, time.UTC)
	row, err := c.Encode(records.Exam{ID: "id", PatientName: "Ana", ReceivedDate: &late})
	require.NoError(t, err)
	assert.Equal(t, "09/09/2024", row[examColReceived])
}

func TestDecodeAttachments(t *testing.T) {
	tests := []struct {
		name string
		cell string
		want []records.Attachment
	}{
		{"empty", "", []records.Attachment{}},
		{"json list", `[{"url":"https://x/1.pdf","name":"1.pdf"},{"url":"https://x/2.pdf","name":"2.pdf"}]`,
			[]records.Attachment{{URL: "https://x/1.pdf", Name: "1.pdf"}, {URL: "https://x/2.pdf", Name: "2.pdf"}}},
		{"json drops blank urls", `[{"url":"","name":"x"},{"url":"https://x/1.pdf","name":"1.pdf"}]`,
			[]records.Attachment{{URL: "https://x/1.pdf", Name: "1.pdf"}}},
		{"legacy url", "https://res.cloudinary.com/demo/image/upload/r.pdf",
			[]records.Attachment{{URL: "https://res.cloudinary.com/demo/image/upload/r.pdf", Name: LegacyAttachmentName}}},
		{"broken json", `[{"url":`, []records.Attachment{}},
		{"free text", "ver pasta", []records.Attachment{}},
		{"text starting with http and spaces", "http is down", []records.Attachment{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeAttachments(tt.cell))
		})
	}
}

func TestEncodeAttachments_Empty(t *testing.T) {
	s, err := encodeAttachments(nil)
	require.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = encodeAttachments([]records.Attachment{})
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestEncodeAttachments_KeepsQueryLiteral(t *testing.T) {
	list := []records.Attachment{{URL: "https://x/r.pdf?a=1&b=2", Name: "<laudo>"}}

	cell, err := encodeAttachments(list)
	require.NoError(t, err)
	assert.Equal(t, `[{"url":"https://x/r.pdf?a=1&b=2","name":"<laudo>"}]`, cell)
	assert.NotContains(t, cell, `\u0026`)
	assert.Equal(t, list, decodeAttachments(cell))
}

func TestRecoletaCodec_RoundTrip(t *testing.T) {
	c := RecoletaCodec{}
	for _, notified := range []bool{true, false} {
		in := records.Recoleta{ID: "r1", PatientName: "Caio", UBS: "CEAM", Notified: notified, Observations: "ligar"}
		row, err := c.Encode(in)
		require.NoError(t, err)

		out, ok := c.Decode(row, 0)
		require.True(t, ok)
		assert.Equal(t, 2, out.Row)
		out.Row = 0
		assert.Equal(t, in, out)
	}
}

func TestRecoletaCodec_NotifiedToken(t *testing.T) {
	c := RecoletaCodec{}
	tests := map[string]bool{
		"SIM":    true,
		" sim ":  true,
		"Sim":    true,
		"NÃO":    false,
		"NAO":    false,
		"":       false,
		"talvez": false,
	}
	for cell, want := range tests {
		got, ok := c.Decode([]string{"r", "Caio", "CEAM", cell}, 0)
		require.True(t, ok)
		assert.Equal(t, want, got.Notified, cell)
	}

	row, err := c.Encode(records.Recoleta{ID: "r", PatientName: "Caio"})
	require.NoError(t, err)
	assert.Equal(t, NotifiedNo, row[recoletaColNotified])
}

func TestLayoutRanges(t *testing.T) {
	exam := Layout{Columns: ExamColumns}
	assert.Equal(t, "A:F", exam.DataRange())
	assert.Equal(t, "A:A", exam.IdentityRange())
	assert.Equal(t, "A7:F7", exam.RowRange(7))

	rec := Layout{Title: "Recoletas", Columns: RecoletaColumns}
	assert.Equal(t, "'Recoletas'!A:E", rec.DataRange())
	assert.Equal(t, "'Recoletas'!A1:E1", rec.HeaderRange())

	assert.Equal(t, "Z", columnLetter(26))
	assert.Equal(t, "AA", columnLetter(27))
}
