package sheetstore

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/labtrack/internal/records"
)

// Exam column positions.
const (
	examColID = iota
	examColPatient
	examColReceived
	examColWithdrawnBy
	examColObservations
	examColAttachments
)

// ExamColumns is the exam header row.
var ExamColumns = []string{"ID", "Paciente", "Data Recebida", "Retirado Por", "OBS", "PDFs"}

// ExamCodec maps records.Exam to the A:F layout.
type ExamCodec struct {
	// Location is used to interpret and render dates. Nil means UTC.
	Location *time.Location
}

var _ Codec[records.Exam] = ExamCodec{}

func (c ExamCodec) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (ExamCodec) Columns() []string { return ExamColumns }

func (c ExamCodec) Decode(row []string, offset int) (records.Exam, bool) {
	patient := cell(row, examColPatient)
	if blank(patient) {
		return records.Exam{}, false
	}
	n := rowForOffset(offset)
	return records.Exam{
		ID:           decodeIdentity(cell(row, examColID), n),
		PatientName:  patient,
		ReceivedDate: parseDate(cell(row, examColReceived), c.loc()),
		WithdrawnBy:  cell(row, examColWithdrawnBy),
		Observations: cell(row, examColObservations),
		Attachments:  decodeAttachments(cell(row, examColAttachments)),
		Row:          n,
	}, true
}

func (c ExamCodec) Encode(e records.Exam) ([]string, error) {
	if blank(e.PatientName) {
		return nil, fmt.Errorf("%w: exam %q has no patient name", ErrInvalidRecord, e.ID)
	}
	attachments, err := encodeAttachments(e.Attachments)
	if err != nil {
		return nil, err
	}
	return []string{
		e.ID,
		e.PatientName,
		formatDate(e.ReceivedDate, c.loc()),
		e.WithdrawnBy,
		e.Observations,
		attachments,
	}, nil
}

func (ExamCodec) Identity(e records.Exam) string { return e.ID }

func (ExamCodec) WithIdentity(e records.Exam, id string) records.Exam {
	e.ID = id
	return e
}

func (ExamCodec) WithRow(e records.Exam, row int) records.Exam {
	e.Row = row
	return e
}
