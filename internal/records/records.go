// Package records defines the domain records kept in the lab spreadsheets.
//
// Records carry no storage logic. The sheetstore package maps them to and
// from spreadsheet rows; the web and core layers pass them around by value.
package records

import "time"

// Attachment is a file uploaded to the blob service and referenced from an
// exam row.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Exam is one exam row.
//
// Row is the 1-based sheet row the record was read from. It is only valid
// until the next mutation of the sheet and is never used as identity.
type Exam struct {
	ID           string       `json:"id"`
	PatientName  string       `json:"patientName"`
	ReceivedDate *time.Time   `json:"receivedDate,omitempty"`
	WithdrawnBy  string       `json:"withdrawnBy,omitempty"`
	Observations string       `json:"observations,omitempty"`
	Attachments  []Attachment `json:"attachments"`
	Row          int          `json:"rowNumber,omitempty"`
}

// Recoleta is one re-collection row.
type Recoleta struct {
	ID           string `json:"id"`
	PatientName  string `json:"patientName"`
	UBS          string `json:"ubs"`
	Notified     bool   `json:"notified"`
	Observations string `json:"observations,omitempty"`
	Row          int    `json:"rowNumber,omitempty"`
}

// Kind names a record type. Each configured spreadsheet holds exactly one kind.
type Kind string

const (
	KindExam     Kind = "exam"
	KindRecoleta Kind = "recoleta"
)

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	return k == KindExam || k == KindRecoleta
}

// WithdrawnByOptions lists the destinations offered in the exam form and
// the report filter. WithdrawnBy is still free text; these are suggestions.
var WithdrawnByOptions = []string{
	"Municipal",
	"UBS REDENTOR",
	"RETIRADO",
	"CEAM",
	"SANTO ANTONIO",
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
