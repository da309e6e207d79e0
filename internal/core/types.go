package core

import (
	"io"
	"time"

	"github.com/JonMunkholm/labtrack/internal/records"
)

// Sheet describes one configured spreadsheet.
type Sheet struct {
	Key           string       `json:"key"`   // Route key: "sao-lucas"
	Label         string       `json:"label"` // Display name: "São Lucas"
	Kind          records.Kind `json:"kind"`
	SpreadsheetID string       `json:"-"`
	Title         string       `json:"-"` // Tab name; empty means the first tab
	Public        bool         `json:"public"`
}

// ExamQuery filters staff exam listings. Matching is accent- and
// case-insensitive substring search.
type ExamQuery struct {
	Patient     string
	WithdrawnBy string
}

// PublicQuery filters and pages the read-only view.
type PublicQuery struct {
	ExamQuery
	Page     int
	PageSize int
}

// PublicExam is the subset of an exam shown outside the staff area.
// Observations and attachments never leave the staff API.
type PublicExam struct {
	PatientName  string     `json:"patientName"`
	ReceivedDate *time.Time `json:"receivedDate,omitempty"`
	WithdrawnBy  string     `json:"withdrawnBy,omitempty"`
}

// PublicPage is one page of the read-only view.
type PublicPage struct {
	Sheet    string       `json:"sheet"`
	Items    []PublicExam `json:"items"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Total    int          `json:"total"`
}

// ReportFilter selects exams for a report. Zero dates are open bounds.
type ReportFilter struct {
	From        time.Time
	To          time.Time
	WithdrawnBy string // "" or "todos" means every destination
}

// AttachmentFile is one file handed to UploadAttachments.
type AttachmentFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Paging defaults for the read-only view.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// MutationResult is returned by update operations.
type MutationResult[R any] struct {
	Record   R      `json:"record"`
	Outcome  string `json:"outcome"`
	Appended bool   `json:"appended"`
}
