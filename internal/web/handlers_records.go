package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/logging"
	"github.com/JonMunkholm/labtrack/internal/records"
	"github.com/JonMunkholm/labtrack/internal/sheetstore"
)

// maxRecordBody bounds a JSON record body.
const maxRecordBody = 1 << 20

// listResponse wraps a listing.
type listResponse[R any] struct {
	Sheet string `json:"sheet"`
	Items []R    `json:"items"`
	Total int    `json:"total"`
}

// deleteResponse reports whether a row was removed. Deleting a missing id
// is not an error.
type deleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// examInput is the exam body accepted by the API. ReceivedDate may be
// YYYY-MM-DD, DD/MM/YYYY, RFC 3339 or empty.
type examInput struct {
	ID           string               `json:"id"`
	PatientName  string               `json:"patientName"`
	ReceivedDate string               `json:"receivedDate"`
	WithdrawnBy  string               `json:"withdrawnBy"`
	Observations string               `json:"observations"`
	Attachments  []records.Attachment `json:"attachments"`
	RowNumber    int                  `json:"rowNumber"`
}

func (in examInput) toExam(loc *time.Location) (records.Exam, error) {
	d, err := parseFormDate(in.ReceivedDate, loc)
	if err != nil {
		return records.Exam{}, core.ValidationErrors{{
			Field:   "receivedDate",
			Value:   in.ReceivedDate,
			Message: "invalid date, use DD/MM/YYYY",
		}}
	}
	return records.Exam{
		ID:           strings.TrimSpace(in.ID),
		PatientName:  strings.TrimSpace(in.PatientName),
		ReceivedDate: d,
		WithdrawnBy:  strings.TrimSpace(in.WithdrawnBy),
		Observations: in.Observations,
		Attachments:  in.Attachments,
	}, nil
}

var formDateLayouts = []string{time.DateOnly, sheetstore.DateLayout}

// parseFormDate returns nil for an empty value. Dates are taken as
// calendar days in loc.
func parseFormDate(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range formDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	d := records.DateOnly(t.In(loc))
	return &d, nil
}

// ----------------------------------------------------------------------------
// Exams
// ----------------------------------------------------------------------------

func (s *Server) handleListExams(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")
	q := core.ExamQuery{
		Patient:     r.URL.Query().Get("q"),
		WithdrawnBy: r.URL.Query().Get("withdrawnBy"),
	}

	list, err := s.service.ListExams(r.Context(), key, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []records.Exam{}
	}
	writeJSON(w, listResponse[records.Exam]{Sheet: key, Items: list, Total: len(list)})
}

func (s *Server) handleAppendExam(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBody)

	var in examInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := in.toExam(s.deps.Location)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out, err := s.service.AppendExam(r.Context(), key, e)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBody)

	var in examInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := in.toExam(s.deps.Location)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// The path names the record; a body id is ignored.
	e.ID = id

	res, err := s.service.UpdateExam(r.Context(), key, e)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Appended {
		logging.WithFields(r.Context(), "sheet", key, "id", id, "new_id", res.Record.ID).
			Warn("update target missing, record appended")
	}
	writeJSON(w, res)
}

func (s *Server) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")
	id := chi.URLParam(r, "id")

	removed, err := s.service.DeleteExam(r.Context(), key, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, deleteResponse{ID: id, Deleted: removed})
}

// ----------------------------------------------------------------------------
// Recoletas
// ----------------------------------------------------------------------------

func (s *Server) handleListRecoletas(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")

	list, err := s.service.ListRecoletas(r.Context(), key, r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []records.Recoleta{}
	}
	writeJSON(w, listResponse[records.Recoleta]{Sheet: key, Items: list, Total: len(list)})
}

func (s *Server) decodeRecoleta(w http.ResponseWriter, r *http.Request) (records.Recoleta, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBody)
	var rec records.Recoleta
	if err := decodeJSON(r, &rec); err != nil {
		return records.Recoleta{}, err
	}
	rec.PatientName = strings.TrimSpace(rec.PatientName)
	rec.UBS = strings.TrimSpace(rec.UBS)
	rec.Row = 0
	return rec, nil
}

func (s *Server) handleAppendRecoleta(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")

	rec, err := s.decodeRecoleta(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.service.AppendRecoleta(r.Context(), key, rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateRecoleta(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")
	id := chi.URLParam(r, "id")

	rec, err := s.decodeRecoleta(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec.ID = id

	res, err := s.service.UpdateRecoleta(r.Context(), key, rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Appended {
		logging.WithFields(r.Context(), "sheet", key, "id", id, "new_id", res.Record.ID).
			Warn("update target missing, record appended")
	}
	writeJSON(w, res)
}

func (s *Server) handleDeleteRecoleta(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")
	id := chi.URLParam(r, "id")

	removed, err := s.service.DeleteRecoleta(r.Context(), key, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, deleteResponse{ID: id, Deleted: removed})
}

// ----------------------------------------------------------------------------
// Sheets
// ----------------------------------------------------------------------------

func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"sheets":      s.service.Sheets(),
		"withdrawnBy": records.WithdrawnByOptions,
	})
}

func (s *Server) handleInitSheet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")

	wrote, err := s.service.InitSheet(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"sheet": key, "headerWritten": wrote})
}
