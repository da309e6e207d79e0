package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/logging"
	"github.com/JonMunkholm/labtrack/internal/records"
	"github.com/JonMunkholm/labtrack/internal/web/views"
)

// Outcomes a form post reports back to the sheet page through ?done=.
const (
	doneCreated  = "created"
	doneUpdated  = "updated"
	doneAppended = "appended"
	doneDeleted  = "deleted"
	doneMissing  = "missing"
)

var doneNotices = map[string]string{
	doneCreated:  "Registro adicionado.",
	doneUpdated:  "Registro atualizado.",
	doneAppended: "O registro não existia mais na planilha e foi adicionado como novo.",
	doneDeleted:  "Registro excluído.",
	doneMissing:  "O registro já havia sido excluído.",
}

// handleSheetPage renders the records of one sheet with edit and delete
// forms.
func (s *Server) handleSheetPage(w http.ResponseWriter, r *http.Request) {
	sh, err := s.service.Sheet(chi.URLParam(r, "sheet"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v := r.URL.Query()
	data := views.SheetPageData{
		Sheet:       views.SheetLink{Key: sh.Key, Label: sh.Label, Kind: string(sh.Kind)},
		Query:       v.Get("q"),
		WithdrawnBy: v.Get("withdrawnBy"),
		Options:     records.WithdrawnByOptions,
		Notice:      doneNotices[v.Get("done")],
	}

	if sh.Kind == records.KindExam {
		list, err := s.service.ListExams(r.Context(), sh.Key, core.ExamQuery{Patient: data.Query, WithdrawnBy: data.WithdrawnBy})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		for _, e := range list {
			data.Exams = append(data.Exams, s.examRow(e))
		}
	} else {
		list, err := s.service.ListRecoletas(r.Context(), sh.Key, data.Query)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		for _, rec := range list {
			data.Recoletas = append(data.Recoletas, views.RecoletaRow{
				ID:       rec.ID,
				Patient:  rec.PatientName,
				UBS:      rec.UBS,
				Notified: rec.Notified,
				Notes:    rec.Observations,
			})
		}
	}
	s.render(w, r, sh.Label, views.SheetPage(data))
}

func (s *Server) examRow(e records.Exam) views.ExamRow {
	row := views.ExamRow{
		ID:          e.ID,
		Patient:     e.PatientName,
		Date:        s.formatDate(e.ReceivedDate),
		WithdrawnBy: e.WithdrawnBy,
		Notes:       e.Observations,
	}
	if e.ReceivedDate != nil {
		row.DateInput = e.ReceivedDate.In(s.deps.Location).Format(time.DateOnly)
	}
	for _, a := range e.Attachments {
		row.Files = append(row.Files, views.FileLink{URL: a.URL, Name: a.Name})
	}
	if len(e.Attachments) > 0 {
		if b, err := json.Marshal(e.Attachments); err == nil {
			row.FilesJSON = string(b)
		}
	}
	return row
}

func (s *Server) handleCreateRecordForm(w http.ResponseWriter, r *http.Request) {
	s.saveRecordForm(w, r, "")
}

func (s *Server) handleUpdateRecordForm(w http.ResponseWriter, r *http.Request) {
	s.saveRecordForm(w, r, chi.URLParam(r, "id"))
}

// saveRecordForm appends (id == "") or updates a record from a form post and
// redirects back to the sheet page.
func (s *Server) saveRecordForm(w http.ResponseWriter, r *http.Request, id string) {
	sh, err := s.service.Sheet(chi.URLParam(r, "sheet"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var done string
	if sh.Kind == records.KindExam {
		done, err = s.saveExamForm(w, r, sh.Key, id)
	} else {
		done, err = s.saveRecoletaForm(w, r, sh.Key, id)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if done == doneAppended {
		logging.WithFields(r.Context(), "sheet", sh.Key, "id", id).
			Warn("update target missing, record appended")
	}
	redirectToSheet(w, r, sh.Key, done)
}

// saveExamForm reads a url-encoded or multipart exam form. Files sent as
// "files" are uploaded and added to the attachments the form carried,
// minus those ticked in removeAttachment.
func (s *Server) saveExamForm(w http.ResponseWriter, r *http.Request, key, id string) (string, error) {
	files, cleanup, err := s.readMultipart(w, r)
	switch {
	case errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		return "", err
	default:
		defer cleanup()
	}

	f := r.PostForm
	in := examInput{
		ID:           id,
		PatientName:  f.Get("patientName"),
		ReceivedDate: f.Get("receivedDate"),
		WithdrawnBy:  f.Get("withdrawnBy"),
		Observations: f.Get("observations"),
	}
	if raw := strings.TrimSpace(f.Get("attachments")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Attachments); err != nil {
			return "", core.ValidationErrors{{Field: "attachments", Value: raw, Message: "invalid attachment list"}}
		}
	}
	removed := f["removeAttachment"]
	in.Attachments = slices.DeleteFunc(in.Attachments, func(a records.Attachment) bool {
		return slices.Contains(removed, a.URL)
	})

	e, err := in.toExam(s.deps.Location)
	if err != nil {
		return "", err
	}
	// Reject a bad record before spending uploads on it.
	if err := core.ValidateExam(e, time.Now()); err != nil {
		return "", err
	}
	if len(files) > 0 {
		uploaded, err := s.service.UploadAttachments(r.Context(), files)
		if err != nil {
			return "", err
		}
		e.Attachments = append(e.Attachments, uploaded...)
	}

	if id == "" {
		_, err := s.service.AppendExam(r.Context(), key, e)
		return doneCreated, err
	}
	res, err := s.service.UpdateExam(r.Context(), key, e)
	if err != nil {
		return "", err
	}
	if res.Appended {
		return doneAppended, nil
	}
	return doneUpdated, nil
}

func (s *Server) saveRecoletaForm(w http.ResponseWriter, r *http.Request, key, id string) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBody)
	if err := r.ParseForm(); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return "", err
		}
		return "", errors.Join(errBadRequest, err)
	}

	f := r.PostForm
	rec := records.Recoleta{
		ID:           id,
		PatientName:  strings.TrimSpace(f.Get("patientName")),
		UBS:          strings.TrimSpace(f.Get("ubs")),
		Notified:     f.Get("notified") != "",
		Observations: f.Get("observations"),
	}

	if id == "" {
		_, err := s.service.AppendRecoleta(r.Context(), key, rec)
		return doneCreated, err
	}
	res, err := s.service.UpdateRecoleta(r.Context(), key, rec)
	if err != nil {
		return "", err
	}
	if res.Appended {
		return doneAppended, nil
	}
	return doneUpdated, nil
}

func (s *Server) handleDeleteRecordForm(w http.ResponseWriter, r *http.Request) {
	sh, err := s.service.Sheet(chi.URLParam(r, "sheet"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")

	var removed bool
	if sh.Kind == records.KindExam {
		removed, err = s.service.DeleteExam(r.Context(), sh.Key, id)
	} else {
		removed, err = s.service.DeleteRecoleta(r.Context(), sh.Key, id)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done := doneDeleted
	if !removed {
		done = doneMissing
	}
	redirectToSheet(w, r, sh.Key, done)
}

// redirectToSheet answers a form post with 303 so a reload does not repeat it.
func redirectToSheet(w http.ResponseWriter, r *http.Request, key, done string) {
	http.Redirect(w, r, views.SheetPath(key)+"?done="+url.QueryEscape(done), http.StatusSeeOther)
}
