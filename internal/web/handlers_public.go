package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/labtrack/internal/auth"
	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/records"
	"github.com/JonMunkholm/labtrack/internal/sheetstore"
	"github.com/JonMunkholm/labtrack/internal/web/middleware"
	"github.com/JonMunkholm/labtrack/internal/web/views"
)

// publicQuery reads q, withdrawnBy, page and pageSize.
func publicQuery(r *http.Request) (core.PublicQuery, error) {
	v := r.URL.Query()
	q := core.PublicQuery{
		ExamQuery: core.ExamQuery{
			Patient:     v.Get("q"),
			WithdrawnBy: v.Get("withdrawnBy"),
		},
	}
	var err error
	if p := v.Get("page"); p != "" {
		if q.Page, err = strconv.Atoi(p); err != nil {
			return q, fmt.Errorf("%w: page %q", errBadRequest, p)
		}
	}
	if p := v.Get("pageSize"); p != "" {
		if q.PageSize, err = strconv.Atoi(p); err != nil {
			return q, fmt.Errorf("%w: pageSize %q", errBadRequest, p)
		}
	}
	return q, nil
}

func (s *Server) handlePublicExams(w http.ResponseWriter, r *http.Request) {
	q, err := publicQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.service.PublicExams(r.Context(), chi.URLParam(r, "sheet"), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, page)
}

func (s *Server) publicLinks() []views.SheetLink {
	var out []views.SheetLink
	for _, sh := range s.service.Sheets() {
		if sh.Public && sh.Kind == records.KindExam {
			out = append(out, views.SheetLink{Key: sh.Key, Label: sh.Label, Kind: string(sh.Kind)})
		}
	}
	return out
}

func (s *Server) handlePublicPage(w http.ResponseWriter, r *http.Request) {
	links := s.publicLinks()
	key := r.URL.Query().Get("sheet")
	if key == "" && len(links) > 0 {
		key = links[0].Key
	}

	q, err := publicQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.service.PublicExams(r.Context(), key, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := views.PublicViewData{
		Sheets:      links,
		Current:     key,
		Patient:     q.Patient,
		WithdrawnBy: q.WithdrawnBy,
		Page:        page.Page,
		Pages:       max(1, (page.Total+page.PageSize-1)/page.PageSize),
		Total:       page.Total,
	}
	for _, e := range page.Items {
		data.Rows = append(data.Rows, views.PublicRow{
			Patient:     e.PatientName,
			Date:        s.formatDate(e.ReceivedDate),
			WithdrawnBy: e.WithdrawnBy,
		})
	}
	s.render(w, r, "Consulta", views.PublicView(data))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	switch {
	case !ok:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	case !sess.Role.Allows(auth.RoleAdmin):
		http.Redirect(w, r, "/consulta", http.StatusSeeOther)
		return
	}

	var links []views.SheetLink
	for _, sh := range s.service.Sheets() {
		links = append(links, views.SheetLink{Key: sh.Key, Label: sh.Label, Kind: string(sh.Kind)})
	}
	s.render(w, r, "Planilhas", views.Dashboard(links))
}

// handleReport streams the report as CSV.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sheet")
	v := r.URL.Query()

	var f core.ReportFilter
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		d, err := parseFormDate(v.Get(p.name), s.deps.Location)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: %s: %v", errBadRequest, p.name, err))
			return
		}
		if d != nil {
			*p.dst = *d
		}
	}
	f.WithdrawnBy = v.Get("withdrawnBy")

	list, err := s.service.Report(r.Context(), key, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := core.WriteReportCSV(&buf, list); err != nil {
		s.fail(w, r, err)
		return
	}
	name := fmt.Sprintf("relatorio-%s-%s.csv", key, time.Now().In(s.deps.Location).Format(time.DateOnly))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(s.deps.Location).Format(sheetstore.DateLayout)
}
