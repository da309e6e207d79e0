package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/labtrack/internal/audit"
)

// auditResponse wraps one page of the trail.
type auditResponse struct {
	Entries []audit.Entry `json:"entries"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// handleAuditLog lists trail entries newest first. Query parameters:
// sheet, action, since (RFC 3339 or YYYY-MM-DD), limit, offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	f := audit.Filter{
		SheetKey: v.Get("sheet"),
		Action:   audit.Action(v.Get("action")),
	}

	if since := v.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			d, derr := parseFormDate(since, s.deps.Location)
			if derr != nil || d == nil {
				s.fail(w, r, fmt.Errorf("%w: since %q", errBadRequest, since))
				return
			}
			t = *d
		}
		f.Since = t
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		if raw := v.Get(p.name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				s.fail(w, r, fmt.Errorf("%w: %s %q", errBadRequest, p.name, raw))
				return
			}
			*p.dst = n
		}
	}
	if f.Limit == 0 {
		f.Limit = audit.DefaultLimit
	}
	f.Limit = min(f.Limit, audit.MaxLimit)

	entries, err := s.service.AuditLog(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, auditResponse{Entries: entries, Limit: f.Limit, Offset: f.Offset})
}
