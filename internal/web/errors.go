package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details server-side
//   - Returned to clients as user-friendly messages with a code
//   - Formatted as JSON for the API and as an HTML fragment for pages
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.fail(w, r, err), which picks the status via statusFor
//  3. Error is mapped via core.MapError to get the user-facing message
//  4. Technical error is logged with the request id
//  5. User message is rendered in the format the client expects

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/labtrack/internal/attachments"
	"github.com/JonMunkholm/labtrack/internal/auth"
	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/logging"
	"github.com/JonMunkholm/labtrack/internal/sheets"
	"github.com/JonMunkholm/labtrack/internal/sheetstore"
	"github.com/JonMunkholm/labtrack/internal/web/views"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Action  string                 `json:"action,omitempty"`
	Code    string                 `json:"code"`
	Fields  []core.ValidationError `json:"fields,omitempty"`
}

// errBadRequest marks malformed input. MapError sends it to REQ003.
var errBadRequest = errors.New("invalid json")

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnknownSheet),
		errors.Is(err, sheetstore.ErrNotFound),
		errors.Is(err, core.ErrAuditDisabled):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrWrongKind),
		errors.Is(err, core.ErrNoFiles),
		errors.Is(err, sheetstore.ErrInvalidRecord),
		errors.Is(err, attachments.ErrInvalidFile),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrTooManyUploads),
		errors.Is(err, sheets.ErrCircuitOpen),
		errors.Is(err, sheetstore.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, attachments.ErrUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status statusFor picks.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs the technical error and writes the user message in
// the format the client expects.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.Enrich(r.Context(), s.log).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if wantsJSON(r) {
		resp := ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		}
		var verrs core.ValidationErrors
		if errors.As(err, &verrs) {
			resp.Fields = verrs
		}
		writeJSONStatus(w, statusCode, resp)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := views.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w); err != nil {
		s.log.Error("render error alert", "error", err)
	}
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// writeJSON encodes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON. Encoding errors are only logged since
// the headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads one JSON object from the body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return errors.Join(errBadRequest, err)
	}
	return nil
}
