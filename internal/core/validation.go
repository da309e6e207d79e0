package core

// validation.go checks records submitted through the web form and API
// before they reach the store. The store's codec rejects only what cannot
// be persisted; these checks produce per-field messages the form can show.

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/labtrack/internal/records"
)

// Field limits. A sheet cell holds at most 50000 characters.
const (
	MaxNameLength         = 200
	MaxObservationsLength = 5000
	MaxAttachments        = 20
)

// ErrValidation is matched by every ValidationErrors value.
var ErrValidation = errors.New("invalid record")

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string `json:"field"`           // Field name as sent by clients
	Value   string `json:"value,omitempty"` // The invalid value
	Message string `json:"message"`         // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors lists every problem found in one record.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

func (es ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// ValidateExam returns nil or ValidationErrors.
func ValidateExam(e records.Exam, now time.Time) error {
	var errs ValidationErrors
	errs = checkName(errs, "patientName", e.PatientName)
	errs = checkLength(errs, "withdrawnBy", e.WithdrawnBy, MaxNameLength)
	errs = checkLength(errs, "observations", e.Observations, MaxObservationsLength)

	if e.ReceivedDate != nil && e.ReceivedDate.After(now.AddDate(0, 0, 1)) {
		errs = append(errs, ValidationError{
			Field:   "receivedDate",
			Value:   e.ReceivedDate.Format(time.DateOnly),
			Message: "date is in the future",
		})
	}

	if len(e.Attachments) > MaxAttachments {
		errs = append(errs, ValidationError{
			Field:   "attachments",
			Message: fmt.Sprintf("at most %d attachments", MaxAttachments),
		})
	}
	for i, a := range e.Attachments {
		u, err := url.Parse(strings.TrimSpace(a.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https" && !strings.HasPrefix(a.URL, "/")) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("attachments[%d].url", i),
				Value:   a.URL,
				Message: "must be an http(s) URL",
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateRecoleta returns nil or ValidationErrors.
func ValidateRecoleta(r records.Recoleta) error {
	var errs ValidationErrors
	errs = checkName(errs, "patientName", r.PatientName)
	errs = checkLength(errs, "ubs", r.UBS, MaxNameLength)
	errs = checkLength(errs, "observations", r.Observations, MaxObservationsLength)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func checkName(errs ValidationErrors, field, v string) ValidationErrors {
	if strings.TrimSpace(v) == "" {
		return append(errs, ValidationError{Field: field, Message: "required field is empty"})
	}
	return checkLength(errs, field, v, MaxNameLength)
}

func checkLength(errs ValidationErrors, field, v string, limit int) ValidationErrors {
	if n := len([]rune(v)); n > limit {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("too long (%d characters, max %d)", n, limit),
		})
	}
	return errs
}
