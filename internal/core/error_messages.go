package core

// # Error Codes Reference
//
// Errors shown to staff carry a short code they can quote when reporting a
// problem. Sentinel errors are matched with errors.Is first; anything else
// falls through to case-insensitive substring patterns.
//
// # Spreadsheet Errors (SHT001-SHT099)
//
//	SHT001 - Spreadsheet unavailable: the sheets service failed or timed out
//	         Action: Please try again in a few moments
//	SHT002 - Spreadsheet paused: too many recent failures, calls are paused
//	         Action: Wait a minute before trying again
//	SHT003 - Misconfigured: a sheet is missing its id or credentials
//	         Action: Contact the administrator
//	SHT004 - Unknown sheet: the sheet key is not configured
//	SHT005 - Wrong sheet type: exam operation on a recoleta sheet or the reverse
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Invalid record: a required field is missing or too long
//	REC002 - Not found: no row carries this id anymore
//	REC003 - Invalid date: dates are written DD/MM/YYYY
//
// # Attachment Errors (ATT001-ATT099)
//
//	ATT001 - Upload failed: the file service rejected or lost the file
//	ATT002 - Invalid file: only PDF files with a name are accepted
//	ATT003 - File too large
//	ATT004 - System busy: too many uploads in progress
//	ATT005 - No file: the form carried no file
//
// # Access Errors (AUTH001-AUTH099)
//
//	AUTH001 - Invalid credentials
//	AUTH002 - Session expired
//	AUTH003 - Forbidden: the signed-in role may not do this
//
// # Request Errors (REQ001-REQ099, RATE001, AUD001)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timeout
//	REQ003 - Bad request: malformed JSON or form input
//	RATE001 - Too many requests
//	AUD001 - Audit log disabled: no database configured
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/labtrack/internal/attachments"
	"github.com/JonMunkholm/labtrack/internal/auth"
	"github.com/JonMunkholm/labtrack/internal/sheets"
	"github.com/JonMunkholm/labtrack/internal/sheetstore"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// sentinelMessage maps a sentinel error to its user message.
type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages is checked in order with errors.Is. ErrCircuitOpen wraps
// the backend failure that tripped it, so it must precede
// ErrBackendUnavailable.
var sentinelMessages = []sentinelMessage{
	{sheets.ErrCircuitOpen, UserMessage{
		Message: "The spreadsheet service is paused after repeated failures",
		Action:  "Wait a minute before trying again",
		Code:    "SHT002",
	}},
	{sheetstore.ErrBackendUnavailable, UserMessage{
		Message: "The spreadsheet service is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "SHT001",
	}},
	{sheetstore.ErrConfiguration, UserMessage{
		Message: "This sheet is not configured correctly",
		Action:  "Contact the administrator",
		Code:    "SHT003",
	}},
	{sheets.ErrCredentials, UserMessage{
		Message: "This sheet is not configured correctly",
		Action:  "Contact the administrator",
		Code:    "SHT003",
	}},
	{ErrUnknownSheet, UserMessage{
		Message: "Sheet not found",
		Action:  "Pick a sheet from the menu",
		Code:    "SHT004",
	}},
	{ErrWrongKind, UserMessage{
		Message: "This operation does not apply to this sheet",
		Action:  "Pick a sheet of the right type",
		Code:    "SHT005",
	}},
	{ErrValidation, UserMessage{
		Message: "The record has missing or invalid fields",
		Action:  "Fill in the patient name and check field lengths",
		Code:    "REC001",
	}},
	{sheetstore.ErrInvalidRecord, UserMessage{
		Message: "The record has missing or invalid fields",
		Action:  "Fill in the patient name and check field lengths",
		Code:    "REC001",
	}},
	{sheetstore.ErrNotFound, UserMessage{
		Message: "The record no longer exists",
		Action:  "Reload the list to see current records",
		Code:    "REC002",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum size",
		Action:  "Upload a smaller PDF",
		Code:    "ATT003",
	}},
	{ErrTooManyUploads, UserMessage{
		Message: "Too many uploads in progress",
		Action:  "Please wait a moment and try again",
		Code:    "ATT004",
	}},
	{ErrNoFiles, UserMessage{
		Message: "No file was selected",
		Action:  "Choose at least one PDF to upload",
		Code:    "ATT005",
	}},
	{attachments.ErrInvalidFile, UserMessage{
		Message: "The file was not accepted",
		Action:  "Upload a PDF file with a name",
		Code:    "ATT002",
	}},
	{attachments.ErrUploadFailed, UserMessage{
		Message: "The file could not be stored",
		Action:  "Please try again",
		Code:    "ATT001",
	}},
	{auth.ErrInvalidCredentials, UserMessage{
		Message: "Invalid email or password",
		Action:  "Check your credentials and try again",
		Code:    "AUTH001",
	}},
	{auth.ErrTokenExpired, UserMessage{
		Message: "Your session has expired",
		Action:  "Sign in again",
		Code:    "AUTH002",
	}},
	{auth.ErrTokenInvalid, UserMessage{
		Message: "Your session is not valid",
		Action:  "Sign in again",
		Code:    "AUTH002",
	}},
	{ErrForbidden, UserMessage{
		Message: "You are not allowed to do this",
		Action:  "Sign in with an account that has access",
		Code:    "AUTH003",
	}},
	{ErrAuditDisabled, UserMessage{
		Message: "The audit log is not enabled",
		Action:  "Configure a database to keep an audit log",
		Code:    "AUD001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "REQ002",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages for errors that carry no sentinel. The first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Write dates as DD/MM/YYYY",
			Code:    "REC003",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "The record has missing or invalid fields",
			Action:  "Fill in the patient name and check field lengths",
			Code:    "REC001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size",
			Action:  "Upload a smaller PDF",
			Code:    "ATT003",
		},
	},
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose at least one PDF to upload",
			Code:    "ATT005",
		},
	},
	{
		pattern: "invalid json",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Reload the page and try again",
			Code:    "REQ003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinels win over text patterns; ERR000 is the fallback.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
//
//	"The record no longer exists (Code: REC002). Reload the list to see current records"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
