package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/labtrack/internal/audit"
)

// auditSeverity returns the severity recorded for an action.
func auditSeverity(action audit.Action) audit.Severity {
	switch action {
	case audit.ActionRecordDelete:
		return audit.SeverityHigh
	case audit.ActionLoginFailed:
		return audit.SeverityHigh
	case audit.ActionHeaderInit:
		return audit.SeverityCritical
	case audit.ActionAttachmentUpload, audit.ActionLogin:
		return audit.SeverityLow
	default:
		return audit.SeverityMedium
	}
}

// auditParams describes one event. Request identity comes from the context.
type auditParams struct {
	Action   audit.Action
	SheetKey string
	RecordID string
	Outcome  string
	Detail   string
	Email    string // overrides the context user, for login events
}

// recordAudit writes one trail entry. Failures are logged and counted but
// never fail the operation that triggered them.
func (s *Service) recordAudit(ctx context.Context, p auditParams) {
	if s.audit == nil {
		return
	}
	email := p.Email
	if email == "" {
		email = GetUserFromContext(ctx)
	}
	entry := audit.Entry{
		Action:    p.Action,
		Severity:  auditSeverity(p.Action),
		SheetKey:  p.SheetKey,
		RecordID:  p.RecordID,
		Outcome:   p.Outcome,
		UserEmail: email,
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		Detail:    p.Detail,
	}

	// The request may already be cancelled; the trail should still be written.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if _, err := s.audit.Insert(wctx, entry); err != nil {
		s.log.Error("audit write failed",
			"action", p.Action,
			"sheet", p.SheetKey,
			"record", p.RecordID,
			"error", err,
		)
		if s.events != nil {
			s.events.AuditWriteFailed()
		}
	}
}

// AuditLog lists trail entries, newest first.
func (s *Service) AuditLog(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	if s.audit == nil {
		return nil, ErrAuditDisabled
	}
	if f.SheetKey != "" {
		if _, ok := s.registry.Get(f.SheetKey); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSheet, f.SheetKey)
		}
	}
	return s.audit.List(ctx, f)
}

// RecordLogin writes a login or failed-login entry.
func (s *Service) RecordLogin(ctx context.Context, email string, ok bool) {
	action := audit.ActionLogin
	outcome := "ok"
	if !ok {
		action = audit.ActionLoginFailed
		outcome = "denied"
	}
	s.recordAudit(ctx, auditParams{Action: action, Outcome: outcome, Email: email})
}
