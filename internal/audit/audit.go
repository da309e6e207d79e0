// Package audit persists the record mutation trail in PostgreSQL.
//
// The trail is optional. When no database is configured the service layer
// runs without a Store and nothing is recorded.
package audit

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Action is the kind of event recorded.
type Action string

const (
	ActionRecordAppend     Action = "record_append"
	ActionRecordUpdate     Action = "record_update"
	ActionRecordDelete     Action = "record_delete"
	ActionAttachmentUpload Action = "attachment_upload"
	ActionLogin            Action = "login"
	ActionLoginFailed      Action = "login_failed"
	ActionHeaderInit       Action = "header_init"
)

// Severity ranks entries for review.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Entry is one row of the trail.
type Entry struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Severity  Severity  `json:"severity"`
	SheetKey  string    `json:"sheetKey,omitempty"`
	RecordID  string    `json:"recordId,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	UserEmail string    `json:"userEmail,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	SheetKey string
	Action   Action
	Since    time.Time
	Limit    int
	Offset   int
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes the audit_log table.
type Store struct {
	db DBTX
}

// NewStore returns a store over db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS audit_log (
	id          UUID PRIMARY KEY,
	action      TEXT NOT NULL,
	severity    TEXT NOT NULL,
	sheet_key   TEXT,
	record_id   TEXT,
	outcome     TEXT,
	user_email  TEXT,
	ip_address  INET,
	user_agent  TEXT,
	detail      TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_log_created_at_idx ON audit_log (created_at DESC);
CREATE INDEX IF NOT EXISTS audit_log_sheet_idx ON audit_log (sheet_key, created_at DESC);
`

// EnsureSchema creates the table and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

const insertSQL = `
INSERT INTO audit_log (id, action, severity, sheet_key, record_id, outcome, user_email, ip_address, user_agent, detail)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at`

// Insert writes e and returns it with ID and CreatedAt set.
func (s *Store) Insert(ctx context.Context, e Entry) (Entry, error) {
	if e.Action == "" {
		return Entry{}, errors.New("audit entry has no action")
	}
	id := uuid.New()

	var created pgtype.Timestamptz
	err := s.db.QueryRow(ctx, insertSQL,
		id,
		string(e.Action),
		string(e.Severity),
		toPgText(e.SheetKey),
		toPgText(e.RecordID),
		toPgText(e.Outcome),
		toPgText(e.UserEmail),
		toPgAddr(e.IPAddress),
		toPgText(e.UserAgent),
		toPgText(e.Detail),
	).Scan(&created)
	if err != nil {
		return Entry{}, fmt.Errorf("insert audit entry: %w", err)
	}

	e.ID = id.String()
	e.CreatedAt = created.Time
	return e, nil
}

const listSQL = `
SELECT id, action, severity, sheet_key, record_id, outcome, user_email, ip_address, user_agent, detail, created_at
FROM audit_log
WHERE ($1::text IS NULL OR sheet_key = $1)
  AND ($2::text IS NULL OR action = $2)
  AND created_at >= $3
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`

// List returns entries newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	f.Limit = min(f.Limit, MaxLimit)
	f.Offset = max(f.Offset, 0)

	since := f.Since
	if since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}

	rows, err := s.db.Query(ctx, listSQL,
		toPgText(f.SheetKey),
		toPgText(string(f.Action)),
		since,
		int32(f.Limit),
		int32(f.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, f.Limit)
	for rows.Next() {
		var (
			id                                        pgtype.UUID
			action, severity                          string
			sheet, record, outcome, email, agent, det pgtype.Text
			ip                                        *netip.Addr
			created                                   pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &action, &severity, &sheet, &record, &outcome, &email, &ip, &agent, &det, &created); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e := Entry{
			ID:        uuidToString(id),
			Action:    Action(action),
			Severity:  Severity(severity),
			SheetKey:  sheet.String,
			RecordID:  record.String,
			Outcome:   outcome.String,
			UserEmail: email.String,
			UserAgent: agent.String,
			Detail:    det.String,
			CreatedAt: created.Time,
		}
		if ip != nil {
			e.IPAddress = ip.String()
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return out, nil
}

// PurgeBefore deletes entries created before cutoff and reports how many.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgAddr returns nil for empty or unparsable addresses; a bad client IP is
// not worth losing the entry over.
func toPgAddr(s string) *netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil
	}
	return &addr
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
