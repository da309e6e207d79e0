package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/labtrack/internal/attachments"
	"github.com/JonMunkholm/labtrack/internal/audit"
	"github.com/JonMunkholm/labtrack/internal/records"
	"github.com/JonMunkholm/labtrack/internal/sheetstore"
)

var (
	// ErrUnknownSheet is returned for a sheet key missing from the registry.
	ErrUnknownSheet = errors.New("unknown sheet")

	// ErrWrongKind is returned when an exam operation addresses a recoleta
	// sheet or the reverse.
	ErrWrongKind = errors.New("operation does not match sheet kind")

	// ErrFileTooLarge is returned for attachments above the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFiles is returned when an upload carries no file.
	ErrNoFiles = errors.New("no file provided")

	// ErrAuditDisabled is returned by AuditLog without an audit store.
	ErrAuditDisabled = errors.New("audit log disabled")

	// ErrForbidden is returned when the caller's role does not allow an action.
	ErrForbidden = errors.New("forbidden")
)

// DefaultMaxFileSize bounds one attachment.
const DefaultMaxFileSize = 20 << 20

const auditWriteTimeout = 5 * time.Second

// AuditStore persists the mutation trail. *audit.Store implements it.
type AuditStore interface {
	Insert(ctx context.Context, e audit.Entry) (audit.Entry, error)
	List(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventObserver counts service events outside the store operations.
// *metrics.Collector implements it.
type EventObserver interface {
	ObserveUpload(outcome string)
	AuditWriteFailed()
}

// Deps holds everything NewService wires together. Backend, Registry and
// Uploader are required; the rest are optional.
type Deps struct {
	Backend  sheetstore.Backend
	Registry *Registry
	Uploader attachments.Uploader

	// Audit is nil when no database is configured.
	Audit AuditStore

	Limiter       *UploadLimiter
	StoreObserver sheetstore.Observer
	Events        EventObserver

	// Location interprets sheet dates. Defaults to UTC.
	Location     *time.Location
	StrictUpdate bool
	MaxFileSize  int64
	Logger       *slog.Logger

	// NewID replaces the UUID generator; tests use it for stable ids.
	NewID func() string
	// Now replaces time.Now.
	Now func() time.Time
}

// Service provides the lab record operations over every configured sheet.
type Service struct {
	registry  *Registry
	exams     map[string]*sheetstore.Store[records.Exam]
	recoletas map[string]*sheetstore.Store[records.Recoleta]

	uploader    attachments.Uploader
	limiter     *UploadLimiter
	maxFileSize int64

	audit  AuditStore
	events EventObserver
	log    *slog.Logger
	now    func() time.Time
}

// NewService builds one store per registered sheet.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Backend == nil:
		return nil, fmt.Errorf("%w: nil backend", sheetstore.ErrConfiguration)
	case d.Registry == nil || d.Registry.Len() == 0:
		return nil, fmt.Errorf("%w: no sheets configured", sheetstore.ErrConfiguration)
	case d.Uploader == nil:
		return nil, fmt.Errorf("%w: nil attachment uploader", sheetstore.ErrConfiguration)
	}

	s := &Service{
		registry:    d.Registry,
		exams:       make(map[string]*sheetstore.Store[records.Exam]),
		recoletas:   make(map[string]*sheetstore.Store[records.Recoleta]),
		uploader:    d.Uploader,
		limiter:     d.Limiter,
		maxFileSize: d.MaxFileSize,
		audit:       d.Audit,
		events:      d.Events,
		log:         d.Logger,
		now:         d.Now,
	}
	if s.limiter == nil {
		s.limiter = NewUploadLimiter(DefaultMaxConcurrentUploads, DefaultMaxWaitTime)
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = DefaultMaxFileSize
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}

	opts := []sheetstore.Option{sheetstore.WithLogger(s.log)}
	if d.StrictUpdate {
		opts = append(opts, sheetstore.WithStrictUpdate())
	}
	if d.StoreObserver != nil {
		opts = append(opts, sheetstore.WithObserver(d.StoreObserver))
	}
	if d.NewID != nil {
		opts = append(opts, sheetstore.WithIDGenerator(d.NewID))
	}

	for _, sh := range d.Registry.All() {
		cfg := sheetstore.Config{
			Name:          sh.Key,
			SpreadsheetID: sh.SpreadsheetID,
			Layout:        sheetstore.Layout{Title: sh.Title},
		}
		var err error
		switch sh.Kind {
		case records.KindExam:
			s.exams[sh.Key], err = sheetstore.New[records.Exam](d.Backend, cfg, sheetstore.ExamCodec{Location: loc}, opts...)
		case records.KindRecoleta:
			s.recoletas[sh.Key], err = sheetstore.New[records.Recoleta](d.Backend, cfg, sheetstore.RecoletaCodec{}, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sh.Key, err)
		}
	}
	return s, nil
}

// Sheets returns the configured sheets in order.
func (s *Service) Sheets() []Sheet {
	return s.registry.All()
}

// Sheet returns one configured sheet.
func (s *Service) Sheet(key string) (Sheet, error) {
	sh, ok := s.registry.Get(key)
	if !ok {
		return Sheet{}, fmt.Errorf("%w: %s", ErrUnknownSheet, key)
	}
	return sh, nil
}

func (s *Service) examStore(key string) (*sheetstore.Store[records.Exam], error) {
	if st, ok := s.exams[key]; ok {
		return st, nil
	}
	if _, ok := s.recoletas[key]; ok {
		return nil, fmt.Errorf("%w: %s holds recoletas", ErrWrongKind, key)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSheet, key)
}

func (s *Service) recoletaStore(key string) (*sheetstore.Store[records.Recoleta], error) {
	if st, ok := s.recoletas[key]; ok {
		return st, nil
	}
	if _, ok := s.exams[key]; ok {
		return nil, fmt.Errorf("%w: %s holds exams", ErrWrongKind, key)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSheet, key)
}

// ----------------------------------------------------------------------------
// Exams
// ----------------------------------------------------------------------------

// ListExams returns the exams of a sheet in row order, filtered by q.
func (s *Service) ListExams(ctx context.Context, key string, q ExamQuery) ([]records.Exam, error) {
	st, err := s.examStore(key)
	if err != nil {
		return nil, err
	}
	list, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterExams(list, q), nil
}

// AppendExam validates e and adds it with a fresh id.
func (s *Service) AppendExam(ctx context.Context, key string, e records.Exam) (records.Exam, error) {
	st, err := s.examStore(key)
	if err != nil {
		return records.Exam{}, err
	}
	if err := ValidateExam(e, s.now()); err != nil {
		return records.Exam{}, err
	}
	out, err := st.Append(ctx, e)
	if err != nil {
		return records.Exam{}, err
	}
	s.recordAudit(ctx, auditParams{
		Action:   audit.ActionRecordAppend,
		SheetKey: key,
		RecordID: out.ID,
		Outcome:  "ok",
	})
	return out, nil
}

// UpdateExam overwrites the row carrying e.ID. A miss appends e unless the
// service runs with strict updates.
func (s *Service) UpdateExam(ctx context.Context, key string, e records.Exam) (MutationResult[records.Exam], error) {
	st, err := s.examStore(key)
	if err != nil {
		return MutationResult[records.Exam]{}, err
	}
	if err := ValidateExam(e, s.now()); err != nil {
		return MutationResult[records.Exam]{}, err
	}
	out, outcome, err := st.Update(ctx, e)
	if err != nil {
		return MutationResult[records.Exam]{}, err
	}
	s.recordAudit(ctx, auditParams{
		Action:   audit.ActionRecordUpdate,
		SheetKey: key,
		RecordID: out.ID,
		Outcome:  outcome.String(),
		Detail:   previousID(e.ID, out.ID),
	})
	return MutationResult[records.Exam]{
		Record:   out,
		Outcome:  outcome.String(),
		Appended: outcome == sheetstore.OutcomeAppended,
	}, nil
}

// DeleteExam removes the row carrying id. It reports false when no row
// matched.
func (s *Service) DeleteExam(ctx context.Context, key, id string) (bool, error) {
	st, err := s.examStore(key)
	if err != nil {
		return false, err
	}
	removed, err := st.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	s.recordAudit(ctx, auditParams{
		Action:   audit.ActionRecordDelete,
		SheetKey: key,
		RecordID: id,
		Outcome:  deleteOutcome(removed),
	})
	return removed, nil
}

// PublicExams returns one page of the read-only view. Only public exam
// sheets are served, and only the public fields leave this function.
func (s *Service) PublicExams(ctx context.Context, key string, q PublicQuery) (PublicPage, error) {
	sh, ok := s.registry.Get(key)
	if !ok || !sh.Public || sh.Kind != records.KindExam {
		return PublicPage{}, fmt.Errorf("%w: %s", ErrUnknownSheet, key)
	}
	list, err := s.ListExams(ctx, key, q.ExamQuery)
	if err != nil {
		return PublicPage{}, err
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	start := (page - 1) * size
	if start > len(list) {
		start = len(list)
	}
	end := min(start+size, len(list))

	items := make([]PublicExam, 0, end-start)
	for _, e := range list[start:end] {
		items = append(items, PublicExam{
			PatientName:  e.PatientName,
			ReceivedDate: e.ReceivedDate,
			WithdrawnBy:  e.WithdrawnBy,
		})
	}
	return PublicPage{
		Sheet:    key,
		Items:    items,
		Page:     page,
		PageSize: size,
		Total:    len(list),
	}, nil
}

// Report selects exams of a sheet for the report export.
func (s *Service) Report(ctx context.Context, key string, f ReportFilter) ([]records.Exam, error) {
	st, err := s.examStore(key)
	if err != nil {
		return nil, err
	}
	list, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	return SelectReport(list, f), nil
}

// ----------------------------------------------------------------------------
// Recoletas
// ----------------------------------------------------------------------------

// ListRecoletas returns the recoletas of a sheet matching q on patient or UBS.
func (s *Service) ListRecoletas(ctx context.Context, key, q string) ([]records.Recoleta, error) {
	st, err := s.recoletaStore(key)
	if err != nil {
		return nil, err
	}
	list, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterRecoletas(list, q), nil
}

// AppendRecoleta validates r and adds it with a fresh id.
func (s *Service) AppendRecoleta(ctx context.Context, key string, r records.Recoleta) (records.Recoleta, error) {
	st, err := s.recoletaStore(key)
	if err != nil {
		return records.Recoleta{}, err
	}
	if err := ValidateRecoleta(r); err != nil {
		return records.Recoleta{}, err
	}
	out, err := st.Append(ctx, r)
	if err != nil {
		return records.Recoleta{}, err
	}
	s.recordAudit(ctx, auditParams{
		Action:   audit.ActionRecordAppend,
		SheetKey: key,
		RecordID: out.ID,
		Outcome:  "ok",
	})
	return out, nil
}

// UpdateRecoleta overwrites the row carrying r.ID, appending on a miss.
func (s *Service) UpdateRecoleta(ctx context.Context, key string, r records.Recoleta) (MutationResult[records.Recoleta], error) {
	st, err := s.recoletaStore(key)
	if err != nil {
		return MutationResult[records.Recoleta]{}, err
	}
	if err := ValidateRecoleta(r); err != nil {
		return MutationResult[records.Recoleta]{}, err
	}
	out, outcome, err := st.Update(ctx, r)
	if err != nil {
		return MutationResult[records.Recoleta]{}, err
	}
	s.recordAudit(ctx, auditParams{
		Action:   audit.ActionRecordUpdate,
		SheetKey: key,
		RecordID: out.ID,
		Outcome:  outcome.String(),
		Detail:   previousID(r.ID, out.ID),
	})
	return MutationResult[records.Recoleta]{
		Record:   out,
		Outcome:  outcome.String(),
		Appended: outcome == sheetstore.OutcomeAppended,
	}, nil
}

// DeleteRecoleta removes the row carrying id.
func (s *Service) DeleteRecoleta(ctx context.Context, key, id string) (bool, error) {
	st, err := s.recoletaStore(key)
	if err != nil {
		return false, err
	}
	removed, err := st.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	s.recordAudit(ctx, auditParams{
		Action:   audit.ActionRecordDelete,
		SheetKey: key,
		RecordID: id,
		Outcome:  deleteOutcome(removed),
	})
	return removed, nil
}

// ----------------------------------------------------------------------------
// Sheet maintenance
// ----------------------------------------------------------------------------

// InitSheet writes the header row of an empty sheet. It reports whether
// anything was written.
func (s *Service) InitSheet(ctx context.Context, key string) (bool, error) {
	var (
		wrote bool
		err   error
	)
	if st, ok := s.exams[key]; ok {
		wrote, err = st.EnsureHeader(ctx)
	} else if st, ok := s.recoletas[key]; ok {
		wrote, err = st.EnsureHeader(ctx)
	} else {
		return false, fmt.Errorf("%w: %s", ErrUnknownSheet, key)
	}
	if err != nil {
		return false, err
	}
	if wrote {
		s.recordAudit(ctx, auditParams{Action: audit.ActionHeaderInit, SheetKey: key, Outcome: "ok"})
	}
	return wrote, nil
}

// ----------------------------------------------------------------------------
// Attachments
// ----------------------------------------------------------------------------

// UploadAttachments stores every file concurrently and returns the
// attachments in input order. The first failure cancels the rest.
func (s *Service) UploadAttachments(ctx context.Context, files []AttachmentFile) ([]records.Attachment, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	for _, f := range files {
		if f.Size > s.maxFileSize {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, f.Name, f.Size, s.maxFileSize)
		}
		if attachments.PublicID(f.Name) == "" {
			return nil, fmt.Errorf("%w: empty file name", attachments.ErrInvalidFile)
		}
	}

	out := make([]records.Attachment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			if err := s.limiter.Acquire(gctx); err != nil {
				return err
			}
			defer s.limiter.Release()

			att, err := s.uploader.Upload(gctx, f.Name, f.ContentType, f.Body)
			if err != nil {
				s.observeUpload("error")
				return fmt.Errorf("upload %s: %w", f.Name, err)
			}
			s.observeUpload("ok")
			out[i] = att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, len(out))
	for i, a := range out {
		names[i] = a.Name
	}
	s.recordAudit(ctx, auditParams{
		Action:  audit.ActionAttachmentUpload,
		Outcome: "ok",
		Detail:  strings.Join(names, ", "),
	})
	return out, nil
}

// WaitForUploads blocks until in-flight uploads finish or ctx ends.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) observeUpload(outcome string) {
	if s.events != nil {
		s.events.ObserveUpload(outcome)
	}
}

func deleteOutcome(removed bool) string {
	if removed {
		return "deleted"
	}
	return "absent"
}

// previousID notes the submitted id when an update appended under a new one.
func previousID(submitted, stored string) string {
	if submitted == stored {
		return ""
	}
	return "submitted id " + submitted
}
