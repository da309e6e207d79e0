// Package application wires configuration into a running lab service. Both
// the HTTP server and labctl build their dependencies here.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/labtrack/internal/attachments"
	"github.com/JonMunkholm/labtrack/internal/audit"
	"github.com/JonMunkholm/labtrack/internal/auth"
	"github.com/JonMunkholm/labtrack/internal/config"
	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/metrics"
	"github.com/JonMunkholm/labtrack/internal/records"
	"github.com/JonMunkholm/labtrack/internal/sheets"
	"github.com/JonMunkholm/labtrack/internal/sheetstore"
)

// Spreadsheet ids used by the memory backend when none are configured.
const (
	DemoSaoLucasID = "demo-sao-lucas"
	DemoSaoJoaoID  = "demo-sao-joao"
	DemoRecoletaID = "demo-recoleta"
)

// Sheet keys, as they appear in URLs and the CLI.
const (
	SheetSaoLucas = "sao-lucas"
	SheetSaoJoao  = "sao-joao"
	SheetRecoleta = "recoleta"
)

// App holds the wired dependencies.
type App struct {
	Config   *config.Config
	Service  *core.Service
	Metrics  *metrics.Collector
	Location *time.Location

	// Files serves uploaded files in memory mode; nil otherwise.
	Files http.Handler

	// Sessions and Users are nil when no users are configured.
	Sessions *auth.SessionManager
	Users    *auth.Directory

	// Breaker is nil with the memory backend.
	Breaker *sheets.Guarded

	log     *slog.Logger
	closers []func()
}

// Options tweaks Build for the caller.
type Options struct {
	// SkipAudit runs without the database even when one is configured.
	SkipAudit bool
	// MetricsNamespace prefixes every metric (default: labtrack).
	MetricsNamespace string
}

// Build wires cfg into an App. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.MetricsNamespace == "" {
		opts.MetricsNamespace = "labtrack"
	}

	loc, err := cfg.Sheets.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Sheets.Timezone, err)
	}

	a := &App{
		Config:   cfg,
		Metrics:  metrics.NewCollector(opts.MetricsNamespace),
		Location: loc,
		log:      log,
	}

	backend, err := a.buildBackend(ctx)
	if err != nil {
		return nil, err
	}

	registry, err := BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	uploader, err := a.buildUploader(ctx)
	if err != nil {
		return nil, err
	}

	deps := core.Deps{
		Backend:       backend,
		Registry:      registry,
		Uploader:      uploader,
		Limiter:       core.NewUploadLimiter(cfg.Attachments.MaxConcurrent, cfg.Attachments.MaxWaitTime),
		StoreObserver: a.Metrics,
		Events:        a.Metrics,
		Location:      loc,
		StrictUpdate:  cfg.Sheets.StrictUpdate,
		MaxFileSize:   cfg.Attachments.MaxFileSize,
		Logger:        log,
	}

	if cfg.Audit.Enabled() && !opts.SkipAudit {
		store, err := a.buildAudit(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Audit = store
	}

	a.Service, err = core.NewService(deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create service: %w", err)
	}

	if err := a.buildAuth(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the database pool.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) buildBackend(ctx context.Context) (sheetstore.Backend, error) {
	sc := a.Config.Sheets
	switch sc.Backend {
	case config.SheetsMemory:
		mem := sheets.NewMemory()
		mem.AddSheet(orDefault(sc.SaoLucasID, DemoSaoLucasID), sc.Title, sheets.DemoExamRows())
		mem.AddSheet(orDefault(sc.SaoJoaoID, DemoSaoJoaoID), sc.Title, [][]string{sheetstore.ExamColumns})
		mem.AddSheet(orDefault(sc.RecoletaID, DemoRecoletaID), sc.Title, sheets.DemoRecoletaRows())
		a.log.Warn("using in-memory spreadsheets, changes are lost on exit")
		return mem, nil

	case config.SheetsGoogle:
		g, err := sheets.NewGoogle(ctx, sheets.GoogleConfig{
			CredentialsBase64: sc.CredentialsBase64,
			CallTimeout:       sc.CallTimeout,
			Logger:            a.log,
		})
		if err != nil {
			return nil, err
		}
		a.Breaker = sheets.NewGuarded(g, sheets.BreakerConfig{
			Name:                "sheets",
			ConsecutiveFailures: uint32(sc.BreakerFailures),
			OpenTimeout:         sc.BreakerOpenTimeout,
			HalfOpenRequests:    uint32(sc.BreakerHalfOpenRequests),
		}, a.Metrics, a.log)
		return a.Breaker, nil

	default:
		return nil, fmt.Errorf("%w: unknown sheets backend %q", sheetstore.ErrConfiguration, sc.Backend)
	}
}

// BuildRegistry lists the configured sheets. With the memory backend,
// missing ids fall back to the demo spreadsheets; otherwise sheets without
// an id are left out.
func BuildRegistry(cfg *config.Config) (*core.Registry, error) {
	sc := cfg.Sheets
	demo := sc.Backend == config.SheetsMemory

	candidates := []struct {
		sheet  core.Sheet
		demoID string
	}{
		{core.Sheet{Key: SheetSaoLucas, Label: "São Lucas", Kind: records.KindExam, SpreadsheetID: sc.SaoLucasID, Public: true}, DemoSaoLucasID},
		{core.Sheet{Key: SheetSaoJoao, Label: "São João", Kind: records.KindExam, SpreadsheetID: sc.SaoJoaoID}, DemoSaoJoaoID},
		{core.Sheet{Key: SheetRecoleta, Label: "Recoleta", Kind: records.KindRecoleta, SpreadsheetID: sc.RecoletaID}, DemoRecoletaID},
	}

	var list []core.Sheet
	for _, c := range candidates {
		if c.sheet.SpreadsheetID == "" && demo {
			c.sheet.SpreadsheetID = c.demoID
		}
		if c.sheet.SpreadsheetID == "" {
			continue
		}
		c.sheet.Title = sc.Title
		list = append(list, c.sheet)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no spreadsheet ids configured", sheetstore.ErrConfiguration)
	}
	return core.NewRegistry(list...)
}

func (a *App) buildUploader(ctx context.Context) (attachments.Uploader, error) {
	ac := a.Config.Attachments
	switch ac.Backend {
	case config.AttachmentsCloudinary:
		return attachments.NewCloudinary(attachments.CloudinaryConfig{
			CloudName: ac.CloudName,
			APIKey:    ac.APIKey,
			APISecret: ac.APISecret,
			Folder:    ac.Folder,
			Logger:    a.log,
		})
	case config.AttachmentsS3:
		return attachments.NewS3(ctx, attachments.S3Config{
			Bucket:        ac.S3Bucket,
			Region:        ac.S3Region,
			Prefix:        ac.S3Prefix,
			PublicBaseURL: ac.S3PublicBaseURL,
			Logger:        a.log,
		})
	case config.AttachmentsMemory:
		mem := attachments.NewMemory("/files")
		a.Files = mem
		return mem, nil
	default:
		return nil, fmt.Errorf("%w: unknown attachments backend %q", sheetstore.ErrConfiguration, ac.Backend)
	}
}

func (a *App) buildAudit(ctx context.Context) (*audit.Store, error) {
	ac := a.Config.Audit

	poolConfig, err := pgxpool.ParseConfig(ac.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(ac.MaxConns)
	poolConfig.MinConns = int32(ac.MinConns)
	poolConfig.MaxConnLifetime = ac.MaxConnLifetime
	poolConfig.MaxConnIdleTime = ac.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(ac.DatabaseURL); err == nil {
		a.log.Info("connected to audit database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	store := audit.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return store, nil
}

func (a *App) buildAuth() error {
	sc := a.Config.Security
	if len(sc.Users) == 0 {
		if a.Config.Sheets.Backend != config.SheetsMemory {
			return errors.New("AUTH_USERS is required outside demo mode")
		}
		a.log.Warn("no users configured, every request runs as the demo admin")
		return nil
	}

	users, err := auth.ParseUsers(strings.Join(sc.Users, ","))
	if err != nil {
		return err
	}
	a.Users = auth.NewDirectory(users)
	a.Sessions, err = auth.NewSessionManager(sc.SessionSecret, "labtrack", sc.SessionTTL, sc.SecureCookie)
	if err != nil {
		return err
	}
	a.log.Info("logins enabled", "users", a.Users.Len())
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
