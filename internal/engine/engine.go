package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/audit"
	"brokerdesk/internal/blob"
	"brokerdesk/internal/config"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine/auth"
	"brokerdesk/internal/mail"
	"brokerdesk/internal/metrics"
	"brokerdesk/internal/repo"
)

type Engine struct {
	DB       *sqlx.DB
	Repo     repo.Repo
	Audit    audit.Writer
	AuditLog audit.Reader
	Auth     auth.Service
	Blob     blob.Store
	Mail     mail.Sender
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Config   *config.Config
	Now      func() time.Time
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

func WithBlob(s blob.Store) Option {
	return func(e *Engine) { e.Blob = s }
}

func WithMailer(s mail.Sender) Option {
	return func(e *Engine) { e.Mail = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.Metrics = m }
}

func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.Now = now }
}

func New(db *sqlx.DB, cfg *config.Config, opts ...Option) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	r := repo.Repo{DB: db}
	e := Engine{
		DB:       db,
		Repo:     r,
		AuditLog: audit.Reader{DB: db},
		Auth:     auth.Service{Repo: r},
		Config:   cfg,
		Logger:   slog.New(slog.DiscardHandler),
		Tracer:   otel.Tracer("brokerdesk/engine"),
		Now:      time.Now,
	}
	for _, opt := range opts {
		opt(&e)
	}
	if e.Blob == nil {
		e.Blob = blob.NewMemory(cfg.Storage.Bucket)
	}
	if e.Mail == nil {
		e.Mail = mail.Log{Logger: e.Logger, From: cfg.Mail.From}
	}
	if e.Metrics == nil {
		e.Metrics = metrics.New()
	}
	e.Audit = audit.Writer{Now: e.now}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return domain.Timestamp(e.now())
}

func notFound(entity, id string) error {
	return apperr.Newf(apperr.NotFound, "%s %s not found", entity, id).With("id", id)
}

// loadErr turns a repo miss into NotFound and wraps anything else.
func loadErr(err error, entity, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return notFound(entity, id)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

// storeErr classifies a failed write.
func storeErr(err error, entity string) error {
	if repo.IsUniqueViolation(err) {
		if field := repo.UniqueField(err); field != "" {
			return apperr.Wrap(err, apperr.Conflict, fmt.Sprintf("a %s with this %s already exists", entity, field)).
				With("field", field)
		}
		return apperr.Wrap(err, apperr.Conflict, entity+" conflicts with an existing record")
	}
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.Newf(apperr.NotFound, "%s not found", entity)
	}
	return fmt.Errorf("write %s: %w", entity, err)
}

func forbidden(format string, args ...any) error {
	return apperr.Newf(apperr.Forbidden, format, args...)
}

func badRequest(format string, args ...any) *apperr.Error {
	return apperr.Newf(apperr.BadRequest, format, args...)
}

// reference builds a human-friendly number such as CLM-20240301-3F9A2C.
func reference(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return badRequest("%s is required", field).With("field", field)
	}
	return nil
}
