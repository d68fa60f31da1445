// Package app assembles configuration, storage and the engine for the CLI
// and the server process.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"brokerdesk/internal/blob"
	"brokerdesk/internal/config"
	"brokerdesk/internal/db"
	"brokerdesk/internal/engine"
	"brokerdesk/internal/mail"
	"brokerdesk/internal/migrate"
)

// Overrides are flag or environment values layered over brokerdesk.yml.
// Empty fields keep the file value.
type Overrides struct {
	Addr      string
	BasePath  string
	JWTSecret string
	DBDriver  string
	DSN       string
	LogLevel  string
	LogFormat string
}

// ResolveConfig loads brokerdesk.yml from workspace, falling back to the
// defaults when it does not exist, then applies overrides and validates.
func ResolveConfig(workspace string, o Overrides) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Server.Addr, o.Addr)
	set(&cfg.Server.BasePath, o.BasePath)
	set(&cfg.Auth.JWTSecret, o.JWTSecret)
	set(&cfg.Database.Driver, o.DBDriver)
	set(&cfg.Database.DSN, o.DSN)
	set(&cfg.Log.Level, o.LogLevel)
	set(&cfg.Log.Format, o.LogFormat)
	if cfg.Database.Workspace == "" || cfg.Database.Workspace == "." {
		cfg.Database.Workspace = workspace
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the process logger: colored text for terminals, JSON
// lines when log.format is json.
func NewLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := charmLog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	formatter := charmLog.TextFormatter
	if cfg.Format == "json" {
		formatter = charmLog.JSONFormatter
	}
	handler := charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          "brokerdesk",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})
	return slog.New(handler), nil
}

// Open connects the configured database, applies migrations and builds an
// engine with the configured blob store and mailer. The returned close
// func releases the connection.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Engine, func() error, error) {
	conn, err := db.Open(db.Config{
		Driver:    cfg.Database.Driver,
		DSN:       cfg.Database.DSN,
		Workspace: cfg.Database.Workspace,
	})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	store, err := blob.Open(ctx, cfg.Storage)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	sender, err := mail.Open(cfg.Mail, logger)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	e := engine.New(conn, cfg,
		engine.WithLogger(logger),
		engine.WithBlob(store),
		engine.WithMailer(sender),
	)
	logger.DebugContext(ctx, "engine ready",
		"db", cfg.Database.Driver, "storage", store.Driver(), "mail", cfg.Mail.Driver)
	return e, conn.Close, nil
}
