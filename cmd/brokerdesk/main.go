package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"brokerdesk/internal/app"
	"brokerdesk/internal/audit"
	"brokerdesk/internal/config"
	"brokerdesk/internal/db"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine"
	"brokerdesk/internal/lifecycle"
	"brokerdesk/internal/repo"
	"brokerdesk/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "brokerdesk",
	Short: "Brokerdesk CLI",
	Long: `Brokerdesk is the back office of an insurance brokerage.
- Clients are corporate accounts; affiliates are the employees and dependents they insure.
- Policies, claims, invoices and tickets each move through a lifecycle blueprint:
  every status says who may edit, which fields are open and which transitions need which fields.
- Every change is written to the audit log in the same transaction.
- 'brokerdesk serve' exposes the JSON API; the other commands act directly on the workspace database.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("BROKERDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("jwt-secret", "", "HMAC secret for bearer tokens")
	flags.String("db-driver", "", "database driver (sqlite, pgx, postgres)")
	flags.String("db-dsn", "", "database DSN for postgres drivers")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	for _, name := range []string{"workspace", "json", "jwt-secret", "db-driver", "db-dsn", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(blueprintCmd())
	rootCmd.AddCommand(auditCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write brokerdesk.yml and create the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Printf("%s already exists (use --force to overwrite)\n", path)
			} else {
				if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", path)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Printf("Database ready (%s)\n", e.Config.Database.Driver)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing brokerdesk.yml")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Println("Schema is up to date")
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg, logger, err := resolve(app.Overrides{Addr: addr, BasePath: basePath})
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("a JWT secret is required: set auth.jwt_secret, BROKERDESK_JWT_SECRET or --jwt-secret")
			}
			e, closeFn, err := app.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret},
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("shutdown", "err", err)
				}
			}()
			logger.Info("serving brokerdesk API",
				"addr", "http://"+cfg.Server.Addr+cfg.Server.BasePath,
				"openapi", cfg.Server.BasePath+"/openapi.json", "docs", "/docs")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides server.base_path)")
	return cmd
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage users"}
	u.AddCommand(userCreateCmd())
	u.AddCommand(userListCmd())
	return u
}

func userCreateCmd() *cobra.Command {
	var email, name, role, password, affiliateID string
	var clientIDs []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user (bootstrap the first SUPERADMIN with this)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, engine.UserInput{
					Email:       email,
					Name:        name,
					Role:        domain.Role(strings.ToUpper(role)),
					Password:    password,
					AffiliateID: optionalString(affiliateID),
					ClientIDs:   clientIDs,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleSuperAdmin), "role")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&affiliateID, "affiliate-id", "", "affiliate linked to an AFFILIATE user")
	cmd.Flags().StringSliceVar(&clientIDs, "client-id", nil, "client scope for CLIENT_ADMIN users (repeatable)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.Repo.ListUsers(ctx, repo.Page{Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Name", "Role", "Created"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Email, u.Name, u.Role, u.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows")
	return cmd
}

func tokenCmd() *cobra.Command {
	t := &cobra.Command{Use: "token", Short: "Bearer tokens"}
	var email string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if e.Config.Auth.JWTSecret == "" {
					return fmt.Errorf("a JWT secret is required to sign tokens")
				}
				u, err := e.Repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
				if err != nil {
					if errors.Is(err, repo.ErrNotFound) {
						return fmt.Errorf("no user with email %s", email)
					}
					return err
				}
				s, err := e.IssueSession(u)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Println(s.Token)
				return nil
			})
		},
	}
	issue.Flags().StringVar(&email, "email", "", "user email")
	_ = issue.MarkFlagRequired("email")
	t.AddCommand(issue)
	return t
}

func blueprintCmd() *cobra.Command {
	b := &cobra.Command{Use: "blueprint", Short: "Inspect lifecycle blueprints"}
	b.AddCommand(&cobra.Command{
		Use:       "show <entity>",
		Short:     "Show the status rules of an entity",
		Args:      cobra.ExactArgs(1),
		ValidArgs: lifecycle.Entities(),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp, ok := lifecycle.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown entity %q (known: %s)", args[0], strings.Join(lifecycle.Entities(), ", "))
			}
			export := bp.Export()
			if viper.GetBool("json") {
				return printJSON(export)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.SetTitle(fmt.Sprintf("%s (initial %s)", export.Entity, export.Initial))
			tw.AppendHeader(table.Row{"Status", "Editors", "Editable", "Transitions"})
			for _, s := range export.Statuses {
				var transitions []string
				for _, t := range s.Transitions {
					if len(t.Requires) == 0 {
						transitions = append(transitions, string(t.To))
						continue
					}
					transitions = append(transitions, fmt.Sprintf("%s [%s]", t.To, joinFields(t.Requires)))
				}
				editors := make([]string, 0, len(s.AllowedEditors))
				for _, r := range s.AllowedEditors {
					editors = append(editors, string(r))
				}
				tw.AppendRow(table.Row{
					s.Status,
					strings.Join(editors, "\n"),
					joinFields(s.EditableFields),
					strings.Join(transitions, "\n"),
				})
				tw.AppendSeparator()
			}
			tw.Render()
			return nil
		},
	})
	return b
}

func auditCmd() *cobra.Command {
	a := &cobra.Command{Use: "audit", Short: "Read the audit log"}
	var f audit.Filters
	list := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				logs, err := e.AuditLog.List(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					entries := make([]engine.AuditEntry, 0, len(logs))
					for _, l := range logs {
						before, after, meta, err := audit.Decode(l)
						if err != nil {
							return err
						}
						entries = append(entries, engine.AuditEntry{AuditLog: l, Before: before, After: after, Metadata: meta})
					}
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Action", "Resource", "Actor"})
				for _, l := range logs {
					tw.AppendRow(table.Row{l.CreatedAt, l.Action, l.ResourceType + "/" + l.ResourceID, l.ActorUserID})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&f.ResourceType, "resource-type", "", "resource type filter")
	list.Flags().StringVar(&f.ResourceID, "resource-id", "", "resource id filter")
	list.Flags().StringVar(&f.Action, "action", "", "action filter")
	list.Flags().StringVar(&f.ActorUserID, "actor", "", "actor user id filter")
	list.Flags().IntVar(&f.Limit, "n", 50, "number of entries")
	a.AddCommand(list)
	return a
}

// --- helpers ---

func resolve(o app.Overrides) (*config.Config, *slog.Logger, error) {
	workspace := viper.GetString("workspace")
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, nil, err
	}
	o.JWTSecret = viper.GetString("jwt-secret")
	o.DBDriver = viper.GetString("db-driver")
	o.DSN = viper.GetString("db-dsn")
	o.LogLevel = viper.GetString("log-level")
	o.LogFormat = viper.GetString("log-format")
	cfg, err := app.ResolveConfig(workspace, o)
	if err != nil {
		return nil, nil, err
	}
	logger, err := app.NewLogger(os.Stderr, cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, logger, err := resolve(app.Overrides{})
	if err != nil {
		return err
	}
	e, closeFn, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinFields(fields []lifecycle.Field) string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(f))
	}
	return strings.Join(out, ", ")
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
