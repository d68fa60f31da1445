package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/engine"
	"brokerdesk/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
}

// apiError is the error envelope every endpoint returns.
type apiError struct {
	status  int
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"missing required fields for DRAFT -> VALIDATION: careType"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"fields\":[\"careType\"]}"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

// maxBodyBytes matches huma's default request body limit.
const maxBodyBytes = 1 << 20

type requestKey struct{}
type bodyBytesKey struct{}
type loggerKey struct{}

// New returns an HTTP handler exposing the brokerdesk API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = cfg.Engine.Logger
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Auth.JWTSecret == "" && cfg.Engine.Config != nil {
		cfg.Auth.JWTSecret = cfg.Engine.Config.Auth.JWTSecret
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// request schema violations are plain bad requests
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				msg := "could not read request body"
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					msg = fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes)
				}
				respondStatusError(w, newAPIError(http.StatusBadRequest, "", msg, nil))
				return
			}
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Auth))
	hcfg := huma.DefaultConfig("brokerdesk API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	if cfg.Engine.Metrics != nil {
		router.Handle("/metrics", cfg.Engine.Metrics.Handler())
	}
	registerHealth(group)
	registerSession(group, cfg.Engine)
	registerClients(group, cfg.Engine)
	registerAffiliates(group, cfg.Engine)
	registerInsurers(group, cfg.Engine)
	registerPolicies(group, cfg.Engine)
	registerClaims(group, cfg.Engine)
	registerInvoices(group, cfg.Engine)
	registerTickets(group, cfg.Engine)
	registerInvitations(group, cfg.Engine)
	registerAttachments(group, cfg.Engine)
	registerAudit(group, cfg.Engine)
	registerLifecycle(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// handleError maps service errors onto the envelope. Unclassified errors
// are logged and hidden behind a generic message.
func handleError(ctx context.Context, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	status := 0
	switch apperr.KindOf(err) {
	case apperr.Unauthenticated:
		status = http.StatusUnauthorized
	case apperr.Forbidden:
		status = http.StatusForbidden
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.BadRequest:
		status = http.StatusBadRequest
	case apperr.Conflict:
		status = http.StatusConflict
	}
	if status != 0 {
		if errors.Unwrap(err) != nil {
			loggerFrom(ctx).DebugContext(ctx, "request rejected", "status", status, "err", err)
		}
		return newAPIError(status, "", apperr.MessageOf(err), apperr.DetailsOf(err))
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "", "not found", nil)
	}
	loggerFrom(ctx).ErrorContext(ctx, "request failed", "err", err)
	return newAPIError(http.StatusInternalServerError, "", "internal error", nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	public := publicPaths(basePath)
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if public[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func operations(item *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{
		item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
	} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>brokerdesk API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; from POST /auth/login.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*body[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

// body wraps a response payload.
type body[T any] struct {
	Body T `json:"body"`
}

func reply[T any](v T) *body[T] { return &body[T]{Body: v} }

// page is a cursor-paged list response.
type page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type ListParams struct {
	Limit  int    `query:"limit" doc:"Page size (default 50, max 200)"`
	Cursor string `query:"cursor" doc:"Opaque cursor from a previous page"`
}

// repoPage turns list params into a repo page fetching one extra row so
// the caller can tell whether another page exists.
func (p ListParams) repoPage() (repo.Page, int, error) {
	limit := normalizeLimit(p.Limit)
	ts, id, err := parseCompositeCursor(p.Cursor)
	if err != nil {
		return repo.Page{}, 0, newAPIError(http.StatusBadRequest, "", err.Error(), map[string]any{"field": "cursor"})
	}
	return repo.Page{Limit: limit + 1, CursorCreatedAt: ts, CursorID: id}, limit, nil
}

func paginate[T any](items []T, limit int, key func(T) (string, string)) page[T] {
	out := page[T]{Items: items}
	if out.Items == nil {
		out.Items = []T{}
	}
	if len(items) > limit {
		out.Items = items[:limit]
		out.NextCursor = composeCursor(key(items[limit-1]))
	}
	return out
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

// decodePatch reads the raw request body so explicit nulls and exact
// numbers survive into the lifecycle edit.
func decodePatch(ctx context.Context) (engine.Patch, error) {
	data := bytes.TrimSpace(bodyBytes(ctx))
	if len(data) == 0 {
		return nil, newAPIError(http.StatusBadRequest, "", "body required", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var patch engine.Patch
	if err := dec.Decode(&patch); err != nil || patch == nil {
		return nil, newAPIError(http.StatusBadRequest, "", "body must be a JSON object", nil)
	}
	return patch, nil
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}
