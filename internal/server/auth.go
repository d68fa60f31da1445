package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/engine/auth"
)

type AuthConfig struct {
	JWTSecret string
}

func actorIDFromContext(ctx context.Context) (string, huma.StatusError) {
	if a, ok := auth.FromContext(ctx); ok && a.UserID != "" {
		return a.UserID, nil
	}
	return "", newAPIError(http.StatusUnauthorized, "", "authentication required", nil)
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// publicPaths lists the routes under basePath that skip authentication.
func publicPaths(basePath string) map[string]bool {
	out := map[string]bool{}
	for _, p := range []string{"health", "auth/login", "invitations/accept", "openapi.json"} {
		out[path.Join(basePath, p)] = true
	}
	return out
}

// newAuthMiddleware resolves the bearer token into an auth.Access for the
// request. Routes outside basePath (docs, metrics) are left alone.
func newAuthMiddleware(basePath string, cfg AuthConfig, svc auth.Service) func(http.Handler) http.Handler {
	public := publicPaths(basePath)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath) || public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "", "authentication required", nil))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			userID, err := auth.ParseToken(token, cfg.JWTSecret)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			acc, err := svc.Resolve(req.Context(), userID)
			if apperr.IsKind(err, apperr.Unauthenticated) {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			if err != nil {
				respondStatusError(w, handleError(req.Context(), err))
				return
			}
			next.ServeHTTP(w, req.WithContext(auth.WithAccess(req.Context(), acc)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
