// Package auth resolves who is acting and what they may see.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/repo"
)

// Access is the resolved actor for one request.
type Access struct {
	UserID      string
	Role        domain.Role
	AffiliateID string
	// ClientIDs is nil for broker staff, who see every client.
	ClientIDs []string
	// AffiliateIDs is the owned affiliate plus dependents; nil unless AFFILIATE.
	AffiliateIDs []string
}

// IsStaff reports whether the actor is a broker employee.
func (a Access) IsStaff() bool {
	return domain.BrokerEmployees.Has(a.Role)
}

func (a Access) Is(set domain.RoleSet) bool {
	return set.Has(a.Role)
}

// ClientScope returns the client restriction for list queries, nil meaning none.
func (a Access) ClientScope() []string {
	if a.IsStaff() {
		return nil
	}
	if a.ClientIDs == nil {
		return []string{}
	}
	return a.ClientIDs
}

// AffiliateScope returns the affiliate restriction for list queries, nil meaning none.
func (a Access) AffiliateScope() []string {
	if a.Role != domain.RoleAffiliate {
		return nil
	}
	if a.AffiliateIDs == nil {
		return []string{}
	}
	return a.AffiliateIDs
}

func (a Access) CanSeeClient(clientID string) bool {
	if a.IsStaff() {
		return true
	}
	if !a.Is(domain.ScopedRoles) {
		return false
	}
	return slices.Contains(a.ClientIDs, clientID)
}

// CanSeeAffiliate narrows AFFILIATE actors to their own household.
func (a Access) CanSeeAffiliate(clientID, affiliateID string) bool {
	if !a.CanSeeClient(clientID) {
		return false
	}
	if a.Role == domain.RoleAffiliate {
		return slices.Contains(a.AffiliateIDs, affiliateID)
	}
	return true
}

type accessKey struct{}

func WithAccess(ctx context.Context, a Access) context.Context {
	return context.WithValue(ctx, accessKey{}, a)
}

func FromContext(ctx context.Context) (Access, bool) {
	a, ok := ctx.Value(accessKey{}).(Access)
	return a, ok
}

// Service resolves access from storage.
type Service struct {
	Repo repo.Repo
}

// Resolve loads the actor's role, owned affiliate and client links. An
// unknown user is Unauthenticated.
func (s Service) Resolve(ctx context.Context, userID string) (Access, error) {
	if strings.TrimSpace(userID) == "" {
		return Access{}, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	u, err := s.Repo.GetUser(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return Access{}, apperr.Newf(apperr.Unauthenticated, "unknown actor %s", userID)
	}
	if err != nil {
		return Access{}, fmt.Errorf("load actor: %w", err)
	}
	if !u.Role.Valid() {
		return Access{}, apperr.Newf(apperr.Unauthenticated, "actor %s has no valid role", userID)
	}
	a := Access{UserID: u.ID, Role: u.Role}
	switch u.Role {
	case domain.RoleClientAdmin:
		ids, err := s.Repo.ListUserClientIDs(ctx, u.ID)
		if err != nil {
			return Access{}, fmt.Errorf("load client links: %w", err)
		}
		a.ClientIDs = ids
	case domain.RoleAffiliate:
		a.ClientIDs, a.AffiliateIDs = []string{}, []string{}
		if u.AffiliateID == nil {
			break
		}
		aff, err := s.Repo.GetAffiliate(ctx, *u.AffiliateID)
		if errors.Is(err, repo.ErrNotFound) {
			break
		}
		if err != nil {
			return Access{}, fmt.Errorf("load affiliate: %w", err)
		}
		deps, err := s.Repo.ListDependentIDs(ctx, aff.ID)
		if err != nil {
			return Access{}, fmt.Errorf("load dependents: %w", err)
		}
		a.AffiliateID = aff.ID
		a.ClientIDs = []string{aff.ClientID}
		a.AffiliateIDs = append([]string{aff.ID}, deps...)
	}
	return a, nil
}

// Current returns the access injected by middleware when it belongs to
// userID, else resolves it.
func (s Service) Current(ctx context.Context, userID string) (Access, error) {
	if a, ok := FromContext(ctx); ok && a.UserID == userID && userID != "" {
		return a, nil
	}
	return s.Resolve(ctx, userID)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// IssueToken signs an HS256 token for the user.
func IssueToken(secret, userID string, role domain.Role, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates an HS256 token and returns its subject.
func ParseToken(token, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("subject claim required")
	}
	return claims.Subject, nil
}
