package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/audit"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine/auth"
	"brokerdesk/internal/mail"
	"brokerdesk/internal/repo"
)

// SystemActor is recorded as the actor of CLI bootstrap writes.
const SystemActor = "system"

type UserInput struct {
	Email       string
	Name        string
	Role        domain.Role
	Password    string
	AffiliateID *string
	ClientIDs   []string
}

// CreateUser provisions a user directly. It is the bootstrap path used by
// the CLI and is not exposed over HTTP.
func (e Engine) CreateUser(ctx context.Context, in UserInput) (domain.User, error) {
	email := normalizeEmail(in.Email)
	if err := required("email", email); err != nil {
		return domain.User{}, err
	}
	if err := required("name", in.Name); err != nil {
		return domain.User{}, err
	}
	if !in.Role.Valid() {
		return domain.User{}, badRequest("unknown role %q", in.Role).With("field", "role")
	}
	if in.Role == domain.RoleAffiliate && in.AffiliateID == nil {
		return domain.User{}, badRequest("affiliate users require an affiliate").With("field", "affiliateId")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		AffiliateID:  in.AffiliateID,
		PasswordHash: &hash,
		CreatedAt:    e.timestamp(),
	}
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, storeErr(err, "user")
	}
	for _, clientID := range in.ClientIDs {
		if err := e.Repo.LinkUserClient(ctx, tx, u.ID, clientID); err != nil {
			return domain.User{}, storeErr(err, "user client link")
		}
	}
	if _, err := e.Audit.Append(ctx, tx, audit.Entry{
		Action:       audit.Action("user", audit.ActionCreated),
		ResourceType: "user",
		ResourceID:   u.ID,
		ActorUserID:  SystemActor,
		After:        u,
		Metadata:     map[string]any{"clientIds": in.ClientIDs},
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, storeErr(err, "user")
	}
	return u, nil
}

func (e Engine) ListUsers(ctx context.Context, actorID string, page repo.Page) ([]domain.User, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !acc.IsStaff() {
		return nil, forbidden("role %s cannot list users", acc.Role)
	}
	return e.Repo.ListUsers(ctx, page)
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt" format:"date-time"`
	User      domain.User `json:"user"`
}

// Login checks credentials and issues a bearer token. Unknown emails and
// wrong passwords fail identically.
func (e Engine) Login(ctx context.Context, email, password string) (Session, error) {
	invalid := apperr.New(apperr.Unauthenticated, "invalid email or password")
	u, err := e.Repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, invalid
	}
	if err != nil {
		return Session{}, err
	}
	if u.PasswordHash == nil || !auth.VerifyPassword(*u.PasswordHash, password) {
		return Session{}, invalid
	}
	return e.IssueSession(u)
}

// IssueSession signs a token for u with the configured ttl.
func (e Engine) IssueSession(u domain.User) (Session, error) {
	ttl, err := e.Config.TokenTTL()
	if err != nil {
		return Session{}, err
	}
	now := e.now()
	token, err := auth.IssueToken(e.Config.Auth.JWTSecret, u.ID, u.Role, ttl, now)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: domain.Timestamp(now.Add(ttl)), User: u}, nil
}

type Me struct {
	domain.User
	ClientIDs    []string `json:"clientIds"`
	AffiliateIDs []string `json:"affiliateIds"`
}

func (e Engine) Me(ctx context.Context, actorID string) (Me, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return Me{}, err
	}
	u, err := e.Repo.GetUser(ctx, acc.UserID)
	if err != nil {
		return Me{}, loadErr(err, "user", acc.UserID)
	}
	return Me{User: u, ClientIDs: acc.ClientIDs, AffiliateIDs: acc.AffiliateIDs}, nil
}

type InvitationInput struct {
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	ClientID    *string     `json:"clientId,omitempty"`
	AffiliateID *string     `json:"affiliateId,omitempty"`
}

// InvitationCreated carries the raw token once; only its hash is stored.
type InvitationCreated struct {
	domain.Invitation
	Token     string `json:"token"`
	AcceptURL string `json:"acceptUrl"`
}

func (e Engine) CreateInvitation(ctx context.Context, actorID string, in InvitationInput) (InvitationCreated, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return InvitationCreated{}, err
	}
	email := normalizeEmail(in.Email)
	if err := required("email", email); err != nil {
		return InvitationCreated{}, err
	}
	if !in.Role.Valid() {
		return InvitationCreated{}, badRequest("unknown role %q", in.Role).With("field", "role")
	}
	switch {
	case in.Role == domain.RoleSuperAdmin && !acc.Is(domain.TopAdmin):
		return InvitationCreated{}, forbidden("only %s may invite %s", domain.RoleSuperAdmin, domain.RoleSuperAdmin)
	case acc.IsStaff():
	case acc.Role == domain.RoleClientAdmin && in.Role == domain.RoleAffiliate:
	default:
		return InvitationCreated{}, forbidden("role %s cannot invite %s", acc.Role, in.Role)
	}

	inv := domain.Invitation{
		ID:          uuid.NewString(),
		Email:       email,
		Role:        in.Role,
		CreatedByID: acc.UserID,
	}
	switch in.Role {
	case domain.RoleClientAdmin:
		if in.ClientID == nil {
			return InvitationCreated{}, badRequest("clientId is required for %s", in.Role).With("field", "clientId")
		}
		if err := e.checkClient(ctx, *in.ClientID); err != nil {
			return InvitationCreated{}, err
		}
		inv.ClientID = in.ClientID
	case domain.RoleAffiliate:
		if in.AffiliateID == nil {
			return InvitationCreated{}, badRequest("affiliateId is required for %s", in.Role).With("field", "affiliateId")
		}
		aff, err := e.Repo.GetAffiliate(ctx, *in.AffiliateID)
		if errors.Is(err, repo.ErrNotFound) {
			return InvitationCreated{}, badRequest("affiliate %s does not exist", *in.AffiliateID).With("field", "affiliateId")
		}
		if err != nil {
			return InvitationCreated{}, err
		}
		if !acc.CanSeeClient(aff.ClientID) {
			return InvitationCreated{}, notFound("affiliate", aff.ID)
		}
		inv.AffiliateID, inv.ClientID = &aff.ID, &aff.ClientID
	}
	if _, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return InvitationCreated{}, apperr.Newf(apperr.Conflict, "user %s already exists", email).With("field", "email")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return InvitationCreated{}, err
	}

	token, err := newToken()
	if err != nil {
		return InvitationCreated{}, err
	}
	ttl, err := e.Config.InviteTTL()
	if err != nil {
		return InvitationCreated{}, err
	}
	now := e.now()
	inv.TokenHash = repo.HashToken(token)
	inv.ExpiresAt = domain.Timestamp(now.Add(ttl))
	inv.CreatedAt = domain.Timestamp(now)
	if err := e.create(ctx, acc, "invitation", inv.ID, inv, func(tx *sqlx.Tx) error {
		return e.Repo.InsertInvitation(ctx, tx, inv)
	}); err != nil {
		return InvitationCreated{}, err
	}

	out := InvitationCreated{Invitation: inv, Token: token, AcceptURL: acceptURL(e.Config.Mail.AcceptURL, token)}
	msg := mail.Message{
		To:      email,
		Subject: "You have been invited to brokerdesk",
		Body:    fmt.Sprintf("You were invited as %s.\n\nAccept the invitation before %s:\n%s\n", in.Role, inv.ExpiresAt, out.AcceptURL),
	}
	if err := e.Mail.Send(ctx, msg); err != nil {
		e.Logger.WarnContext(ctx, "invitation mail failed", "invitation", inv.ID, "err", err)
	}
	return out, nil
}

type AcceptInput struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password" minLength:"8"`
}

// AcceptInvitation redeems a token and creates the invited user. The
// token is consumed in the same transaction that inserts the user.
func (e Engine) AcceptInvitation(ctx context.Context, in AcceptInput) (Session, error) {
	if err := required("token", in.Token); err != nil {
		return Session{}, err
	}
	if err := required("name", in.Name); err != nil {
		return Session{}, err
	}
	if len(in.Password) < 8 {
		return Session{}, badRequest("password must be at least 8 characters").With("field", "password")
	}
	inv, err := e.Repo.GetInvitationByTokenHash(ctx, repo.HashToken(in.Token))
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, badRequest("invitation token is invalid")
	}
	if err != nil {
		return Session{}, err
	}
	if inv.AcceptedAt != nil {
		return Session{}, badRequest("invitation was already accepted")
	}
	if inv.ExpiresAt <= e.timestamp() {
		return Session{}, badRequest("invitation expired at %s", inv.ExpiresAt)
	}
	if _, err := e.Repo.GetUserByEmail(ctx, inv.Email); err == nil {
		return Session{}, apperr.Newf(apperr.Conflict, "user %s already exists", inv.Email).With("field", "email")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return Session{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	now := e.timestamp()
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        inv.Email,
		Name:         strings.TrimSpace(in.Name),
		Role:         inv.Role,
		AffiliateID:  inv.AffiliateID,
		PasswordHash: &hash,
		CreatedAt:    now,
	}
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.MarkInvitationAccepted(ctx, tx, inv.ID, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Session{}, badRequest("invitation was already accepted")
		}
		return Session{}, err
	}
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return Session{}, storeErr(err, "user")
	}
	if u.Role == domain.RoleClientAdmin && inv.ClientID != nil {
		if err := e.Repo.LinkUserClient(ctx, tx, u.ID, *inv.ClientID); err != nil {
			return Session{}, storeErr(err, "user client link")
		}
	}
	if _, err := e.Audit.Append(ctx, tx, audit.Entry{
		Action:       audit.Action("invitation", audit.ActionAccepted),
		ResourceType: "invitation",
		ResourceID:   inv.ID,
		ActorUserID:  u.ID,
		After:        u,
		Metadata:     map[string]any{"role": u.Role, "invitedBy": inv.CreatedByID},
	}); err != nil {
		return Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return Session{}, storeErr(err, "user")
	}
	e.Logger.InfoContext(ctx, "invitation accepted", "invitation", inv.ID, "user", u.ID, "role", string(u.Role))
	return e.IssueSession(u)
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func acceptURL(base, token string) string {
	if base == "" {
		return token
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
