package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/audit"
	"brokerdesk/internal/config"
	"brokerdesk/internal/db"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine"
	"brokerdesk/internal/mail"
	"brokerdesk/internal/migrate"
	"brokerdesk/internal/repo"
)

const testPassword = "correct horse"

// clock ticks one millisecond per read so created_at ordering is stable.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Clock  *clock
	Outbox *mail.Outbox

	Super, ClaimsMgr, AccountMgr, ClientAdmin, AffUser domain.User

	ClientA, ClientB        domain.Client
	AffA, AffA2, DepA, AffB domain.Affiliate
	Insurer                 domain.Insurer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Mail.AcceptURL = "https://portal.example.com/accept"
	env := &testEnv{
		Ctx:    context.Background(),
		Clock:  &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		Outbox: &mail.Outbox{},
	}
	env.Engine = engine.New(conn, cfg, engine.WithNow(env.Clock.Now), engine.WithMailer(env.Outbox))

	env.Super = env.user(t, "root@broker.test", domain.RoleSuperAdmin, nil)
	env.ClaimsMgr = env.user(t, "claims@broker.test", domain.RoleClaimsManager, nil)
	env.AccountMgr = env.user(t, "accounts@broker.test", domain.RoleAccountManager, nil)

	env.ClientA = env.client(t, "Acme", "TAX-A")
	env.ClientB = env.client(t, "Globex", "TAX-B")
	env.AffA = env.affiliate(t, engine.AffiliateInput{ClientID: env.ClientA.ID, FirstName: "Ana", LastName: "Ruiz", DocumentID: "DOC-A"})
	env.AffA2 = env.affiliate(t, engine.AffiliateInput{ClientID: env.ClientA.ID, FirstName: "Luis", LastName: "Mora", DocumentID: "DOC-A2"})
	env.DepA = env.affiliate(t, engine.AffiliateInput{
		ClientID: env.ClientA.ID, FirstName: "Sofia", LastName: "Ruiz", DocumentID: "DOC-A-DEP",
		Relationship: domain.RelationshipChild, PrimaryAffiliateID: &env.AffA.ID,
	})
	env.AffB = env.affiliate(t, engine.AffiliateInput{ClientID: env.ClientB.ID, FirstName: "Hank", LastName: "Scorpio", DocumentID: "DOC-B"})

	env.ClientAdmin = env.user(t, "hr@acme.test", domain.RoleClientAdmin, nil, env.ClientA.ID)
	env.AffUser = env.user(t, "ana@acme.test", domain.RoleAffiliate, &env.AffA.ID)

	ins, err := env.Engine.CreateInsurer(env.Ctx, env.Super.ID, engine.InsurerInput{Name: "Mapfre"})
	require.NoError(t, err)
	env.Insurer = ins
	return env
}

func (env *testEnv) user(t *testing.T, email string, role domain.Role, affiliateID *string, clientIDs ...string) domain.User {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, engine.UserInput{
		Email: email, Name: email, Role: role, Password: testPassword,
		AffiliateID: affiliateID, ClientIDs: clientIDs,
	})
	require.NoError(t, err)
	return u
}

func (env *testEnv) client(t *testing.T, name, taxID string) domain.Client {
	t.Helper()
	c, err := env.Engine.CreateClient(env.Ctx, env.Super.ID, engine.ClientInput{Name: name, TaxID: taxID})
	require.NoError(t, err)
	return c
}

func (env *testEnv) affiliate(t *testing.T, in engine.AffiliateInput) domain.Affiliate {
	t.Helper()
	a, err := env.Engine.CreateAffiliate(env.Ctx, env.Super.ID, in)
	require.NoError(t, err)
	return a
}

// activePolicy creates a policy for client and activates it.
func (env *testEnv) activePolicy(t *testing.T, clientID, number string) engine.PolicyDetail {
	t.Helper()
	p, err := env.Engine.CreatePolicy(env.Ctx, env.AccountMgr.ID, engine.PolicyInput{PolicyNumber: number, ClientID: clientID})
	require.NoError(t, err)
	p, err = env.Engine.UpdatePolicy(env.Ctx, env.AccountMgr.ID, p.ID, activation(env.Insurer.ID))
	require.NoError(t, err)
	require.Equal(t, "ACTIVE", p.Status)
	return p
}

func activation(insurerID string) engine.Patch {
	return engine.Patch{
		"status":                 "ACTIVE",
		"type":                   "HEALTH",
		"insurerId":              insurerID,
		"startDate":              "2024-01-01",
		"endDate":                "2024-12-31",
		"sumInsured":             100000.0,
		"deductible":             500.0,
		"coinsuranceRate":        0.2,
		"maxCoinsurance":         3000.0,
		"premiumEmployee":        120.0,
		"premiumEmployeePlusOne": 210.0,
		"premiumFamily":          320.0,
	}
}

func (env *testEnv) auditCount(t *testing.T, resourceType, resourceID string) int {
	t.Helper()
	logs, err := env.Engine.AuditLog.List(env.Ctx, audit.Filters{ResourceType: resourceType, ResourceID: resourceID})
	require.NoError(t, err)
	return len(logs)
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}

func requireFields(t *testing.T, err error, fields ...string) {
	t.Helper()
	require.Equal(t, fields, apperr.DetailsOf(err)["fields"], "error: %v", err)
}

func pageOf(limit int, cursorCreatedAt, cursorID string) repo.Page {
	return repo.Page{Limit: limit, CursorCreatedAt: cursorCreatedAt, CursorID: cursorID}
}
