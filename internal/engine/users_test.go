package engine_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/audit"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine"
	"brokerdesk/internal/engine/auth"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.Login(env.Ctx, "  ROOT@broker.test ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, env.Super.ID, s.User.ID)
	sub, err := auth.ParseToken(s.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, env.Super.ID, sub)

	_, err = env.Engine.Login(env.Ctx, "root@broker.test", "wrong")
	requireKind(t, err, apperr.Unauthenticated)
	_, err = env.Engine.Login(env.Ctx, "nobody@broker.test", testPassword)
	requireKind(t, err, apperr.Unauthenticated)
}

func TestMeReportsScope(t *testing.T) {
	env := newTestEnv(t)
	me, err := env.Engine.Me(env.Ctx, env.AffUser.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAffiliate, me.Role)
	assert.Equal(t, []string{env.ClientA.ID}, me.ClientIDs)
	assert.ElementsMatch(t, []string{env.AffA.ID, env.DepA.ID}, me.AffiliateIDs)

	_, err = env.Engine.Me(env.Ctx, "ghost")
	requireKind(t, err, apperr.Unauthenticated)
}

func TestInvitationAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	inv, err := env.Engine.CreateInvitation(env.Ctx, env.Super.ID, engine.InvitationInput{
		Email: "Boss@Acme.test", Role: domain.RoleClientAdmin, ClientID: &env.ClientA.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "boss@acme.test", inv.Email)
	assert.NotEqual(t, inv.Token, inv.TokenHash)

	msgs := env.Outbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "boss@acme.test", msgs[0].To)
	assert.Contains(t, msgs[0].Body, "token="+url.QueryEscape(inv.Token))
	assert.True(t, strings.HasPrefix(inv.AcceptURL, "https://portal.example.com/accept?"))

	_, err = env.Engine.AcceptInvitation(env.Ctx, engine.AcceptInput{Token: inv.Token, Name: "Boss", Password: "short"})
	requireKind(t, err, apperr.BadRequest)

	s, err := env.Engine.AcceptInvitation(env.Ctx, engine.AcceptInput{Token: inv.Token, Name: "Boss", Password: "long enough"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClientAdmin, s.User.Role)

	me, err := env.Engine.Me(env.Ctx, s.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{env.ClientA.ID}, me.ClientIDs)

	_, err = env.Engine.Login(env.Ctx, "boss@acme.test", "long enough")
	require.NoError(t, err)

	_, err = env.Engine.AcceptInvitation(env.Ctx, engine.AcceptInput{Token: inv.Token, Name: "Boss", Password: "long enough"})
	requireKind(t, err, apperr.BadRequest)
	_, err = env.Engine.AcceptInvitation(env.Ctx, engine.AcceptInput{Token: "nope", Name: "Boss", Password: "long enough"})
	requireKind(t, err, apperr.BadRequest)

	logs, err := env.Engine.ListAuditLogs(env.Ctx, env.Super.ID, audit.Filters{ResourceType: "invitation", Action: "invitation.accepted"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, s.User.ID, logs[0].ActorUserID)
}

func TestInvitationExpires(t *testing.T) {
	env := newTestEnv(t)
	inv, err := env.Engine.CreateInvitation(env.Ctx, env.ClientAdmin.ID, engine.InvitationInput{
		Email: "luis@acme.test", Role: domain.RoleAffiliate, AffiliateID: &env.AffA2.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, inv.ClientID)
	assert.Equal(t, env.ClientA.ID, *inv.ClientID)

	env.Clock.Advance(8 * 24 * time.Hour)
	_, err = env.Engine.AcceptInvitation(env.Ctx, engine.AcceptInput{Token: inv.Token, Name: "Luis", Password: "long enough"})
	requireKind(t, err, apperr.BadRequest)
}

func TestInvitationRules(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name  string
		actor string
		in    engine.InvitationInput
		kind  apperr.Kind
	}{
		{"client admin cannot invite staff", env.ClientAdmin.ID, engine.InvitationInput{Email: "a@x.test", Role: domain.RoleAdmin}, apperr.Forbidden},
		{"client admin outside scope", env.ClientAdmin.ID, engine.InvitationInput{Email: "a@x.test", Role: domain.RoleAffiliate, AffiliateID: &env.AffB.ID}, apperr.NotFound},
		{"only top admin invites top admin", env.ClaimsMgr.ID, engine.InvitationInput{Email: "a@x.test", Role: domain.RoleSuperAdmin}, apperr.Forbidden},
		{"affiliates cannot invite", env.AffUser.ID, engine.InvitationInput{Email: "a@x.test", Role: domain.RoleAffiliate, AffiliateID: &env.DepA.ID}, apperr.Forbidden},
		{"unknown role", env.Super.ID, engine.InvitationInput{Email: "a@x.test", Role: "JANITOR"}, apperr.BadRequest},
		{"client admin needs client", env.Super.ID, engine.InvitationInput{Email: "a@x.test", Role: domain.RoleClientAdmin}, apperr.BadRequest},
		{"existing user", env.Super.ID, engine.InvitationInput{Email: "claims@broker.test", Role: domain.RoleAdmin}, apperr.Conflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CreateInvitation(env.Ctx, tc.actor, tc.in)
			requireKind(t, err, tc.kind)
		})
	}
	assert.Empty(t, env.Outbox.Messages())
}

func TestClientRules(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateClient(env.Ctx, env.Super.ID, engine.ClientInput{Name: "Dup", TaxID: "TAX-A"})
	requireKind(t, err, apperr.Conflict)
	_, err = env.Engine.CreateClient(env.Ctx, env.ClientAdmin.ID, engine.ClientInput{Name: "X", TaxID: "TAX-X"})
	requireKind(t, err, apperr.Forbidden)

	list, err := env.Engine.ListClients(env.Ctx, env.ClientAdmin.ID, pageOf(0, "", ""))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, env.ClientA.ID, list[0].ID)

	_, err = env.Engine.GetClient(env.Ctx, env.ClientAdmin.ID, env.ClientB.ID)
	requireKind(t, err, apperr.NotFound)
	_, err = env.Engine.UpdateClient(env.Ctx, env.ClientAdmin.ID, env.ClientA.ID, engine.ClientPatch{Name: strp("Mine")})
	requireKind(t, err, apperr.Forbidden)

	got, err := env.Engine.UpdateClient(env.Ctx, env.AccountMgr.ID, env.ClientA.ID, engine.ClientPatch{Name: strp(" Acme Corp "), Phone: strp("555-0100")})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Name)
	assert.Equal(t, "555-0100", *got.Phone)
	assert.Equal(t, 2, env.auditCount(t, "client", env.ClientA.ID))

	got, err = env.Engine.UpdateClient(env.Ctx, env.AccountMgr.ID, env.ClientA.ID, engine.ClientPatch{Phone: strp("")})
	require.NoError(t, err)
	assert.Nil(t, got.Phone)
}

func TestAffiliateRules(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateAffiliate(env.Ctx, env.Super.ID, engine.AffiliateInput{
		ClientID: env.ClientA.ID, FirstName: "X", LastName: "Y", DocumentID: "DOC-A",
	})
	requireKind(t, err, apperr.Conflict)

	_, err = env.Engine.CreateAffiliate(env.Ctx, env.Super.ID, engine.AffiliateInput{
		ClientID: env.ClientB.ID, FirstName: "X", LastName: "Y", DocumentID: "DOC-N",
		Relationship: domain.RelationshipSpouse, PrimaryAffiliateID: &env.AffA.ID,
	})
	requireKind(t, err, apperr.BadRequest)

	_, err = env.Engine.CreateAffiliate(env.Ctx, env.Super.ID, engine.AffiliateInput{
		ClientID: env.ClientA.ID, FirstName: "X", LastName: "Y", DocumentID: "DOC-N",
		Relationship: domain.RelationshipChild, PrimaryAffiliateID: &env.DepA.ID,
	})
	requireKind(t, err, apperr.BadRequest)

	_, err = env.Engine.CreateAffiliate(env.Ctx, env.ClientAdmin.ID, engine.AffiliateInput{
		ClientID: env.ClientB.ID, FirstName: "X", LastName: "Y", DocumentID: "DOC-N",
	})
	requireKind(t, err, apperr.NotFound)

	a, err := env.Engine.CreateAffiliate(env.Ctx, env.ClientAdmin.ID, engine.AffiliateInput{
		ClientID: env.ClientA.ID, FirstName: "Eva", LastName: "Paz", DocumentID: "DOC-N", BirthDate: strp("1990-05-04"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RelationshipPrimary, a.Relationship)

	mine, err := env.Engine.ListAffiliates(env.Ctx, env.AffUser.ID, "", pageOf(0, "", ""))
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	_, err = env.Engine.GetAffiliate(env.Ctx, env.AffUser.ID, env.AffA2.ID)
	requireKind(t, err, apperr.NotFound)

	all, err := env.Engine.ListAffiliates(env.Ctx, env.ClientAdmin.ID, env.ClientA.ID, pageOf(0, "", ""))
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestInsurerRules(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateInsurer(env.Ctx, env.AccountMgr.ID, engine.InsurerInput{Name: "Allianz"})
	requireKind(t, err, apperr.Forbidden)
	_, err = env.Engine.CreateInsurer(env.Ctx, env.Super.ID, engine.InsurerInput{Name: "Mapfre"})
	requireKind(t, err, apperr.Conflict)

	list, err := env.Engine.ListInsurers(env.Ctx, env.AffUser.ID, pageOf(0, "", ""))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAuditLogsAreStaffOnly(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ListAuditLogs(env.Ctx, env.ClientAdmin.ID, audit.Filters{})
	requireKind(t, err, apperr.Forbidden)

	logs, err := env.Engine.ListAuditLogs(env.Ctx, env.AccountMgr.ID, audit.Filters{ResourceType: "client"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "client.created", logs[0].Action)
	assert.Equal(t, env.ClientB.ID, logs[0].ResourceID)
}

func TestBlueprintExport(t *testing.T) {
	env := newTestEnv(t)
	ex, err := env.Engine.Blueprint(env.Ctx, env.AffUser.ID, "claim")
	require.NoError(t, err)
	assert.Equal(t, "claim", ex.Entity)

	_, err = env.Engine.Blueprint(env.Ctx, env.AffUser.ID, "widget")
	requireKind(t, err, apperr.NotFound)
}
