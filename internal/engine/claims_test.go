package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/audit"
	"brokerdesk/internal/engine"
)

func strp(s string) *string { return &s }

func floatp(f float64) *float64 { return &f }

// intakeClaim is a DRAFT claim with every VALIDATION requirement except careType.
func (env *testEnv) intakeClaim(t *testing.T, policyID string) engine.ClaimDetail {
	t.Helper()
	c, err := env.Engine.CreateClaim(env.Ctx, env.ClaimsMgr.ID, engine.ClaimInput{
		AffiliateID:          env.AffA.ID,
		PolicyID:             strp(policyID),
		DiagnosisDescription: strp("Sprained ankle"),
		IncidentDate:         strp("2024-02-10"),
		SubmittedDate:        strp("2024-02-12"),
		AmountSubmitted:      floatp(850),
	})
	require.NoError(t, err)
	return c
}

func TestCreateClaimStartsInDraft(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)

	assert.Equal(t, "DRAFT", c.Status)
	assert.Equal(t, env.ClientA.ID, c.ClientID)
	assert.Equal(t, env.AffA.ID, c.PatientID)
	assert.Equal(t, "Acme", c.ClientName)
	assert.Equal(t, "Ana Ruiz", c.PatientName)
	require.NotNil(t, c.PolicyNumber)
	assert.Equal(t, "POL-1", *c.PolicyNumber)
	assert.Regexp(t, `^CLM-20240301-[0-9A-F]{6}$`, c.ClaimNumber)
	assert.Equal(t, 1, env.auditCount(t, "claim", c.ID))
}

func TestClaimTransitionReportsMissingCareType(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)

	_, err := env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, engine.Patch{"status": "VALIDATION"})
	requireKind(t, err, apperr.BadRequest)
	requireFields(t, err, "careType")

	got, err := env.Engine.ClaimDetail(env.Ctx, env.ClaimsMgr.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", got.Status)
}

func TestClaimTransitionSatisfiedInOneCall(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)

	got, err := env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, engine.Patch{
		"status":   "VALIDATION",
		"careType": "AMBULATORY",
	})
	require.NoError(t, err)
	assert.Equal(t, "VALIDATION", got.Status)
	require.NotNil(t, got.CareType)
	assert.Equal(t, "AMBULATORY", *got.CareType)
	require.NotNil(t, got.UpdatedByID)
	assert.Equal(t, env.ClaimsMgr.ID, *got.UpdatedByID)
}

func TestClaimFullLifecycle(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)
	mgr := env.ClaimsMgr.ID

	steps := []engine.Patch{
		{"status": "VALIDATION", "careType": "EMERGENCY"},
		{"status": "SUBMITTED"},
		// pendingReason is not editable in SUBMITTED; the transition requires it.
		{"status": "PENDING_INFO", "pendingReason": "Missing invoice copy"},
		{"status": "SUBMITTED", "reprocessDate": "2024-03-05", "reprocessDescription": "Invoice sent"},
		{"status": "SETTLED", "amountApproved": 700.0, "settlementDate": "2024-03-20", "settlementNumber": "LIQ-9"},
	}
	var (
		got engine.ClaimDetail
		err error
	)
	for _, patch := range steps {
		got, err = env.Engine.UpdateClaim(env.Ctx, mgr, c.ID, patch)
		require.NoError(t, err, "patch %v", patch)
		assert.Equal(t, patch["status"], got.Status)
	}
	require.Len(t, got.Reprocesses, 1)
	assert.Equal(t, "2024-03-05", got.Reprocesses[0].ReprocessDate)
	assert.Equal(t, "Invoice sent", got.Reprocesses[0].ReprocessDescription)
	require.NotNil(t, got.AmountApproved)
	assert.Equal(t, 700.0, *got.AmountApproved)

	// Terminal: staff below top admin are locked out, top admin has nothing editable.
	_, err = env.Engine.UpdateClaim(env.Ctx, mgr, c.ID, engine.Patch{"description": "late note"})
	requireKind(t, err, apperr.Forbidden)
	_, err = env.Engine.UpdateClaim(env.Ctx, env.Super.ID, c.ID, engine.Patch{"description": "late note"})
	requireKind(t, err, apperr.BadRequest)
	requireFields(t, err, "description")
	_, err = env.Engine.UpdateClaim(env.Ctx, env.Super.ID, c.ID, engine.Patch{"status": "SUBMITTED"})
	requireKind(t, err, apperr.BadRequest)
}

func TestReprocessOnlyOnPendingInfoToSubmitted(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)
	mgr := env.ClaimsMgr.ID

	_, err := env.Engine.UpdateClaim(env.Ctx, mgr, c.ID, engine.Patch{"status": "VALIDATION", "careType": "DENTAL"})
	require.NoError(t, err)

	_, err = env.Engine.UpdateClaim(env.Ctx, mgr, c.ID, engine.Patch{
		"status": "SUBMITTED", "reprocessDate": "2024-03-05", "reprocessDescription": "x",
	})
	requireKind(t, err, apperr.BadRequest)

	got, err := env.Engine.UpdateClaim(env.Ctx, mgr, c.ID, engine.Patch{"status": "SUBMITTED"})
	require.NoError(t, err)
	assert.Empty(t, got.Reprocesses)

	_, err = env.Engine.UpdateClaim(env.Ctx, mgr, c.ID, engine.Patch{"status": "PENDING_INFO", "pendingReason": "x"})
	require.NoError(t, err)
	_, err = env.Engine.UpdateClaim(env.Ctx, mgr, c.ID, engine.Patch{"status": "SUBMITTED"})
	requireKind(t, err, apperr.BadRequest)
	requireFields(t, err, "reprocessDate", "reprocessDescription")

	_, err = env.Engine.UpdateClaim(env.Ctx, mgr, c.ID, engine.Patch{"reprocessDate": "2024-03-05"})
	requireKind(t, err, apperr.BadRequest)
}

func TestClaimEditAuditsTransition(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)

	_, err := env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, engine.Patch{"status": "VALIDATION", "careType": "OTHER"})
	require.NoError(t, err)

	logs, err := env.Engine.ListAuditLogs(env.Ctx, env.Super.ID, audit.Filters{ResourceType: "claim", ResourceID: c.ID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	latest := logs[0]
	assert.Equal(t, "claim.status_changed", latest.Action)
	assert.Equal(t, env.ClaimsMgr.ID, latest.ActorUserID)
	assert.Equal(t, map[string]any{"from": "DRAFT", "to": "VALIDATION"}, latest.Metadata["transition"])
	assert.Equal(t, []any{"careType"}, latest.Metadata["fields"])
	before := latest.Before.(map[string]any)
	after := latest.After.(map[string]any)
	assert.Equal(t, "DRAFT", before["status"])
	assert.Equal(t, "VALIDATION", after["status"])
	assert.Equal(t, "claim.created", logs[1].Action)
}

func TestEditAndAuditCommitTogether(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)

	_, err := env.Engine.DB.Exec(`DROP TABLE audit_logs`)
	require.NoError(t, err)

	_, err = env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, engine.Patch{"description": "should not stick"})
	require.Error(t, err)

	got, err := env.Engine.ClaimDetail(env.Ctx, env.ClaimsMgr.ID, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Description)
}

func TestEmptyPatchIsNoop(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)

	got, err := env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, engine.Patch{})
	require.NoError(t, err)
	assert.Equal(t, c.UpdatedAt, got.UpdatedAt)

	got, err = env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, engine.Patch{"status": "DRAFT"})
	require.NoError(t, err)
	assert.Equal(t, c.UpdatedAt, got.UpdatedAt)
	assert.Equal(t, 1, env.auditCount(t, "claim", c.ID))
}

func TestClaimRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)

	_, err := env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, engine.Patch{
		"amountSubmitted": 1234.567,
		"diagnosisCode":   "  S93.4 ",
		"description":     nil,
	})
	require.NoError(t, err)
	got, err := env.Engine.ClaimDetail(env.Ctx, env.ClaimsMgr.ID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AmountSubmitted)
	assert.Equal(t, 1234.57, *got.AmountSubmitted)
	require.NotNil(t, got.DiagnosisCode)
	assert.Equal(t, "S93.4", *got.DiagnosisCode)
	assert.Nil(t, got.Description)

	_, err = env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, engine.Patch{"incidentDate": nil})
	require.NoError(t, err)
	_, err = env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, engine.Patch{"status": "VALIDATION", "careType": "OTHER"})
	requireKind(t, err, apperr.BadRequest)
	requireFields(t, err, "incidentDate")
}

func TestClaimPatchValidation(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)
	other := env.activePolicy(t, env.ClientB.ID, "POL-B")

	cases := map[string]engine.Patch{
		"unknown field":      {"bogus": 1},
		"bad enum":           {"careType": "SPA"},
		"bad date":           {"incidentDate": "10/02/2024"},
		"negative amount":    {"amountSubmitted": -1.0},
		"status type":        {"status": 3},
		"unknown status":     {"status": "ARCHIVED"},
		"not editable":       {"amountApproved": 10.0},
		"foreign policy":     {"policyId": other.ID},
		"illegal transition": {"status": "SETTLED"},
	}
	for name, patch := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.Engine.UpdateClaim(env.Ctx, env.ClaimsMgr.ID, c.ID, patch)
			requireKind(t, err, apperr.BadRequest)
		})
	}
}

func TestClaimAccessRules(t *testing.T) {
	env := newTestEnv(t)
	p := env.activePolicy(t, env.ClientA.ID, "POL-1")
	c := env.intakeClaim(t, p.ID)
	pb := env.activePolicy(t, env.ClientB.ID, "POL-B")
	cb, err := env.Engine.CreateClaim(env.Ctx, env.ClaimsMgr.ID, engine.ClaimInput{AffiliateID: env.AffB.ID, PolicyID: &pb.ID})
	require.NoError(t, err)

	_, err = env.Engine.ClaimDetail(env.Ctx, "ghost", c.ID)
	requireKind(t, err, apperr.Unauthenticated)
	_, err = env.Engine.UpdateClaim(env.Ctx, "ghost", c.ID, engine.Patch{"description": "x"})
	requireKind(t, err, apperr.Unauthenticated)

	_, err = env.Engine.ClaimDetail(env.Ctx, env.ClientAdmin.ID, cb.ID)
	requireKind(t, err, apperr.NotFound)
	_, err = env.Engine.UpdateClaim(env.Ctx, env.ClientAdmin.ID, cb.ID, engine.Patch{"description": "x"})
	requireKind(t, err, apperr.NotFound)

	got, err := env.Engine.ClaimDetail(env.Ctx, env.ClientAdmin.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	_, err = env.Engine.UpdateClaim(env.Ctx, env.ClientAdmin.ID, c.ID, engine.Patch{"description": "x"})
	requireKind(t, err, apperr.Forbidden)

	// Account managers are staff but not claim editors.
	_, err = env.Engine.UpdateClaim(env.Ctx, env.AccountMgr.ID, c.ID, engine.Patch{"description": "x"})
	requireKind(t, err, apperr.Forbidden)

	list, err := env.Engine.ListClaims(env.Ctx, env.ClientAdmin.ID, engine.ClaimListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	all, err := env.Engine.ListClaims(env.Ctx, env.Super.ID, engine.ClaimListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAffiliateClaimsStayInHousehold(t *testing.T) {
	env := newTestEnv(t)
	own, err := env.Engine.CreateClaim(env.Ctx, env.AffUser.ID, engine.ClaimInput{AffiliateID: env.AffA.ID, PatientID: env.DepA.ID})
	require.NoError(t, err)
	assert.Equal(t, "Sofia Ruiz", own.PatientName)
	assert.Equal(t, "Ana Ruiz", own.AffiliateName)

	_, err = env.Engine.CreateClaim(env.Ctx, env.AffUser.ID, engine.ClaimInput{AffiliateID: env.AffA2.ID})
	requireKind(t, err, apperr.NotFound)

	_, err = env.Engine.CreateClaim(env.Ctx, env.ClaimsMgr.ID, engine.ClaimInput{AffiliateID: env.AffA.ID, PatientID: env.AffA2.ID})
	requireKind(t, err, apperr.BadRequest)

	neighbour, err := env.Engine.CreateClaim(env.Ctx, env.ClaimsMgr.ID, engine.ClaimInput{AffiliateID: env.AffA2.ID})
	require.NoError(t, err)
	_, err = env.Engine.ClaimDetail(env.Ctx, env.AffUser.ID, neighbour.ID)
	requireKind(t, err, apperr.NotFound)

	list, err := env.Engine.ListClaims(env.Ctx, env.AffUser.ID, engine.ClaimListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, own.ID, list[0].ID)
}

func TestListClaimsPagesByCursor(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for i := 0; i < 3; i++ {
		c, err := env.Engine.CreateClaim(env.Ctx, env.ClaimsMgr.ID, engine.ClaimInput{AffiliateID: env.AffA.ID})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	first, err := env.Engine.ListClaims(env.Ctx, env.Super.ID, engine.ClaimListOptions{Page: pageOf(2, "", "")})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ids[2], first[0].ID)
	assert.Equal(t, ids[1], first[1].ID)

	last := first[1]
	rest, err := env.Engine.ListClaims(env.Ctx, env.Super.ID, engine.ClaimListOptions{Page: pageOf(2, last.CreatedAt, last.ID)})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)
}
