package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerdesk/internal/domain"
	"brokerdesk/internal/lifecycle"
)

func allBlueprints(t *testing.T) []*lifecycle.Blueprint {
	t.Helper()
	var out []*lifecycle.Blueprint
	for _, name := range lifecycle.Entities() {
		b, ok := lifecycle.Lookup(name)
		require.True(t, ok, name)
		out = append(out, b)
	}
	require.Len(t, out, 4)
	return out
}

func TestBlueprintsAreWellFormed(t *testing.T) {
	for _, b := range allBlueprints(t) {
		require.NoError(t, b.Check(), b.Entity)
		assert.True(t, b.Known(b.Initial), b.Entity)
		assert.False(t, b.IsTerminal(b.Initial), b.Entity)
		for _, s := range b.Statuses() {
			r, _ := b.Rule(s)
			for _, to := range r.AllowedTransitions {
				_, ok := r.TransitionRequirements[to]
				assert.True(t, ok, "%s %s -> %s lacks a requirements entry", b.Entity, s, to)
			}
		}
	}
}

func TestCheckRejectsMalformedTable(t *testing.T) {
	b := &lifecycle.Blueprint{
		Entity:   "widget",
		Initial:  "NEW",
		Order:    []lifecycle.Status{"NEW", "DONE"},
		Terminal: []lifecycle.Status{"DONE"},
		Rules: map[lifecycle.Status]lifecycle.Rule{
			"NEW": {AllowedTransitions: []lifecycle.Status{"DONE", "GONE"}},
			"DONE": {
				AllowedEditors:     domain.BrokerEmployees,
				AllowedTransitions: []lifecycle.Status{"NEW"},
				TransitionRequirements: map[lifecycle.Status]lifecycle.FieldSet{
					"NEW": lifecycle.Fields(),
				},
			},
		},
	}
	err := b.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEW -> GONE targets unknown status")
	assert.Contains(t, err.Error(), "NEW -> DONE has no requirements entry")
	assert.Contains(t, err.Error(), "terminal status DONE has outgoing transitions")
	assert.Contains(t, err.Error(), "terminal status DONE is editable below top admin")
}

func TestTerminalStatusesAreLocked(t *testing.T) {
	for _, b := range allBlueprints(t) {
		for _, s := range b.Terminal {
			r, ok := b.Rule(s)
			require.True(t, ok)
			assert.Empty(t, r.AllowedTransitions, "%s %s", b.Entity, s)
			assert.Equal(t, domain.TopAdmin, r.AllowedEditors, "%s %s", b.Entity, s)
			for f := range r.EditableFields {
				assert.Equal(t, lifecycle.FieldNotes, f, "%s %s only allows annotation edits", b.Entity, s)
			}
			for _, other := range b.Statuses() {
				assert.False(t, b.CanTransition(s, other), "%s %s -> %s", b.Entity, s, other)
			}
		}
	}
}

func TestUnknownStatusFailsClosed(t *testing.T) {
	updates := lifecycle.Values{lifecycle.FieldDescription: "x", lifecycle.FieldNotes: nil}
	for _, b := range allBlueprints(t) {
		for _, role := range domain.AllRoles {
			assert.False(t, b.CanUserEdit(role, "BOGUS"))
		}
		assert.Equal(t, []lifecycle.Field{lifecycle.FieldDescription, lifecycle.FieldNotes}, b.ForbiddenFields(updates, "BOGUS"))
		assert.False(t, b.CanTransition("BOGUS", b.Initial))
	}
}

func TestCanUserEditByTier(t *testing.T) {
	assert.True(t, lifecycle.Claim.CanUserEdit(domain.RoleClaimsManager, lifecycle.ClaimDraft))
	assert.False(t, lifecycle.Claim.CanUserEdit(domain.RoleAccountManager, lifecycle.ClaimDraft))
	assert.False(t, lifecycle.Claim.CanUserEdit(domain.RoleClaimsManager, lifecycle.ClaimSettled))
	assert.True(t, lifecycle.Claim.CanUserEdit(domain.RoleSuperAdmin, lifecycle.ClaimSettled))

	assert.True(t, lifecycle.Policy.CanUserEdit(domain.RoleAccountManager, lifecycle.PolicyPending))
	assert.False(t, lifecycle.Policy.CanUserEdit(domain.RoleAdmin, lifecycle.PolicyActive))
	assert.True(t, lifecycle.Policy.CanUserEdit(domain.RoleSuperAdmin, lifecycle.PolicyExpired))

	assert.True(t, lifecycle.Invoice.CanUserEdit(domain.RoleAccountManager, lifecycle.InvoiceDiscrepancy))
	assert.False(t, lifecycle.Invoice.CanUserEdit(domain.RoleAdmin, lifecycle.InvoiceCancelled))

	assert.False(t, lifecycle.Claim.CanUserEdit(domain.RoleClientAdmin, lifecycle.ClaimDraft))
	assert.False(t, lifecycle.Claim.CanUserEdit(domain.Role("UNKNOWN"), lifecycle.ClaimDraft))
}

func TestClaimTransitionTable(t *testing.T) {
	want := map[lifecycle.Status][]lifecycle.Status{
		lifecycle.ClaimDraft:       {lifecycle.ClaimValidation, lifecycle.ClaimCancelled},
		lifecycle.ClaimValidation:  {lifecycle.ClaimSubmitted, lifecycle.ClaimReturned, lifecycle.ClaimCancelled},
		lifecycle.ClaimSubmitted:   {lifecycle.ClaimPendingInfo, lifecycle.ClaimSettled, lifecycle.ClaimCancelled},
		lifecycle.ClaimPendingInfo: {lifecycle.ClaimSubmitted, lifecycle.ClaimCancelled},
		lifecycle.ClaimReturned:    nil,
		lifecycle.ClaimSettled:     nil,
		lifecycle.ClaimCancelled:   nil,
	}
	for from, targets := range want {
		for _, to := range lifecycle.Claim.Statuses() {
			expected := false
			for _, target := range targets {
				if target == to {
					expected = true
				}
			}
			assert.Equal(t, expected, lifecycle.Claim.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestPolicyAndInvoiceTransitions(t *testing.T) {
	assert.False(t, lifecycle.Policy.CanTransition(lifecycle.PolicyCancelled, lifecycle.PolicyActive))
	assert.True(t, lifecycle.Policy.CanTransition(lifecycle.PolicyExpired, lifecycle.PolicyActive))
	assert.False(t, lifecycle.Policy.CanTransition(lifecycle.PolicyPending, lifecycle.PolicyExpired))

	assert.True(t, lifecycle.Invoice.CanTransition(lifecycle.InvoiceDiscrepancy, lifecycle.InvoiceValidated))
	assert.False(t, lifecycle.Invoice.CanTransition(lifecycle.InvoiceValidated, lifecycle.InvoicePending))
	assert.Equal(t,
		[]lifecycle.Field{lifecycle.FieldAffiliateCount, lifecycle.FieldBillingPeriod, lifecycle.FieldDueDate, lifecycle.FieldTaxAmount},
		lifecycle.Invoice.Requirements(lifecycle.InvoicePending, lifecycle.InvoiceValidated).Sorted())
	assert.Empty(t, lifecycle.Invoice.Requirements(lifecycle.InvoiceCancelled, lifecycle.InvoiceValidated))
}

func draftClaim() lifecycle.Values {
	return lifecycle.Values{
		lifecycle.StatusField:               string(lifecycle.ClaimDraft),
		lifecycle.FieldCareType:             nil,
		lifecycle.FieldIncidentDate:         "2024-03-01",
		lifecycle.FieldSubmittedDate:        "2024-03-05",
		lifecycle.FieldAmountSubmitted:      100.0,
		lifecycle.FieldDiagnosisDescription: "x",
	}
}

func TestMissingRequirementsNamesCareType(t *testing.T) {
	current := draftClaim()
	updates := lifecycle.Values{lifecycle.StatusField: string(lifecycle.ClaimValidation)}

	first := lifecycle.Claim.MissingRequirements(current, updates, lifecycle.ClaimValidation)
	second := lifecycle.Claim.MissingRequirements(current, updates, lifecycle.ClaimValidation)
	assert.Equal(t, []lifecycle.Field{lifecycle.FieldCareType}, first)
	assert.Equal(t, first, second)
	assert.Nil(t, current[lifecycle.FieldCareType], "current must not be mutated")
}

func TestMissingRequirementsSatisfiedInSameRequest(t *testing.T) {
	updates := lifecycle.Values{
		lifecycle.StatusField:   string(lifecycle.ClaimValidation),
		lifecycle.FieldCareType: "AMBULATORY",
	}
	assert.Empty(t, lifecycle.Claim.MissingRequirements(draftClaim(), updates, lifecycle.ClaimValidation))
}

func TestMissingRequirementsExplicitNullAndEmptyString(t *testing.T) {
	current := draftClaim()
	current[lifecycle.FieldCareType] = "DENTAL"
	updates := lifecycle.Values{
		lifecycle.FieldDiagnosisDescription: nil,
		lifecycle.FieldIncidentDate:         "",
	}
	assert.Equal(t,
		[]lifecycle.Field{lifecycle.FieldDiagnosisDescription, lifecycle.FieldIncidentDate},
		lifecycle.Claim.MissingRequirements(current, updates, lifecycle.ClaimValidation))
}

func TestMissingRequirementsTreatsBlankAsMissing(t *testing.T) {
	current := draftClaim()
	blank := "  \t"
	updates := lifecycle.Values{
		lifecycle.FieldCareType:             "   ",
		lifecycle.FieldDiagnosisDescription: blank,
	}
	assert.Equal(t,
		[]lifecycle.Field{lifecycle.FieldCareType, lifecycle.FieldDiagnosisDescription},
		lifecycle.Claim.MissingRequirements(current, updates, lifecycle.ClaimValidation))

	assert.True(t, lifecycle.IsEmpty(&blank))
	assert.False(t, lifecycle.IsEmpty(" x "))
}

func TestRequirementSatisfactionClosesGap(t *testing.T) {
	for _, b := range allBlueprints(t) {
		for _, from := range b.Statuses() {
			r, _ := b.Rule(from)
			for _, to := range r.AllowedTransitions {
				required := b.Requirements(from, to)
				full := lifecycle.Values{lifecycle.StatusField: string(from)}
				for f := range required {
					full[f] = "filled"
				}
				move := lifecycle.Values{lifecycle.StatusField: string(to)}
				assert.Empty(t, b.MissingRequirements(full, move, to), "%s %s -> %s", b.Entity, from, to)

				for f := range required {
					gap := lifecycle.Merge(full, lifecycle.Values{f: nil})
					assert.Equal(t, []lifecycle.Field{f}, b.MissingRequirements(gap, move, to))
					fill := lifecycle.Merge(move, lifecycle.Values{f: "value"})
					assert.Empty(t, b.MissingRequirements(gap, fill, to), "%s %s -> %s via %s", b.Entity, from, to, f)
				}
			}
		}
	}
}

func TestTransitionOverrideExemptsRequiredFields(t *testing.T) {
	updates := lifecycle.Values{
		lifecycle.FieldSettlementDate:   "2024-04-01",
		lifecycle.FieldSettlementNumber: "LIQ-1",
		lifecycle.FieldAmountApproved:   80.0,
		lifecycle.FieldCareType:         "DENTAL",
	}
	plain := lifecycle.Claim.ForbiddenFields(updates, lifecycle.ClaimSubmitted)
	assert.Equal(t, []lifecycle.Field{lifecycle.FieldCareType, lifecycle.FieldSettlementDate, lifecycle.FieldSettlementNumber}, plain)

	overridden := lifecycle.Claim.ForbiddenFieldsForTransition(updates, lifecycle.ClaimSubmitted, lifecycle.ClaimSettled)
	assert.Equal(t, []lifecycle.Field{lifecycle.FieldCareType}, overridden)

	// no override without a transition
	same := lifecycle.Claim.ForbiddenFieldsForTransition(updates, lifecycle.ClaimSubmitted, lifecycle.ClaimSubmitted)
	assert.Equal(t, plain, same)
}

func TestTransitionOverrideHoldsForEveryBlueprint(t *testing.T) {
	for _, b := range allBlueprints(t) {
		for _, from := range b.Statuses() {
			r, _ := b.Rule(from)
			for _, to := range r.AllowedTransitions {
				for f := range b.Requirements(from, to) {
					if r.EditableFields.Has(f) {
						continue
					}
					got := b.ForbiddenFieldsForTransition(lifecycle.Values{f: "v"}, from, to)
					assert.NotContains(t, got, f, "%s %s -> %s", b.Entity, from, to)
				}
			}
		}
	}
}

func TestMergeKeepsExplicitNull(t *testing.T) {
	current := lifecycle.Values{lifecycle.FieldNotes: "keep", lifecycle.FieldDescription: "old"}
	merged := lifecycle.Merge(current, lifecycle.Values{lifecycle.FieldDescription: nil})
	assert.Equal(t, "keep", merged[lifecycle.FieldNotes])
	assert.True(t, merged.Has(lifecycle.FieldDescription))
	assert.Nil(t, merged[lifecycle.FieldDescription])
	assert.Equal(t, "old", current[lifecycle.FieldDescription])
}

func TestSplitSeparatesSideChannel(t *testing.T) {
	updates := lifecycle.Values{
		lifecycle.FieldDescription:          "d",
		lifecycle.FieldReprocessDate:        "2024-05-01",
		lifecycle.FieldReprocessDescription: "new docs",
	}
	rest, side := updates.Split(lifecycle.Claim.SideChannel)
	assert.Equal(t, lifecycle.Values{lifecycle.FieldDescription: "d"}, rest)
	assert.Len(t, side, 2)
}
