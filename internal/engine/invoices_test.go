package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/engine"
)

func (env *testEnv) invoice(t *testing.T, number string) engine.InvoiceDetail {
	t.Helper()
	inv, err := env.Engine.CreateInvoice(env.Ctx, env.AccountMgr.ID, engine.InvoiceInput{
		InvoiceNumber: number,
		ClientID:      env.ClientA.ID,
		InsurerID:     env.Insurer.ID,
		TotalAmount:   floatp(1500),
	})
	require.NoError(t, err)
	return inv
}

func TestInvoiceDiscrepancyResolution(t *testing.T) {
	env := newTestEnv(t)
	inv := env.invoice(t, "FAC-1")
	assert.Equal(t, "PENDING", inv.Status)
	assert.Equal(t, "Mapfre", inv.InsurerName)

	got, err := env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{"status": "DISCREPANCY"})
	require.NoError(t, err)
	assert.Equal(t, "DISCREPANCY", got.Status)

	_, err = env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{"status": "VALIDATED"})
	requireKind(t, err, apperr.BadRequest)
	requireFields(t, err, "discrepancyNotes")

	got, err = env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{
		"status":           "VALIDATED",
		"discrepancyNotes": "Insurer billed two extra members; credit note requested",
	})
	require.NoError(t, err)
	assert.Equal(t, "VALIDATED", got.Status)
	require.NotNil(t, got.DiscrepancyNotes)
}

func TestInvoiceDiscrepancyRejectsBlankNotes(t *testing.T) {
	env := newTestEnv(t)
	inv := env.invoice(t, "FAC-1")
	_, err := env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{"status": "DISCREPANCY"})
	require.NoError(t, err)

	_, err = env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{
		"status":           "VALIDATED",
		"discrepancyNotes": "   ",
	})
	requireKind(t, err, apperr.BadRequest)
	requireFields(t, err, "discrepancyNotes")

	got, err := env.Engine.InvoiceDetail(env.Ctx, env.AccountMgr.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "DISCREPANCY", got.Status)
}

func TestInvoiceValidationRequirements(t *testing.T) {
	env := newTestEnv(t)
	inv := env.invoice(t, "FAC-1")

	_, err := env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{"status": "VALIDATED", "billingPeriod": "2024-02"})
	requireKind(t, err, apperr.BadRequest)
	requireFields(t, err, "affiliateCount", "dueDate", "taxAmount")

	_, err = env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{"billingPeriod": "02/2024"})
	requireKind(t, err, apperr.BadRequest)

	got, err := env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{
		"status":         "VALIDATED",
		"billingPeriod":  "2024-02",
		"taxAmount":      195.0,
		"affiliateCount": 42.0,
		"dueDate":        "2024-03-15",
	})
	require.NoError(t, err)
	assert.Equal(t, "VALIDATED", got.Status)
	require.NotNil(t, got.AffiliateCount)
	assert.Equal(t, int64(42), *got.AffiliateCount)

	_, err = env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{"taxAmount": 1.0})
	requireKind(t, err, apperr.BadRequest)
}

func TestCancelledInvoiceKeepsNotesForTopAdmin(t *testing.T) {
	env := newTestEnv(t)
	inv := env.invoice(t, "FAC-1")
	_, err := env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{"status": "CANCELLED"})
	require.NoError(t, err)

	_, err = env.Engine.UpdateInvoice(env.Ctx, env.AccountMgr.ID, inv.ID, engine.Patch{"notes": "x"})
	requireKind(t, err, apperr.Forbidden)
	got, err := env.Engine.UpdateInvoice(env.Ctx, env.Super.ID, inv.ID, engine.Patch{"notes": "duplicate of FAC-2"})
	require.NoError(t, err)
	assert.Equal(t, "duplicate of FAC-2", *got.Notes)
	_, err = env.Engine.UpdateInvoice(env.Ctx, env.Super.ID, inv.ID, engine.Patch{"totalAmount": 1.0})
	requireKind(t, err, apperr.BadRequest)
}

func TestInvoiceCreateRules(t *testing.T) {
	env := newTestEnv(t)
	env.invoice(t, "FAC-1")

	_, err := env.Engine.CreateInvoice(env.Ctx, env.AccountMgr.ID, engine.InvoiceInput{InvoiceNumber: "FAC-1", ClientID: env.ClientA.ID, InsurerID: env.Insurer.ID})
	requireKind(t, err, apperr.Conflict)
	_, err = env.Engine.CreateInvoice(env.Ctx, env.AccountMgr.ID, engine.InvoiceInput{InvoiceNumber: "FAC-2", ClientID: env.ClientA.ID})
	requireKind(t, err, apperr.BadRequest)
	_, err = env.Engine.CreateInvoice(env.Ctx, env.ClientAdmin.ID, engine.InvoiceInput{InvoiceNumber: "FAC-3", ClientID: env.ClientA.ID, InsurerID: env.Insurer.ID})
	requireKind(t, err, apperr.Forbidden)

	pb := env.activePolicy(t, env.ClientB.ID, "POL-B")
	_, err = env.Engine.CreateInvoice(env.Ctx, env.AccountMgr.ID, engine.InvoiceInput{
		InvoiceNumber: "FAC-4", ClientID: env.ClientA.ID, InsurerID: env.Insurer.ID, PolicyID: &pb.ID,
	})
	requireKind(t, err, apperr.BadRequest)

	pa := env.activePolicy(t, env.ClientA.ID, "POL-A")
	got, err := env.Engine.CreateInvoice(env.Ctx, env.AccountMgr.ID, engine.InvoiceInput{
		InvoiceNumber: "FAC-5", ClientID: env.ClientA.ID, InsurerID: env.Insurer.ID, PolicyID: &pa.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, got.PolicyNumber)
	assert.Equal(t, "POL-A", *got.PolicyNumber)

	list, err := env.Engine.ListInvoices(env.Ctx, env.ClientAdmin.ID, engine.InvoiceListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
