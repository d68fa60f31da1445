package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

const claimColumns = `id,claim_number,client_id,affiliate_id,patient_id,policy_id,status,description,care_type,diagnosis_code,diagnosis_description,incident_date,submitted_date,settlement_date,amount_submitted,amount_approved,amount_denied,amount_unprocessed,deductible_applied,copay_applied,settlement_number,settlement_notes,pending_reason,created_by_id,updated_by_id,created_at,updated_at`

func (r Repo) InsertClaim(ctx context.Context, q sqlx.ExtContext, c domain.Claim) error {
	return insert(ctx, q, `INSERT INTO claims(`+claimColumns+`) VALUES (:id,:claim_number,:client_id,:affiliate_id,:patient_id,:policy_id,:status,:description,:care_type,:diagnosis_code,:diagnosis_description,:incident_date,:submitted_date,:settlement_date,:amount_submitted,:amount_approved,:amount_denied,:amount_unprocessed,:deductible_applied,:copay_applied,:settlement_number,:settlement_notes,:pending_reason,:created_by_id,:updated_by_id,:created_at,:updated_at)`, c)
}

func (r Repo) GetClaim(ctx context.Context, q sqlx.ExtContext, id string) (domain.Claim, error) {
	var c domain.Claim
	err := get(ctx, q, &c, `SELECT `+claimColumns+` FROM claims WHERE id=?`, id)
	return c, err
}

type ClaimFilters struct {
	ClientID     string
	ClientIDs    []string
	AffiliateID  string
	AffiliateIDs []string
	Status       string
	PolicyID     string
	Page
}

func (r Repo) ListClaims(ctx context.Context, f ClaimFilters) ([]domain.Claim, error) {
	var w where
	w.eq("client_id", f.ClientID)
	w.in("client_id", f.ClientIDs)
	w.eq("affiliate_id", f.AffiliateID)
	w.in("affiliate_id", f.AffiliateIDs)
	w.eq("status", f.Status)
	w.eq("policy_id", f.PolicyID)
	var out []domain.Claim
	err := r.selectPage(ctx, &out, `SELECT `+claimColumns+` FROM claims`, w, f.Page)
	return out, err
}

const reprocessColumns = `id,claim_id,reprocess_date,reprocess_description,created_by_id,created_at`

func (r Repo) InsertReprocess(ctx context.Context, q sqlx.ExtContext, rp domain.ClaimReprocess) error {
	return insert(ctx, q, `INSERT INTO claim_reprocesses(`+reprocessColumns+`) VALUES (:id,:claim_id,:reprocess_date,:reprocess_description,:created_by_id,:created_at)`, rp)
}

// ListReprocesses returns a claim's reprocess history, oldest first.
func (r Repo) ListReprocesses(ctx context.Context, claimID string) ([]domain.ClaimReprocess, error) {
	out := []domain.ClaimReprocess{}
	err := selectAll(ctx, r.DB, &out, `SELECT `+reprocessColumns+` FROM claim_reprocesses WHERE claim_id=? ORDER BY created_at, id`, claimID)
	return out, err
}
