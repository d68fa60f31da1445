package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

const policyColumns = `id,policy_number,client_id,insurer_id,type,status,start_date,end_date,sum_insured,deductible,coinsurance_rate,max_coinsurance,premium_employee,premium_employee_plus_one,premium_family,notes,created_by_id,updated_by_id,created_at,updated_at`

func (r Repo) InsertPolicy(ctx context.Context, q sqlx.ExtContext, p domain.Policy) error {
	return insert(ctx, q, `INSERT INTO policies(`+policyColumns+`) VALUES (:id,:policy_number,:client_id,:insurer_id,:type,:status,:start_date,:end_date,:sum_insured,:deductible,:coinsurance_rate,:max_coinsurance,:premium_employee,:premium_employee_plus_one,:premium_family,:notes,:created_by_id,:updated_by_id,:created_at,:updated_at)`, p)
}

func (r Repo) GetPolicy(ctx context.Context, q sqlx.ExtContext, id string) (domain.Policy, error) {
	var p domain.Policy
	err := get(ctx, q, &p, `SELECT `+policyColumns+` FROM policies WHERE id=?`, id)
	return p, err
}

func (r Repo) GetPolicyByNumber(ctx context.Context, number string) (domain.Policy, error) {
	var p domain.Policy
	err := get(ctx, r.DB, &p, `SELECT `+policyColumns+` FROM policies WHERE policy_number=?`, number)
	return p, err
}

type PolicyFilters struct {
	ClientID  string
	ClientIDs []string
	Status    string
	InsurerID string
	Page
}

func (r Repo) ListPolicies(ctx context.Context, f PolicyFilters) ([]domain.Policy, error) {
	var w where
	w.eq("client_id", f.ClientID)
	w.in("client_id", f.ClientIDs)
	w.eq("status", f.Status)
	w.eq("insurer_id", f.InsurerID)
	var out []domain.Policy
	err := r.selectPage(ctx, &out, `SELECT `+policyColumns+` FROM policies`, w, f.Page)
	return out, err
}

func (r Repo) CountClaimsForPolicy(ctx context.Context, policyID string) (int, error) {
	var n int
	err := get(ctx, r.DB, &n, `SELECT COUNT(*) FROM claims WHERE policy_id=?`, policyID)
	return n, err
}
