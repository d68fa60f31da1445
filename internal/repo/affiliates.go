package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

const affiliateColumns = `id,client_id,first_name,last_name,document_id,birth_date,relationship,primary_affiliate_id,email,created_at`

func (r Repo) InsertAffiliate(ctx context.Context, q sqlx.ExtContext, a domain.Affiliate) error {
	return insert(ctx, q, `INSERT INTO affiliates(`+affiliateColumns+`) VALUES (:id,:client_id,:first_name,:last_name,:document_id,:birth_date,:relationship,:primary_affiliate_id,:email,:created_at)`, a)
}

func (r Repo) GetAffiliate(ctx context.Context, id string) (domain.Affiliate, error) {
	var a domain.Affiliate
	err := get(ctx, r.DB, &a, `SELECT `+affiliateColumns+` FROM affiliates WHERE id=?`, id)
	return a, err
}

func (r Repo) GetAffiliateByDocument(ctx context.Context, documentID string) (domain.Affiliate, error) {
	var a domain.Affiliate
	err := get(ctx, r.DB, &a, `SELECT `+affiliateColumns+` FROM affiliates WHERE document_id=?`, documentID)
	return a, err
}

type AffiliateFilters struct {
	ClientID  string
	ClientIDs []string
	IDs       []string
	Page
}

func (r Repo) ListAffiliates(ctx context.Context, f AffiliateFilters) ([]domain.Affiliate, error) {
	var w where
	w.eq("client_id", f.ClientID)
	w.in("client_id", f.ClientIDs)
	w.in("id", f.IDs)
	var out []domain.Affiliate
	err := r.selectPage(ctx, &out, `SELECT `+affiliateColumns+` FROM affiliates`, w, f.Page)
	return out, err
}

// ListDependentIDs returns the affiliates whose primary is primaryID.
func (r Repo) ListDependentIDs(ctx context.Context, primaryID string) ([]string, error) {
	ids := []string{}
	err := selectAll(ctx, r.DB, &ids, `SELECT id FROM affiliates WHERE primary_affiliate_id=? ORDER BY id`, primaryID)
	return ids, err
}
