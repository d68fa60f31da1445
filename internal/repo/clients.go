package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

const clientColumns = `id,name,tax_id,email,phone,address,created_at,updated_at`

func (r Repo) InsertClient(ctx context.Context, q sqlx.ExtContext, c domain.Client) error {
	return insert(ctx, q, `INSERT INTO clients(`+clientColumns+`) VALUES (:id,:name,:tax_id,:email,:phone,:address,:created_at,:updated_at)`, c)
}

func (r Repo) GetClient(ctx context.Context, q sqlx.ExtContext, id string) (domain.Client, error) {
	var c domain.Client
	err := get(ctx, q, &c, `SELECT `+clientColumns+` FROM clients WHERE id=?`, id)
	return c, err
}

func (r Repo) GetClientByTaxID(ctx context.Context, taxID string) (domain.Client, error) {
	var c domain.Client
	err := get(ctx, r.DB, &c, `SELECT `+clientColumns+` FROM clients WHERE tax_id=?`, taxID)
	return c, err
}

type ClientFilters struct {
	IDs []string
	Page
}

func (r Repo) ListClients(ctx context.Context, f ClientFilters) ([]domain.Client, error) {
	var w where
	w.in("id", f.IDs)
	var out []domain.Client
	err := r.selectPage(ctx, &out, `SELECT `+clientColumns+` FROM clients`, w, f.Page)
	return out, err
}
