package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

const insurerColumns = `id,name,code,email,created_at`

func (r Repo) InsertInsurer(ctx context.Context, q sqlx.ExtContext, i domain.Insurer) error {
	return insert(ctx, q, `INSERT INTO insurers(`+insurerColumns+`) VALUES (:id,:name,:code,:email,:created_at)`, i)
}

func (r Repo) GetInsurer(ctx context.Context, id string) (domain.Insurer, error) {
	var i domain.Insurer
	err := get(ctx, r.DB, &i, `SELECT `+insurerColumns+` FROM insurers WHERE id=?`, id)
	return i, err
}

func (r Repo) GetInsurerByName(ctx context.Context, name string) (domain.Insurer, error) {
	var i domain.Insurer
	err := get(ctx, r.DB, &i, `SELECT `+insurerColumns+` FROM insurers WHERE name=?`, name)
	return i, err
}

func (r Repo) ListInsurers(ctx context.Context, p Page) ([]domain.Insurer, error) {
	var out []domain.Insurer
	err := r.selectPage(ctx, &out, `SELECT `+insurerColumns+` FROM insurers`, where{}, p)
	return out, err
}
