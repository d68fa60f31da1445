package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

const userColumns = `id,email,name,role,affiliate_id,password_hash,created_at`

func (r Repo) InsertUser(ctx context.Context, q sqlx.ExtContext, u domain.User) error {
	return insert(ctx, q, `INSERT INTO users(`+userColumns+`) VALUES (:id,:email,:name,:role,:affiliate_id,:password_hash,:created_at)`, u)
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := get(ctx, r.DB, &u, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return u, err
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := get(ctx, r.DB, &u, `SELECT `+userColumns+` FROM users WHERE email=?`, email)
	return u, err
}

func (r Repo) ListUsers(ctx context.Context, p Page) ([]domain.User, error) {
	var out []domain.User
	err := r.selectPage(ctx, &out, `SELECT `+userColumns+` FROM users`, where{}, p)
	return out, err
}

// LinkUserClient grants a user access to a client.
func (r Repo) LinkUserClient(ctx context.Context, q sqlx.ExtContext, userID, clientID string) error {
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO user_clients(user_id, client_id) VALUES (?,?)`), userID, clientID)
	return err
}

func (r Repo) ListUserClientIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := selectAll(ctx, r.DB, &ids, `SELECT client_id FROM user_clients WHERE user_id=? ORDER BY client_id`, userID)
	return ids, err
}
