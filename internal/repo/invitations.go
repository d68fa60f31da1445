package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

// HashToken returns the stable SHA-256 hex digest stored for an invitation token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

const invitationColumns = `id,email,role,client_id,affiliate_id,token_hash,expires_at,accepted_at,created_by_id,created_at`

// InsertInvitation stores an invitation. TokenHash must already contain the hashed value.
func (r Repo) InsertInvitation(ctx context.Context, q sqlx.ExtContext, inv domain.Invitation) error {
	return insert(ctx, q, `INSERT INTO invitations(`+invitationColumns+`) VALUES (:id,:email,:role,:client_id,:affiliate_id,:token_hash,:expires_at,:accepted_at,:created_by_id,:created_at)`, inv)
}

func (r Repo) GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error) {
	var inv domain.Invitation
	err := get(ctx, r.DB, &inv, `SELECT `+invitationColumns+` FROM invitations WHERE token_hash=?`, hash)
	return inv, err
}

// MarkInvitationAccepted stamps accepted_at once. A second accept yields ErrNotFound.
func (r Repo) MarkInvitationAccepted(ctx context.Context, q sqlx.ExtContext, id, at string) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE invitations SET accepted_at=? WHERE id=? AND accepted_at IS NULL`), at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
