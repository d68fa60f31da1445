package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

const attachmentColumns = `id,resource_type,resource_id,file_name,content_type,object_key,size_bytes,uploaded_by_id,created_at`

func (r Repo) InsertAttachment(ctx context.Context, q sqlx.ExtContext, a domain.Attachment) error {
	return insert(ctx, q, `INSERT INTO attachments(`+attachmentColumns+`) VALUES (:id,:resource_type,:resource_id,:file_name,:content_type,:object_key,:size_bytes,:uploaded_by_id,:created_at)`, a)
}

func (r Repo) GetAttachment(ctx context.Context, id string) (domain.Attachment, error) {
	var a domain.Attachment
	err := get(ctx, r.DB, &a, `SELECT `+attachmentColumns+` FROM attachments WHERE id=?`, id)
	return a, err
}

// ListAttachments returns a resource's files, oldest first.
func (r Repo) ListAttachments(ctx context.Context, resourceType, resourceID string) ([]domain.Attachment, error) {
	out := []domain.Attachment{}
	err := selectAll(ctx, r.DB, &out, `SELECT `+attachmentColumns+` FROM attachments WHERE resource_type=? AND resource_id=? ORDER BY created_at, id`, resourceType, resourceID)
	return out, err
}
