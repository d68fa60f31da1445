package engine

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/audit"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine/auth"
)

type UploadInput struct {
	ResourceType string `json:"resourceType" enum:"claim,policy,invoice,ticket"`
	ResourceID   string `json:"resourceId"`
	FileName     string `json:"fileName"`
	ContentType  string `json:"contentType,omitempty"`
	SizeBytes    *int64 `json:"sizeBytes,omitempty"`
}

type Upload struct {
	Attachment domain.Attachment `json:"attachment"`
	UploadURL  string            `json:"uploadUrl"`
	ExpiresIn  int               `json:"expiresIn" doc:"seconds"`
}

type AttachmentView struct {
	domain.Attachment
	DownloadURL string `json:"downloadUrl"`
}

// CreateUpload records an attachment and returns a presigned PUT for the
// client to upload the bytes directly to storage.
func (e Engine) CreateUpload(ctx context.Context, actorID string, in UploadInput) (Upload, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return Upload{}, err
	}
	if err := e.checkParent(ctx, acc, in.ResourceType, in.ResourceID); err != nil {
		return Upload{}, err
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		name = ""
	}
	if err := required("fileName", name); err != nil {
		return Upload{}, err
	}
	if in.ContentType == "" {
		in.ContentType = "application/octet-stream"
	}
	if in.SizeBytes != nil && *in.SizeBytes < 0 {
		return Upload{}, badRequest("sizeBytes must not be negative").With("field", "sizeBytes")
	}
	ttl, err := e.Config.URLTTL()
	if err != nil {
		return Upload{}, err
	}
	id := uuid.NewString()
	a := domain.Attachment{
		ID:           id,
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		FileName:     name,
		ContentType:  in.ContentType,
		ObjectKey:    strings.Join([]string{in.ResourceType, in.ResourceID, id, name}, "/"),
		SizeBytes:    in.SizeBytes,
		UploadedByID: acc.UserID,
		CreatedAt:    e.timestamp(),
	}
	put, err := e.Blob.PresignPut(ctx, a.ObjectKey, a.ContentType, ttl)
	if err != nil {
		return Upload{}, badRequest("cannot sign upload: %v", err)
	}

	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return Upload{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAttachment(ctx, tx, a); err != nil {
		return Upload{}, storeErr(err, "attachment")
	}
	if _, err := e.Audit.Append(ctx, tx, audit.Entry{
		Action:       audit.Action(in.ResourceType, audit.ActionUploaded),
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		ActorUserID:  acc.UserID,
		After:        a,
		Metadata:     map[string]any{"role": acc.Role, "attachmentId": a.ID},
	}); err != nil {
		return Upload{}, err
	}
	if err := tx.Commit(); err != nil {
		return Upload{}, storeErr(err, "attachment")
	}
	return Upload{Attachment: a, UploadURL: put, ExpiresIn: int(ttl.Seconds())}, nil
}

func (e Engine) ListAttachments(ctx context.Context, actorID, resourceType, resourceID string) ([]AttachmentView, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := e.checkParent(ctx, acc, resourceType, resourceID); err != nil {
		return nil, err
	}
	items, err := e.Repo.ListAttachments(ctx, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	ttl, err := e.Config.URLTTL()
	if err != nil {
		return nil, err
	}
	out := make([]AttachmentView, 0, len(items))
	for _, a := range items {
		u, err := e.Blob.PresignGet(ctx, a.ObjectKey, ttl)
		if err != nil {
			return nil, err
		}
		out = append(out, AttachmentView{Attachment: a, DownloadURL: u})
	}
	return out, nil
}

func (e Engine) DownloadURL(ctx context.Context, actorID, id string) (AttachmentView, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return AttachmentView{}, err
	}
	a, err := e.Repo.GetAttachment(ctx, id)
	if err != nil {
		return AttachmentView{}, loadErr(err, "attachment", id)
	}
	if err := e.checkParent(ctx, acc, a.ResourceType, a.ResourceID); err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return AttachmentView{}, notFound("attachment", id)
		}
		return AttachmentView{}, err
	}
	ttl, err := e.Config.URLTTL()
	if err != nil {
		return AttachmentView{}, err
	}
	u, err := e.Blob.PresignGet(ctx, a.ObjectKey, ttl)
	if err != nil {
		return AttachmentView{}, err
	}
	return AttachmentView{Attachment: a, DownloadURL: u}, nil
}

// checkParent reports NotFound unless the attachment's owner exists and is
// visible to acc.
func (e Engine) checkParent(ctx context.Context, acc auth.Access, resourceType, resourceID string) error {
	if err := required("resourceId", resourceID); err != nil {
		return err
	}
	var visible bool
	switch resourceType {
	case domain.ResourceClaim:
		c, err := e.Repo.GetClaim(ctx, e.DB, resourceID)
		if err != nil {
			return loadErr(err, resourceType, resourceID)
		}
		visible = acc.CanSeeAffiliate(c.ClientID, c.AffiliateID)
	case domain.ResourcePolicy:
		p, err := e.Repo.GetPolicy(ctx, e.DB, resourceID)
		if err != nil {
			return loadErr(err, resourceType, resourceID)
		}
		visible = acc.CanSeeClient(p.ClientID)
	case domain.ResourceInvoice:
		inv, err := e.Repo.GetInvoice(ctx, e.DB, resourceID)
		if err != nil {
			return loadErr(err, resourceType, resourceID)
		}
		visible = acc.CanSeeClient(inv.ClientID)
	case domain.ResourceTicket:
		t, err := e.Repo.GetTicket(ctx, e.DB, resourceID)
		if err != nil {
			return loadErr(err, resourceType, resourceID)
		}
		visible = acc.CanSeeClient(t.ClientID)
	default:
		return badRequest("attachments are not supported on %q", resourceType).With("field", "resourceType")
	}
	if !visible {
		return notFound(resourceType, resourceID)
	}
	return nil
}
