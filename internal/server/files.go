package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"brokerdesk/internal/audit"
	"brokerdesk/internal/engine"
)

func registerAttachments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-attachment",
		Method:        http.MethodPost,
		Path:          "/attachments",
		Summary:       "Register an attachment and get a presigned upload URL",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body engine.UploadInput `json:"body"`
	}) (*body[engine.Upload], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		up, err := e.CreateUpload(ctx, actorID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(up), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-attachments",
		Method:      http.MethodGet,
		Path:        "/attachments",
		Summary:     "List attachments of a record with download URLs",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ResourceType string `query:"resource_type" required:"true"`
		ResourceID   string `query:"resource_id" required:"true"`
	}) (*body[[]engine.AttachmentView], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAttachments(ctx, actorID, input.ResourceType, input.ResourceID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "download-attachment",
		Method:      http.MethodGet,
		Path:        "/attachments/{id}/download",
		Summary:     "Get a presigned download URL",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*body[engine.AttachmentView], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.DownloadURL(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(v), nil
	})
}

func registerAudit(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-logs",
		Method:      http.MethodGet,
		Path:        "/audit-logs",
		Summary:     "List audit entries, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ResourceType string `query:"resource_type"`
		ResourceID   string `query:"resource_id"`
		Action       string `query:"action"`
		ActorUserID  string `query:"actor_user_id"`
		ListParams
	}) (*body[page[engine.AuditEntry]], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, limit, err := input.repoPage()
		if err != nil {
			return nil, handleError(ctx, err)
		}
		items, err := e.ListAuditLogs(ctx, actorID, audit.Filters{
			ResourceType:    input.ResourceType,
			ResourceID:      input.ResourceID,
			Action:          input.Action,
			ActorUserID:     input.ActorUserID,
			Limit:           p.Limit,
			CursorCreatedAt: p.CursorCreatedAt,
			CursorID:        p.CursorID,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(paginate(items, limit, func(a engine.AuditEntry) (string, string) {
			return a.CreatedAt, a.ID
		})), nil
	})
}
