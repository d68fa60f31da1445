package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine"
	"brokerdesk/internal/lifecycle"
)

// patchInput documents a lifecycle update. The handler re-reads the raw
// body so a JSON null clears the field.
type patchInput struct {
	ID   string         `path:"id"`
	Body map[string]any `json:"body" doc:"Fields to change; null clears a field, status requests a transition"`
}

var patchErrors = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict}

func policyKey(p domain.Policy) (string, string)   { return p.CreatedAt, p.ID }
func claimKey(c domain.Claim) (string, string)     { return c.CreatedAt, c.ID }
func invoiceKey(i domain.Invoice) (string, string) { return i.CreatedAt, i.ID }
func ticketKey(t domain.Ticket) (string, string)   { return t.CreatedAt, t.ID }

func registerPolicies(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-policy",
		Method:        http.MethodPost,
		Path:          "/policies",
		Summary:       "Create a policy in PENDING",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body engine.PolicyInput `json:"body"`
	}) (*body[engine.PolicyDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreatePolicy(ctx, actorID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-policies",
		Method:      http.MethodGet,
		Path:        "/policies",
		Summary:     "List visible policies",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ClientID  string `query:"client_id"`
		InsurerID string `query:"insurer_id"`
		Status    string `query:"status"`
		ListParams
	}) (*body[page[domain.Policy]], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, limit, err := input.repoPage()
		if err != nil {
			return nil, handleError(ctx, err)
		}
		items, err := e.ListPolicies(ctx, actorID, engine.PolicyListOptions{
			ClientID:  input.ClientID,
			InsurerID: input.InsurerID,
			Status:    input.Status,
			Page:      p,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(paginate(items, limit, policyKey)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-policy",
		Method:      http.MethodGet,
		Path:        "/policies/{id}",
		Summary:     "Get policy detail",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*body[engine.PolicyDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.PolicyDetail(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-policy",
		Method:      http.MethodPatch,
		Path:        "/policies/{id}",
		Summary:     "Edit policy fields or move it through its lifecycle",
		Errors:      patchErrors,
	}, func(ctx context.Context, input *patchInput) (*body[engine.PolicyDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		patch, err := decodePatch(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		p, err := e.UpdatePolicy(ctx, actorID, input.ID, patch)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(p), nil
	})
}

func registerClaims(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-claim",
		Method:        http.MethodPost,
		Path:          "/claims",
		Summary:       "Open a claim in DRAFT",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body engine.ClaimInput `json:"body"`
	}) (*body[engine.ClaimDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateClaim(ctx, actorID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-claims",
		Method:      http.MethodGet,
		Path:        "/claims",
		Summary:     "List visible claims",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ClientID    string `query:"client_id"`
		AffiliateID string `query:"affiliate_id"`
		PolicyID    string `query:"policy_id"`
		Status      string `query:"status"`
		ListParams
	}) (*body[page[domain.Claim]], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, limit, err := input.repoPage()
		if err != nil {
			return nil, handleError(ctx, err)
		}
		items, err := e.ListClaims(ctx, actorID, engine.ClaimListOptions{
			ClientID:    input.ClientID,
			AffiliateID: input.AffiliateID,
			PolicyID:    input.PolicyID,
			Status:      input.Status,
			Page:        p,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(paginate(items, limit, claimKey)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-claim",
		Method:      http.MethodGet,
		Path:        "/claims/{id}",
		Summary:     "Get claim detail",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*body[engine.ClaimDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.ClaimDetail(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-claim",
		Method:      http.MethodPatch,
		Path:        "/claims/{id}",
		Summary:     "Edit claim fields or move it through its lifecycle",
		Errors:      patchErrors,
	}, func(ctx context.Context, input *patchInput) (*body[engine.ClaimDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		patch, err := decodePatch(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		c, err := e.UpdateClaim(ctx, actorID, input.ID, patch)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(c), nil
	})
}

func registerInvoices(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-invoice",
		Method:        http.MethodPost,
		Path:          "/invoices",
		Summary:       "Record an insurer invoice in PENDING",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body engine.InvoiceInput `json:"body"`
	}) (*body[engine.InvoiceDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inv, err := e.CreateInvoice(ctx, actorID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(inv), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-invoices",
		Method:      http.MethodGet,
		Path:        "/invoices",
		Summary:     "List visible invoices",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ClientID  string `query:"client_id"`
		InsurerID string `query:"insurer_id"`
		Status    string `query:"status"`
		ListParams
	}) (*body[page[domain.Invoice]], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, limit, err := input.repoPage()
		if err != nil {
			return nil, handleError(ctx, err)
		}
		items, err := e.ListInvoices(ctx, actorID, engine.InvoiceListOptions{
			ClientID:  input.ClientID,
			InsurerID: input.InsurerID,
			Status:    input.Status,
			Page:      p,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(paginate(items, limit, invoiceKey)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-invoice",
		Method:      http.MethodGet,
		Path:        "/invoices/{id}",
		Summary:     "Get invoice detail",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*body[engine.InvoiceDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inv, err := e.InvoiceDetail(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(inv), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-invoice",
		Method:      http.MethodPatch,
		Path:        "/invoices/{id}",
		Summary:     "Edit invoice fields or move it through its lifecycle",
		Errors:      patchErrors,
	}, func(ctx context.Context, input *patchInput) (*body[engine.InvoiceDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		patch, err := decodePatch(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		inv, err := e.UpdateInvoice(ctx, actorID, input.ID, patch)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(inv), nil
	})
}

type CommentRequest struct {
	Body string `json:"body" minLength:"1"`
}

func registerTickets(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-ticket",
		Method:        http.MethodPost,
		Path:          "/tickets",
		Summary:       "Open a support ticket",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body engine.TicketInput `json:"body"`
	}) (*body[engine.TicketDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTicket(ctx, actorID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tickets",
		Method:      http.MethodGet,
		Path:        "/tickets",
		Summary:     "List visible tickets",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ClientID   string `query:"client_id"`
		AssigneeID string `query:"assignee_id"`
		Status     string `query:"status"`
		ListParams
	}) (*body[page[domain.Ticket]], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, limit, err := input.repoPage()
		if err != nil {
			return nil, handleError(ctx, err)
		}
		items, err := e.ListTickets(ctx, actorID, engine.TicketListOptions{
			ClientID:   input.ClientID,
			AssigneeID: input.AssigneeID,
			Status:     input.Status,
			Page:       p,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(paginate(items, limit, ticketKey)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ticket",
		Method:      http.MethodGet,
		Path:        "/tickets/{id}",
		Summary:     "Get ticket with its comments",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*body[engine.TicketDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.TicketDetail(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-ticket",
		Method:      http.MethodPatch,
		Path:        "/tickets/{id}",
		Summary:     "Edit ticket fields or move it through its lifecycle",
		Errors:      patchErrors,
	}, func(ctx context.Context, input *patchInput) (*body[engine.TicketDetail], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		patch, err := decodePatch(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		t, err := e.UpdateTicket(ctx, actorID, input.ID, patch)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "comment-ticket",
		Method:        http.MethodPost,
		Path:          "/tickets/{id}/comments",
		Summary:       "Add a comment to a ticket",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body CommentRequest `json:"body"`
	}) (*body[domain.TicketComment], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.AddComment(ctx, actorID, input.ID, input.Body.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(c), nil
	})
}

func registerLifecycle(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-lifecycle",
		Method:      http.MethodGet,
		Path:        "/lifecycle/{entity}",
		Summary:     "Describe an entity's statuses, editors, fields and transitions",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Entity string `path:"entity" doc:"claim, policy, invoice or ticket"`
	}) (*body[lifecycle.Export], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		exp, err := e.Blueprint(ctx, actorID, input.Entity)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(exp), nil
	})
}
