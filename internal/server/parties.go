package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine"
)

func clientKey(c domain.Client) (string, string)       { return c.CreatedAt, c.ID }
func affiliateKey(a domain.Affiliate) (string, string) { return a.CreatedAt, a.ID }
func insurerKey(i domain.Insurer) (string, string)     { return i.CreatedAt, i.ID }

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Register a corporate client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body engine.ClientInput `json:"body"`
	}) (*body[domain.Client], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateClient(ctx, actorID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List visible clients",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ListParams
	}) (*body[page[domain.Client]], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, limit, err := input.repoPage()
		if err != nil {
			return nil, handleError(ctx, err)
		}
		items, err := e.ListClients(ctx, actorID, p)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(paginate(items, limit, clientKey)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*body[domain.Client], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.GetClient(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-client",
		Method:      http.MethodPatch,
		Path:        "/clients/{id}",
		Summary:     "Update client contact data",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body engine.ClientPatch `json:"body"`
	}) (*body[domain.Client], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateClient(ctx, actorID, input.ID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(c), nil
	})
}

func registerAffiliates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-affiliate",
		Method:        http.MethodPost,
		Path:          "/affiliates",
		Summary:       "Register an affiliate or dependent",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body engine.AffiliateInput `json:"body"`
	}) (*body[domain.Affiliate], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAffiliate(ctx, actorID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-affiliates",
		Method:      http.MethodGet,
		Path:        "/affiliates",
		Summary:     "List visible affiliates",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ClientID string `query:"client_id"`
		ListParams
	}) (*body[page[domain.Affiliate]], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, limit, err := input.repoPage()
		if err != nil {
			return nil, handleError(ctx, err)
		}
		items, err := e.ListAffiliates(ctx, actorID, input.ClientID, p)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(paginate(items, limit, affiliateKey)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-affiliate",
		Method:      http.MethodGet,
		Path:        "/affiliates/{id}",
		Summary:     "Get affiliate",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*body[domain.Affiliate], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.GetAffiliate(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(a), nil
	})
}

func registerInsurers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-insurer",
		Method:        http.MethodPost,
		Path:          "/insurers",
		Summary:       "Register an insurer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body engine.InsurerInput `json:"body"`
	}) (*body[domain.Insurer], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.CreateInsurer(ctx, actorID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(i), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-insurers",
		Method:      http.MethodGet,
		Path:        "/insurers",
		Summary:     "List insurers",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ListParams
	}) (*body[page[domain.Insurer]], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, limit, err := input.repoPage()
		if err != nil {
			return nil, handleError(ctx, err)
		}
		items, err := e.ListInsurers(ctx, actorID, p)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(paginate(items, limit, insurerKey)), nil
	})
}
