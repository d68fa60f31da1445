package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine"
)

func userKey(u domain.User) (string, string) { return u.CreatedAt, u.ID }

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

func registerSession(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange credentials for a bearer token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*body[engine.Session], error) {
		s, err := e.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user and visibility scope",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*body[engine.Me], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		me, err := e.Me(ctx, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(me), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users (broker staff only)",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ListParams
	}) (*body[page[domain.User]], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, limit, err := input.repoPage()
		if err != nil {
			return nil, handleError(ctx, err)
		}
		users, err := e.ListUsers(ctx, actorID, p)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(paginate(users, limit, userKey)), nil
	})
}

func registerInvitations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-invitation",
		Method:        http.MethodPost,
		Path:          "/invitations",
		Summary:       "Invite a user by email",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body engine.InvitationInput `json:"body"`
	}) (*body[engine.InvitationCreated], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inv, err := e.CreateInvitation(ctx, actorID, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(inv), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-invitation",
		Method:      http.MethodPost,
		Path:        "/invitations/accept",
		Summary:     "Redeem an invitation token and sign in",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body engine.AcceptInput `json:"body"`
	}) (*body[engine.Session], error) {
		s, err := e.AcceptInvitation(ctx, input.Body)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return reply(s), nil
	})
}
