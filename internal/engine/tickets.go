package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"brokerdesk/internal/audit"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine/auth"
	"brokerdesk/internal/lifecycle"
	"brokerdesk/internal/repo"
)

type TicketInput struct {
	ClientID    string  `json:"clientId"`
	Subject     string  `json:"subject"`
	Description *string `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty" enum:"LOW,NORMAL,HIGH,URGENT"`
}

type TicketDetail struct {
	domain.Ticket
	ClientName   string                 `json:"clientName"`
	AssigneeName *string                `json:"assigneeName"`
	Comments     []domain.TicketComment `json:"comments"`
	Attachments  []domain.Attachment    `json:"attachments"`
}

// CreateTicket opens a ticket. Any authenticated user may do so for a client
// they can see.
func (e Engine) CreateTicket(ctx context.Context, actorID string, in TicketInput) (TicketDetail, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return TicketDetail{}, err
	}
	if err := e.checkClient(ctx, in.ClientID); err != nil {
		return TicketDetail{}, err
	}
	if !acc.CanSeeClient(in.ClientID) {
		return TicketDetail{}, notFound("client", in.ClientID)
	}
	if in.Priority == "" {
		in.Priority = "NORMAL"
	}
	raw := map[string]any{
		string(lifecycle.FieldSubject):  in.Subject,
		string(lifecycle.FieldPriority): in.Priority,
	}
	put(raw, lifecycle.FieldDescription, in.Description)
	vals, err := lifecycle.TicketSchema.Coerce(raw)
	if err != nil {
		return TicketDetail{}, err
	}

	now := e.timestamp()
	t := domain.Ticket{
		ID:           uuid.NewString(),
		TicketNumber: reference("TCK", e.now()),
		ClientID:     in.ClientID,
		Subject:      *strOf(vals, lifecycle.FieldSubject),
		Description:  strOf(vals, lifecycle.FieldDescription),
		Priority:     *strOf(vals, lifecycle.FieldPriority),
		Status:       string(lifecycle.Ticket.Initial),
		CreatedByID:  acc.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.create(ctx, acc, "ticket", t.ID, t, func(tx *sqlx.Tx) error {
		return e.Repo.InsertTicket(ctx, tx, t)
	}); err != nil {
		return TicketDetail{}, err
	}
	return e.TicketDetail(ctx, actorID, t.ID)
}

type TicketListOptions struct {
	ClientID   string
	Status     string
	AssigneeID string
	repo.Page
}

func (e Engine) ListTickets(ctx context.Context, actorID string, opts TicketListOptions) ([]domain.Ticket, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListTickets(ctx, repo.TicketFilters{
		ClientID:   opts.ClientID,
		ClientIDs:  acc.ClientScope(),
		Status:     opts.Status,
		AssigneeID: opts.AssigneeID,
		Page:       opts.Page,
	})
}

func (e Engine) TicketDetail(ctx context.Context, actorID, id string) (TicketDetail, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return TicketDetail{}, err
	}
	t, err := e.visibleTicket(ctx, acc, id)
	if err != nil {
		return TicketDetail{}, err
	}
	d := TicketDetail{Ticket: t}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		client, err := e.Repo.GetClient(gctx, e.DB, t.ClientID)
		d.ClientName = client.Name
		return err
	})
	if t.AssigneeID != nil {
		g.Go(func() error {
			u, err := e.Repo.GetUser(gctx, *t.AssigneeID)
			if err == nil {
				d.AssigneeName = &u.Name
			}
			return err
		})
	}
	g.Go(func() (err error) {
		d.Comments, err = e.Repo.ListComments(gctx, t.ID)
		return err
	})
	g.Go(func() (err error) {
		d.Attachments, err = e.Repo.ListAttachments(gctx, domain.ResourceTicket, t.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return TicketDetail{}, err
	}
	return d, nil
}

func (e Engine) visibleTicket(ctx context.Context, acc auth.Access, id string) (domain.Ticket, error) {
	t, err := e.Repo.GetTicket(ctx, e.DB, id)
	if err != nil {
		return domain.Ticket{}, loadErr(err, "ticket", id)
	}
	if !acc.CanSeeClient(t.ClientID) {
		return domain.Ticket{}, notFound("ticket", id)
	}
	return t, nil
}

// AddComment appends to a ticket's thread; anyone who can see the ticket may comment.
func (e Engine) AddComment(ctx context.Context, actorID, ticketID, body string) (domain.TicketComment, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return domain.TicketComment{}, err
	}
	if _, err := e.visibleTicket(ctx, acc, ticketID); err != nil {
		return domain.TicketComment{}, err
	}
	body = strings.TrimSpace(body)
	if err := required("body", body); err != nil {
		return domain.TicketComment{}, err
	}
	c := domain.TicketComment{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		AuthorID:  acc.UserID,
		Body:      body,
		CreatedAt: e.timestamp(),
	}
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.TicketComment{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertComment(ctx, tx, c); err != nil {
		return domain.TicketComment{}, storeErr(err, "comment")
	}
	if _, err := e.Audit.Append(ctx, tx, audit.Entry{
		Action:       audit.Action(domain.ResourceTicket, audit.ActionCommented),
		ResourceType: domain.ResourceTicket,
		ResourceID:   ticketID,
		ActorUserID:  acc.UserID,
		After:        c,
		Metadata:     map[string]any{"role": acc.Role},
	}); err != nil {
		return domain.TicketComment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TicketComment{}, err
	}
	return c, nil
}

func (e Engine) UpdateTicket(ctx context.Context, actorID, id string, patch Patch) (TicketDetail, error) {
	ad := editAdapter{
		Blueprint: lifecycle.Ticket,
		Schema:    lifecycle.TicketSchema,
		Table:     "tickets",
		Load: func(ctx context.Context, q sqlx.ExtContext, id string, acc auth.Access) (editTarget, error) {
			t, err := e.Repo.GetTicket(ctx, q, id)
			if err != nil {
				return editTarget{}, err
			}
			vals, err := valuesOf(t, lifecycle.TicketSchema)
			if err != nil {
				return editTarget{}, err
			}
			return editTarget{Record: t, Values: vals, Visible: acc.CanSeeClient(t.ClientID)}, nil
		},
		CheckRefs: func(ctx context.Context, _ editTarget, updates lifecycle.Values) error {
			assigneeID := strOf(updates, lifecycle.FieldAssigneeID)
			if assigneeID == nil {
				return nil
			}
			u, err := e.Repo.GetUser(ctx, *assigneeID)
			if errors.Is(err, repo.ErrNotFound) || (err == nil && !domain.BrokerEmployees.Has(u.Role)) {
				return badRequest("assignee %s must be a broker employee", *assigneeID).With("field", string(lifecycle.FieldAssigneeID))
			}
			return err
		},
	}
	if _, err := e.edit(ctx, actorID, id, patch, ad); err != nil {
		return TicketDetail{}, err
	}
	return e.TicketDetail(ctx, actorID, id)
}
