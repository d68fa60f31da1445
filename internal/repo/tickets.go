package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

const ticketColumns = `id,ticket_number,client_id,subject,description,priority,status,assignee_id,resolution,created_by_id,updated_by_id,created_at,updated_at`

func (r Repo) InsertTicket(ctx context.Context, q sqlx.ExtContext, t domain.Ticket) error {
	return insert(ctx, q, `INSERT INTO tickets(`+ticketColumns+`) VALUES (:id,:ticket_number,:client_id,:subject,:description,:priority,:status,:assignee_id,:resolution,:created_by_id,:updated_by_id,:created_at,:updated_at)`, t)
}

func (r Repo) GetTicket(ctx context.Context, q sqlx.ExtContext, id string) (domain.Ticket, error) {
	var t domain.Ticket
	err := get(ctx, q, &t, `SELECT `+ticketColumns+` FROM tickets WHERE id=?`, id)
	return t, err
}

type TicketFilters struct {
	ClientID   string
	ClientIDs  []string
	Status     string
	AssigneeID string
	Page
}

func (r Repo) ListTickets(ctx context.Context, f TicketFilters) ([]domain.Ticket, error) {
	var w where
	w.eq("client_id", f.ClientID)
	w.in("client_id", f.ClientIDs)
	w.eq("status", f.Status)
	w.eq("assignee_id", f.AssigneeID)
	var out []domain.Ticket
	err := r.selectPage(ctx, &out, `SELECT `+ticketColumns+` FROM tickets`, w, f.Page)
	return out, err
}

const commentColumns = `id,ticket_id,author_id,body,created_at`

func (r Repo) InsertComment(ctx context.Context, q sqlx.ExtContext, c domain.TicketComment) error {
	return insert(ctx, q, `INSERT INTO ticket_comments(`+commentColumns+`) VALUES (:id,:ticket_id,:author_id,:body,:created_at)`, c)
}

func (r Repo) ListComments(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	out := []domain.TicketComment{}
	err := selectAll(ctx, r.DB, &out, `SELECT `+commentColumns+` FROM ticket_comments WHERE ticket_id=? ORDER BY created_at, id`, ticketID)
	return out, err
}
