package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

const invoiceColumns = `id,invoice_number,client_id,insurer_id,policy_id,status,billing_period,total_amount,tax_amount,affiliate_count,issue_date,due_date,discrepancy_notes,notes,created_by_id,updated_by_id,created_at,updated_at`

func (r Repo) InsertInvoice(ctx context.Context, q sqlx.ExtContext, inv domain.Invoice) error {
	return insert(ctx, q, `INSERT INTO invoices(`+invoiceColumns+`) VALUES (:id,:invoice_number,:client_id,:insurer_id,:policy_id,:status,:billing_period,:total_amount,:tax_amount,:affiliate_count,:issue_date,:due_date,:discrepancy_notes,:notes,:created_by_id,:updated_by_id,:created_at,:updated_at)`, inv)
}

func (r Repo) GetInvoice(ctx context.Context, q sqlx.ExtContext, id string) (domain.Invoice, error) {
	var inv domain.Invoice
	err := get(ctx, q, &inv, `SELECT `+invoiceColumns+` FROM invoices WHERE id=?`, id)
	return inv, err
}

func (r Repo) GetInvoiceByNumber(ctx context.Context, number string) (domain.Invoice, error) {
	var inv domain.Invoice
	err := get(ctx, r.DB, &inv, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number=?`, number)
	return inv, err
}

type InvoiceFilters struct {
	ClientID  string
	ClientIDs []string
	InsurerID string
	Status    string
	Page
}

func (r Repo) ListInvoices(ctx context.Context, f InvoiceFilters) ([]domain.Invoice, error) {
	var w where
	w.eq("client_id", f.ClientID)
	w.in("client_id", f.ClientIDs)
	w.eq("insurer_id", f.InsurerID)
	w.eq("status", f.Status)
	var out []domain.Invoice
	err := r.selectPage(ctx, &out, `SELECT `+invoiceColumns+` FROM invoices`, w, f.Page)
	return out, err
}
