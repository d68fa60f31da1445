package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine/auth"
	"brokerdesk/internal/lifecycle"
	"brokerdesk/internal/repo"
)

type InvoiceInput struct {
	InvoiceNumber  string   `json:"invoiceNumber"`
	ClientID       string   `json:"clientId"`
	InsurerID      string   `json:"insurerId"`
	PolicyID       *string  `json:"policyId,omitempty"`
	BillingPeriod  *string  `json:"billingPeriod,omitempty" doc:"YYYY-MM"`
	TotalAmount    *float64 `json:"totalAmount,omitempty"`
	TaxAmount      *float64 `json:"taxAmount,omitempty"`
	AffiliateCount *int64   `json:"affiliateCount,omitempty"`
	IssueDate      *string  `json:"issueDate,omitempty"`
	DueDate        *string  `json:"dueDate,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
}

type InvoiceDetail struct {
	domain.Invoice
	ClientName   string              `json:"clientName"`
	InsurerName  string              `json:"insurerName"`
	PolicyNumber *string             `json:"policyNumber"`
	Attachments  []domain.Attachment `json:"attachments"`
}

func (e Engine) CreateInvoice(ctx context.Context, actorID string, in InvoiceInput) (InvoiceDetail, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return InvoiceDetail{}, err
	}
	if !acc.IsStaff() {
		return InvoiceDetail{}, forbidden("role %s cannot create invoices", acc.Role)
	}
	if err := required("invoiceNumber", in.InvoiceNumber); err != nil {
		return InvoiceDetail{}, err
	}
	if err := e.checkClient(ctx, in.ClientID); err != nil {
		return InvoiceDetail{}, err
	}
	if err := required("insurerId", in.InsurerID); err != nil {
		return InvoiceDetail{}, err
	}
	if err := e.checkInsurerRef(ctx, lifecycle.Values{lifecycle.FieldInsurerID: in.InsurerID}); err != nil {
		return InvoiceDetail{}, err
	}
	if _, err := e.Repo.GetInvoiceByNumber(ctx, in.InvoiceNumber); err == nil {
		return InvoiceDetail{}, apperr.Newf(apperr.Conflict, "invoice number %s already exists", in.InvoiceNumber).With("field", "invoiceNumber")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return InvoiceDetail{}, err
	}

	raw := map[string]any{}
	put(raw, lifecycle.FieldPolicyID, in.PolicyID)
	put(raw, lifecycle.FieldBillingPeriod, in.BillingPeriod)
	put(raw, lifecycle.FieldTotalAmount, in.TotalAmount)
	put(raw, lifecycle.FieldTaxAmount, in.TaxAmount)
	put(raw, lifecycle.FieldAffiliateCount, in.AffiliateCount)
	put(raw, lifecycle.FieldIssueDate, in.IssueDate)
	put(raw, lifecycle.FieldDueDate, in.DueDate)
	put(raw, lifecycle.FieldNotes, in.Notes)
	vals, err := lifecycle.InvoiceSchema.Coerce(raw)
	if err != nil {
		return InvoiceDetail{}, err
	}
	if policyID := strOf(vals, lifecycle.FieldPolicyID); policyID != nil {
		if err := e.checkPolicyRef(ctx, *policyID, in.ClientID); err != nil {
			return InvoiceDetail{}, err
		}
	}

	now := e.timestamp()
	inv := domain.Invoice{
		ID:             uuid.NewString(),
		InvoiceNumber:  in.InvoiceNumber,
		ClientID:       in.ClientID,
		InsurerID:      in.InsurerID,
		PolicyID:       strOf(vals, lifecycle.FieldPolicyID),
		Status:         string(lifecycle.Invoice.Initial),
		BillingPeriod:  strOf(vals, lifecycle.FieldBillingPeriod),
		TotalAmount:    numOf(vals, lifecycle.FieldTotalAmount),
		TaxAmount:      numOf(vals, lifecycle.FieldTaxAmount),
		AffiliateCount: intOf(vals, lifecycle.FieldAffiliateCount),
		IssueDate:      strOf(vals, lifecycle.FieldIssueDate),
		DueDate:        strOf(vals, lifecycle.FieldDueDate),
		Notes:          strOf(vals, lifecycle.FieldNotes),
		CreatedByID:    acc.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.create(ctx, acc, "invoice", inv.ID, inv, func(tx *sqlx.Tx) error {
		return e.Repo.InsertInvoice(ctx, tx, inv)
	}); err != nil {
		return InvoiceDetail{}, err
	}
	return e.InvoiceDetail(ctx, actorID, inv.ID)
}

type InvoiceListOptions struct {
	ClientID  string
	InsurerID string
	Status    string
	repo.Page
}

func (e Engine) ListInvoices(ctx context.Context, actorID string, opts InvoiceListOptions) ([]domain.Invoice, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListInvoices(ctx, repo.InvoiceFilters{
		ClientID:  opts.ClientID,
		ClientIDs: acc.ClientScope(),
		InsurerID: opts.InsurerID,
		Status:    opts.Status,
		Page:      opts.Page,
	})
}

func (e Engine) InvoiceDetail(ctx context.Context, actorID, id string) (InvoiceDetail, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return InvoiceDetail{}, err
	}
	inv, err := e.Repo.GetInvoice(ctx, e.DB, id)
	if err != nil {
		return InvoiceDetail{}, loadErr(err, "invoice", id)
	}
	if !acc.CanSeeClient(inv.ClientID) {
		return InvoiceDetail{}, notFound("invoice", id)
	}
	d := InvoiceDetail{Invoice: inv}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		client, err := e.Repo.GetClient(gctx, e.DB, inv.ClientID)
		d.ClientName = client.Name
		return err
	})
	g.Go(func() error {
		ins, err := e.Repo.GetInsurer(gctx, inv.InsurerID)
		d.InsurerName = ins.Name
		return err
	})
	if inv.PolicyID != nil {
		g.Go(func() error {
			p, err := e.Repo.GetPolicy(gctx, e.DB, *inv.PolicyID)
			if err == nil {
				d.PolicyNumber = &p.PolicyNumber
			}
			return err
		})
	}
	g.Go(func() (err error) {
		d.Attachments, err = e.Repo.ListAttachments(gctx, domain.ResourceInvoice, inv.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return InvoiceDetail{}, err
	}
	return d, nil
}

func (e Engine) UpdateInvoice(ctx context.Context, actorID, id string, patch Patch) (InvoiceDetail, error) {
	ad := editAdapter{
		Blueprint: lifecycle.Invoice,
		Schema:    lifecycle.InvoiceSchema,
		Table:     "invoices",
		Load: func(ctx context.Context, q sqlx.ExtContext, id string, acc auth.Access) (editTarget, error) {
			inv, err := e.Repo.GetInvoice(ctx, q, id)
			if err != nil {
				return editTarget{}, err
			}
			vals, err := valuesOf(inv, lifecycle.InvoiceSchema)
			if err != nil {
				return editTarget{}, err
			}
			return editTarget{Record: inv, Values: vals, Visible: acc.CanSeeClient(inv.ClientID)}, nil
		},
		CheckRefs: func(ctx context.Context, target editTarget, updates lifecycle.Values) error {
			policyID := strOf(updates, lifecycle.FieldPolicyID)
			if policyID == nil {
				return nil
			}
			return e.checkPolicyRef(ctx, *policyID, target.Record.(domain.Invoice).ClientID)
		},
	}
	if _, err := e.edit(ctx, actorID, id, patch, ad); err != nil {
		return InvoiceDetail{}, err
	}
	return e.InvoiceDetail(ctx, actorID, id)
}
