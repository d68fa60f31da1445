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

type PolicyInput struct {
	PolicyNumber           string   `json:"policyNumber"`
	ClientID               string   `json:"clientId"`
	InsurerID              *string  `json:"insurerId,omitempty"`
	Type                   *string  `json:"type,omitempty"`
	StartDate              *string  `json:"startDate,omitempty"`
	EndDate                *string  `json:"endDate,omitempty"`
	SumInsured             *float64 `json:"sumInsured,omitempty"`
	Deductible             *float64 `json:"deductible,omitempty"`
	CoinsuranceRate        *float64 `json:"coinsuranceRate,omitempty"`
	MaxCoinsurance         *float64 `json:"maxCoinsurance,omitempty"`
	PremiumEmployee        *float64 `json:"premiumEmployee,omitempty"`
	PremiumEmployeePlusOne *float64 `json:"premiumEmployeePlusOne,omitempty"`
	PremiumFamily          *float64 `json:"premiumFamily,omitempty"`
	Notes                  *string  `json:"notes,omitempty"`
}

type PolicyDetail struct {
	domain.Policy
	ClientName  string              `json:"clientName"`
	InsurerName *string             `json:"insurerName"`
	ClaimCount  int                 `json:"claimCount"`
	Attachments []domain.Attachment `json:"attachments"`
}

func (e Engine) CreatePolicy(ctx context.Context, actorID string, in PolicyInput) (PolicyDetail, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return PolicyDetail{}, err
	}
	if !acc.IsStaff() {
		return PolicyDetail{}, forbidden("role %s cannot create policies", acc.Role)
	}
	if err := required("policyNumber", in.PolicyNumber); err != nil {
		return PolicyDetail{}, err
	}
	if err := e.checkClient(ctx, in.ClientID); err != nil {
		return PolicyDetail{}, err
	}
	if _, err := e.Repo.GetPolicyByNumber(ctx, in.PolicyNumber); err == nil {
		return PolicyDetail{}, apperr.Newf(apperr.Conflict, "policy number %s already exists", in.PolicyNumber).With("field", "policyNumber")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return PolicyDetail{}, err
	}

	raw := map[string]any{}
	put(raw, lifecycle.FieldInsurerID, in.InsurerID)
	put(raw, lifecycle.FieldType, in.Type)
	put(raw, lifecycle.FieldStartDate, in.StartDate)
	put(raw, lifecycle.FieldEndDate, in.EndDate)
	put(raw, lifecycle.FieldSumInsured, in.SumInsured)
	put(raw, lifecycle.FieldDeductible, in.Deductible)
	put(raw, lifecycle.FieldCoinsuranceRate, in.CoinsuranceRate)
	put(raw, lifecycle.FieldMaxCoinsurance, in.MaxCoinsurance)
	put(raw, lifecycle.FieldPremiumEmployee, in.PremiumEmployee)
	put(raw, lifecycle.FieldPremiumEmployeePlusOne, in.PremiumEmployeePlusOne)
	put(raw, lifecycle.FieldPremiumFamily, in.PremiumFamily)
	put(raw, lifecycle.FieldNotes, in.Notes)
	vals, err := lifecycle.PolicySchema.Coerce(raw)
	if err != nil {
		return PolicyDetail{}, err
	}
	if err := e.checkInsurerRef(ctx, vals); err != nil {
		return PolicyDetail{}, err
	}

	now := e.timestamp()
	p := domain.Policy{
		ID:                     uuid.NewString(),
		PolicyNumber:           in.PolicyNumber,
		ClientID:               in.ClientID,
		InsurerID:              strOf(vals, lifecycle.FieldInsurerID),
		Type:                   strOf(vals, lifecycle.FieldType),
		Status:                 string(lifecycle.Policy.Initial),
		StartDate:              strOf(vals, lifecycle.FieldStartDate),
		EndDate:                strOf(vals, lifecycle.FieldEndDate),
		SumInsured:             numOf(vals, lifecycle.FieldSumInsured),
		Deductible:             numOf(vals, lifecycle.FieldDeductible),
		CoinsuranceRate:        numOf(vals, lifecycle.FieldCoinsuranceRate),
		MaxCoinsurance:         numOf(vals, lifecycle.FieldMaxCoinsurance),
		PremiumEmployee:        numOf(vals, lifecycle.FieldPremiumEmployee),
		PremiumEmployeePlusOne: numOf(vals, lifecycle.FieldPremiumEmployeePlusOne),
		PremiumFamily:          numOf(vals, lifecycle.FieldPremiumFamily),
		Notes:                  strOf(vals, lifecycle.FieldNotes),
		CreatedByID:            acc.UserID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := e.create(ctx, acc, "policy", p.ID, p, func(tx *sqlx.Tx) error {
		return e.Repo.InsertPolicy(ctx, tx, p)
	}); err != nil {
		return PolicyDetail{}, err
	}
	return e.PolicyDetail(ctx, actorID, p.ID)
}

func (e Engine) checkClient(ctx context.Context, clientID string) error {
	if err := required("clientId", clientID); err != nil {
		return err
	}
	if _, err := e.Repo.GetClient(ctx, e.DB, clientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return badRequest("client %s does not exist", clientID).With("field", "clientId")
		}
		return err
	}
	return nil
}

func (e Engine) checkInsurerRef(ctx context.Context, updates lifecycle.Values) error {
	insurerID := strOf(updates, lifecycle.FieldInsurerID)
	if insurerID == nil {
		return nil
	}
	if _, err := e.Repo.GetInsurer(ctx, *insurerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return badRequest("insurer %s does not exist", *insurerID).With("field", string(lifecycle.FieldInsurerID))
		}
		return err
	}
	return nil
}

type PolicyListOptions struct {
	ClientID  string
	Status    string
	InsurerID string
	repo.Page
}

func (e Engine) ListPolicies(ctx context.Context, actorID string, opts PolicyListOptions) ([]domain.Policy, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListPolicies(ctx, repo.PolicyFilters{
		ClientID:  opts.ClientID,
		ClientIDs: acc.ClientScope(),
		Status:    opts.Status,
		InsurerID: opts.InsurerID,
		Page:      opts.Page,
	})
}

func (e Engine) PolicyDetail(ctx context.Context, actorID, id string) (PolicyDetail, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return PolicyDetail{}, err
	}
	p, err := e.Repo.GetPolicy(ctx, e.DB, id)
	if err != nil {
		return PolicyDetail{}, loadErr(err, "policy", id)
	}
	if !acc.CanSeeClient(p.ClientID) {
		return PolicyDetail{}, notFound("policy", id)
	}
	d := PolicyDetail{Policy: p}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		client, err := e.Repo.GetClient(gctx, e.DB, p.ClientID)
		d.ClientName = client.Name
		return err
	})
	if p.InsurerID != nil {
		g.Go(func() error {
			ins, err := e.Repo.GetInsurer(gctx, *p.InsurerID)
			if err == nil {
				d.InsurerName = &ins.Name
			}
			return err
		})
	}
	g.Go(func() (err error) {
		d.ClaimCount, err = e.Repo.CountClaimsForPolicy(gctx, p.ID)
		return err
	})
	g.Go(func() (err error) {
		d.Attachments, err = e.Repo.ListAttachments(gctx, domain.ResourcePolicy, p.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return PolicyDetail{}, err
	}
	return d, nil
}

func (e Engine) UpdatePolicy(ctx context.Context, actorID, id string, patch Patch) (PolicyDetail, error) {
	ad := editAdapter{
		Blueprint: lifecycle.Policy,
		Schema:    lifecycle.PolicySchema,
		Table:     "policies",
		Load: func(ctx context.Context, q sqlx.ExtContext, id string, acc auth.Access) (editTarget, error) {
			p, err := e.Repo.GetPolicy(ctx, q, id)
			if err != nil {
				return editTarget{}, err
			}
			vals, err := valuesOf(p, lifecycle.PolicySchema)
			if err != nil {
				return editTarget{}, err
			}
			return editTarget{Record: p, Values: vals, Visible: acc.CanSeeClient(p.ClientID)}, nil
		},
		CheckRefs: func(ctx context.Context, _ editTarget, updates lifecycle.Values) error {
			return e.checkInsurerRef(ctx, updates)
		},
	}
	if _, err := e.edit(ctx, actorID, id, patch, ad); err != nil {
		return PolicyDetail{}, err
	}
	return e.PolicyDetail(ctx, actorID, id)
}
