package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"brokerdesk/internal/audit"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/engine/auth"
	"brokerdesk/internal/lifecycle"
	"brokerdesk/internal/repo"
)

// ClaimCreators may open claims; scoped roles only within their scope.
var ClaimCreators = domain.BrokerEmployees.Union(domain.ScopedRoles)

type ClaimInput struct {
	AffiliateID          string   `json:"affiliateId"`
	PatientID            string   `json:"patientId,omitempty" doc:"Defaults to the affiliate"`
	PolicyID             *string  `json:"policyId,omitempty"`
	Description          *string  `json:"description,omitempty"`
	CareType             *string  `json:"careType,omitempty"`
	DiagnosisCode        *string  `json:"diagnosisCode,omitempty"`
	DiagnosisDescription *string  `json:"diagnosisDescription,omitempty"`
	IncidentDate         *string  `json:"incidentDate,omitempty"`
	SubmittedDate        *string  `json:"submittedDate,omitempty"`
	AmountSubmitted      *float64 `json:"amountSubmitted,omitempty"`
}

type ClaimDetail struct {
	domain.Claim
	ClientName    string                  `json:"clientName"`
	AffiliateName string                  `json:"affiliateName"`
	PatientName   string                  `json:"patientName"`
	PolicyNumber  *string                 `json:"policyNumber"`
	Reprocesses   []domain.ClaimReprocess `json:"reprocesses"`
	Attachments   []domain.Attachment     `json:"attachments"`
}

func (e Engine) CreateClaim(ctx context.Context, actorID string, in ClaimInput) (ClaimDetail, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return ClaimDetail{}, err
	}
	if !acc.Is(ClaimCreators) {
		return ClaimDetail{}, forbidden("role %s cannot create claims", acc.Role)
	}
	if err := required("affiliateId", in.AffiliateID); err != nil {
		return ClaimDetail{}, err
	}
	aff, err := e.Repo.GetAffiliate(ctx, in.AffiliateID)
	if err != nil {
		return ClaimDetail{}, loadErr(err, "affiliate", in.AffiliateID)
	}
	if !acc.CanSeeAffiliate(aff.ClientID, aff.ID) {
		return ClaimDetail{}, notFound("affiliate", in.AffiliateID)
	}
	patientID := in.PatientID
	if patientID == "" {
		patientID = aff.ID
	}
	if patientID != aff.ID {
		patient, err := e.Repo.GetAffiliate(ctx, patientID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && (patient.PrimaryAffiliateID == nil || *patient.PrimaryAffiliateID != aff.ID)) {
			return ClaimDetail{}, badRequest("patient %s must be the affiliate or one of its dependents", patientID).With("field", "patientId")
		}
		if err != nil {
			return ClaimDetail{}, err
		}
	}

	raw := map[string]any{}
	put(raw, lifecycle.FieldPolicyID, in.PolicyID)
	put(raw, lifecycle.FieldDescription, in.Description)
	put(raw, lifecycle.FieldCareType, in.CareType)
	put(raw, lifecycle.FieldDiagnosisCode, in.DiagnosisCode)
	put(raw, lifecycle.FieldDiagnosisDescription, in.DiagnosisDescription)
	put(raw, lifecycle.FieldIncidentDate, in.IncidentDate)
	put(raw, lifecycle.FieldSubmittedDate, in.SubmittedDate)
	put(raw, lifecycle.FieldAmountSubmitted, in.AmountSubmitted)
	vals, err := lifecycle.ClaimSchema.Coerce(raw)
	if err != nil {
		return ClaimDetail{}, err
	}
	if policyID := strOf(vals, lifecycle.FieldPolicyID); policyID != nil {
		if err := e.checkPolicyRef(ctx, *policyID, aff.ClientID); err != nil {
			return ClaimDetail{}, err
		}
	}

	now := e.timestamp()
	c := domain.Claim{
		ID:                   uuid.NewString(),
		ClaimNumber:          reference("CLM", e.now()),
		ClientID:             aff.ClientID,
		AffiliateID:          aff.ID,
		PatientID:            patientID,
		PolicyID:             strOf(vals, lifecycle.FieldPolicyID),
		Status:               string(lifecycle.Claim.Initial),
		Description:          strOf(vals, lifecycle.FieldDescription),
		CareType:             strOf(vals, lifecycle.FieldCareType),
		DiagnosisCode:        strOf(vals, lifecycle.FieldDiagnosisCode),
		DiagnosisDescription: strOf(vals, lifecycle.FieldDiagnosisDescription),
		IncidentDate:         strOf(vals, lifecycle.FieldIncidentDate),
		SubmittedDate:        strOf(vals, lifecycle.FieldSubmittedDate),
		AmountSubmitted:      numOf(vals, lifecycle.FieldAmountSubmitted),
		CreatedByID:          acc.UserID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := e.create(ctx, acc, "claim", c.ID, c, func(tx *sqlx.Tx) error {
		return e.Repo.InsertClaim(ctx, tx, c)
	}); err != nil {
		return ClaimDetail{}, err
	}
	return e.ClaimDetail(ctx, actorID, c.ID)
}

// create inserts one record and its audit entry atomically.
func (e Engine) create(ctx context.Context, acc auth.Access, resource, id string, record any, insert func(tx *sqlx.Tx) error) error {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insert(tx); err != nil {
		return storeErr(err, resource)
	}
	if _, err := e.Audit.Append(ctx, tx, audit.Entry{
		Action:       audit.Action(resource, audit.ActionCreated),
		ResourceType: resource,
		ResourceID:   id,
		ActorUserID:  acc.UserID,
		After:        record,
		Metadata:     map[string]any{"role": acc.Role},
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err, resource)
	}
	e.Logger.InfoContext(ctx, "created", "entity", resource, "id", id, "actor", acc.UserID)
	return nil
}

func (e Engine) checkPolicyRef(ctx context.Context, policyID, clientID string) error {
	p, err := e.Repo.GetPolicy(ctx, e.DB, policyID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && p.ClientID != clientID) {
		return badRequest("policy %s does not belong to client %s", policyID, clientID).With("field", string(lifecycle.FieldPolicyID))
	}
	return err
}

type ClaimListOptions struct {
	ClientID    string
	AffiliateID string
	Status      string
	PolicyID    string
	repo.Page
}

func (e Engine) ListClaims(ctx context.Context, actorID string, opts ClaimListOptions) ([]domain.Claim, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListClaims(ctx, repo.ClaimFilters{
		ClientID:     opts.ClientID,
		ClientIDs:    acc.ClientScope(),
		AffiliateID:  opts.AffiliateID,
		AffiliateIDs: acc.AffiliateScope(),
		Status:       opts.Status,
		PolicyID:     opts.PolicyID,
		Page:         opts.Page,
	})
}

// ClaimDetail is the read projection shared by GET and the edit response.
func (e Engine) ClaimDetail(ctx context.Context, actorID, id string) (ClaimDetail, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return ClaimDetail{}, err
	}
	c, err := e.Repo.GetClaim(ctx, e.DB, id)
	if err != nil {
		return ClaimDetail{}, loadErr(err, "claim", id)
	}
	if !acc.CanSeeAffiliate(c.ClientID, c.AffiliateID) {
		return ClaimDetail{}, notFound("claim", id)
	}
	d := ClaimDetail{Claim: c}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		client, err := e.Repo.GetClient(gctx, e.DB, c.ClientID)
		d.ClientName = client.Name
		return err
	})
	g.Go(func() error {
		aff, err := e.Repo.GetAffiliate(gctx, c.AffiliateID)
		d.AffiliateName = aff.FullName()
		return err
	})
	g.Go(func() error {
		patient, err := e.Repo.GetAffiliate(gctx, c.PatientID)
		d.PatientName = patient.FullName()
		return err
	})
	if c.PolicyID != nil {
		g.Go(func() error {
			p, err := e.Repo.GetPolicy(gctx, e.DB, *c.PolicyID)
			if err == nil {
				d.PolicyNumber = &p.PolicyNumber
			}
			return err
		})
	}
	g.Go(func() (err error) {
		d.Reprocesses, err = e.Repo.ListReprocesses(gctx, c.ID)
		return err
	})
	g.Go(func() (err error) {
		d.Attachments, err = e.Repo.ListAttachments(gctx, domain.ResourceClaim, c.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ClaimDetail{}, err
	}
	return d, nil
}

// UpdateClaim applies a patch through the claim lifecycle.
func (e Engine) UpdateClaim(ctx context.Context, actorID, id string, patch Patch) (ClaimDetail, error) {
	ad := editAdapter{
		Blueprint: lifecycle.Claim,
		Schema:    lifecycle.ClaimSchema,
		Table:     "claims",
	}
	ad.Load = func(ctx context.Context, q sqlx.ExtContext, id string, acc auth.Access) (editTarget, error) {
		c, err := e.Repo.GetClaim(ctx, q, id)
		if err != nil {
			return editTarget{}, err
		}
		vals, err := valuesOf(c, lifecycle.ClaimSchema)
		if err != nil {
			return editTarget{}, err
		}
		return editTarget{Record: c, Values: vals, Visible: acc.CanSeeAffiliate(c.ClientID, c.AffiliateID)}, nil
	}
	ad.CheckRefs = func(ctx context.Context, target editTarget, updates lifecycle.Values) error {
		policyID := strOf(updates, lifecycle.FieldPolicyID)
		if policyID == nil {
			return nil
		}
		return e.checkPolicyRef(ctx, *policyID, target.Record.(domain.Claim).ClientID)
	}
	ad.AfterWrite = func(ctx context.Context, tx *sqlx.Tx, id string, acc auth.Access, change Change, side lifecycle.Values) error {
		if change.From != lifecycle.ClaimPendingInfo || change.To != lifecycle.ClaimSubmitted {
			return nil
		}
		return e.Repo.InsertReprocess(ctx, tx, domain.ClaimReprocess{
			ID:                   uuid.NewString(),
			ClaimID:              id,
			ReprocessDate:        *strOf(side, lifecycle.FieldReprocessDate),
			ReprocessDescription: *strOf(side, lifecycle.FieldReprocessDescription),
			CreatedByID:          acc.UserID,
			CreatedAt:            e.timestamp(),
		})
	}
	if _, err := e.edit(ctx, actorID, id, patch, ad); err != nil {
		return ClaimDetail{}, err
	}
	return e.ClaimDetail(ctx, actorID, id)
}
