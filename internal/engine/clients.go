package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/audit"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/repo"
)

type ClientInput struct {
	Name    string  `json:"name"`
	TaxID   string  `json:"taxId"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

// ClientPatch updates contact data. Nil pointers leave a column untouched.
type ClientPatch struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

func (e Engine) CreateClient(ctx context.Context, actorID string, in ClientInput) (domain.Client, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return domain.Client{}, err
	}
	if !acc.IsStaff() {
		return domain.Client{}, forbidden("role %s cannot create clients", acc.Role)
	}
	in.Name, in.TaxID = strings.TrimSpace(in.Name), strings.TrimSpace(in.TaxID)
	if err := required("name", in.Name); err != nil {
		return domain.Client{}, err
	}
	if err := required("taxId", in.TaxID); err != nil {
		return domain.Client{}, err
	}
	if _, err := e.Repo.GetClientByTaxID(ctx, in.TaxID); err == nil {
		return domain.Client{}, apperr.Newf(apperr.Conflict, "client with tax id %s already exists", in.TaxID).With("field", "taxId")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Client{}, err
	}
	now := e.timestamp()
	c := domain.Client{
		ID:        uuid.NewString(),
		Name:      in.Name,
		TaxID:     in.TaxID,
		Email:     trimmed(in.Email),
		Phone:     trimmed(in.Phone),
		Address:   trimmed(in.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.create(ctx, acc, domain.ResourceClient, c.ID, c, func(tx *sqlx.Tx) error {
		return e.Repo.InsertClient(ctx, tx, c)
	}); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (e Engine) ListClients(ctx context.Context, actorID string, page repo.Page) ([]domain.Client, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListClients(ctx, repo.ClientFilters{IDs: acc.ClientScope(), Page: page})
}

func (e Engine) GetClient(ctx context.Context, actorID, id string) (domain.Client, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return domain.Client{}, err
	}
	c, err := e.Repo.GetClient(ctx, e.DB, id)
	if err != nil {
		return domain.Client{}, loadErr(err, "client", id)
	}
	if !acc.CanSeeClient(c.ID) {
		return domain.Client{}, notFound("client", id)
	}
	return c, nil
}

func (e Engine) UpdateClient(ctx context.Context, actorID, id string, patch ClientPatch) (domain.Client, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return domain.Client{}, err
	}
	before, err := e.Repo.GetClient(ctx, e.DB, id)
	if err != nil {
		return domain.Client{}, loadErr(err, "client", id)
	}
	if !acc.CanSeeClient(id) {
		return domain.Client{}, notFound("client", id)
	}
	if !acc.IsStaff() {
		return domain.Client{}, forbidden("role %s cannot edit clients", acc.Role)
	}
	cols := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := required("name", name); err != nil {
			return domain.Client{}, err
		}
		cols["name"] = name
	}
	for col, v := range map[string]*string{"email": patch.Email, "phone": patch.Phone, "address": patch.Address} {
		if v != nil {
			cols[col] = trimmed(v)
		}
	}
	if len(cols) == 0 {
		return before, nil
	}
	cols["updated_at"] = e.timestamp()

	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Client{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateColumns(ctx, tx, "clients", id, cols); err != nil {
		return domain.Client{}, storeErr(err, "client")
	}
	after, err := e.Repo.GetClient(ctx, tx, id)
	if err != nil {
		return domain.Client{}, loadErr(err, "client", id)
	}
	if _, err := e.Audit.Append(ctx, tx, audit.Entry{
		Action:       audit.Action(domain.ResourceClient, audit.ActionUpdated),
		ResourceType: domain.ResourceClient,
		ResourceID:   id,
		ActorUserID:  acc.UserID,
		Before:       before,
		After:        after,
		Metadata:     map[string]any{"role": acc.Role},
	}); err != nil {
		return domain.Client{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Client{}, storeErr(err, "client")
	}
	return after, nil
}

type AffiliateInput struct {
	ClientID           string  `json:"clientId"`
	FirstName          string  `json:"firstName"`
	LastName           string  `json:"lastName"`
	DocumentID         string  `json:"documentId"`
	BirthDate          *string `json:"birthDate,omitempty" doc:"YYYY-MM-DD"`
	Relationship       string  `json:"relationship,omitempty" enum:"PRIMARY,SPOUSE,CHILD,OTHER"`
	PrimaryAffiliateID *string `json:"primaryAffiliateId,omitempty"`
	Email              *string `json:"email,omitempty"`
}

// CreateAffiliate registers a member of a client's plan. CLIENT_ADMIN may
// register members of their own clients.
func (e Engine) CreateAffiliate(ctx context.Context, actorID string, in AffiliateInput) (domain.Affiliate, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return domain.Affiliate{}, err
	}
	if !acc.IsStaff() && acc.Role != domain.RoleClientAdmin {
		return domain.Affiliate{}, forbidden("role %s cannot create affiliates", acc.Role)
	}
	if err := e.checkClient(ctx, in.ClientID); err != nil {
		return domain.Affiliate{}, err
	}
	if !acc.CanSeeClient(in.ClientID) {
		return domain.Affiliate{}, notFound("client", in.ClientID)
	}
	in.FirstName, in.LastName = strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	in.DocumentID = strings.TrimSpace(in.DocumentID)
	for field, v := range map[string]string{"firstName": in.FirstName, "lastName": in.LastName, "documentId": in.DocumentID} {
		if err := required(field, v); err != nil {
			return domain.Affiliate{}, err
		}
	}
	if in.Relationship == "" {
		in.Relationship = domain.RelationshipPrimary
	}
	switch in.Relationship {
	case domain.RelationshipPrimary:
		if in.PrimaryAffiliateID != nil {
			return domain.Affiliate{}, badRequest("a primary affiliate cannot have a primaryAffiliateId").With("field", "primaryAffiliateId")
		}
	case domain.RelationshipSpouse, domain.RelationshipChild, domain.RelationshipOther:
		if in.PrimaryAffiliateID == nil {
			return domain.Affiliate{}, badRequest("dependents require primaryAffiliateId").With("field", "primaryAffiliateId")
		}
		primary, err := e.Repo.GetAffiliate(ctx, *in.PrimaryAffiliateID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && (primary.ClientID != in.ClientID || primary.Relationship != domain.RelationshipPrimary)) {
			return domain.Affiliate{}, badRequest("affiliate %s is not a primary affiliate of client %s", *in.PrimaryAffiliateID, in.ClientID).
				With("field", "primaryAffiliateId")
		}
		if err != nil {
			return domain.Affiliate{}, err
		}
	default:
		return domain.Affiliate{}, badRequest("unknown relationship %s", in.Relationship).With("field", "relationship")
	}
	if in.BirthDate != nil {
		if _, err := time.Parse(time.DateOnly, *in.BirthDate); err != nil {
			return domain.Affiliate{}, badRequest("birthDate must be a date (YYYY-MM-DD)").With("field", "birthDate")
		}
	}
	if _, err := e.Repo.GetAffiliateByDocument(ctx, in.DocumentID); err == nil {
		return domain.Affiliate{}, apperr.Newf(apperr.Conflict, "affiliate with document %s already exists", in.DocumentID).With("field", "documentId")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Affiliate{}, err
	}

	a := domain.Affiliate{
		ID:                 uuid.NewString(),
		ClientID:           in.ClientID,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		DocumentID:         in.DocumentID,
		BirthDate:          in.BirthDate,
		Relationship:       in.Relationship,
		PrimaryAffiliateID: in.PrimaryAffiliateID,
		Email:              trimmed(in.Email),
		CreatedAt:          e.timestamp(),
	}
	if err := e.create(ctx, acc, "affiliate", a.ID, a, func(tx *sqlx.Tx) error {
		return e.Repo.InsertAffiliate(ctx, tx, a)
	}); err != nil {
		return domain.Affiliate{}, err
	}
	return a, nil
}

func (e Engine) ListAffiliates(ctx context.Context, actorID, clientID string, page repo.Page) ([]domain.Affiliate, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListAffiliates(ctx, repo.AffiliateFilters{
		ClientID:  clientID,
		ClientIDs: acc.ClientScope(),
		IDs:       acc.AffiliateScope(),
		Page:      page,
	})
}

func (e Engine) GetAffiliate(ctx context.Context, actorID, id string) (domain.Affiliate, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return domain.Affiliate{}, err
	}
	a, err := e.Repo.GetAffiliate(ctx, id)
	if err != nil {
		return domain.Affiliate{}, loadErr(err, "affiliate", id)
	}
	if !acc.CanSeeAffiliate(a.ClientID, a.ID) {
		return domain.Affiliate{}, notFound("affiliate", id)
	}
	return a, nil
}

type InsurerInput struct {
	Name  string  `json:"name"`
	Code  *string `json:"code,omitempty"`
	Email *string `json:"email,omitempty"`
}

func (e Engine) CreateInsurer(ctx context.Context, actorID string, in InsurerInput) (domain.Insurer, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return domain.Insurer{}, err
	}
	if !acc.Is(domain.InsurerManagers) {
		return domain.Insurer{}, forbidden("role %s cannot create insurers", acc.Role)
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := required("name", in.Name); err != nil {
		return domain.Insurer{}, err
	}
	if _, err := e.Repo.GetInsurerByName(ctx, in.Name); err == nil {
		return domain.Insurer{}, apperr.Newf(apperr.Conflict, "insurer %s already exists", in.Name).With("field", "name")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Insurer{}, err
	}
	ins := domain.Insurer{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Code:      trimmed(in.Code),
		Email:     trimmed(in.Email),
		CreatedAt: e.timestamp(),
	}
	if err := e.create(ctx, acc, "insurer", ins.ID, ins, func(tx *sqlx.Tx) error {
		return e.Repo.InsertInsurer(ctx, tx, ins)
	}); err != nil {
		return domain.Insurer{}, err
	}
	return ins, nil
}

func (e Engine) ListInsurers(ctx context.Context, actorID string, page repo.Page) ([]domain.Insurer, error) {
	if _, err := e.Auth.Current(ctx, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListInsurers(ctx, page)
}

// trimmed returns nil for absent or blank input.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
