package domain

import "time"

// TimeLayout is RFC3339 with fixed microsecond precision, so stored
// timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Timestamp formats t in UTC with TimeLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

type User struct {
	ID           string  `json:"id" db:"id"`
	Email        string  `json:"email" db:"email"`
	Name         string  `json:"name" db:"name"`
	Role         Role    `json:"role" db:"role"`
	AffiliateID  *string `json:"affiliateId,omitempty" db:"affiliate_id"`
	PasswordHash *string `json:"-" db:"password_hash"`
	CreatedAt    string  `json:"createdAt" db:"created_at" format:"date-time"`
}

type Client struct {
	ID        string  `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	TaxID     string  `json:"taxId" db:"tax_id"`
	Email     *string `json:"email,omitempty" db:"email"`
	Phone     *string `json:"phone,omitempty" db:"phone"`
	Address   *string `json:"address,omitempty" db:"address"`
	CreatedAt string  `json:"createdAt" db:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updatedAt" db:"updated_at" format:"date-time"`
}

// Affiliate relationships. Dependents point at a PRIMARY affiliate of the same client.
const (
	RelationshipPrimary = "PRIMARY"
	RelationshipSpouse  = "SPOUSE"
	RelationshipChild   = "CHILD"
	RelationshipOther   = "OTHER"
)

type Affiliate struct {
	ID                 string  `json:"id" db:"id"`
	ClientID           string  `json:"clientId" db:"client_id"`
	FirstName          string  `json:"firstName" db:"first_name"`
	LastName           string  `json:"lastName" db:"last_name"`
	DocumentID         string  `json:"documentId" db:"document_id"`
	BirthDate          *string `json:"birthDate,omitempty" db:"birth_date"`
	Relationship       string  `json:"relationship" db:"relationship" enum:"PRIMARY,SPOUSE,CHILD,OTHER"`
	PrimaryAffiliateID *string `json:"primaryAffiliateId,omitempty" db:"primary_affiliate_id"`
	Email              *string `json:"email,omitempty" db:"email"`
	CreatedAt          string  `json:"createdAt" db:"created_at" format:"date-time"`
}

func (a Affiliate) FullName() string { return a.FirstName + " " + a.LastName }

type Insurer struct {
	ID        string  `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	Code      *string `json:"code,omitempty" db:"code"`
	Email     *string `json:"email,omitempty" db:"email"`
	CreatedAt string  `json:"createdAt" db:"created_at" format:"date-time"`
}

type Policy struct {
	ID                     string   `json:"id" db:"id"`
	PolicyNumber           string   `json:"policyNumber" db:"policy_number"`
	ClientID               string   `json:"clientId" db:"client_id"`
	InsurerID              *string  `json:"insurerId" db:"insurer_id"`
	Type                   *string  `json:"type" db:"type"`
	Status                 string   `json:"status" db:"status"`
	StartDate              *string  `json:"startDate" db:"start_date"`
	EndDate                *string  `json:"endDate" db:"end_date"`
	SumInsured             *float64 `json:"sumInsured" db:"sum_insured"`
	Deductible             *float64 `json:"deductible" db:"deductible"`
	CoinsuranceRate        *float64 `json:"coinsuranceRate" db:"coinsurance_rate"`
	MaxCoinsurance         *float64 `json:"maxCoinsurance" db:"max_coinsurance"`
	PremiumEmployee        *float64 `json:"premiumEmployee" db:"premium_employee"`
	PremiumEmployeePlusOne *float64 `json:"premiumEmployeePlusOne" db:"premium_employee_plus_one"`
	PremiumFamily          *float64 `json:"premiumFamily" db:"premium_family"`
	Notes                  *string  `json:"notes" db:"notes"`
	CreatedByID            string   `json:"createdById" db:"created_by_id"`
	UpdatedByID            *string  `json:"updatedById" db:"updated_by_id"`
	CreatedAt              string   `json:"createdAt" db:"created_at" format:"date-time"`
	UpdatedAt              string   `json:"updatedAt" db:"updated_at" format:"date-time"`
}

type Claim struct {
	ID                   string   `json:"id" db:"id"`
	ClaimNumber          string   `json:"claimNumber" db:"claim_number"`
	ClientID             string   `json:"clientId" db:"client_id"`
	AffiliateID          string   `json:"affiliateId" db:"affiliate_id"`
	PatientID            string   `json:"patientId" db:"patient_id"`
	PolicyID             *string  `json:"policyId" db:"policy_id"`
	Status               string   `json:"status" db:"status"`
	Description          *string  `json:"description" db:"description"`
	CareType             *string  `json:"careType" db:"care_type"`
	DiagnosisCode        *string  `json:"diagnosisCode" db:"diagnosis_code"`
	DiagnosisDescription *string  `json:"diagnosisDescription" db:"diagnosis_description"`
	IncidentDate         *string  `json:"incidentDate" db:"incident_date"`
	SubmittedDate        *string  `json:"submittedDate" db:"submitted_date"`
	SettlementDate       *string  `json:"settlementDate" db:"settlement_date"`
	AmountSubmitted      *float64 `json:"amountSubmitted" db:"amount_submitted"`
	AmountApproved       *float64 `json:"amountApproved" db:"amount_approved"`
	AmountDenied         *float64 `json:"amountDenied" db:"amount_denied"`
	AmountUnprocessed    *float64 `json:"amountUnprocessed" db:"amount_unprocessed"`
	DeductibleApplied    *float64 `json:"deductibleApplied" db:"deductible_applied"`
	CopayApplied         *float64 `json:"copayApplied" db:"copay_applied"`
	SettlementNumber     *string  `json:"settlementNumber" db:"settlement_number"`
	SettlementNotes      *string  `json:"settlementNotes" db:"settlement_notes"`
	PendingReason        *string  `json:"pendingReason" db:"pending_reason"`
	CreatedByID          string   `json:"createdById" db:"created_by_id"`
	UpdatedByID          *string  `json:"updatedById" db:"updated_by_id"`
	CreatedAt            string   `json:"createdAt" db:"created_at" format:"date-time"`
	UpdatedAt            string   `json:"updatedAt" db:"updated_at" format:"date-time"`
}

type ClaimReprocess struct {
	ID                   string `json:"id" db:"id"`
	ClaimID              string `json:"claimId" db:"claim_id"`
	ReprocessDate        string `json:"reprocessDate" db:"reprocess_date"`
	ReprocessDescription string `json:"reprocessDescription" db:"reprocess_description"`
	CreatedByID          string `json:"createdById" db:"created_by_id"`
	CreatedAt            string `json:"createdAt" db:"created_at" format:"date-time"`
}

type Invoice struct {
	ID               string   `json:"id" db:"id"`
	InvoiceNumber    string   `json:"invoiceNumber" db:"invoice_number"`
	ClientID         string   `json:"clientId" db:"client_id"`
	InsurerID        string   `json:"insurerId" db:"insurer_id"`
	PolicyID         *string  `json:"policyId" db:"policy_id"`
	Status           string   `json:"status" db:"status"`
	BillingPeriod    *string  `json:"billingPeriod" db:"billing_period"`
	TotalAmount      *float64 `json:"totalAmount" db:"total_amount"`
	TaxAmount        *float64 `json:"taxAmount" db:"tax_amount"`
	AffiliateCount   *int64   `json:"affiliateCount" db:"affiliate_count"`
	IssueDate        *string  `json:"issueDate" db:"issue_date"`
	DueDate          *string  `json:"dueDate" db:"due_date"`
	DiscrepancyNotes *string  `json:"discrepancyNotes" db:"discrepancy_notes"`
	Notes            *string  `json:"notes" db:"notes"`
	CreatedByID      string   `json:"createdById" db:"created_by_id"`
	UpdatedByID      *string  `json:"updatedById" db:"updated_by_id"`
	CreatedAt        string   `json:"createdAt" db:"created_at" format:"date-time"`
	UpdatedAt        string   `json:"updatedAt" db:"updated_at" format:"date-time"`
}

type Ticket struct {
	ID           string  `json:"id" db:"id"`
	TicketNumber string  `json:"ticketNumber" db:"ticket_number"`
	ClientID     string  `json:"clientId" db:"client_id"`
	Subject      string  `json:"subject" db:"subject"`
	Description  *string `json:"description" db:"description"`
	Priority     string  `json:"priority" db:"priority" enum:"LOW,NORMAL,HIGH,URGENT"`
	Status       string  `json:"status" db:"status"`
	AssigneeID   *string `json:"assigneeId" db:"assignee_id"`
	Resolution   *string `json:"resolution" db:"resolution"`
	CreatedByID  string  `json:"createdById" db:"created_by_id"`
	UpdatedByID  *string `json:"updatedById" db:"updated_by_id"`
	CreatedAt    string  `json:"createdAt" db:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updatedAt" db:"updated_at" format:"date-time"`
}

type TicketComment struct {
	ID        string `json:"id" db:"id"`
	TicketID  string `json:"ticketId" db:"ticket_id"`
	AuthorID  string `json:"authorId" db:"author_id"`
	Body      string `json:"body" db:"body"`
	CreatedAt string `json:"createdAt" db:"created_at" format:"date-time"`
}

type Invitation struct {
	ID          string  `json:"id" db:"id"`
	Email       string  `json:"email" db:"email"`
	Role        Role    `json:"role" db:"role"`
	ClientID    *string `json:"clientId,omitempty" db:"client_id"`
	AffiliateID *string `json:"affiliateId,omitempty" db:"affiliate_id"`
	TokenHash   string  `json:"-" db:"token_hash"`
	ExpiresAt   string  `json:"expiresAt" db:"expires_at" format:"date-time"`
	AcceptedAt  *string `json:"acceptedAt,omitempty" db:"accepted_at" format:"date-time"`
	CreatedByID string  `json:"createdById" db:"created_by_id"`
	CreatedAt   string  `json:"createdAt" db:"created_at" format:"date-time"`
}

// Attachment resource types.
const (
	ResourceClaim   = "claim"
	ResourcePolicy  = "policy"
	ResourceInvoice = "invoice"
	ResourceTicket  = "ticket"
	ResourceClient  = "client"
)

type Attachment struct {
	ID           string `json:"id" db:"id"`
	ResourceType string `json:"resourceType" db:"resource_type" enum:"claim,policy,invoice,ticket"`
	ResourceID   string `json:"resourceId" db:"resource_id"`
	FileName     string `json:"fileName" db:"file_name"`
	ContentType  string `json:"contentType" db:"content_type"`
	ObjectKey    string `json:"-" db:"object_key"`
	SizeBytes    *int64 `json:"sizeBytes,omitempty" db:"size_bytes"`
	UploadedByID string `json:"uploadedById" db:"uploaded_by_id"`
	CreatedAt    string `json:"createdAt" db:"created_at" format:"date-time"`
}

type AuditLog struct {
	ID           string `json:"id" db:"id"`
	Action       string `json:"action" db:"action"`
	ResourceType string `json:"resourceType" db:"resource_type"`
	ResourceID   string `json:"resourceId" db:"resource_id"`
	ActorUserID  string `json:"actorUserId" db:"actor_user_id"`
	Before       string `json:"-" db:"before_json"`
	After        string `json:"-" db:"after_json"`
	Metadata     string `json:"-" db:"metadata_json"`
	CreatedAt    string `json:"createdAt" db:"created_at" format:"date-time"`
}
