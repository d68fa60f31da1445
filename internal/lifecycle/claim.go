package lifecycle

import "brokerdesk/internal/domain"

const (
	ClaimDraft       Status = "DRAFT"
	ClaimValidation  Status = "VALIDATION"
	ClaimSubmitted   Status = "SUBMITTED"
	ClaimPendingInfo Status = "PENDING_INFO"
	ClaimReturned    Status = "RETURNED"
	ClaimSettled     Status = "SETTLED"
	ClaimCancelled   Status = "CANCELLED"
)

var CareTypes = []string{"AMBULATORY", "HOSPITALIZATION", "MATERNITY", "DENTAL", "EMERGENCY", "OTHER"}

var claimIntakeFields = Fields(
	FieldPolicyID,
	FieldDescription,
	FieldCareType,
	FieldDiagnosisCode,
	FieldDiagnosisDescription,
	FieldIncidentDate,
	FieldSubmittedDate,
	FieldAmountSubmitted,
)

var Claim = mustBlueprint(&Blueprint{
	Entity:   "claim",
	Initial:  ClaimDraft,
	Order:    []Status{ClaimDraft, ClaimValidation, ClaimSubmitted, ClaimPendingInfo, ClaimReturned, ClaimSettled, ClaimCancelled},
	Terminal: []Status{ClaimReturned, ClaimSettled, ClaimCancelled},
	Rules: map[Status]Rule{
		ClaimDraft: {
			Label:              "Draft",
			AllowedEditors:     domain.SeniorClaimManagers,
			EditableFields:     claimIntakeFields,
			AllowedTransitions: []Status{ClaimValidation, ClaimCancelled},
			TransitionRequirements: map[Status]FieldSet{
				ClaimValidation: Fields(FieldCareType, FieldIncidentDate, FieldSubmittedDate, FieldAmountSubmitted, FieldDiagnosisDescription),
				ClaimCancelled:  Fields(),
			},
		},
		ClaimValidation: {
			Label:              "In validation",
			AllowedEditors:     domain.SeniorClaimManagers,
			EditableFields:     claimIntakeFields,
			AllowedTransitions: []Status{ClaimSubmitted, ClaimReturned, ClaimCancelled},
			TransitionRequirements: map[Status]FieldSet{
				ClaimSubmitted: Fields(FieldPolicyID),
				ClaimReturned:  Fields(),
				ClaimCancelled: Fields(),
			},
		},
		ClaimSubmitted: {
			Label:          "Submitted to insurer",
			AllowedEditors: domain.SeniorClaimManagers,
			EditableFields: Fields(
				FieldDescription,
				FieldAmountApproved,
				FieldAmountDenied,
				FieldAmountUnprocessed,
				FieldDeductibleApplied,
				FieldCopayApplied,
				FieldSettlementNotes,
			),
			AllowedTransitions: []Status{ClaimPendingInfo, ClaimSettled, ClaimCancelled},
			TransitionRequirements: map[Status]FieldSet{
				ClaimPendingInfo: Fields(FieldPendingReason),
				ClaimSettled:     Fields(FieldAmountApproved, FieldSettlementDate, FieldSettlementNumber),
				ClaimCancelled:   Fields(),
			},
		},
		ClaimPendingInfo: {
			Label:              "Pending information",
			AllowedEditors:     domain.SeniorClaimManagers,
			EditableFields:     Fields(FieldDescription, FieldPendingReason),
			AllowedTransitions: []Status{ClaimSubmitted, ClaimCancelled},
			TransitionRequirements: map[Status]FieldSet{
				ClaimSubmitted: Fields(FieldReprocessDate, FieldReprocessDescription),
				ClaimCancelled: Fields(),
			},
		},
		ClaimReturned:  terminalRule("Returned"),
		ClaimSettled:   terminalRule("Settled"),
		ClaimCancelled: terminalRule("Cancelled"),
	},
	SideChannel: Fields(FieldReprocessDate, FieldReprocessDescription),
})

var ClaimSchema = Schema{
	FieldPolicyID:             KindRef,
	FieldDescription:          KindText,
	FieldCareType:             KindEnum(CareTypes...),
	FieldDiagnosisCode:        KindString,
	FieldDiagnosisDescription: KindText,
	FieldIncidentDate:         KindDate,
	FieldSubmittedDate:        KindDate,
	FieldSettlementDate:       KindDate,
	FieldAmountSubmitted:      KindDecimal,
	FieldAmountApproved:       KindDecimal,
	FieldAmountDenied:         KindDecimal,
	FieldAmountUnprocessed:    KindDecimal,
	FieldDeductibleApplied:    KindDecimal,
	FieldCopayApplied:         KindDecimal,
	FieldSettlementNumber:     KindString,
	FieldSettlementNotes:      KindText,
	FieldPendingReason:        KindText,
	FieldReprocessDate:        KindDate,
	FieldReprocessDescription: KindText,
}
