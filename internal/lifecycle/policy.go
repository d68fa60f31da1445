package lifecycle

import "brokerdesk/internal/domain"

const (
	PolicyPending   Status = "PENDING"
	PolicyActive    Status = "ACTIVE"
	PolicyExpired   Status = "EXPIRED"
	PolicyCancelled Status = "CANCELLED"
)

var PolicyTypes = []string{"HEALTH", "LIFE", "ACCIDENTS", "DENTAL", "OTHER"}

var policyPremiumFields = []Field{FieldPremiumEmployee, FieldPremiumEmployeePlusOne, FieldPremiumFamily}

var policyActivation = Fields(append([]Field{
	FieldType,
	FieldInsurerID,
	FieldStartDate,
	FieldEndDate,
	FieldSumInsured,
	FieldDeductible,
	FieldCoinsuranceRate,
	FieldMaxCoinsurance,
}, policyPremiumFields...)...)

var Policy = mustBlueprint(&Blueprint{
	Entity:   "policy",
	Initial:  PolicyPending,
	Order:    []Status{PolicyPending, PolicyActive, PolicyExpired, PolicyCancelled},
	Terminal: []Status{PolicyCancelled},
	Rules: map[Status]Rule{
		PolicyPending: {
			Label:              "Pending activation",
			AllowedEditors:     domain.BrokerEmployees,
			EditableFields:     policyActivation.With(FieldPolicyNumber, FieldNotes),
			AllowedTransitions: []Status{PolicyActive, PolicyCancelled},
			TransitionRequirements: map[Status]FieldSet{
				PolicyActive:    policyActivation,
				PolicyCancelled: Fields(),
			},
		},
		PolicyActive: {
			Label:              "Active",
			AllowedEditors:     domain.TopAdmin,
			EditableFields:     Fields(append([]Field{FieldNotes, FieldEndDate}, policyPremiumFields...)...),
			AllowedTransitions: []Status{PolicyExpired, PolicyCancelled},
			TransitionRequirements: map[Status]FieldSet{
				PolicyExpired:   Fields(),
				PolicyCancelled: Fields(),
			},
		},
		PolicyExpired: {
			Label:              "Expired",
			AllowedEditors:     domain.TopAdmin,
			EditableFields:     Fields(FieldNotes, FieldEndDate),
			AllowedTransitions: []Status{PolicyActive, PolicyCancelled},
			TransitionRequirements: map[Status]FieldSet{
				PolicyActive:    Fields(),
				PolicyCancelled: Fields(),
			},
		},
		PolicyCancelled: terminalRule("Cancelled"),
	},
})

var PolicySchema = Schema{
	FieldPolicyNumber:           KindString.NotNull(),
	FieldType:                   KindEnum(PolicyTypes...),
	FieldInsurerID:              KindRef,
	FieldStartDate:              KindDate,
	FieldEndDate:                KindDate,
	FieldSumInsured:             KindDecimal,
	FieldDeductible:             KindDecimal,
	FieldCoinsuranceRate:        KindDecimal,
	FieldMaxCoinsurance:         KindDecimal,
	FieldPremiumEmployee:        KindDecimal,
	FieldPremiumEmployeePlusOne: KindDecimal,
	FieldPremiumFamily:          KindDecimal,
	FieldNotes:                  KindText,
}
