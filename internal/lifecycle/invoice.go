package lifecycle

import "brokerdesk/internal/domain"

const (
	InvoicePending     Status = "PENDING"
	InvoiceValidated   Status = "VALIDATED"
	InvoiceDiscrepancy Status = "DISCREPANCY"
	InvoiceCancelled   Status = "CANCELLED"
)

var Invoice = mustBlueprint(&Blueprint{
	Entity:   "invoice",
	Initial:  InvoicePending,
	Order:    []Status{InvoicePending, InvoiceValidated, InvoiceDiscrepancy, InvoiceCancelled},
	Terminal: []Status{InvoiceCancelled},
	Rules: map[Status]Rule{
		InvoicePending: {
			Label:          "Pending review",
			AllowedEditors: domain.BrokerEmployees,
			EditableFields: Fields(
				FieldInvoiceNumber,
				FieldPolicyID,
				FieldBillingPeriod,
				FieldTotalAmount,
				FieldTaxAmount,
				FieldAffiliateCount,
				FieldIssueDate,
				FieldDueDate,
				FieldNotes,
			),
			AllowedTransitions: []Status{InvoiceValidated, InvoiceDiscrepancy, InvoiceCancelled},
			TransitionRequirements: map[Status]FieldSet{
				InvoiceValidated:   Fields(FieldBillingPeriod, FieldTaxAmount, FieldAffiliateCount, FieldDueDate),
				InvoiceDiscrepancy: Fields(),
				InvoiceCancelled:   Fields(),
			},
		},
		InvoiceValidated: {
			Label:              "Validated",
			AllowedEditors:     domain.BrokerEmployees,
			EditableFields:     Fields(FieldNotes),
			AllowedTransitions: []Status{InvoiceDiscrepancy, InvoiceCancelled},
			TransitionRequirements: map[Status]FieldSet{
				InvoiceDiscrepancy: Fields(),
				InvoiceCancelled:   Fields(),
			},
		},
		InvoiceDiscrepancy: {
			Label:          "Discrepancy",
			AllowedEditors: domain.BrokerEmployees,
			EditableFields: Fields(
				FieldDiscrepancyNotes,
				FieldNotes,
				FieldBillingPeriod,
				FieldTotalAmount,
				FieldTaxAmount,
				FieldAffiliateCount,
				FieldDueDate,
			),
			AllowedTransitions: []Status{InvoiceValidated, InvoiceCancelled},
			TransitionRequirements: map[Status]FieldSet{
				InvoiceValidated: Fields(FieldDiscrepancyNotes),
				InvoiceCancelled: Fields(),
			},
		},
		// Cancelled invoices keep a notes-only edit for the top admin.
		InvoiceCancelled: terminalRule("Cancelled", FieldNotes),
	},
})

var InvoiceSchema = Schema{
	FieldInvoiceNumber:    KindString.NotNull(),
	FieldPolicyID:         KindRef,
	FieldBillingPeriod:    KindMonth,
	FieldTotalAmount:      KindDecimal,
	FieldTaxAmount:        KindDecimal,
	FieldAffiliateCount:   KindInt,
	FieldIssueDate:        KindDate,
	FieldDueDate:          KindDate,
	FieldDiscrepancyNotes: KindText,
	FieldNotes:            KindText,
}
