package lifecycle

// Request field names shared by the blueprints. Values match the JSON keys.
const (
	FieldDescription = Field("description")
	FieldNotes       = Field("notes")
	FieldPolicyID    = Field("policyId")
	FieldInsurerID   = Field("insurerId")

	FieldCareType             = Field("careType")
	FieldDiagnosisCode        = Field("diagnosisCode")
	FieldDiagnosisDescription = Field("diagnosisDescription")
	FieldIncidentDate         = Field("incidentDate")
	FieldSubmittedDate        = Field("submittedDate")
	FieldSettlementDate       = Field("settlementDate")
	FieldAmountSubmitted      = Field("amountSubmitted")
	FieldAmountApproved       = Field("amountApproved")
	FieldAmountDenied         = Field("amountDenied")
	FieldAmountUnprocessed    = Field("amountUnprocessed")
	FieldDeductibleApplied    = Field("deductibleApplied")
	FieldCopayApplied         = Field("copayApplied")
	FieldSettlementNumber     = Field("settlementNumber")
	FieldSettlementNotes      = Field("settlementNotes")
	FieldPendingReason        = Field("pendingReason")
	FieldReprocessDate        = Field("reprocessDate")
	FieldReprocessDescription = Field("reprocessDescription")

	FieldPolicyNumber           = Field("policyNumber")
	FieldType                   = Field("type")
	FieldStartDate              = Field("startDate")
	FieldEndDate                = Field("endDate")
	FieldSumInsured             = Field("sumInsured")
	FieldDeductible             = Field("deductible")
	FieldCoinsuranceRate        = Field("coinsuranceRate")
	FieldMaxCoinsurance         = Field("maxCoinsurance")
	FieldPremiumEmployee        = Field("premiumEmployee")
	FieldPremiumEmployeePlusOne = Field("premiumEmployeePlusOne")
	FieldPremiumFamily          = Field("premiumFamily")

	FieldInvoiceNumber    = Field("invoiceNumber")
	FieldBillingPeriod    = Field("billingPeriod")
	FieldTotalAmount      = Field("totalAmount")
	FieldTaxAmount        = Field("taxAmount")
	FieldAffiliateCount   = Field("affiliateCount")
	FieldIssueDate        = Field("issueDate")
	FieldDueDate          = Field("dueDate")
	FieldDiscrepancyNotes = Field("discrepancyNotes")

	FieldSubject    = Field("subject")
	FieldPriority   = Field("priority")
	FieldAssigneeID = Field("assigneeId")
	FieldResolution = Field("resolution")

	FieldUpdatedByID = Field("updatedById")
)
