package audithook

// Action constants for audit events.
const (
	// Capital ledger actions
	ActionInvested        = "capital.invested"
	ActionRefunded        = "capital.refunded"
	ActionExcessWithdrawn = "capital.excess_withdrawn"
	ActionCancelWithdrawn = "capital.cancel_withdrawn"

	// Phase actions
	ActionSaleEnded              = "sale.ended"
	ActionSaleCanceled           = "sale.canceled"
	ActionTermsPublished         = "sale.terms_published"
	ActionTokensSupplied         = "sale.tokens_supplied"
	ActionCapitalRaisedPublished = "sale.capital_raised_published"
	ActionCapitalWithdrawn       = "sale.capital_withdrawn"

	// Settlement actions
	ActionSettled        = "settlement.claimed"
	ActionTokensReleased = "settlement.released"

	// Operator actions
	ActionEmergencyWithdraw = "operator.emergency_withdraw"
)

// Resource constants for audit events.
const (
	ResourceSale       = "sale"
	ResourcePosition   = "position"
	ResourceSettlement = "settlement"
	ResourceTreasury   = "treasury"
)

// Category constants for audit events.
const (
	CategoryCapital    = "capital"
	CategoryLifecycle  = "lifecycle"
	CategorySettlement = "settlement"
	CategoryOperator   = "operator"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
