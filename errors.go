package presale

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. Every violated
// precondition is fatal to the call; there is no warning tier.
var (
	// General errors
	ErrNotFound      = errors.New("presale: not found")
	ErrAlreadyExists = errors.New("presale: already exists")
	ErrInvalidInput  = errors.New("presale: invalid input")

	// Authorization errors (wrong caller role)
	ErrNotProject = errors.New("presale: caller is not the project")
	ErrNotBouncer = errors.New("presale: caller is not the bouncer")
	ErrNotAdmin   = errors.New("presale: caller is neither bouncer nor project")

	// Phase errors (wrong lifecycle state)
	ErrSaleEnded               = errors.New("presale: sale has ended")
	ErrSaleNotEnded            = errors.New("presale: sale has not ended")
	ErrSaleCanceled            = errors.New("presale: sale is canceled")
	ErrSaleNotCanceled         = errors.New("presale: sale is not canceled")
	ErrRefundWindowOpen        = errors.New("presale: refund window is still open")
	ErrRefundWindowClosed      = errors.New("presale: refund window has closed")
	ErrAskTokenUnavailable     = errors.New("presale: allocation asset not yet published")
	ErrTokensAlreadyAllocated  = errors.New("presale: token allocation already published")
	ErrTokensNotAllocated      = errors.New("presale: token allocation not yet published")
	ErrTokensAlreadySupplied   = errors.New("presale: tokens already supplied")
	ErrTokensNotSupplied       = errors.New("presale: tokens not yet supplied")
	ErrCapitalAlreadyWithdrawn = errors.New("presale: raised capital already withdrawn")
	ErrCapitalNotPublished     = errors.New("presale: raised capital not yet published")
	ErrTermsLocked             = errors.New("presale: vesting terms are locked")

	// Replay errors
	ErrSignatureReuse = errors.New("presale: signature already used")
	ErrAlreadySettled = errors.New("presale: position already settled")

	// Disbursement errors. A committed operation whose later transfer
	// legs failed stays committed; retrying the operation finishes the
	// remaining legs.
	ErrDisbursementIncomplete = errors.New("presale: disbursement incomplete, retry to finish the remaining transfers")

	// Arithmetic / eligibility errors
	ErrInvalidInvestAmount           = errors.New("presale: invalid invest amount")
	ErrInvalidRefundAmount           = errors.New("presale: invalid refund amount")
	ErrInvalidWithdrawAmount         = errors.New("presale: invalid withdraw amount")
	ErrInvestCapExceeded             = errors.New("presale: invest cap exceeded")
	ErrInvalidFeeAmount              = errors.New("presale: fee amount does not match configured rate")
	ErrInvalidSupplyAmount           = errors.New("presale: supplied amount does not match allocation")
	ErrCapitalRaisedAlreadyPublished = errors.New("presale: capital raised already published")
	ErrPositionRefunded              = errors.New("presale: position was refunded")
	ErrZeroAddressProvided           = errors.New("presale: zero address provided")

	// Dependency wiring errors
	ErrNoTokenTransferer = errors.New("presale: no token transferer configured")
	ErrNoVestingFactory  = errors.New("presale: no vesting factory configured")
	ErrNoRegistry        = errors.New("presale: no registry configured")

	// Store errors
	ErrSaleNotFound     = errors.New("presale: sale not found")
	ErrPositionNotFound = errors.New("presale: position not found")
	ErrStoreClosed      = errors.New("presale: store is closed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("presale: validation failed for %s: %s", e.Field, e.Message)
}

// IsAuthError returns true if the error is a caller-role failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotProject) ||
		errors.Is(err, ErrNotBouncer) ||
		errors.Is(err, ErrNotAdmin)
}

// IsPhaseError returns true if the error is a lifecycle-phase failure.
func IsPhaseError(err error) bool {
	return errors.Is(err, ErrSaleEnded) ||
		errors.Is(err, ErrSaleNotEnded) ||
		errors.Is(err, ErrSaleCanceled) ||
		errors.Is(err, ErrSaleNotCanceled) ||
		errors.Is(err, ErrRefundWindowOpen) ||
		errors.Is(err, ErrRefundWindowClosed) ||
		errors.Is(err, ErrAskTokenUnavailable) ||
		errors.Is(err, ErrTokensAlreadyAllocated) ||
		errors.Is(err, ErrTokensNotAllocated) ||
		errors.Is(err, ErrTokensAlreadySupplied) ||
		errors.Is(err, ErrTokensNotSupplied) ||
		errors.Is(err, ErrCapitalAlreadyWithdrawn) ||
		errors.Is(err, ErrCapitalNotPublished) ||
		errors.Is(err, ErrTermsLocked)
}

// IsReplayError returns true if the error marks an already-consumed
// signature or settlement.
func IsReplayError(err error) bool {
	return errors.Is(err, ErrSignatureReuse) ||
		errors.Is(err, ErrAlreadySettled)
}

// IsNotFound returns true if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrPositionNotFound)
}
