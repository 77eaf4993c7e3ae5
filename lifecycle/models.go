// Package lifecycle owns the sale's phase flags and the guards that
// gate every operation by phase.
package lifecycle

import (
	"time"

	"github.com/xraph/presale/types"
)

// Phase is the derived lifecycle stage of a sale. It is computed from
// the status flags, never stored independently.
type Phase string

// Sale phases: Open → Ended → RefundClosed → TermsPublished →
// {Withdrawn | Canceled}. Cancellation is the only exit available before
// terms are published, and it is terminal.
const (
	PhaseOpen           Phase = "open"
	PhaseEnded          Phase = "ended"
	PhaseRefundClosed   Phase = "refund_closed"
	PhaseTermsPublished Phase = "terms_published"
	PhaseWithdrawn      Phase = "withdrawn"
	PhaseCanceled       Phase = "canceled"
)

// Status holds the sale-wide lifecycle flags and counters.
type Status struct {
	// AskToken is the allocation asset, zero until terms are published.
	AskToken types.Account `json:"ask_token"`

	// AskTokenTotalSupply is the supply snapshot published with the terms.
	AskTokenTotalSupply types.Amount `json:"ask_token_total_supply"`

	// TotalTokensAllocated is the total set aside for distribution.
	TotalTokensAllocated types.Amount `json:"total_tokens_allocated"`

	// TokensSupplied is set once the project has delivered the
	// allocation plus fees into the treasury.
	TokensSupplied bool `json:"tokens_supplied"`

	// TotalCapitalInvested is the sum of all live positions.
	TotalCapitalInvested types.Amount `json:"total_capital_invested"`

	// TotalCapitalRaised is the published, authoritative final figure,
	// distinct from the invested running total.
	TotalCapitalRaised types.Amount `json:"total_capital_raised"`

	// TotalCapitalWithdrawn transitions only 0 → raised amount, and back
	// to 0 only if the sale is canceled afterwards.
	TotalCapitalWithdrawn types.Amount `json:"total_capital_withdrawn"`

	Canceled bool `json:"canceled"`
	Ended    bool `json:"ended"`

	EndedAt            *time.Time `json:"ended_at,omitempty"`
	RefundWindowEndsAt *time.Time `json:"refund_window_ends_at,omitempty"`

	// PendingTransfers are committed outbound legs that have not been
	// executed yet. Legs are parked here when a transfer fails after an
	// earlier leg of the same operation already moved value; retrying
	// the operation drains them instead of repeating the committed
	// mutation.
	PendingTransfers []PendingTransfer `json:"pending_transfers,omitempty"`
}

// PendingTransfer is one outbound leg of an interrupted disbursement.
// A zero From means the leg pays out of the treasury; otherwise it
// pulls from the named approving account.
type PendingTransfer struct {
	Asset    types.Account `json:"asset"`
	From     types.Account `json:"from,omitempty"`
	Receiver types.Account `json:"receiver"`
	Amount   types.Amount  `json:"amount"`
}

// Phase derives the current stage at evaluation time now. Withdrawn
// outranks TermsPublished and RefundClosed: the raise can be withdrawn
// as soon as it is published, before any token terms exist.
func (s *Status) Phase(now time.Time) Phase {
	switch {
	case s.Canceled:
		return PhaseCanceled
	case !s.Ended:
		return PhaseOpen
	case s.RefundWindowOpen(now):
		return PhaseEnded
	case s.TotalCapitalWithdrawn.IsPositive():
		return PhaseWithdrawn
	case s.AskToken.IsZero():
		return PhaseRefundClosed
	default:
		return PhaseTermsPublished
	}
}

// RefundWindowOpen reports whether now falls inside the refund window.
// The window only exists once the sale has ended.
func (s *Status) RefundWindowOpen(now time.Time) bool {
	return s.Ended && s.RefundWindowEndsAt != nil && now.Before(*s.RefundWindowEndsAt)
}

// RefundWindowClosed reports whether the sale ended and the window has
// elapsed.
func (s *Status) RefundWindowClosed(now time.Time) bool {
	return s.Ended && s.RefundWindowEndsAt != nil && !now.Before(*s.RefundWindowEndsAt)
}

// AskTokenAvailable reports whether the allocation asset has been
// published.
func (s *Status) AskTokenAvailable() bool {
	return !s.AskToken.IsZero()
}

// Clone returns a deep copy, used to snapshot state before an operation
// mutates it.
func (s *Status) Clone() *Status {
	copied := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		copied.EndedAt = &t
	}
	if s.RefundWindowEndsAt != nil {
		t := *s.RefundWindowEndsAt
		copied.RefundWindowEndsAt = &t
	}
	if s.PendingTransfers != nil {
		copied.PendingTransfers = append([]PendingTransfer(nil), s.PendingTransfers...)
	}
	return &copied
}
