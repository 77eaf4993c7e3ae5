// Package position defines the per-investor capital position.
package position

import (
	"time"

	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

// Position is one investor's ledger entry, created lazily on first
// investment. Invariants: a refunded position never invests or
// withdraws again; a settled position never settles again; invested
// capital never goes negative.
type Position struct {
	types.Entity

	ID      id.PositionID `json:"id"`
	SaleID  id.SaleID     `json:"sale_id"`
	Account types.Account `json:"account"`

	// InvestedCapital is the live bid-asset balance of this position.
	InvestedCapital types.Amount `json:"invested_capital"`

	// Cached authorization snapshot, refreshed only on change.
	InvestCap     types.Amount `json:"invest_cap"`
	TokenRate     types.Amount `json:"token_rate"`
	AgreementHash string       `json:"agreement_hash"`

	// FirstInvestedAt is stamped when the position is created.
	FirstInvestedAt *time.Time `json:"first_invested_at,omitempty"`

	Settled  bool `json:"settled"`
	Refunded bool `json:"refunded"`

	// VestingSchedule is assigned during settlement if a vested portion
	// exists; zero otherwise.
	VestingSchedule types.Account `json:"vesting_schedule"`

	// PendingImmediate is the immediate payout still owed when the
	// settlement committed but its final transfer failed. A claim retry
	// drains it; zero otherwise.
	PendingImmediate types.Amount `json:"pending_immediate"`
}

// RefreshSnapshot updates the cached authorization fields, writing only
// on change. Reports whether anything changed.
func (p *Position) RefreshSnapshot(cap, rate types.Amount, agreementHash string) bool {
	changed := false
	if !p.InvestCap.Equal(cap) {
		p.InvestCap = cap
		changed = true
	}
	if !p.TokenRate.Equal(rate) {
		p.TokenRate = rate
		changed = true
	}
	if p.AgreementHash != agreementHash {
		p.AgreementHash = agreementHash
		changed = true
	}
	return changed
}

// Clone returns a deep copy for pre-operation snapshots.
func (p *Position) Clone() *Position {
	copied := *p
	if p.FirstInvestedAt != nil {
		t := *p.FirstInvestedAt
		copied.FirstInvestedAt = &t
	}
	return &copied
}
