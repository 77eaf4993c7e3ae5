package presale

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/presale/lifecycle"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/types"
)

// PublishTokenTerms publishes the allocation asset, its total supply
// snapshot, the vesting start, and the total tokens set aside in one
// atomic commit, callable by the bouncer once the refund window has
// closed. Publishing moves the sale into the settlement stage.
func (e *Engine) PublishTokenTerms(ctx context.Context, caller types.Account, askToken types.Account, totalSupply types.Amount, vestingStart time.Time, totalAllocated types.Amount) (*lifecycle.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireBouncer(sl, caller); err != nil {
		return nil, err
	}
	if sl.Status.Canceled {
		return nil, ErrSaleCanceled
	}
	if !sl.Status.Ended {
		return nil, ErrSaleNotEnded
	}
	if sl.Status.RefundWindowOpen(e.now()) {
		return nil, ErrRefundWindowOpen
	}
	if sl.Status.AskTokenAvailable() {
		return nil, ErrTokensAlreadyAllocated
	}
	if askToken.IsZero() {
		return nil, ErrZeroAddressProvided
	}
	if !totalSupply.IsPositive() || !totalAllocated.IsPositive() {
		return nil, ErrInvalidSupplyAmount
	}

	sl.Status.AskToken = askToken
	sl.Status.AskTokenTotalSupply = totalSupply
	sl.Status.TotalTokensAllocated = totalAllocated
	sl.Terms.Start = vestingStart
	sl.Touch()

	if err := e.store.UpdateSale(ctx, sl); err != nil {
		return nil, err
	}

	e.logger.Info("token terms published",
		"sale_id", sl.ID.String(),
		"ask_token", askToken.String(),
		"total_supply", totalSupply.String(),
		"total_allocated", totalAllocated.String(),
		"vesting_start", vestingStart,
	)
	e.plugins.EmitTermsPublished(ctx, sl.Status.Clone())

	return sl.Status.Clone(), nil
}

// SupplyTokens is the project delivering the published allocation plus
// both token fees into the treasury. The amounts are checked against the
// published allocation and the configured fee rates before anything
// moves; a mismatch rejects the whole call. If a fee pull fails after
// the allocation already landed, the supply stays committed and calling
// SupplyTokens again finishes the remaining pulls.
func (e *Engine) SupplyTokens(ctx context.Context, caller types.Account, amount, protocolFee, referrerFee types.Amount) (*lifecycle.Status, error) {
	if e.tokens == nil {
		return nil, ErrNoTokenTransferer
	}

	e.mu.Lock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := requireProject(sl, caller); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if sl.Status.Canceled {
		e.mu.Unlock()
		return nil, ErrSaleCanceled
	}
	if !sl.Status.AskTokenAvailable() {
		e.mu.Unlock()
		return nil, ErrTokensNotAllocated
	}
	if sl.Status.TokensSupplied {
		if len(sl.Status.PendingTransfers) > 0 {
			return e.drainPending(ctx, sl)
		}
		e.mu.Unlock()
		return nil, ErrTokensAlreadySupplied
	}
	if !amount.Equal(sl.Status.TotalTokensAllocated) {
		e.mu.Unlock()
		return nil, ErrInvalidSupplyAmount
	}
	if !protocolFee.Equal(sl.Config.Fees.ProtocolTokenBps.ApplyTo(amount)) {
		e.mu.Unlock()
		return nil, ErrInvalidFeeAmount
	}
	if !referrerFee.Equal(sl.Config.Fees.ReferrerTokenBps.ApplyTo(amount)) {
		e.mu.Unlock()
		return nil, ErrInvalidFeeAmount
	}

	sl.Status.TokensSupplied = true
	sl.Touch()

	if err := e.store.UpdateSale(ctx, sl); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	e.logger.Info("tokens supplied",
		"sale_id", sl.ID.String(),
		"amount", amount.String(),
		"protocol_fee", protocolFee.String(),
		"referrer_fee", referrerFee.String(),
	)
	e.plugins.EmitTokensSupplied(ctx, sl.Status.Clone())

	askToken := sl.Status.AskToken
	legs := []lifecycle.PendingTransfer{
		{Asset: askToken, From: caller, Receiver: sl.Config.Treasury, Amount: amount},
	}
	if protocolFee.IsPositive() {
		legs = append(legs, lifecycle.PendingTransfer{Asset: askToken, From: caller, Receiver: sl.Config.ProtocolFeeReceiver, Amount: protocolFee})
	}
	if referrerFee.IsPositive() {
		legs = append(legs, lifecycle.PendingTransfer{Asset: askToken, From: caller, Receiver: sl.Config.ReferrerFeeReceiver, Amount: referrerFee})
	}

	if err := e.disburse(ctx, legs, func() {
		e.rollback(ctx, types.ZeroAccount, nil, func(s *sale.Sale) {
			s.Status.TokensSupplied = false
		}, nil)
	}); err != nil {
		return nil, err
	}
	return sl.Status.Clone(), nil
}

// PublishCapitalRaised records the authoritative final raise figure,
// distinct from the invested running total. Bouncer-only, once, after
// the refund window closes.
func (e *Engine) PublishCapitalRaised(ctx context.Context, caller types.Account, amount types.Amount) (*lifecycle.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireBouncer(sl, caller); err != nil {
		return nil, err
	}
	if sl.Status.Canceled {
		return nil, ErrSaleCanceled
	}
	if !sl.Status.Ended {
		return nil, ErrSaleNotEnded
	}
	if sl.Status.RefundWindowOpen(e.now()) {
		return nil, ErrRefundWindowOpen
	}
	if sl.Status.TotalCapitalRaised.IsPositive() {
		return nil, ErrCapitalRaisedAlreadyPublished
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidInput
	}

	sl.Status.TotalCapitalRaised = amount
	sl.Touch()

	if err := e.store.UpdateSale(ctx, sl); err != nil {
		return nil, err
	}

	e.logger.Info("capital raised published",
		"sale_id", sl.ID.String(),
		"amount", amount.String(),
	)
	e.plugins.EmitCapitalRaisedPublished(ctx, sl.Status.Clone())

	return sl.Status.Clone(), nil
}

// WithdrawRaisedCapital pays the published raise to the project, minus
// the capital fees, which go to the fee receivers in the same operation.
// One-shot: the withdrawn counter only ever moves 0 → raised, and it
// never moves back for a failed fee leg. If a fee transfer fails after
// the net payout landed, the withdrawal stays committed and calling
// WithdrawRaisedCapital again finishes the remaining fee transfers.
func (e *Engine) WithdrawRaisedCapital(ctx context.Context, caller types.Account) (*lifecycle.Status, error) {
	if e.tokens == nil {
		return nil, ErrNoTokenTransferer
	}

	e.mu.Lock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := requireProject(sl, caller); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if sl.Status.Canceled {
		e.mu.Unlock()
		return nil, ErrSaleCanceled
	}
	if sl.Status.TotalCapitalWithdrawn.IsPositive() {
		if len(sl.Status.PendingTransfers) > 0 {
			return e.drainPending(ctx, sl)
		}
		e.mu.Unlock()
		return nil, ErrCapitalAlreadyWithdrawn
	}
	raised := sl.Status.TotalCapitalRaised
	if !raised.IsPositive() {
		e.mu.Unlock()
		return nil, ErrCapitalNotPublished
	}

	protocolFee := sl.Config.Fees.ProtocolCapitalBps.ApplyTo(raised)
	referrerFee := sl.Config.Fees.ReferrerCapitalBps.ApplyTo(raised)
	net := raised.Sub(protocolFee).Sub(referrerFee)

	sl.Status.TotalCapitalWithdrawn = raised
	sl.Touch()

	if err := e.store.UpdateSale(ctx, sl); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	e.logger.Info("raised capital withdrawn",
		"sale_id", sl.ID.String(),
		"net", net.String(),
		"protocol_fee", protocolFee.String(),
		"referrer_fee", referrerFee.String(),
	)
	e.plugins.EmitCapitalWithdrawn(ctx, sl.Status.Clone())

	bid := sl.Config.BidToken
	legs := []lifecycle.PendingTransfer{
		{Asset: bid, Receiver: sl.Config.Project, Amount: net},
	}
	if protocolFee.IsPositive() {
		legs = append(legs, lifecycle.PendingTransfer{Asset: bid, Receiver: sl.Config.ProtocolFeeReceiver, Amount: protocolFee})
	}
	if referrerFee.IsPositive() {
		legs = append(legs, lifecycle.PendingTransfer{Asset: bid, Receiver: sl.Config.ReferrerFeeReceiver, Amount: referrerFee})
	}

	if err := e.disburse(ctx, legs, func() {
		e.rollback(ctx, types.ZeroAccount, nil, func(s *sale.Sale) {
			s.Status.TotalCapitalWithdrawn = s.Status.TotalCapitalWithdrawn.Sub(raised)
		}, nil)
	}); err != nil {
		return nil, err
	}
	return sl.Status.Clone(), nil
}

// EmergencyWithdraw is the operator escape valve: it moves an arbitrary
// asset amount out of the treasury without touching any bookkeeping.
// Bouncer-only. Positions keep their recorded balances, which lets
// operators repair incidents off-band and reconcile later.
func (e *Engine) EmergencyWithdraw(ctx context.Context, caller, receiver, asset types.Account, amount types.Amount) error {
	if e.tokens == nil {
		return ErrNoTokenTransferer
	}
	if receiver.IsZero() || asset.IsZero() {
		return ErrZeroAddressProvided
	}
	if !amount.IsPositive() {
		return ErrInvalidWithdrawAmount
	}

	e.mu.Lock()
	sl, err := e.loadSale(ctx)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if err := requireBouncer(sl, caller); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	if err := e.tokens.Transfer(ctx, asset, receiver, amount); err != nil {
		return err
	}

	e.logger.Warn("emergency withdrawal executed",
		"sale_id", sl.ID.String(),
		"receiver", receiver.String(),
		"asset", asset.String(),
		"amount", amount.String(),
	)
	e.plugins.EmitEmergencyWithdraw(ctx, receiver.String(), asset.String(), amount.String())

	return nil
}

// ──────────────────────────────────────────────────
// Disbursement plumbing
// ──────────────────────────────────────────────────

// transferLeg executes one outbound leg. A zero From pays out of the
// treasury; otherwise the leg pulls from the named approving account.
func (e *Engine) transferLeg(ctx context.Context, leg lifecycle.PendingTransfer) error {
	if leg.From.IsZero() {
		return e.tokens.Transfer(ctx, leg.Asset, leg.Receiver, leg.Amount)
	}
	return e.tokens.TransferFrom(ctx, leg.Asset, leg.From, leg.Receiver, leg.Amount)
}

// disburse executes outbound legs in order. A failure on the first leg
// means no value has moved, so rollback runs and the ledger forgets the
// operation. A failure on a later leg keeps the committed mutation,
// parks the unexecuted legs on the sale, and surfaces
// ErrDisbursementIncomplete; retrying the operation drains them.
func (e *Engine) disburse(ctx context.Context, legs []lifecycle.PendingTransfer, rollback func()) error {
	for i, leg := range legs {
		err := e.transferLeg(ctx, leg)
		if err == nil {
			continue
		}
		if i == 0 {
			rollback()
			return err
		}
		e.parkLegs(ctx, legs[i:])
		return fmt.Errorf("%w: %v", ErrDisbursementIncomplete, err)
	}
	return nil
}

// parkLegs records unexecuted legs on the sale after a partial
// disbursement.
func (e *Engine) parkLegs(ctx context.Context, legs []lifecycle.PendingTransfer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		e.logger.Error("parking pending transfers failed", "error", err)
		return
	}
	sl.Status.PendingTransfers = append(sl.Status.PendingTransfers, legs...)
	sl.Touch()
	if err := e.store.UpdateSale(ctx, sl); err != nil {
		e.logger.Error("parking pending transfers failed",
			"sale_id", sl.ID.String(),
			"error", err,
		)
		return
	}
	e.logger.Warn("disbursement interrupted",
		"sale_id", sl.ID.String(),
		"pending_legs", len(legs),
	)
}

// drainPending re-executes parked legs. Called with mu held; the legs
// are cleared from the sale before any transfer runs, so a concurrent
// retry observes a fully disbursed sale instead of paying twice. Legs
// that still fail are parked again.
func (e *Engine) drainPending(ctx context.Context, sl *sale.Sale) (*lifecycle.Status, error) {
	legs := sl.Status.PendingTransfers
	sl.Status.PendingTransfers = nil
	sl.Touch()
	if err := e.store.UpdateSale(ctx, sl); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	for i, leg := range legs {
		if err := e.transferLeg(ctx, leg); err != nil {
			e.parkLegs(ctx, legs[i:])
			return nil, fmt.Errorf("%w: %v", ErrDisbursementIncomplete, err)
		}
	}

	e.logger.Info("pending disbursement drained",
		"sale_id", sl.ID.String(),
		"legs", len(legs),
	)
	return sl.Status.Clone(), nil
}
