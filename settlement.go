package presale

import (
	"context"
	"fmt"

	"github.com/xraph/presale/authz"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/position"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/types"
	"github.com/xraph/presale/vesting"
)

// ClaimAllocation settles the caller's position: it computes the token
// entitlement from the cached rate, splits it into an immediate and a
// vested portion, and pays both out.
//
// The settled flag is committed before the vesting factory or the token
// transferer is ever called. A malicious factory that calls back into
// ClaimAllocation therefore finds the position already settled and fails
// with ErrAlreadySettled. It cannot deadlock (the mutex is released
// first) and it cannot double-pay.
//
// The operation is rolled back only while no value has moved. Once the
// schedule is funded, a failed immediate payout keeps the settlement
// committed, parks the owed amount on the position, and surfaces
// ErrDisbursementIncomplete; claiming again drains the parked payout
// without creating a second schedule.
func (e *Engine) ClaimAllocation(ctx context.Context, caller types.Account, ticket authz.Ticket) (*position.Position, error) {
	if e.tokens == nil {
		return nil, ErrNoTokenTransferer
	}

	e.mu.Lock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if sl.Status.Canceled {
		e.mu.Unlock()
		return nil, ErrSaleCanceled
	}
	if !sl.Status.AskTokenAvailable() {
		e.mu.Unlock()
		return nil, ErrAskTokenUnavailable
	}
	if !sl.Status.TokensSupplied {
		e.mu.Unlock()
		return nil, ErrTokensNotSupplied
	}

	verifier, err := e.verifierFor(sl)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := verifier.Verify(caller, ticket, authz.ActionClaim); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	pos, err := e.store.GetPosition(ctx, sl.ID, caller)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if pos.Settled {
		if pos.PendingImmediate.IsPositive() {
			return e.resumeClaim(ctx, sl, pos)
		}
		e.mu.Unlock()
		return nil, ErrAlreadySettled
	}

	cons := e.consumption(sl.ID, caller, ticket)
	if err := e.store.ConsumeSignature(ctx, cons); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	prevPos := pos.Clone()

	// The ticket may carry a newer rate than the one cached at invest
	// time; the refreshed snapshot is what the entitlement uses.
	pos.RefreshSnapshot(ticket.InvestCap, ticket.TokenRate, ticket.AgreementHash)

	entitlement := sl.Status.AskTokenTotalSupply.MulWad(pos.TokenRate)
	immediate := entitlement.MulWad(sl.Terms.ImmediateRelease)
	vested := entitlement.Sub(immediate)

	pos.Settled = true
	pos.Touch()

	if err := e.store.SavePosition(ctx, pos); err != nil {
		e.restore(ctx, nil, prevPos, cons)
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	e.logger.Info("position settled",
		"sale_id", sl.ID.String(),
		"account", caller.String(),
		"entitlement", entitlement.String(),
		"immediate", immediate.String(),
		"vested", vested.String(),
	)
	e.plugins.EmitSettled(ctx, pos)

	// Undoes the settlement commit. Only legal while no value has moved.
	undo := func() {
		e.rollback(ctx, caller, cons, nil, func(p *position.Position) {
			p.Settled = false
			p.VestingSchedule = types.ZeroAccount
			p.RefreshSnapshot(prevPos.InvestCap, prevPos.TokenRate, prevPos.AgreementHash)
		})
	}

	funded := false
	if vested.IsPositive() {
		if e.factory == nil {
			undo()
			return nil, ErrNoVestingFactory
		}

		schedule, err := e.factory.CreateSchedule(ctx, vesting.CreateRequest{
			ID:          id.NewScheduleID(),
			Beneficiary: caller,
			Start:       sl.Terms.Start,
			Duration:    sl.Terms.Duration,
			Cliff:       sl.Terms.Cliff,
		})
		if err != nil {
			undo()
			return nil, err
		}

		// Record the schedule before funding it, so a failed funding
		// transfer still rolls the assignment back with everything else.
		e.mu.Lock()
		pos.VestingSchedule = schedule
		pos.Touch()
		if err := e.store.SavePosition(ctx, pos); err != nil {
			e.mu.Unlock()
			undo()
			return nil, err
		}
		e.mu.Unlock()

		if err := e.tokens.Transfer(ctx, sl.Status.AskToken, schedule, vested); err != nil {
			// The schedule exists but holds nothing, so the ledger can
			// still forget the whole operation.
			undo()
			return nil, err
		}
		funded = true
	}

	if immediate.IsPositive() {
		if err := e.tokens.Transfer(ctx, sl.Status.AskToken, caller, immediate); err != nil {
			if !funded {
				undo()
				return nil, err
			}
			// The schedule already holds the vested portion; the claim
			// stays settled and the payout waits for a retry.
			e.parkImmediate(ctx, sl, caller, immediate)
			return nil, fmt.Errorf("%w: %v", ErrDisbursementIncomplete, err)
		}
	}

	return pos, nil
}

// parkImmediate records an owed immediate payout on the position after
// a partial disbursement.
func (e *Engine) parkImmediate(ctx context.Context, sl *sale.Sale, account types.Account, owed types.Amount) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.store.GetPosition(ctx, sl.ID, account)
	if err != nil {
		e.logger.Error("parking immediate payout failed",
			"sale_id", sl.ID.String(),
			"account", account.String(),
			"error", err,
		)
		return
	}
	pos.PendingImmediate = owed
	pos.Touch()
	if err := e.store.SavePosition(ctx, pos); err != nil {
		e.logger.Error("parking immediate payout failed",
			"sale_id", sl.ID.String(),
			"account", account.String(),
			"error", err,
		)
		return
	}
	e.logger.Warn("settlement disbursement interrupted",
		"sale_id", sl.ID.String(),
		"account", account.String(),
		"owed", owed.String(),
	)
}

// resumeClaim drains a parked immediate payout. Called with mu held;
// the owed amount is cleared before the transfer runs, so a concurrent
// or reentrant claim observes a fully settled position and fails with
// ErrAlreadySettled instead of paying twice.
func (e *Engine) resumeClaim(ctx context.Context, sl *sale.Sale, pos *position.Position) (*position.Position, error) {
	owed := pos.PendingImmediate
	pos.PendingImmediate = types.Amount{}
	pos.Touch()
	if err := e.store.SavePosition(ctx, pos); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	if err := e.tokens.Transfer(ctx, sl.Status.AskToken, pos.Account, owed); err != nil {
		e.parkImmediate(ctx, sl, pos.Account, owed)
		return nil, fmt.Errorf("%w: %v", ErrDisbursementIncomplete, err)
	}

	e.logger.Info("parked immediate payout completed",
		"sale_id", sl.ID.String(),
		"account", pos.Account.String(),
		"amount", owed.String(),
	)
	return pos, nil
}

// ReleaseTokens delegates a vested-portion payout to the release
// service for the caller's schedule. The engine keeps no schedule
// accounting of its own, so the call is a pure pass-through.
func (e *Engine) ReleaseTokens(ctx context.Context, caller types.Account) error {
	if e.releaser == nil {
		return ErrNoVestingFactory
	}

	sl, err := e.loadSale(ctx)
	if err != nil {
		return err
	}
	if !sl.Status.AskTokenAvailable() {
		return ErrAskTokenUnavailable
	}

	pos, err := e.store.GetPosition(ctx, sl.ID, caller)
	if err != nil {
		return err
	}
	if pos.VestingSchedule.IsZero() {
		return ErrZeroAddressProvided
	}

	if err := e.releaser.Release(ctx, pos.VestingSchedule, sl.Status.AskToken); err != nil {
		return err
	}

	e.logger.Info("vested tokens released",
		"sale_id", sl.ID.String(),
		"account", caller.String(),
		"schedule", pos.VestingSchedule.String(),
	)
	e.plugins.EmitTokensReleased(ctx, pos)

	return nil
}
