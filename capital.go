package presale

import (
	"context"

	"github.com/xraph/presale/authz"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/position"
	"github.com/xraph/presale/replay"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/types"
)

// Invest records an investment for the caller. The ticket must be a
// fresh authorization from the trusted signer; a reused signature fails
// with ErrSignatureReuse even when every other check passes.
//
// The ledger commits first and the bid-asset pull runs last; if the pull
// fails, the operation is rolled back and leaves no trace.
func (e *Engine) Invest(ctx context.Context, caller types.Account, amount types.Amount, ticket authz.Ticket) (*position.Position, error) {
	if e.tokens == nil {
		return nil, ErrNoTokenTransferer
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidInvestAmount
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
	if sl.Status.Ended {
		e.mu.Unlock()
		return nil, ErrSaleEnded
	}

	verifier, err := e.verifierFor(sl)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := verifier.Verify(caller, ticket, authz.ActionInvest); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	pos, err := e.loadOrCreatePosition(ctx, sl, caller)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if pos.Refunded {
		e.mu.Unlock()
		return nil, ErrPositionRefunded
	}
	if pos.InvestedCapital.Add(amount).GreaterThan(ticket.InvestCap) {
		e.mu.Unlock()
		return nil, ErrInvestCapExceeded
	}

	cons := e.consumption(sl.ID, caller, ticket)
	if err := e.store.ConsumeSignature(ctx, cons); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	prevSale := sl.Clone()
	prevPos := pos.Clone()

	now := e.now()
	if pos.FirstInvestedAt == nil {
		pos.FirstInvestedAt = &now
	}
	pos.RefreshSnapshot(ticket.InvestCap, ticket.TokenRate, ticket.AgreementHash)
	pos.InvestedCapital = pos.InvestedCapital.Add(amount)
	pos.Touch()
	sl.Status.TotalCapitalInvested = sl.Status.TotalCapitalInvested.Add(amount)
	sl.Touch()

	if err := e.commit(ctx, sl, pos); err != nil {
		e.restore(ctx, prevSale, prevPos, cons)
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	e.logger.Info("investment recorded",
		"sale_id", sl.ID.String(),
		"account", caller.String(),
		"amount", amount.String(),
		"total_invested", sl.Status.TotalCapitalInvested.String(),
	)
	e.plugins.EmitInvested(ctx, pos)

	if err := e.tokens.TransferFrom(ctx, sl.Config.BidToken, caller, sl.Config.Treasury, amount); err != nil {
		e.rollback(ctx, caller, cons,
			func(s *sale.Sale) {
				s.Status.TotalCapitalInvested = s.Status.TotalCapitalInvested.Sub(amount)
			},
			func(p *position.Position) {
				p.InvestedCapital = p.InvestedCapital.Sub(amount)
				p.FirstInvestedAt = prevPos.FirstInvestedAt
				p.RefreshSnapshot(prevPos.InvestCap, prevPos.TokenRate, prevPos.AgreementHash)
			})
		return nil, err
	}
	return pos, nil
}

// Refund returns the caller's full balance while the refund window is
// still open (or the sale is still running) and marks the position
// refunded for good.
func (e *Engine) Refund(ctx context.Context, caller types.Account) (*position.Position, error) {
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
	if sl.Status.RefundWindowClosed(e.now()) {
		e.mu.Unlock()
		return nil, ErrRefundWindowClosed
	}

	pos, err := e.store.GetPosition(ctx, sl.ID, caller)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if pos.Refunded {
		e.mu.Unlock()
		return nil, ErrPositionRefunded
	}
	refund := pos.InvestedCapital
	if !refund.IsPositive() {
		e.mu.Unlock()
		return nil, ErrInvalidRefundAmount
	}

	prevSale := sl.Clone()
	prevPos := pos.Clone()

	pos.InvestedCapital = types.Amount{}
	pos.Refunded = true
	pos.Touch()
	sl.Status.TotalCapitalInvested = sl.Status.TotalCapitalInvested.Sub(refund)
	sl.Touch()

	if err := e.commit(ctx, sl, pos); err != nil {
		e.restore(ctx, prevSale, prevPos, nil)
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	e.logger.Info("position refunded",
		"sale_id", sl.ID.String(),
		"account", caller.String(),
		"amount", refund.String(),
	)
	e.plugins.EmitRefunded(ctx, pos)

	if err := e.tokens.Transfer(ctx, sl.Config.BidToken, caller, refund); err != nil {
		e.rollback(ctx, caller, nil,
			func(s *sale.Sale) {
				s.Status.TotalCapitalInvested = s.Status.TotalCapitalInvested.Add(refund)
			},
			func(p *position.Position) {
				p.InvestedCapital = p.InvestedCapital.Add(refund)
				p.Refunded = false
			})
		return nil, err
	}
	return pos, nil
}

// WithdrawExcessCapital reduces the caller's position by amount while
// the sale is open. It is the partial mirror of Invest and carries the
// same authorization discipline: a fresh signer ticket, consumed on use.
func (e *Engine) WithdrawExcessCapital(ctx context.Context, caller types.Account, amount types.Amount, ticket authz.Ticket) (*position.Position, error) {
	if e.tokens == nil {
		return nil, ErrNoTokenTransferer
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidWithdrawAmount
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
	if sl.Status.Ended {
		e.mu.Unlock()
		return nil, ErrSaleEnded
	}

	verifier, err := e.verifierFor(sl)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := verifier.Verify(caller, ticket, authz.ActionWithdrawExcess); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	pos, err := e.store.GetPosition(ctx, sl.ID, caller)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if pos.Refunded {
		e.mu.Unlock()
		return nil, ErrPositionRefunded
	}
	// The balance never goes negative.
	if amount.GreaterThan(pos.InvestedCapital) {
		e.mu.Unlock()
		return nil, ErrInvalidWithdrawAmount
	}

	cons := e.consumption(sl.ID, caller, ticket)
	if err := e.store.ConsumeSignature(ctx, cons); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	prevSale := sl.Clone()
	prevPos := pos.Clone()

	pos.RefreshSnapshot(ticket.InvestCap, ticket.TokenRate, ticket.AgreementHash)
	pos.InvestedCapital = pos.InvestedCapital.Sub(amount)
	pos.Touch()
	sl.Status.TotalCapitalInvested = sl.Status.TotalCapitalInvested.Sub(amount)
	sl.Touch()

	if err := e.commit(ctx, sl, pos); err != nil {
		e.restore(ctx, prevSale, prevPos, cons)
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	e.logger.Info("excess capital withdrawn",
		"sale_id", sl.ID.String(),
		"account", caller.String(),
		"amount", amount.String(),
	)
	e.plugins.EmitExcessWithdrawn(ctx, pos)

	if err := e.tokens.Transfer(ctx, sl.Config.BidToken, caller, amount); err != nil {
		e.rollback(ctx, caller, cons,
			func(s *sale.Sale) {
				s.Status.TotalCapitalInvested = s.Status.TotalCapitalInvested.Add(amount)
			},
			func(p *position.Position) {
				p.InvestedCapital = p.InvestedCapital.Add(amount)
				p.RefreshSnapshot(prevPos.InvestCap, prevPos.TokenRate, prevPos.AgreementHash)
			})
		return nil, err
	}
	return pos, nil
}

// WithdrawCapitalIfCanceled pays out the caller's full remaining balance
// after the sale has been canceled. Cancellation is terminal, so there
// is no window to respect and no authorization to verify.
func (e *Engine) WithdrawCapitalIfCanceled(ctx context.Context, caller types.Account) (*position.Position, error) {
	if e.tokens == nil {
		return nil, ErrNoTokenTransferer
	}

	e.mu.Lock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if !sl.Status.Canceled {
		e.mu.Unlock()
		return nil, ErrSaleNotCanceled
	}

	pos, err := e.store.GetPosition(ctx, sl.ID, caller)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	payout := pos.InvestedCapital
	if !payout.IsPositive() {
		e.mu.Unlock()
		return nil, ErrInvalidWithdrawAmount
	}

	prevSale := sl.Clone()
	prevPos := pos.Clone()

	pos.InvestedCapital = types.Amount{}
	pos.Touch()
	sl.Status.TotalCapitalInvested = sl.Status.TotalCapitalInvested.Sub(payout)
	sl.Touch()

	if err := e.commit(ctx, sl, pos); err != nil {
		e.restore(ctx, prevSale, prevPos, nil)
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	e.logger.Info("canceled-sale capital withdrawn",
		"sale_id", sl.ID.String(),
		"account", caller.String(),
		"amount", payout.String(),
	)
	e.plugins.EmitCancelWithdrawn(ctx, pos)

	if err := e.tokens.Transfer(ctx, sl.Config.BidToken, caller, payout); err != nil {
		e.rollback(ctx, caller, nil,
			func(s *sale.Sale) {
				s.Status.TotalCapitalInvested = s.Status.TotalCapitalInvested.Add(payout)
			},
			func(p *position.Position) {
				p.InvestedCapital = p.InvestedCapital.Add(payout)
			})
		return nil, err
	}
	return pos, nil
}

// ──────────────────────────────────────────────────
// Commit and rollback plumbing
// ──────────────────────────────────────────────────

func (e *Engine) loadOrCreatePosition(ctx context.Context, sl *sale.Sale, account types.Account) (*position.Position, error) {
	pos, err := e.store.GetPosition(ctx, sl.ID, account)
	if err == nil {
		return pos, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	return &position.Position{
		Entity:  types.NewEntity(),
		ID:      id.NewPositionID(),
		SaleID:  sl.ID,
		Account: account,
	}, nil
}

func (e *Engine) consumption(saleID id.SaleID, account types.Account, ticket authz.Ticket) *replay.Consumption {
	return &replay.Consumption{
		SaleID:       saleID,
		Account:      account,
		SignatureHex: ticket.SignatureHex(),
		ConsumedAt:   e.now(),
	}
}

// commit persists a sale and position mutation together. Caller holds mu.
func (e *Engine) commit(ctx context.Context, sl *sale.Sale, pos *position.Position) error {
	if pos != nil {
		if err := e.store.SavePosition(ctx, pos); err != nil {
			return err
		}
	}
	return e.store.UpdateSale(ctx, sl)
}

// rollback undoes this operation's own ledger writes after an external
// interaction failed before any value moved. It re-reads current state
// and applies the reverse mutations instead of restoring a snapshot,
// so operations committed by other callers between the unlock and the
// failure survive. The signature consumption, if any, is revoked with
// it. Once any outbound transfer of an operation has succeeded the
// operation must stay committed; those paths park the remaining legs
// instead of calling rollback.
func (e *Engine) rollback(ctx context.Context, account types.Account, cons *replay.Consumption, undoSale func(*sale.Sale), undoPos func(*position.Position)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		e.logger.Error("rollback: load sale failed", "error", err)
		return
	}
	if undoPos != nil {
		pos, err := e.store.GetPosition(ctx, sl.ID, account)
		if err != nil {
			e.logger.Error("rollback: load position failed",
				"sale_id", sl.ID.String(),
				"account", account.String(),
				"error", err,
			)
		} else {
			undoPos(pos)
			pos.Touch()
			if err := e.store.SavePosition(ctx, pos); err != nil {
				e.logger.Error("rollback: save position failed",
					"sale_id", sl.ID.String(),
					"account", account.String(),
					"error", err,
				)
			}
		}
	}
	if undoSale != nil {
		undoSale(sl)
		sl.Touch()
		if err := e.store.UpdateSale(ctx, sl); err != nil {
			e.logger.Error("rollback: save sale failed",
				"sale_id", sl.ID.String(),
				"error", err,
			)
		}
	}
	if cons != nil {
		if err := e.store.RevokeSignature(ctx, cons.SaleID, cons.Account, cons.SignatureHex); err != nil {
			e.logger.Error("rollback: revoke signature failed",
				"sale_id", cons.SaleID.String(),
				"account", cons.Account.String(),
				"error", err,
			)
		}
	}
	e.logger.Warn("operation rolled back after failed interaction",
		"sale_id", sl.ID.String(),
	)
}

// restore writes pre-operation snapshots back, for commit failures that
// happen while the caller still holds mu and nothing external ran.
func (e *Engine) restore(ctx context.Context, prevSale *sale.Sale, prevPos *position.Position, cons *replay.Consumption) {
	if prevPos != nil {
		if err := e.store.SavePosition(ctx, prevPos); err != nil {
			e.logger.Error("rollback: restore position failed",
				"sale_id", prevPos.SaleID.String(),
				"account", prevPos.Account.String(),
				"error", err,
			)
		}
	}
	if prevSale != nil {
		if err := e.store.UpdateSale(ctx, prevSale); err != nil {
			e.logger.Error("rollback: restore sale failed",
				"sale_id", prevSale.ID.String(),
				"error", err,
			)
		}
	}
	if cons != nil {
		if err := e.store.RevokeSignature(ctx, cons.SaleID, cons.Account, cons.SignatureHex); err != nil {
			e.logger.Error("rollback: revoke signature failed",
				"sale_id", cons.SaleID.String(),
				"account", cons.Account.String(),
				"error", err,
			)
		}
	}
}
