package presale

import (
	"context"

	"github.com/xraph/presale/lifecycle"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/types"
	"github.com/xraph/presale/vesting"
)

// EndSale closes the investment phase and opens the refund window.
// Callable by the bouncer or the project.
func (e *Engine) EndSale(ctx context.Context, caller types.Account) (*lifecycle.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(sl, caller); err != nil {
		return nil, err
	}
	if sl.Status.Canceled {
		return nil, ErrSaleCanceled
	}
	if sl.Status.Ended {
		return nil, ErrSaleEnded
	}

	now := e.now()
	windowEnd := now.Add(sl.Config.RefundWindow)
	sl.Status.Ended = true
	sl.Status.EndedAt = &now
	sl.Status.RefundWindowEndsAt = &windowEnd
	sl.Touch()

	if err := e.store.UpdateSale(ctx, sl); err != nil {
		return nil, err
	}

	e.logger.Info("sale ended",
		"sale_id", sl.ID.String(),
		"refund_window_ends_at", windowEnd,
	)
	e.plugins.EmitSaleEnded(ctx, sl.Status.Clone())

	return sl.Status.Clone(), nil
}

// CancelSale terminally cancels the sale. Only the project may cancel,
// and only while the allocation has not been supplied. If the project
// had already withdrawn the raise, the withdrawn amount is pulled back
// into the treasury as part of the same operation, so investor payouts
// stay fully funded.
func (e *Engine) CancelSale(ctx context.Context, caller types.Account) (*lifecycle.Status, error) {
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
	if sl.Status.TokensSupplied {
		e.mu.Unlock()
		return nil, ErrTokensAlreadySupplied
	}

	clawback := sl.Status.TotalCapitalWithdrawn
	if clawback.IsPositive() && e.tokens == nil {
		e.mu.Unlock()
		return nil, ErrNoTokenTransferer
	}

	sl.Status.Canceled = true
	sl.Status.TotalCapitalWithdrawn = types.Amount{}
	sl.Touch()

	if err := e.store.UpdateSale(ctx, sl); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	e.logger.Info("sale canceled",
		"sale_id", sl.ID.String(),
		"clawback", clawback.String(),
	)
	e.plugins.EmitSaleCanceled(ctx, sl.Status.Clone())

	if clawback.IsPositive() {
		if err := e.tokens.TransferFrom(ctx, sl.Config.BidToken, sl.Config.Project, sl.Config.Treasury, clawback); err != nil {
			e.rollback(ctx, types.ZeroAccount, nil, func(s *sale.Sale) {
				s.Status.Canceled = false
				s.Status.TotalCapitalWithdrawn = clawback
			}, nil)
			return nil, err
		}
	}
	return sl.Status.Clone(), nil
}

// SetVestingTerms replaces the vesting terms. Terms are mutable only
// while no entitlement has been computed sale-wide and the raise has not
// been withdrawn; after either, they are locked.
func (e *Engine) SetVestingTerms(ctx context.Context, caller types.Account, terms vesting.Terms) error {
	if err := terms.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		return err
	}
	if err := requireProject(sl, caller); err != nil {
		return err
	}
	if sl.Status.TotalCapitalWithdrawn.IsPositive() {
		return ErrTermsLocked
	}

	positions, err := e.store.ListPositions(ctx, sl.ID)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		if pos.Settled {
			return ErrTermsLocked
		}
	}

	sl.Terms = terms
	sl.Touch()

	if err := e.store.UpdateSale(ctx, sl); err != nil {
		return err
	}

	e.logger.Info("vesting terms updated",
		"sale_id", sl.ID.String(),
		"duration", terms.Duration,
		"cliff", terms.Cliff,
		"immediate_release", terms.ImmediateRelease.String(),
	)
	return nil
}
