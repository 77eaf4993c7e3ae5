package presale_test

import (
	"errors"
	"testing"
	"time"

	presale "github.com/xraph/presale"
	"github.com/xraph/presale/lifecycle"
	"github.com/xraph/presale/types"
	"github.com/xraph/presale/vesting"
)

func TestEndSale(t *testing.T) {
	f := newFixture(t)

	// Neither bouncer nor project.
	if _, err := f.engine.EndSale(f.ctx, alice); !errors.Is(err, presale.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}

	st, err := f.engine.EndSale(f.ctx, bouncer)
	if err != nil {
		t.Fatalf("end sale: %v", err)
	}
	if !st.Ended {
		t.Error("expected ended flag")
	}
	if st.EndedAt == nil || st.RefundWindowEndsAt == nil {
		t.Fatal("expected end and window timestamps")
	}
	if got := st.RefundWindowEndsAt.Sub(*st.EndedAt); got != refundWindow {
		t.Errorf("window length: got %s, want %s", got, refundWindow)
	}

	if phase, _ := f.engine.Phase(f.ctx); phase != lifecycle.PhaseEnded {
		t.Errorf("phase: got %s, want %s", phase, lifecycle.PhaseEnded)
	}

	// Ending twice is rejected.
	if _, err := f.engine.EndSale(f.ctx, bouncer); !errors.Is(err, presale.ErrSaleEnded) {
		t.Errorf("expected ErrSaleEnded, got %v", err)
	}
}

func TestEndSaleByProject(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.EndSale(f.ctx, project); err != nil {
		t.Fatalf("project should be allowed to end the sale: %v", err)
	}
}

func TestCancelSale(t *testing.T) {
	f := newFixture(t)

	// Only the project cancels; the bouncer cannot.
	if _, err := f.engine.CancelSale(f.ctx, bouncer); !errors.Is(err, presale.ErrNotProject) {
		t.Fatalf("expected ErrNotProject, got %v", err)
	}

	st, err := f.engine.CancelSale(f.ctx, project)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !st.Canceled {
		t.Error("expected canceled flag")
	}
	if phase, _ := f.engine.Phase(f.ctx); phase != lifecycle.PhaseCanceled {
		t.Errorf("phase: got %s, want %s", phase, lifecycle.PhaseCanceled)
	}

	// Cancellation is terminal.
	if _, err := f.engine.CancelSale(f.ctx, project); !errors.Is(err, presale.ErrSaleCanceled) {
		t.Errorf("second cancel: expected ErrSaleCanceled, got %v", err)
	}
	if _, err := f.engine.EndSale(f.ctx, bouncer); !errors.Is(err, presale.ErrSaleCanceled) {
		t.Errorf("end after cancel: expected ErrSaleCanceled, got %v", err)
	}
}

func TestCancelSaleBlockedAfterSupply(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 5000)
	f.invest(alice, 1000, 5000, "agr-1")
	f.endAndCloseWindow()
	f.publishTerms(100_000, 10_000)
	f.supplyTokens(10_000)

	if _, err := f.engine.CancelSale(f.ctx, project); !errors.Is(err, presale.ErrTokensAlreadySupplied) {
		t.Fatalf("expected ErrTokensAlreadySupplied, got %v", err)
	}
}

func TestCancelSaleClawsBackWithdrawnCapital(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 10000)
	f.invest(alice, 10000, 10000, "agr-1")
	f.endAndCloseWindow()

	if _, err := f.engine.PublishCapitalRaised(f.ctx, bouncer, types.NewAmount(10000)); err != nil {
		t.Fatalf("publish raised: %v", err)
	}
	if _, err := f.engine.WithdrawRaisedCapital(f.ctx, project); err != nil {
		t.Fatalf("withdraw raised: %v", err)
	}

	// The project holds the net raise. Approve the clawback pull.
	net := f.bank.Balance(bidToken, project)
	f.bank.Approve(bidToken, project, types.NewAmount(10000))

	// The project only got the net amount; top it up so the full
	// withdrawn figure can be clawed back.
	shortfall := types.NewAmount(10000).Sub(net)
	if shortfall.IsPositive() {
		f.bank.Mint(bidToken, project, shortfall)
	}

	st, err := f.engine.CancelSale(f.ctx, project)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !st.TotalCapitalWithdrawn.IsZero() {
		t.Errorf("withdrawn counter after clawback: got %s, want 0", st.TotalCapitalWithdrawn)
	}

	// Investor payouts are funded again.
	if _, err := f.engine.WithdrawCapitalIfCanceled(f.ctx, alice); err != nil {
		t.Fatalf("investor withdrawal after clawback: %v", err)
	}
	if got := f.bank.Balance(bidToken, alice); !got.Equal(types.NewAmount(10000)) {
		t.Errorf("alice balance: got %s, want 10000", got)
	}
}

func TestSetVestingTerms(t *testing.T) {
	f := newFixture(t)

	newTerms := vesting.Terms{
		Duration:         180 * 24 * time.Hour,
		Cliff:            14 * 24 * time.Hour,
		ImmediateRelease: types.MustAmount("100000000000000000"),
	}

	// Project-only.
	if err := f.engine.SetVestingTerms(f.ctx, bouncer, newTerms); !errors.Is(err, presale.ErrNotProject) {
		t.Fatalf("expected ErrNotProject, got %v", err)
	}

	if err := f.engine.SetVestingTerms(f.ctx, project, newTerms); err != nil {
		t.Fatalf("set terms: %v", err)
	}
	terms, err := f.engine.Terms(f.ctx)
	if err != nil {
		t.Fatalf("terms: %v", err)
	}
	if terms.Duration != newTerms.Duration {
		t.Errorf("duration: got %s, want %s", terms.Duration, newTerms.Duration)
	}

	// Invalid terms are rejected before any role check.
	bad := vesting.Terms{Duration: time.Hour, Cliff: 2 * time.Hour}
	if err := f.engine.SetVestingTerms(f.ctx, project, bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestSetVestingTermsLockedAfterWithdraw(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 10000)
	f.invest(alice, 10000, 10000, "agr-1")
	f.endAndCloseWindow()

	if _, err := f.engine.PublishCapitalRaised(f.ctx, bouncer, types.NewAmount(10000)); err != nil {
		t.Fatalf("publish raised: %v", err)
	}
	if _, err := f.engine.WithdrawRaisedCapital(f.ctx, project); err != nil {
		t.Fatalf("withdraw raised: %v", err)
	}

	newTerms := vesting.Terms{Duration: time.Hour}
	if err := f.engine.SetVestingTerms(f.ctx, project, newTerms); !errors.Is(err, presale.ErrTermsLocked) {
		t.Fatalf("expected ErrTermsLocked, got %v", err)
	}
}

func TestSetVestingTermsLockedAfterSettlement(t *testing.T) {
	f := settledFixture(t)

	newTerms := vesting.Terms{Duration: time.Hour}
	if err := f.engine.SetVestingTerms(f.ctx, project, newTerms); !errors.Is(err, presale.ErrTermsLocked) {
		t.Fatalf("expected ErrTermsLocked, got %v", err)
	}
}
