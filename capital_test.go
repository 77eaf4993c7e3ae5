package presale_test

import (
	"context"
	"errors"
	"testing"
	"time"

	presale "github.com/xraph/presale"
	"github.com/xraph/presale/authz"
	tokenmem "github.com/xraph/presale/token/memory"
	"github.com/xraph/presale/types"
)

func TestInvest(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 5000)

	pos := f.invest(alice, 1000, 5000, "agr-1")

	if !pos.InvestedCapital.Equal(types.NewAmount(1000)) {
		t.Errorf("invested capital: got %s, want 1000", pos.InvestedCapital)
	}
	if pos.FirstInvestedAt == nil {
		t.Error("expected FirstInvestedAt stamp")
	}
	if !pos.InvestCap.Equal(types.NewAmount(5000)) {
		t.Errorf("cached cap: got %s, want 5000", pos.InvestCap)
	}
	if !pos.TokenRate.Equal(ratePct1) {
		t.Errorf("cached rate: got %s, want %s", pos.TokenRate, ratePct1)
	}

	st := f.status()
	if !st.TotalCapitalInvested.Equal(types.NewAmount(1000)) {
		t.Errorf("total invested: got %s, want 1000", st.TotalCapitalInvested)
	}

	// Capital landed in the treasury.
	if got := f.bank.Balance(bidToken, treasury); !got.Equal(types.NewAmount(1000)) {
		t.Errorf("treasury balance: got %s, want 1000", got)
	}
	if got := f.bank.Balance(bidToken, alice); !got.Equal(types.NewAmount(4000)) {
		t.Errorf("alice balance: got %s, want 4000", got)
	}
}

func TestInvestAccumulates(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 5000)

	f.invest(alice, 1000, 5000, "agr-1")
	pos := f.invest(alice, 2000, 5000, "agr-2")

	if !pos.InvestedCapital.Equal(types.NewAmount(3000)) {
		t.Errorf("invested capital: got %s, want 3000", pos.InvestedCapital)
	}
	first := pos.FirstInvestedAt
	if first == nil {
		t.Fatal("expected FirstInvestedAt stamp")
	}

	f.advance(time.Hour)
	pos = f.invest(alice, 500, 5000, "agr-3")
	if !pos.FirstInvestedAt.Equal(*first) {
		t.Error("FirstInvestedAt changed on a later investment")
	}
}

func TestInvestSignatureReplay(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 5000)

	tk := f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-1", authz.ActionInvest)
	if _, err := f.engine.Invest(f.ctx, alice, types.NewAmount(1000), tk); err != nil {
		t.Fatalf("first invest: %v", err)
	}

	// Exact same ticket, second use.
	_, err := f.engine.Invest(f.ctx, alice, types.NewAmount(1000), tk)
	if !errors.Is(err, presale.ErrSignatureReuse) {
		t.Fatalf("expected ErrSignatureReuse, got %v", err)
	}

	// The failed replay left no trace.
	st := f.status()
	if !st.TotalCapitalInvested.Equal(types.NewAmount(1000)) {
		t.Errorf("total invested: got %s, want 1000", st.TotalCapitalInvested)
	}
}

func TestInvestRejections(t *testing.T) {
	t.Run("zero amount", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-1", authz.ActionInvest)
		if _, err := f.engine.Invest(f.ctx, alice, types.Amount{}, tk); !errors.Is(err, presale.ErrInvalidInvestAmount) {
			t.Errorf("expected ErrInvalidInvestAmount, got %v", err)
		}
	})

	t.Run("cap exceeded", func(t *testing.T) {
		f := newFixture(t)
		f.fund(alice, 10000)
		f.invest(alice, 4000, 5000, "agr-1")

		tk := f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-2", authz.ActionInvest)
		if _, err := f.engine.Invest(f.ctx, alice, types.NewAmount(2000), tk); !errors.Is(err, presale.ErrInvestCapExceeded) {
			t.Errorf("expected ErrInvestCapExceeded, got %v", err)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newFixture(t)
		f.fund(alice, 5000)
		// Ticket signed for bob, presented by alice.
		tk := f.ticket(bob, types.NewAmount(5000), ratePct1, "agr-1", authz.ActionInvest)
		if _, err := f.engine.Invest(f.ctx, alice, types.NewAmount(1000), tk); !errors.Is(err, authz.ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("after end", func(t *testing.T) {
		f := newFixture(t)
		f.fund(alice, 5000)
		f.endSale()
		tk := f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-1", authz.ActionInvest)
		if _, err := f.engine.Invest(f.ctx, alice, types.NewAmount(1000), tk); !errors.Is(err, presale.ErrSaleEnded) {
			t.Errorf("expected ErrSaleEnded, got %v", err)
		}
	})

	t.Run("after cancel", func(t *testing.T) {
		f := newFixture(t)
		f.fund(alice, 5000)
		if _, err := f.engine.CancelSale(f.ctx, project); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		tk := f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-1", authz.ActionInvest)
		if _, err := f.engine.Invest(f.ctx, alice, types.NewAmount(1000), tk); !errors.Is(err, presale.ErrSaleCanceled) {
			t.Errorf("expected ErrSaleCanceled, got %v", err)
		}
	})
}

func TestInvestRollbackOnFailedPull(t *testing.T) {
	f := newFixture(t)
	// Minted but never approved: the treasury pull will fail.
	f.bank.Mint(bidToken, alice, types.NewAmount(5000))

	tk := f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-1", authz.ActionInvest)
	if _, err := f.engine.Invest(f.ctx, alice, types.NewAmount(1000), tk); err == nil {
		t.Fatal("expected transfer failure")
	}

	// The ledger shows no trace of the failed operation.
	st := f.status()
	if !st.TotalCapitalInvested.IsZero() {
		t.Errorf("total invested after rollback: got %s, want 0", st.TotalCapitalInvested)
	}
	pos, err := f.engine.Position(f.ctx, alice)
	if err == nil && pos.InvestedCapital.IsPositive() {
		t.Errorf("position balance after rollback: got %s, want 0", pos.InvestedCapital)
	}

	// The signature was revoked with the rollback, so the same ticket
	// works once the allowance is in place.
	f.bank.Approve(bidToken, alice, types.NewAmount(5000))
	if _, err := f.engine.Invest(f.ctx, alice, types.NewAmount(1000), tk); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
}

// hookedBank wraps the in-memory bank, running a callback before each
// pull so tests can interleave other engine calls with a transfer.
type hookedBank struct {
	*tokenmem.Bank
	beforePull func()
}

func (b *hookedBank) TransferFrom(ctx context.Context, asset, from, to types.Account, amount types.Amount) error {
	if b.beforePull != nil {
		b.beforePull()
	}
	return b.Bank.TransferFrom(ctx, asset, from, to, amount)
}

func TestInvestRollbackKeepsConcurrentCommits(t *testing.T) {
	hb := &hookedBank{}
	f := newFixture(t, presale.WithTokens(hb))
	hb.Bank = f.bank

	// Alice is minted but never approved, so her pull will fail. Bob's
	// investment commits in full between alice's commit and her failed
	// pull.
	f.bank.Mint(bidToken, alice, types.NewAmount(5000))
	f.fund(bob, 5000)

	hb.beforePull = func() {
		hb.beforePull = nil
		f.invest(bob, 2000, 5000, "agr-bob")
	}

	tk := f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-alice", authz.ActionInvest)
	if _, err := f.engine.Invest(f.ctx, alice, types.NewAmount(1000), tk); err == nil {
		t.Fatal("expected transfer failure")
	}

	// Rolling alice back must not erase bob's committed investment.
	st := f.status()
	if !st.TotalCapitalInvested.Equal(types.NewAmount(2000)) {
		t.Errorf("total invested: got %s, want 2000", st.TotalCapitalInvested)
	}
	pos, err := f.engine.Position(f.ctx, bob)
	if err != nil {
		t.Fatalf("bob position: %v", err)
	}
	if !pos.InvestedCapital.Equal(types.NewAmount(2000)) {
		t.Errorf("bob invested capital: got %s, want 2000", pos.InvestedCapital)
	}
	if got := f.bank.Balance(bidToken, treasury); !got.Equal(types.NewAmount(2000)) {
		t.Errorf("treasury balance: got %s, want 2000", got)
	}
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 5000)
	f.invest(alice, 3000, 5000, "agr-1")

	pos, err := f.engine.Refund(f.ctx, alice)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !pos.InvestedCapital.IsZero() {
		t.Errorf("balance after refund: got %s, want 0", pos.InvestedCapital)
	}
	if !pos.Refunded {
		t.Error("expected refunded flag")
	}

	if got := f.bank.Balance(bidToken, alice); !got.Equal(types.NewAmount(5000)) {
		t.Errorf("alice balance: got %s, want 5000", got)
	}
	st := f.status()
	if !st.TotalCapitalInvested.IsZero() {
		t.Errorf("total invested: got %s, want 0", st.TotalCapitalInvested)
	}

	// Refunded is terminal: no refund again, no re-entry into the sale.
	if _, err := f.engine.Refund(f.ctx, alice); !errors.Is(err, presale.ErrPositionRefunded) {
		t.Errorf("second refund: expected ErrPositionRefunded, got %v", err)
	}
	tk := f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-2", authz.ActionInvest)
	if _, err := f.engine.Invest(f.ctx, alice, types.NewAmount(100), tk); !errors.Is(err, presale.ErrPositionRefunded) {
		t.Errorf("invest after refund: expected ErrPositionRefunded, got %v", err)
	}
}

func TestRefundDuringWindow(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 5000)
	f.invest(alice, 3000, 5000, "agr-1")
	f.endSale()

	// Window is open; refunds still flow.
	f.advance(refundWindow / 2)
	if _, err := f.engine.Refund(f.ctx, alice); err != nil {
		t.Fatalf("refund during window: %v", err)
	}
}

func TestRefundAfterWindowClosed(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 5000)
	f.invest(alice, 3000, 5000, "agr-1")
	f.endAndCloseWindow()

	if _, err := f.engine.Refund(f.ctx, alice); !errors.Is(err, presale.ErrRefundWindowClosed) {
		t.Fatalf("expected ErrRefundWindowClosed, got %v", err)
	}
}

func TestWithdrawExcessCapital(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 5000)
	f.invest(alice, 3000, 5000, "agr-1")

	tk := f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-2", authz.ActionWithdrawExcess)
	pos, err := f.engine.WithdrawExcessCapital(f.ctx, alice, types.NewAmount(1000), tk)
	if err != nil {
		t.Fatalf("withdraw excess: %v", err)
	}
	if !pos.InvestedCapital.Equal(types.NewAmount(2000)) {
		t.Errorf("balance: got %s, want 2000", pos.InvestedCapital)
	}
	if got := f.bank.Balance(bidToken, alice); !got.Equal(types.NewAmount(3000)) {
		t.Errorf("alice balance: got %s, want 3000", got)
	}

	// More than the balance: rejected, the balance never goes negative.
	tk = f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-3", authz.ActionWithdrawExcess)
	if _, err := f.engine.WithdrawExcessCapital(f.ctx, alice, types.NewAmount(9999), tk); !errors.Is(err, presale.ErrInvalidWithdrawAmount) {
		t.Errorf("expected ErrInvalidWithdrawAmount, got %v", err)
	}

	// An invest ticket does not authorize a withdrawal.
	tk = f.ticket(alice, types.NewAmount(5000), ratePct1, "agr-4", authz.ActionInvest)
	if _, err := f.engine.WithdrawExcessCapital(f.ctx, alice, types.NewAmount(100), tk); !errors.Is(err, authz.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestWithdrawCapitalIfCanceled(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 5000)
	f.invest(alice, 3000, 5000, "agr-1")

	// Not canceled yet.
	if _, err := f.engine.WithdrawCapitalIfCanceled(f.ctx, alice); !errors.Is(err, presale.ErrSaleNotCanceled) {
		t.Fatalf("expected ErrSaleNotCanceled, got %v", err)
	}

	if _, err := f.engine.CancelSale(f.ctx, project); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	pos, err := f.engine.WithdrawCapitalIfCanceled(f.ctx, alice)
	if err != nil {
		t.Fatalf("withdraw after cancel: %v", err)
	}
	if !pos.InvestedCapital.IsZero() {
		t.Errorf("balance: got %s, want 0", pos.InvestedCapital)
	}
	if got := f.bank.Balance(bidToken, alice); !got.Equal(types.NewAmount(5000)) {
		t.Errorf("alice balance: got %s, want 5000", got)
	}

	// Empty position: nothing further to withdraw.
	if _, err := f.engine.WithdrawCapitalIfCanceled(f.ctx, alice); !errors.Is(err, presale.ErrInvalidWithdrawAmount) {
		t.Errorf("expected ErrInvalidWithdrawAmount, got %v", err)
	}
}

func TestCapitalConservation(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 10000)
	f.fund(bob, 10000)

	f.invest(alice, 4000, 10000, "agr-a1")
	f.invest(bob, 2500, 10000, "agr-b1")
	f.invest(alice, 1000, 10000, "agr-a2")

	tk := f.ticket(bob, types.NewAmount(10000), ratePct1, "agr-b2", authz.ActionWithdrawExcess)
	if _, err := f.engine.WithdrawExcessCapital(f.ctx, bob, types.NewAmount(500), tk); err != nil {
		t.Fatalf("withdraw excess: %v", err)
	}

	positions, err := f.engine.Positions(f.ctx)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	var total types.Amount
	for _, p := range positions {
		if p.InvestedCapital.IsNegative() {
			t.Errorf("negative balance on %s: %s", p.Account, p.InvestedCapital)
		}
		total = total.Add(p.InvestedCapital)
	}

	st := f.status()
	if !total.Equal(st.TotalCapitalInvested) {
		t.Errorf("conservation violated: positions sum %s, counter %s", total, st.TotalCapitalInvested)
	}
	if got := f.bank.Balance(bidToken, treasury); !got.Equal(total) {
		t.Errorf("treasury drifted from ledger: balance %s, positions sum %s", got, total)
	}
}
