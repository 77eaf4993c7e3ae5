package presale_test

import (
	"context"
	"errors"
	"testing"

	presale "github.com/xraph/presale"
	"github.com/xraph/presale/authz"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

// claimReady builds a sale in the settlement stage: alice invested, the
// sale ended, the window closed, terms published (supply 100000, alice's
// 1% rate entitles her to 1000 tokens), and the allocation supplied.
func claimReady(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.fund(alice, 10000)
	f.invest(alice, 10000, 10000, "agr-1")
	f.endAndCloseWindow()
	f.publishTerms(100_000, 10_000)
	f.supplyTokens(10_000)
	return f
}

// settledFixture is claimReady after alice has claimed.
func settledFixture(t *testing.T) *fixture {
	t.Helper()
	f := claimReady(t)
	tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
	if _, err := f.engine.ClaimAllocation(f.ctx, alice, tk); err != nil {
		t.Fatalf("claim: %v", err)
	}
	return f
}

func TestClaimAllocation(t *testing.T) {
	f := claimReady(t)

	tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
	pos, err := f.engine.ClaimAllocation(f.ctx, alice, tk)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if !pos.Settled {
		t.Error("expected settled flag")
	}
	if pos.VestingSchedule.IsZero() {
		t.Fatal("expected a vesting schedule assignment")
	}

	// 1% of 100000 supply is a 1000 entitlement; 20% immediate release
	// pays 200 now, the remaining 800 funds the schedule.
	if got := f.bank.Balance(askToken, alice); !got.Equal(types.NewAmount(200)) {
		t.Errorf("immediate payout: got %s, want 200", got)
	}
	if got := f.bank.Balance(askToken, pos.VestingSchedule); !got.Equal(types.NewAmount(800)) {
		t.Errorf("schedule funding: got %s, want 800", got)
	}

	// The schedule was created with the sale's terms.
	if len(f.factory.created) != 1 {
		t.Fatalf("factory calls: got %d, want 1", len(f.factory.created))
	}
	req := f.factory.created[0]
	if req.ID.IsNil() || req.ID.Prefix() != id.PrefixSchedule {
		t.Errorf("schedule request ID: got %q, want a %q-prefixed ID", req.ID, id.PrefixSchedule)
	}
	if req.Beneficiary != alice {
		t.Errorf("beneficiary: got %s, want %s", req.Beneficiary, alice)
	}
	terms, _ := f.engine.Terms(f.ctx)
	if !req.Start.Equal(terms.Start) || req.Duration != terms.Duration || req.Cliff != terms.Cliff {
		t.Error("schedule request does not match the sale terms")
	}
}

func TestClaimAllocationOnce(t *testing.T) {
	f := settledFixture(t)

	// A fresh, valid ticket does not help: the position is settled.
	tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim-2", authz.ActionClaim)
	_, err := f.engine.ClaimAllocation(f.ctx, alice, tk)
	if !errors.Is(err, presale.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}

	// No second payout.
	if got := f.bank.Balance(askToken, alice); !got.Equal(types.NewAmount(200)) {
		t.Errorf("immediate payout after replay: got %s, want 200", got)
	}
}

func TestClaimAllocationReentrantFactory(t *testing.T) {
	f := claimReady(t)

	// The factory calls back into ClaimAllocation with its own fresh
	// ticket before returning the schedule. The settled flag is already
	// committed, so the reentrant claim must fail and the outer claim
	// must still succeed with exactly one payout.
	var reentrantErr error
	f.factory.hook = func(ctx context.Context) error {
		inner := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-reenter", authz.ActionClaim)
		_, reentrantErr = f.engine.ClaimAllocation(ctx, alice, inner)
		return nil
	}

	tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
	pos, err := f.engine.ClaimAllocation(f.ctx, alice, tk)
	if err != nil {
		t.Fatalf("outer claim: %v", err)
	}
	if !errors.Is(reentrantErr, presale.ErrAlreadySettled) {
		t.Fatalf("reentrant claim: expected ErrAlreadySettled, got %v", reentrantErr)
	}

	if got := f.bank.Balance(askToken, alice); !got.Equal(types.NewAmount(200)) {
		t.Errorf("immediate payout: got %s, want 200", got)
	}
	if got := f.bank.Balance(askToken, pos.VestingSchedule); !got.Equal(types.NewAmount(800)) {
		t.Errorf("schedule funding: got %s, want 800", got)
	}
}

func TestClaimAllocationGuards(t *testing.T) {
	t.Run("before terms", func(t *testing.T) {
		f := newFixture(t)
		f.fund(alice, 10000)
		f.invest(alice, 10000, 10000, "agr-1")
		f.endAndCloseWindow()

		tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
		if _, err := f.engine.ClaimAllocation(f.ctx, alice, tk); !errors.Is(err, presale.ErrAskTokenUnavailable) {
			t.Errorf("expected ErrAskTokenUnavailable, got %v", err)
		}
	})

	t.Run("before supply", func(t *testing.T) {
		f := newFixture(t)
		f.fund(alice, 10000)
		f.invest(alice, 10000, 10000, "agr-1")
		f.endAndCloseWindow()
		f.publishTerms(100_000, 10_000)

		tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
		if _, err := f.engine.ClaimAllocation(f.ctx, alice, tk); !errors.Is(err, presale.ErrTokensNotSupplied) {
			t.Errorf("expected ErrTokensNotSupplied, got %v", err)
		}
	})

	t.Run("invest ticket rejected", func(t *testing.T) {
		f := claimReady(t)
		tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionInvest)
		if _, err := f.engine.ClaimAllocation(f.ctx, alice, tk); !errors.Is(err, authz.ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("no position", func(t *testing.T) {
		f := claimReady(t)
		tk := f.ticket(bob, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
		if _, err := f.engine.ClaimAllocation(f.ctx, bob, tk); !errors.Is(err, presale.ErrPositionNotFound) {
			t.Errorf("expected ErrPositionNotFound, got %v", err)
		}
	})
}

func TestClaimAllocationUsesTicketRate(t *testing.T) {
	f := claimReady(t)

	// The claim ticket carries a refreshed 2% rate; the entitlement uses
	// it instead of the 1% cached at invest time.
	rate2pct := types.MustAmount("20000000000000000")
	tk := f.ticket(alice, types.NewAmount(10000), rate2pct, "agr-claim", authz.ActionClaim)
	pos, err := f.engine.ClaimAllocation(f.ctx, alice, tk)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	// 2% of 100000 is 2000: 400 immediate, 1600 vested.
	if got := f.bank.Balance(askToken, alice); !got.Equal(types.NewAmount(400)) {
		t.Errorf("immediate payout: got %s, want 400", got)
	}
	if got := f.bank.Balance(askToken, pos.VestingSchedule); !got.Equal(types.NewAmount(1600)) {
		t.Errorf("schedule funding: got %s, want 1600", got)
	}
}

func TestClaimAllocationRollbackOnFactoryFailure(t *testing.T) {
	f := claimReady(t)
	f.factory.hook = func(context.Context) error {
		return errors.New("factory unavailable")
	}

	tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
	if _, err := f.engine.ClaimAllocation(f.ctx, alice, tk); err == nil {
		t.Fatal("expected factory failure to surface")
	}

	// Fully rolled back: not settled, nothing paid, ticket usable again.
	pos, err := f.engine.Position(f.ctx, alice)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Settled {
		t.Error("position settled despite rollback")
	}
	if got := f.bank.Balance(askToken, alice); !got.IsZero() {
		t.Errorf("payout despite rollback: got %s", got)
	}

	f.factory.hook = nil
	if _, err := f.engine.ClaimAllocation(f.ctx, alice, tk); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
}

func TestClaimAllocationPartialPayout(t *testing.T) {
	f := claimReady(t)

	// Drain the treasury so the 800 schedule funding still fits but the
	// 200 immediate payout does not.
	if err := f.engine.EmergencyWithdraw(f.ctx, bouncer, types.Account("acct-drain"), askToken, types.NewAmount(9_100)); err != nil {
		t.Fatalf("drain treasury: %v", err)
	}

	tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
	_, err := f.engine.ClaimAllocation(f.ctx, alice, tk)
	if !errors.Is(err, presale.ErrDisbursementIncomplete) {
		t.Fatalf("expected ErrDisbursementIncomplete, got %v", err)
	}

	// The settlement stays committed: the schedule is funded, the owed
	// immediate payout is parked, and nothing reached alice yet.
	pos, err := f.engine.Position(f.ctx, alice)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if !pos.Settled {
		t.Error("expected settled flag after a partial payout")
	}
	if !pos.PendingImmediate.Equal(types.NewAmount(200)) {
		t.Errorf("parked payout: got %s, want 200", pos.PendingImmediate)
	}
	if got := f.bank.Balance(askToken, pos.VestingSchedule); !got.Equal(types.NewAmount(800)) {
		t.Errorf("schedule funding: got %s, want 800", got)
	}
	if got := f.bank.Balance(askToken, alice); !got.IsZero() {
		t.Errorf("immediate payout before retry: got %s, want 0", got)
	}

	// A retry while the treasury is still short parks the payout again.
	if _, err := f.engine.ClaimAllocation(f.ctx, alice, tk); !errors.Is(err, presale.ErrDisbursementIncomplete) {
		t.Fatalf("retry while short: expected ErrDisbursementIncomplete, got %v", err)
	}

	// Once the treasury is topped up, the same ticket finishes the payout
	// without creating a second schedule or paying the vested portion
	// again.
	f.bank.Mint(askToken, treasury, types.NewAmount(200))
	pos, err = f.engine.ClaimAllocation(f.ctx, alice, tk)
	if err != nil {
		t.Fatalf("retry after top-up: %v", err)
	}
	if !pos.PendingImmediate.IsZero() {
		t.Errorf("parked payout after retry: got %s, want 0", pos.PendingImmediate)
	}
	if got := f.bank.Balance(askToken, alice); !got.Equal(types.NewAmount(200)) {
		t.Errorf("immediate payout: got %s, want 200", got)
	}
	if got := f.bank.Balance(askToken, pos.VestingSchedule); !got.Equal(types.NewAmount(800)) {
		t.Errorf("schedule funding after retry: got %s, want 800", got)
	}
	if len(f.factory.created) != 1 {
		t.Errorf("factory calls: got %d, want 1", len(f.factory.created))
	}

	// Fully disbursed now; further claims are replays.
	if _, err := f.engine.ClaimAllocation(f.ctx, alice, tk); !errors.Is(err, presale.ErrAlreadySettled) {
		t.Errorf("claim after completion: expected ErrAlreadySettled, got %v", err)
	}
}

func TestClaimAllocationFullyImmediate(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 10000)
	f.invest(alice, 10000, 10000, "agr-1")
	f.endAndCloseWindow()

	// 100% immediate release: no schedule is ever created.
	terms, _ := f.engine.Terms(f.ctx)
	terms.ImmediateRelease = types.Wad()
	if err := f.engine.SetVestingTerms(f.ctx, project, *terms); err != nil {
		t.Fatalf("set terms: %v", err)
	}

	f.publishTerms(100_000, 10_000)
	f.supplyTokens(10_000)

	tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
	pos, err := f.engine.ClaimAllocation(f.ctx, alice, tk)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if !pos.VestingSchedule.IsZero() {
		t.Error("expected no schedule for a fully immediate release")
	}
	if len(f.factory.created) != 0 {
		t.Errorf("factory calls: got %d, want 0", len(f.factory.created))
	}
	if got := f.bank.Balance(askToken, alice); !got.Equal(types.NewAmount(1000)) {
		t.Errorf("payout: got %s, want 1000", got)
	}
}

func TestReleaseTokens(t *testing.T) {
	var released []types.Account
	releaser := releaserFunc(func(_ context.Context, schedule, asset types.Account) error {
		released = append(released, schedule, asset)
		return nil
	})

	f := newFixture(t, presale.WithReleaser(releaser))
	f.fund(alice, 10000)
	f.invest(alice, 10000, 10000, "agr-1")
	f.endAndCloseWindow()
	f.publishTerms(100_000, 10_000)
	f.supplyTokens(10_000)

	// No schedule yet.
	if err := f.engine.ReleaseTokens(f.ctx, alice); !errors.Is(err, presale.ErrZeroAddressProvided) {
		t.Fatalf("expected ErrZeroAddressProvided, got %v", err)
	}

	tk := f.ticket(alice, types.NewAmount(10000), ratePct1, "agr-claim", authz.ActionClaim)
	pos, err := f.engine.ClaimAllocation(f.ctx, alice, tk)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := f.engine.ReleaseTokens(f.ctx, alice); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(released) != 2 || released[0] != pos.VestingSchedule || released[1] != askToken {
		t.Errorf("release call: got %v, want [%s %s]", released, pos.VestingSchedule, askToken)
	}
}

func TestReleaseTokensWithoutReleaser(t *testing.T) {
	f := settledFixture(t)
	if err := f.engine.ReleaseTokens(f.ctx, alice); !errors.Is(err, presale.ErrNoVestingFactory) {
		t.Fatalf("expected ErrNoVestingFactory, got %v", err)
	}
}
