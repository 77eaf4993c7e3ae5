package lifecycle

import (
	"testing"
	"time"

	"github.com/xraph/presale/types"
)

func TestPhaseDerivation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		status   Status
		expected Phase
	}{
		{
			"fresh sale is open",
			Status{},
			PhaseOpen,
		},
		{
			"ended with window open",
			Status{Ended: true, RefundWindowEndsAt: &future},
			PhaseEnded,
		},
		{
			"ended with window elapsed",
			Status{Ended: true, RefundWindowEndsAt: &past},
			PhaseRefundClosed,
		},
		{
			"terms published",
			Status{
				Ended:              true,
				RefundWindowEndsAt: &past,
				AskToken:           types.Account("token-ask"),
			},
			PhaseTermsPublished,
		},
		{
			"capital withdrawn",
			Status{
				Ended:                 true,
				RefundWindowEndsAt:    &past,
				AskToken:              types.Account("token-ask"),
				TotalCapitalWithdrawn: types.NewAmount(1000),
			},
			PhaseWithdrawn,
		},
		{
			// The raise can be withdrawn before any token terms exist.
			"capital withdrawn without terms",
			Status{
				Ended:                 true,
				RefundWindowEndsAt:    &past,
				TotalCapitalWithdrawn: types.NewAmount(1000),
			},
			PhaseWithdrawn,
		},
		{
			"canceled wins over everything",
			Status{
				Canceled:           true,
				Ended:              true,
				RefundWindowEndsAt: &past,
				AskToken:           types.Account("token-ask"),
			},
			PhaseCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Phase(now); got != tt.expected {
				t.Errorf("Phase: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestRefundWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	endsAt := now.Add(time.Hour)

	tests := []struct {
		name   string
		status Status
		at     time.Time
		open   bool
		closed bool
	}{
		{"not ended", Status{}, now, false, false},
		{"ended, no window", Status{Ended: true}, now, false, false},
		{"inside window", Status{Ended: true, RefundWindowEndsAt: &endsAt}, now, true, false},
		{"exactly at boundary", Status{Ended: true, RefundWindowEndsAt: &endsAt}, endsAt, false, true},
		{"after window", Status{Ended: true, RefundWindowEndsAt: &endsAt}, endsAt.Add(time.Minute), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.RefundWindowOpen(tt.at); got != tt.open {
				t.Errorf("RefundWindowOpen: got %v, want %v", got, tt.open)
			}
			if got := tt.status.RefundWindowClosed(tt.at); got != tt.closed {
				t.Errorf("RefundWindowClosed: got %v, want %v", got, tt.closed)
			}
		})
	}
}

func TestStatusClone(t *testing.T) {
	now := time.Now().UTC()
	original := &Status{
		AskToken:             types.Account("token-ask"),
		TotalCapitalInvested: types.NewAmount(500),
		Ended:                true,
		EndedAt:              &now,
		RefundWindowEndsAt:   &now,
		PendingTransfers: []PendingTransfer{
			{Asset: types.Account("token-ask"), Receiver: types.Account("acct-a"), Amount: types.NewAmount(100)},
		},
	}

	copied := original.Clone()

	later := now.Add(time.Hour)
	copied.EndedAt = &later
	*copied.RefundWindowEndsAt = later
	copied.TotalCapitalInvested = types.NewAmount(999)
	copied.PendingTransfers[0].Receiver = types.Account("acct-b")
	copied.PendingTransfers = append(copied.PendingTransfers,
		PendingTransfer{Asset: types.Account("token-ask"), Receiver: types.Account("acct-c"), Amount: types.NewAmount(1)})

	if !original.EndedAt.Equal(now) {
		t.Error("clone shares EndedAt pointer with original")
	}
	if !original.RefundWindowEndsAt.Equal(now) {
		t.Error("clone shares RefundWindowEndsAt pointer with original")
	}
	if !original.TotalCapitalInvested.Equal(types.NewAmount(500)) {
		t.Error("clone mutation leaked into original counter")
	}
	if len(original.PendingTransfers) != 1 || original.PendingTransfers[0].Receiver != types.Account("acct-a") {
		t.Error("clone shares the pending transfer slice with original")
	}
}
