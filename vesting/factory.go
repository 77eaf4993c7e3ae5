package vesting

import (
	"context"
	"time"

	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

// CreateRequest carries the parameters for a new per-investor schedule.
// ID is the engine-side reference for the schedule; factories can use
// it as an idempotency key.
type CreateRequest struct {
	ID          id.ScheduleID
	Beneficiary types.Account
	Start       time.Time
	Duration    time.Duration
	Cliff       time.Duration
}

// Factory instantiates a time-release payout schedule and returns its
// account. The engine invokes it at most once per settled position; the
// settled-flag gate guarantees single invocation even under reentrancy.
type Factory interface {
	CreateSchedule(ctx context.Context, req CreateRequest) (types.Account, error)
}

// Releaser pays out whatever is currently due under an existing
// schedule. Release mutates no sale-owned state, so calls are idempotent
// at the ledger level.
type Releaser interface {
	Release(ctx context.Context, schedule, asset types.Account) error
}

// Service combines schedule creation and release; most factory
// implementations provide both.
type Service interface {
	Factory
	Releaser
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(ctx context.Context, req CreateRequest) (types.Account, error)

// CreateSchedule implements Factory.
func (f FactoryFunc) CreateSchedule(ctx context.Context, req CreateRequest) (types.Account, error) {
	return f(ctx, req)
}
