// Package vesting defines the vesting terms attached to a sale and the
// interface boundary to the external schedule-creation service.
package vesting

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/presale/types"
)

// MaxDuration caps the total vesting duration a sale may configure.
const MaxDuration = 10 * 365 * 24 * time.Hour

// Terms describe how a settled allocation is released over time.
// The immediate-release fraction is a wad (1e18 = 100%): that share of
// the entitlement is paid at settlement, the rest streams through an
// external schedule.
type Terms struct {
	Start            time.Time     `json:"start"`
	Duration         time.Duration `json:"duration"`
	Cliff            time.Duration `json:"cliff"`
	ImmediateRelease types.Amount  `json:"immediate_release"`
}

// Validation errors.
var (
	ErrDurationTooLong       = fmt.Errorf("vesting: duration exceeds %s", MaxDuration)
	ErrCliffExceedsDuration  = errors.New("vesting: cliff exceeds duration")
	ErrImmediateAboveHundred = errors.New("vesting: immediate release fraction above 1e18")
)

// Validate checks the term bounds: duration capped, cliff within
// duration, immediate fraction at most 100%.
func (t Terms) Validate() error {
	if t.Duration < 0 || t.Duration > MaxDuration {
		return ErrDurationTooLong
	}
	if t.Cliff < 0 || t.Cliff > t.Duration {
		return ErrCliffExceedsDuration
	}
	if t.ImmediateRelease.GreaterThan(types.Wad()) || t.ImmediateRelease.IsNegative() {
		return ErrImmediateAboveHundred
	}
	return nil
}
