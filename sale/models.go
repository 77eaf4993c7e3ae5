// Package sale defines the persisted sale aggregate: configuration,
// vesting terms, and lifecycle status committed as one record.
package sale

import (
	"github.com/xraph/presale/config"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/lifecycle"
	"github.com/xraph/presale/types"
	"github.com/xraph/presale/vesting"
)

// Sale is the aggregate root the engine operates on. Config is set at
// initialization (registry-resolved fields excepted), Terms are mutable
// only before entitlements exist, and Status carries the phase flags and
// sale-wide counters.
type Sale struct {
	types.Entity

	ID     id.SaleID         `json:"id"`
	Config config.SaleConfig `json:"config"`
	Terms  vesting.Terms     `json:"terms"`
	Status lifecycle.Status  `json:"status"`
}

// Clone returns a deep copy for pre-operation snapshots.
func (s *Sale) Clone() *Sale {
	copied := *s
	copied.Status = *s.Status.Clone()
	return &copied
}
