package presale

import "github.com/xraph/presale/types"

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Account is re-exported from types package.
type Account = types.Account

// Bps is re-exported from types package.
type Bps = types.Bps

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Amount constructors
var (
	NewAmount   = types.NewAmount
	ParseAmount = types.ParseAmount
	MustAmount  = types.MustAmount
	Wad         = types.Wad
	Sum         = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
