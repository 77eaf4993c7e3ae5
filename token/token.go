// Package token defines the asset-transfer primitive consumed by the
// settlement engine. Implementations must be atomic: a transfer either
// moves exactly the requested amount or fails with no partial effect.
package token

import (
	"context"
	"errors"

	"github.com/xraph/presale/types"
)

// Transfer errors surfaced by implementations.
var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrUnknownAsset          = errors.New("token: unknown asset")
)

// Transferer moves asset amounts between accounts. TransferFrom spends
// the holder's allowance granted to the engine; both calls fail the
// whole operation on insufficient balance or allowance.
type Transferer interface {
	Transfer(ctx context.Context, asset, to types.Account, amount types.Amount) error
	TransferFrom(ctx context.Context, asset, from, to types.Account, amount types.Amount) error
}
