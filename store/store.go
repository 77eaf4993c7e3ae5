// Package store defines the unified storage interface for all Presale
// entities.
package store

import (
	"context"

	"github.com/xraph/presale/id"
	"github.com/xraph/presale/position"
	"github.com/xraph/presale/replay"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/types"
)

// Store is the unified storage interface for all Presale entities.
// Implementations must make ConsumeSignature an atomic check-and-mark:
// two concurrent consumptions of the same (account, signature) pair must
// not both succeed.
type Store interface {
	// Sale methods
	CreateSale(ctx context.Context, s *sale.Sale) error
	GetSale(ctx context.Context, saleID id.SaleID) (*sale.Sale, error)
	UpdateSale(ctx context.Context, s *sale.Sale) error

	// Position methods
	GetPosition(ctx context.Context, saleID id.SaleID, account types.Account) (*position.Position, error)
	SavePosition(ctx context.Context, p *position.Position) error
	ListPositions(ctx context.Context, saleID id.SaleID) ([]*position.Position, error)

	// Replay set methods. RevokeSignature exists solely to discard a
	// failed operation during rollback; committed consumptions are never
	// revoked.
	ConsumeSignature(ctx context.Context, c *replay.Consumption) error
	IsSignatureConsumed(ctx context.Context, saleID id.SaleID, account types.Account, signatureHex string) (bool, error)
	RevokeSignature(ctx context.Context, saleID id.SaleID, account types.Account, signatureHex string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
