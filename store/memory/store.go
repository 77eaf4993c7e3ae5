// Package memory provides an in-memory Store for tests and embedded use.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/presale"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/position"
	"github.com/xraph/presale/replay"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/types"
)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Sale storage
	sales map[string]*sale.Sale

	// Position storage, keyed by saleID|account
	positions map[string]*position.Position

	// Replay set, keyed by saleID|account|signatureHex
	consumed map[string]*replay.Consumption
}

func New() *Store {
	return &Store{
		sales:     make(map[string]*sale.Sale),
		positions: make(map[string]*position.Position),
		consumed:  make(map[string]*replay.Consumption),
	}
}

// Sale Store implementation. Gets and saves exchange deep copies so a
// caller mutating its view never touches stored state before commit.
func (s *Store) CreateSale(_ context.Context, sl *sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return presale.ErrStoreClosed
	}
	if _, exists := s.sales[sl.ID.String()]; exists {
		return presale.ErrAlreadyExists
	}
	s.sales[sl.ID.String()] = sl.Clone()
	return nil
}

func (s *Store) GetSale(_ context.Context, saleID id.SaleID) (*sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, presale.ErrStoreClosed
	}
	if sl, ok := s.sales[saleID.String()]; ok {
		return sl.Clone(), nil
	}
	return nil, presale.ErrSaleNotFound
}

func (s *Store) UpdateSale(_ context.Context, sl *sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return presale.ErrStoreClosed
	}
	if _, exists := s.sales[sl.ID.String()]; !exists {
		return presale.ErrSaleNotFound
	}
	s.sales[sl.ID.String()] = sl.Clone()
	return nil
}

// Position Store implementation
func (s *Store) GetPosition(_ context.Context, saleID id.SaleID, account types.Account) (*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, presale.ErrStoreClosed
	}
	if p, ok := s.positions[positionKey(saleID, account)]; ok {
		return p.Clone(), nil
	}
	return nil, presale.ErrPositionNotFound
}

func (s *Store) SavePosition(_ context.Context, p *position.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return presale.ErrStoreClosed
	}
	s.positions[positionKey(p.SaleID, p.Account)] = p.Clone()
	return nil
}

func (s *Store) ListPositions(_ context.Context, saleID id.SaleID) ([]*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, presale.ErrStoreClosed
	}
	result := make([]*position.Position, 0)
	for _, p := range s.positions {
		if p.SaleID.String() == saleID.String() {
			result = append(result, p.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

// Replay set implementation
func (s *Store) ConsumeSignature(_ context.Context, c *replay.Consumption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return presale.ErrStoreClosed
	}
	key := consumptionKey(c.SaleID, c.Account, c.SignatureHex)
	if _, exists := s.consumed[key]; exists {
		return presale.ErrSignatureReuse
	}
	copied := *c
	s.consumed[key] = &copied
	return nil
}

func (s *Store) IsSignatureConsumed(_ context.Context, saleID id.SaleID, account types.Account, signatureHex string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, presale.ErrStoreClosed
	}
	_, ok := s.consumed[consumptionKey(saleID, account, signatureHex)]
	return ok, nil
}

func (s *Store) RevokeSignature(_ context.Context, saleID id.SaleID, account types.Account, signatureHex string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return presale.ErrStoreClosed
	}
	delete(s.consumed, consumptionKey(saleID, account, signatureHex))
	return nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return presale.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func positionKey(saleID id.SaleID, account types.Account) string {
	return saleID.String() + "|" + account.String()
}

func consumptionKey(saleID id.SaleID, account types.Account, signatureHex string) string {
	return saleID.String() + "|" + account.String() + "|" + signatureHex
}
