// Package memory provides an in-memory token bank implementing the
// transfer primitive with all-or-nothing semantics. It is the reference
// implementation used by tests and local development; production
// deployments inject an adapter to their real asset layer.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/presale/token"
	"github.com/xraph/presale/types"
)

// compile-time interface check
var _ token.Transferer = (*Bank)(nil)

type balanceKey struct {
	asset  types.Account
	holder types.Account
}

// Bank tracks balances and allowances per (asset, holder). It is bound
// to one owner account: Transfer debits the owner, and TransferFrom
// spends allowances granted to the owner. A sale engine binds the bank
// to its treasury account, matching how the engine is the sole spender
// in a sale.
type Bank struct {
	owner types.Account

	mu         sync.Mutex
	balances   map[balanceKey]types.Amount
	allowances map[balanceKey]types.Amount
}

// New creates an empty Bank owned by the given account.
func New(owner types.Account) *Bank {
	return &Bank{
		owner:      owner,
		balances:   make(map[balanceKey]types.Amount),
		allowances: make(map[balanceKey]types.Amount),
	}
}

// Mint credits amount of asset to holder.
func (b *Bank) Mint(asset, holder types.Account, amount types.Amount) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := balanceKey{asset: asset, holder: holder}
	b.balances[k] = b.balances[k].Add(amount)
}

// Approve grants the bank owner an allowance to spend holder's asset.
func (b *Bank) Approve(asset, holder types.Account, amount types.Amount) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.allowances[balanceKey{asset: asset, holder: holder}] = amount
}

// Balance returns holder's current balance of asset.
func (b *Bank) Balance(asset, holder types.Account) types.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.balances[balanceKey{asset: asset, holder: holder}]
}

// Transfer implements token.Transferer, debiting the owner account.
func (b *Bank) Transfer(_ context.Context, asset, to types.Account, amount types.Amount) error {
	return b.move(asset, b.owner, to, amount, false)
}

// TransferFrom implements token.Transferer, spending from's allowance.
func (b *Bank) TransferFrom(_ context.Context, asset, from, to types.Account, amount types.Amount) error {
	return b.move(asset, from, to, amount, true)
}

func (b *Bank) move(asset, from, to types.Account, amount types.Amount, spendAllowance bool) error {
	if amount.IsNegative() {
		return fmt.Errorf("token: negative transfer amount %s", amount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fromKey := balanceKey{asset: asset, holder: from}
	if b.balances[fromKey].LessThan(amount) {
		return token.ErrInsufficientBalance
	}
	if spendAllowance {
		if b.allowances[fromKey].LessThan(amount) {
			return token.ErrInsufficientAllowance
		}
		b.allowances[fromKey] = b.allowances[fromKey].Sub(amount)
	}

	toKey := balanceKey{asset: asset, holder: to}
	b.balances[fromKey] = b.balances[fromKey].Sub(amount)
	b.balances[toKey] = b.balances[toKey].Add(amount)
	return nil
}
