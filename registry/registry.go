// Package registry resolves named operator roles to accounts.
//
// The protocol operates a registry service holding the current bouncer,
// signer, fee receiver, and vesting-factory accounts; a sale resyncs its
// configuration snapshot from it rather than mutating global state.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/presale/types"
)

// RoleID names an operator role in the registry.
type RoleID string

// The four fixed roles a sale queries during a resync.
const (
	RoleBouncer        RoleID = "bouncer"
	RoleSigner         RoleID = "signer"
	RoleFeeReceiver    RoleID = "fee_receiver"
	RoleVestingFactory RoleID = "vesting_factory"
)

// Resolver resolves a role to its current account.
type Resolver interface {
	Resolve(ctx context.Context, role RoleID) (types.Account, error)
}

// Static is a fixed in-memory Resolver, used in tests and single-tenant
// deployments where the role set never changes at runtime.
type Static struct {
	mu    sync.RWMutex
	roles map[RoleID]types.Account
}

// NewStatic creates a Static resolver from a role map.
func NewStatic(roles map[RoleID]types.Account) *Static {
	copied := make(map[RoleID]types.Account, len(roles))
	for k, v := range roles {
		copied[k] = v
	}
	return &Static{roles: copied}
}

// Resolve implements Resolver.
func (s *Static) Resolve(_ context.Context, role RoleID) (types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.roles[role]
	if !ok {
		return types.ZeroAccount, fmt.Errorf("registry: role %q not registered", role)
	}
	return acct, nil
}

// Set updates a role binding.
func (s *Static) Set(role RoleID, acct types.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role] = acct
}
