// Package config defines the one-time sale configuration and its bounds.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

// MaxRefundWindow caps the investor refund window a sale may configure.
const MaxRefundWindow = 14 * 24 * time.Hour

// FeeSchedule holds the four fee rates charged by the protocol and an
// optional referrer, in basis points. Capital fees apply to the raised
// capital on withdrawal; token fees apply to the supplied token amount.
type FeeSchedule struct {
	ProtocolCapitalBps types.Bps `json:"protocol_capital_bps"`
	ProtocolTokenBps   types.Bps `json:"protocol_token_bps"`
	ReferrerCapitalBps types.Bps `json:"referrer_capital_bps"`
	ReferrerTokenBps   types.Bps `json:"referrer_token_bps"`
}

// Validate checks that every rate is within the 10000 bps bound.
func (f FeeSchedule) Validate() error {
	rates := map[string]types.Bps{
		"protocol_capital_bps": f.ProtocolCapitalBps,
		"protocol_token_bps":   f.ProtocolTokenBps,
		"referrer_capital_bps": f.ReferrerCapitalBps,
		"referrer_token_bps":   f.ReferrerTokenBps,
	}
	for name, r := range rates {
		if !r.Valid() {
			return fmt.Errorf("config: %s %d exceeds %d bps", name, r, types.BpsDenominator)
		}
	}
	return nil
}

// SaleConfig is set once at initialization. The operator-resolved fields
// (Bouncer, SignerPublicKey, ProtocolFeeReceiver, VestingFactory) may be
// refreshed later through a registry resync; everything else is immutable.
type SaleConfig struct {
	SaleID id.SaleID `json:"sale_id"`

	// ChainID binds issued authorizations to one network so they cannot
	// be replayed across deployments.
	ChainID string `json:"chain_id"`

	// BidToken is the asset investors deposit as capital.
	BidToken types.Account `json:"bid_token"`

	// Treasury is the escrow account that holds deposited capital and
	// supplied tokens until they are disbursed.
	Treasury types.Account `json:"treasury"`

	// Project is the admin account of the project running the sale.
	Project types.Account `json:"project"`

	// Bouncer is the operator account allowed to drive sale lifecycle
	// operations on behalf of the protocol.
	Bouncer types.Account `json:"bouncer"`

	// SignerPublicKey is the hex-encoded Ed25519 public key of the
	// trusted signer whose authorizations investors present.
	SignerPublicKey string `json:"signer_public_key"`

	// ProtocolFeeReceiver and ReferrerFeeReceiver collect the fee shares
	// computed from the FeeSchedule.
	ProtocolFeeReceiver types.Account `json:"protocol_fee_receiver"`
	ReferrerFeeReceiver types.Account `json:"referrer_fee_receiver"`

	// VestingFactory is the account identity of the allocation factory,
	// recorded for audit and refreshed by registry resyncs. May be zero.
	VestingFactory types.Account `json:"vesting_factory,omitempty"`

	Fees FeeSchedule `json:"fees"`

	// RefundWindow is how long after sale end investors may reclaim
	// their capital. Bounded by MaxRefundWindow.
	RefundWindow time.Duration `json:"refund_window"`
}

// Validation errors.
var (
	ErrMissingBidToken     = errors.New("config: bid token is required")
	ErrMissingTreasury     = errors.New("config: treasury account is required")
	ErrMissingProject      = errors.New("config: project account is required")
	ErrMissingBouncer      = errors.New("config: bouncer account is required")
	ErrMissingSigner       = errors.New("config: signer public key is required")
	ErrMissingFeeReceiver  = errors.New("config: protocol fee receiver is required")
	ErrRefundWindowTooLong = fmt.Errorf("config: refund window exceeds %s", MaxRefundWindow)
)

// Validate rejects the configuration as a unit on any bound violation.
func (c *SaleConfig) Validate() error {
	if c.BidToken.IsZero() {
		return ErrMissingBidToken
	}
	if c.Treasury.IsZero() {
		return ErrMissingTreasury
	}
	if c.Project.IsZero() {
		return ErrMissingProject
	}
	if c.Bouncer.IsZero() {
		return ErrMissingBouncer
	}
	if c.SignerPublicKey == "" {
		return ErrMissingSigner
	}
	if c.ProtocolFeeReceiver.IsZero() {
		return ErrMissingFeeReceiver
	}
	if c.RefundWindow <= 0 || c.RefundWindow > MaxRefundWindow {
		return ErrRefundWindowTooLong
	}
	return c.Fees.Validate()
}
