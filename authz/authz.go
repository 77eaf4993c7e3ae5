// Package authz validates off-chain-issued eligibility assertions.
//
// The trusted signer issues an investor a ticket binding {invest cap,
// token rate, agreement hash} to one account, one sale, one chain, and
// one action. The engine verifies the Ed25519 signature over the
// canonical message before honoring the ticket; the chain and sale
// identity in the payload prevent replay across deployments or
// networks.
package authz

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

// Action discriminates which operation a ticket authorizes, so a ticket
// issued for investing cannot be replayed against settlement.
type Action string

// Authorization-bearing actions.
const (
	ActionInvest         Action = "invest"
	ActionWithdrawExcess Action = "withdraw_excess"
	ActionClaim          Action = "claim"
)

// domainPrefix separates presale messages from any other protocol the
// signer key might be used for.
const domainPrefix = "presale/v1"

// Verification errors.
var (
	ErrInvalidSignature = errors.New("authz: invalid signature")
	ErrInvalidSignerKey = errors.New("authz: invalid signer public key")
)

// Ticket is an eligibility assertion presented with an operation.
type Ticket struct {
	// InvestCap is the maximum capital this investor may hold in the sale.
	InvestCap types.Amount `json:"invest_cap"`

	// TokenRate is the investor's share of the token total supply as a
	// wad fraction (1e18 = 100%).
	TokenRate types.Amount `json:"token_rate"`

	// AgreementHash commits to the off-chain terms the investor accepted.
	AgreementHash string `json:"agreement_hash"`

	// Signature is the trusted signer's Ed25519 signature over the
	// canonical message. Opaque to the replay guard.
	Signature []byte `json:"signature"`
}

// SignatureHex returns the hex encoding of the ticket signature, the
// form under which the replay set tracks consumption.
func (t Ticket) SignatureHex() string {
	return hex.EncodeToString(t.Signature)
}

// Message reconstructs the canonical signed payload for one account,
// sale, chain, and action. The digest is what the signer actually signs.
func Message(chainID string, saleID id.SaleID, account types.Account, t Ticket, action Action) []byte {
	canonical := strings.Join([]string{
		domainPrefix,
		chainID,
		saleID.String(),
		account.String(),
		t.InvestCap.String(),
		t.TokenRate.String(),
		t.AgreementHash,
		string(action),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return sum[:]
}

// Verifier checks tickets against one trusted signer key.
type Verifier struct {
	chainID string
	saleID  id.SaleID
	signer  ed25519.PublicKey
}

// NewVerifier creates a Verifier bound to a sale instance. signerHex is
// the hex-encoded Ed25519 public key of the trusted signer.
func NewVerifier(chainID string, saleID id.SaleID, signerHex string) (*Verifier, error) {
	raw, err := hex.DecodeString(signerHex)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidSignerKey
	}
	return &Verifier{chainID: chainID, saleID: saleID, signer: ed25519.PublicKey(raw)}, nil
}

// Verify fails with ErrInvalidSignature unless the ticket was signed by
// the trusted signer for exactly this account, sale, chain, and action.
func (v *Verifier) Verify(account types.Account, t Ticket, action Action) error {
	if len(t.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: bad signature length %d", ErrInvalidSignature, len(t.Signature))
	}
	msg := Message(v.chainID, v.saleID, account, t, action)
	if !ed25519.Verify(v.signer, msg, t.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces a signed ticket for the given account and action. It is
// the issuance side of the protocol, exported for signer services and
// tests.
func Sign(priv ed25519.PrivateKey, chainID string, saleID id.SaleID, account types.Account, t Ticket, action Action) Ticket {
	msg := Message(chainID, saleID, account, t, action)
	t.Signature = ed25519.Sign(priv, msg)
	return t
}
