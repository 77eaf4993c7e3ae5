package authz_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/xraph/presale/authz"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

const chainID = "testnet-1"

func newKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv
}

func newVerifier(t *testing.T, saleID id.SaleID, pub ed25519.PublicKey) *authz.Verifier {
	t.Helper()
	v, err := authz.NewVerifier(chainID, saleID, hex.EncodeToString(pub))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestNewVerifierRejectsBadKeys(t *testing.T) {
	saleID := id.NewSaleID()

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not hex", "zzzz"},
		{"wrong length", "deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authz.NewVerifier(chainID, saleID, tt.key)
			if !errors.Is(err, authz.ErrInvalidSignerKey) {
				t.Errorf("expected ErrInvalidSignerKey, got %v", err)
			}
		})
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv := newKeyPair(t)
	saleID := id.NewSaleID()
	v := newVerifier(t, saleID, pub)

	account := types.Account("investor-1")
	ticket := authz.Ticket{
		InvestCap:     types.NewAmount(1_000_000),
		TokenRate:     types.MustAmount("10000000000000000"),
		AgreementHash: "hash-abc",
	}

	for _, action := range []authz.Action{
		authz.ActionInvest,
		authz.ActionWithdrawExcess,
		authz.ActionClaim,
	} {
		t.Run(string(action), func(t *testing.T) {
			signed := authz.Sign(priv, chainID, saleID, account, ticket, action)
			if err := v.Verify(account, signed, action); err != nil {
				t.Errorf("verify failed: %v", err)
			}
		})
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	pub, priv := newKeyPair(t)
	saleID := id.NewSaleID()
	v := newVerifier(t, saleID, pub)

	account := types.Account("investor-1")
	base := authz.Ticket{
		InvestCap:     types.NewAmount(1_000_000),
		TokenRate:     types.MustAmount("10000000000000000"),
		AgreementHash: "hash-abc",
	}
	signed := authz.Sign(priv, chainID, saleID, account, base, authz.ActionInvest)

	tests := []struct {
		name    string
		account types.Account
		mutate  func(authz.Ticket) authz.Ticket
		action  authz.Action
	}{
		{
			"wrong account",
			types.Account("investor-2"),
			func(tk authz.Ticket) authz.Ticket { return tk },
			authz.ActionInvest,
		},
		{
			"wrong action",
			account,
			func(tk authz.Ticket) authz.Ticket { return tk },
			authz.ActionClaim,
		},
		{
			"raised cap",
			account,
			func(tk authz.Ticket) authz.Ticket {
				tk.InvestCap = types.NewAmount(2_000_000)
				return tk
			},
			authz.ActionInvest,
		},
		{
			"raised rate",
			account,
			func(tk authz.Ticket) authz.Ticket {
				tk.TokenRate = types.MustAmount("20000000000000000")
				return tk
			},
			authz.ActionInvest,
		},
		{
			"different agreement",
			account,
			func(tk authz.Ticket) authz.Ticket {
				tk.AgreementHash = "hash-xyz"
				return tk
			},
			authz.ActionInvest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.account, tt.mutate(signed), tt.action)
			if !errors.Is(err, authz.ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestVerifyRejectsCrossSaleAndChain(t *testing.T) {
	pub, priv := newKeyPair(t)
	saleID := id.NewSaleID()
	account := types.Account("investor-1")
	ticket := authz.Ticket{
		InvestCap: types.NewAmount(100),
		TokenRate: types.NewAmount(0),
	}
	signed := authz.Sign(priv, chainID, saleID, account, ticket, authz.ActionInvest)

	// Same key, different sale.
	otherSale := newVerifier(t, id.NewSaleID(), pub)
	if err := otherSale.Verify(account, signed, authz.ActionInvest); !errors.Is(err, authz.ErrInvalidSignature) {
		t.Errorf("cross-sale: expected ErrInvalidSignature, got %v", err)
	}

	// Same key and sale, different chain.
	otherChain, err := authz.NewVerifier("othernet-9", saleID, hex.EncodeToString(pub))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if err := otherChain.Verify(account, signed, authz.ActionInvest); !errors.Is(err, authz.ErrInvalidSignature) {
		t.Errorf("cross-chain: expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	pub, _ := newKeyPair(t)
	_, otherPriv := newKeyPair(t)
	saleID := id.NewSaleID()
	v := newVerifier(t, saleID, pub)

	account := types.Account("investor-1")
	ticket := authz.Ticket{InvestCap: types.NewAmount(100)}
	signed := authz.Sign(otherPriv, chainID, saleID, account, ticket, authz.ActionInvest)

	if err := v.Verify(account, signed, authz.ActionInvest); !errors.Is(err, authz.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsBadSignatureLength(t *testing.T) {
	pub, _ := newKeyPair(t)
	saleID := id.NewSaleID()
	v := newVerifier(t, saleID, pub)

	ticket := authz.Ticket{Signature: []byte{1, 2, 3}}
	err := v.Verify(types.Account("investor-1"), ticket, authz.ActionInvest)
	if !errors.Is(err, authz.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestSignatureHex(t *testing.T) {
	ticket := authz.Ticket{Signature: []byte{0xde, 0xad, 0xbe, 0xef}}
	if got := ticket.SignatureHex(); got != "deadbeef" {
		t.Errorf("SignatureHex: got %q, want %q", got, "deadbeef")
	}
}
