package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/presale/config"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/lifecycle"
	"github.com/xraph/presale/position"
	"github.com/xraph/presale/replay"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/types"
	"github.com/xraph/presale/vesting"
)

// Amounts are stored as base-10 strings: entitlement math runs on
// arbitrary-precision integers that routinely exceed BIGINT.

// ==================== Sale models ====================

type saleModel struct {
	grove.BaseModel `grove:"table:presale_sales"`

	ID     string          `grove:"id,pk"`
	Config json.RawMessage `grove:"config,type:jsonb"`
	Terms  json.RawMessage `grove:"terms,type:jsonb"`

	AskToken              string     `grove:"ask_token"`
	AskTokenTotalSupply   string     `grove:"ask_token_total_supply"`
	TotalTokensAllocated  string     `grove:"total_tokens_allocated"`
	TokensSupplied        bool       `grove:"tokens_supplied"`
	TotalCapitalInvested  string     `grove:"total_capital_invested"`
	TotalCapitalRaised    string     `grove:"total_capital_raised"`
	TotalCapitalWithdrawn string     `grove:"total_capital_withdrawn"`
	Canceled              bool       `grove:"canceled"`
	Ended                 bool       `grove:"ended"`
	EndedAt               *time.Time `grove:"ended_at"`
	RefundWindowEndsAt    *time.Time `grove:"refund_window_ends_at"`

	PendingTransfers json.RawMessage `grove:"pending_transfers,type:jsonb"`

	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toSaleModel(s *sale.Sale) *saleModel {
	cfg, _ := json.Marshal(s.Config)  //nolint:errcheck // best-effort
	terms, _ := json.Marshal(s.Terms) //nolint:errcheck // best-effort

	var pending json.RawMessage
	if len(s.Status.PendingTransfers) > 0 {
		pending, _ = json.Marshal(s.Status.PendingTransfers) //nolint:errcheck // best-effort
	}

	return &saleModel{
		ID:                    s.ID.String(),
		Config:                cfg,
		Terms:                 terms,
		AskToken:              s.Status.AskToken.String(),
		AskTokenTotalSupply:   s.Status.AskTokenTotalSupply.String(),
		TotalTokensAllocated:  s.Status.TotalTokensAllocated.String(),
		TokensSupplied:        s.Status.TokensSupplied,
		TotalCapitalInvested:  s.Status.TotalCapitalInvested.String(),
		TotalCapitalRaised:    s.Status.TotalCapitalRaised.String(),
		TotalCapitalWithdrawn: s.Status.TotalCapitalWithdrawn.String(),
		Canceled:              s.Status.Canceled,
		Ended:                 s.Status.Ended,
		EndedAt:               s.Status.EndedAt,
		RefundWindowEndsAt:    s.Status.RefundWindowEndsAt,
		PendingTransfers:      pending,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}

func fromSaleModel(m *saleModel) (*sale.Sale, error) {
	saleID, err := id.ParseSaleID(m.ID)
	if err != nil {
		return nil, err
	}

	var cfg config.SaleConfig
	if len(m.Config) > 0 {
		if err := json.Unmarshal(m.Config, &cfg); err != nil {
			return nil, err
		}
	}
	var terms vesting.Terms
	if len(m.Terms) > 0 {
		if err := json.Unmarshal(m.Terms, &terms); err != nil {
			return nil, err
		}
	}

	supply, err := types.ParseAmount(m.AskTokenTotalSupply)
	if err != nil {
		return nil, err
	}
	allocated, err := types.ParseAmount(m.TotalTokensAllocated)
	if err != nil {
		return nil, err
	}
	invested, err := types.ParseAmount(m.TotalCapitalInvested)
	if err != nil {
		return nil, err
	}
	raised, err := types.ParseAmount(m.TotalCapitalRaised)
	if err != nil {
		return nil, err
	}
	withdrawn, err := types.ParseAmount(m.TotalCapitalWithdrawn)
	if err != nil {
		return nil, err
	}

	var pending []lifecycle.PendingTransfer
	if len(m.PendingTransfers) > 0 {
		if err := json.Unmarshal(m.PendingTransfers, &pending); err != nil {
			return nil, err
		}
	}

	return &sale.Sale{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:     saleID,
		Config: cfg,
		Terms:  terms,
		Status: lifecycle.Status{
			AskToken:              types.Account(m.AskToken),
			AskTokenTotalSupply:   supply,
			TotalTokensAllocated:  allocated,
			TokensSupplied:        m.TokensSupplied,
			TotalCapitalInvested:  invested,
			TotalCapitalRaised:    raised,
			TotalCapitalWithdrawn: withdrawn,
			Canceled:              m.Canceled,
			Ended:                 m.Ended,
			EndedAt:               m.EndedAt,
			RefundWindowEndsAt:    m.RefundWindowEndsAt,
			PendingTransfers:      pending,
		},
	}, nil
}

// ==================== Position models ====================

type positionModel struct {
	grove.BaseModel `grove:"table:presale_positions"`

	ID               string     `grove:"id,pk"`
	SaleID           string     `grove:"sale_id"`
	Account          string     `grove:"account"`
	InvestedCapital  string     `grove:"invested_capital"`
	InvestCap        string     `grove:"invest_cap"`
	TokenRate        string     `grove:"token_rate"`
	AgreementHash    string     `grove:"agreement_hash"`
	FirstInvestedAt  *time.Time `grove:"first_invested_at"`
	Settled          bool       `grove:"settled"`
	Refunded         bool       `grove:"refunded"`
	VestingSchedule  string     `grove:"vesting_schedule"`
	PendingImmediate string     `grove:"pending_immediate"`
	CreatedAt        time.Time  `grove:"created_at"`
	UpdatedAt        time.Time  `grove:"updated_at"`
}

func toPositionModel(p *position.Position) *positionModel {
	return &positionModel{
		ID:               p.ID.String(),
		SaleID:           p.SaleID.String(),
		Account:          p.Account.String(),
		InvestedCapital:  p.InvestedCapital.String(),
		InvestCap:        p.InvestCap.String(),
		TokenRate:        p.TokenRate.String(),
		AgreementHash:    p.AgreementHash,
		FirstInvestedAt:  p.FirstInvestedAt,
		Settled:          p.Settled,
		Refunded:         p.Refunded,
		VestingSchedule:  p.VestingSchedule.String(),
		PendingImmediate: p.PendingImmediate.String(),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func fromPositionModel(m *positionModel) (*position.Position, error) {
	posID, err := id.ParsePositionID(m.ID)
	if err != nil {
		return nil, err
	}
	saleID, err := id.ParseSaleID(m.SaleID)
	if err != nil {
		return nil, err
	}

	invested, err := types.ParseAmount(m.InvestedCapital)
	if err != nil {
		return nil, err
	}
	cap, err := types.ParseAmount(m.InvestCap)
	if err != nil {
		return nil, err
	}
	rate, err := types.ParseAmount(m.TokenRate)
	if err != nil {
		return nil, err
	}
	pendingImmediate, err := types.ParseAmount(m.PendingImmediate)
	if err != nil {
		return nil, err
	}

	return &position.Position{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               posID,
		SaleID:           saleID,
		Account:          types.Account(m.Account),
		InvestedCapital:  invested,
		InvestCap:        cap,
		TokenRate:        rate,
		AgreementHash:    m.AgreementHash,
		FirstInvestedAt:  m.FirstInvestedAt,
		Settled:          m.Settled,
		Refunded:         m.Refunded,
		VestingSchedule:  types.Account(m.VestingSchedule),
		PendingImmediate: pendingImmediate,
	}, nil
}

// ==================== Replay set models ====================

type consumptionModel struct {
	grove.BaseModel `grove:"table:presale_consumed_signatures"`

	Key          string    `grove:"key,pk"`
	SaleID       string    `grove:"sale_id"`
	Account      string    `grove:"account"`
	SignatureHex string    `grove:"signature_hex"`
	ConsumedAt   time.Time `grove:"consumed_at"`
}

func toConsumptionModel(c *replay.Consumption) *consumptionModel {
	return &consumptionModel{
		Key:          consumptionKey(c.SaleID, c.Account, c.SignatureHex),
		SaleID:       c.SaleID.String(),
		Account:      c.Account.String(),
		SignatureHex: c.SignatureHex,
		ConsumedAt:   c.ConsumedAt,
	}
}

func consumptionKey(saleID id.SaleID, account types.Account, signatureHex string) string {
	return saleID.String() + "|" + account.String() + "|" + signatureHex
}
