package mongo

import (
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
// arbitrary-precision integers that don't fit BSON int64.

// ==================== Sale models ====================

type saleModel struct {
	grove.BaseModel `grove:"table:presale_sales"`

	ID     string      `grove:"id,pk"  bson:"_id"`
	Config configModel `grove:"config" bson:"config"`
	Terms  termsModel  `grove:"terms"  bson:"terms"`

	AskToken              string     `grove:"ask_token"               bson:"ask_token"`
	AskTokenTotalSupply   string     `grove:"ask_token_total_supply"  bson:"ask_token_total_supply"`
	TotalTokensAllocated  string     `grove:"total_tokens_allocated"  bson:"total_tokens_allocated"`
	TokensSupplied        bool       `grove:"tokens_supplied"         bson:"tokens_supplied"`
	TotalCapitalInvested  string     `grove:"total_capital_invested"  bson:"total_capital_invested"`
	TotalCapitalRaised    string     `grove:"total_capital_raised"    bson:"total_capital_raised"`
	TotalCapitalWithdrawn string     `grove:"total_capital_withdrawn" bson:"total_capital_withdrawn"`
	Canceled              bool       `grove:"canceled"                bson:"canceled"`
	Ended                 bool       `grove:"ended"                   bson:"ended"`
	EndedAt               *time.Time `grove:"ended_at"                bson:"ended_at,omitempty"`
	RefundWindowEndsAt    *time.Time `grove:"refund_window_ends_at"   bson:"refund_window_ends_at,omitempty"`

	PendingTransfers []pendingTransferModel `grove:"pending_transfers" bson:"pending_transfers,omitempty"`

	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

type pendingTransferModel struct {
	Asset    string `bson:"asset"`
	From     string `bson:"from,omitempty"`
	Receiver string `bson:"receiver"`
	Amount   string `bson:"amount"`
}

type configModel struct {
	ChainID             string        `bson:"chain_id"`
	BidToken            string        `bson:"bid_token"`
	Treasury            string        `bson:"treasury"`
	Project             string        `bson:"project"`
	Bouncer             string        `bson:"bouncer"`
	SignerPublicKey     string        `bson:"signer_public_key"`
	ProtocolFeeReceiver string        `bson:"protocol_fee_receiver"`
	ReferrerFeeReceiver string        `bson:"referrer_fee_receiver"`
	VestingFactory      string        `bson:"vesting_factory"`
	ProtocolCapitalBps  uint32        `bson:"protocol_capital_bps"`
	ProtocolTokenBps    uint32        `bson:"protocol_token_bps"`
	ReferrerCapitalBps  uint32        `bson:"referrer_capital_bps"`
	ReferrerTokenBps    uint32        `bson:"referrer_token_bps"`
	RefundWindow        time.Duration `bson:"refund_window"`
}

type termsModel struct {
	Start            time.Time     `bson:"start"`
	Duration         time.Duration `bson:"duration"`
	Cliff            time.Duration `bson:"cliff"`
	ImmediateRelease string        `bson:"immediate_release"`
}

func toSaleModel(s *sale.Sale) *saleModel {
	var pending []pendingTransferModel
	for _, leg := range s.Status.PendingTransfers {
		pending = append(pending, pendingTransferModel{
			Asset:    leg.Asset.String(),
			From:     leg.From.String(),
			Receiver: leg.Receiver.String(),
			Amount:   leg.Amount.String(),
		})
	}

	return &saleModel{
		ID: s.ID.String(),
		Config: configModel{
			ChainID:             s.Config.ChainID,
			BidToken:            s.Config.BidToken.String(),
			Treasury:            s.Config.Treasury.String(),
			Project:             s.Config.Project.String(),
			Bouncer:             s.Config.Bouncer.String(),
			SignerPublicKey:     s.Config.SignerPublicKey,
			ProtocolFeeReceiver: s.Config.ProtocolFeeReceiver.String(),
			ReferrerFeeReceiver: s.Config.ReferrerFeeReceiver.String(),
			VestingFactory:      s.Config.VestingFactory.String(),
			ProtocolCapitalBps:  uint32(s.Config.Fees.ProtocolCapitalBps),
			ProtocolTokenBps:    uint32(s.Config.Fees.ProtocolTokenBps),
			ReferrerCapitalBps:  uint32(s.Config.Fees.ReferrerCapitalBps),
			ReferrerTokenBps:    uint32(s.Config.Fees.ReferrerTokenBps),
			RefundWindow:        s.Config.RefundWindow,
		},
		Terms: termsModel{
			Start:            s.Terms.Start,
			Duration:         s.Terms.Duration,
			Cliff:            s.Terms.Cliff,
			ImmediateRelease: s.Terms.ImmediateRelease.String(),
		},
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

	immediate, err := types.ParseAmount(m.Terms.ImmediateRelease)
	if err != nil {
		return nil, err
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
	for _, leg := range m.PendingTransfers {
		amount, err := types.ParseAmount(leg.Amount)
		if err != nil {
			return nil, err
		}
		pending = append(pending, lifecycle.PendingTransfer{
			Asset:    types.Account(leg.Asset),
			From:     types.Account(leg.From),
			Receiver: types.Account(leg.Receiver),
			Amount:   amount,
		})
	}

	return &sale.Sale{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID: saleID,
		Config: config.SaleConfig{
			SaleID:              saleID,
			ChainID:             m.Config.ChainID,
			BidToken:            types.Account(m.Config.BidToken),
			Treasury:            types.Account(m.Config.Treasury),
			Project:             types.Account(m.Config.Project),
			Bouncer:             types.Account(m.Config.Bouncer),
			SignerPublicKey:     m.Config.SignerPublicKey,
			ProtocolFeeReceiver: types.Account(m.Config.ProtocolFeeReceiver),
			ReferrerFeeReceiver: types.Account(m.Config.ReferrerFeeReceiver),
			VestingFactory:      types.Account(m.Config.VestingFactory),
			Fees: config.FeeSchedule{
				ProtocolCapitalBps: types.Bps(m.Config.ProtocolCapitalBps),
				ProtocolTokenBps:   types.Bps(m.Config.ProtocolTokenBps),
				ReferrerCapitalBps: types.Bps(m.Config.ReferrerCapitalBps),
				ReferrerTokenBps:   types.Bps(m.Config.ReferrerTokenBps),
			},
			RefundWindow: m.Config.RefundWindow,
		},
		Terms: vesting.Terms{
			Start:            m.Terms.Start,
			Duration:         m.Terms.Duration,
			Cliff:            m.Terms.Cliff,
			ImmediateRelease: immediate,
		},
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

	ID               string     `grove:"id,pk"             bson:"_id"`
	SaleID           string     `grove:"sale_id"           bson:"sale_id"`
	Account          string     `grove:"account"           bson:"account"`
	InvestedCapital  string     `grove:"invested_capital"  bson:"invested_capital"`
	InvestCap        string     `grove:"invest_cap"        bson:"invest_cap"`
	TokenRate        string     `grove:"token_rate"        bson:"token_rate"`
	AgreementHash    string     `grove:"agreement_hash"    bson:"agreement_hash"`
	FirstInvestedAt  *time.Time `grove:"first_invested_at" bson:"first_invested_at,omitempty"`
	Settled          bool       `grove:"settled"           bson:"settled"`
	Refunded         bool       `grove:"refunded"          bson:"refunded"`
	VestingSchedule  string     `grove:"vesting_schedule"  bson:"vesting_schedule"`
	PendingImmediate string     `grove:"pending_immediate" bson:"pending_immediate"`
	CreatedAt        time.Time  `grove:"created_at"        bson:"created_at"`
	UpdatedAt        time.Time  `grove:"updated_at"        bson:"updated_at"`
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

	Key          string    `grove:"key,pk"        bson:"_id"`
	SaleID       string    `grove:"sale_id"       bson:"sale_id"`
	Account      string    `grove:"account"       bson:"account"`
	SignatureHex string    `grove:"signature_hex" bson:"signature_hex"`
	ConsumedAt   time.Time `grove:"consumed_at"   bson:"consumed_at"`
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
