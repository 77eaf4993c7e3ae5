// Package observability provides a metrics extension for Presale that
// records lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/presale/plugin"
	"github.com/xraph/presale/position"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                   = (*MetricsExtension)(nil)
	_ plugin.OnInit                   = (*MetricsExtension)(nil)
	_ plugin.OnInvested               = (*MetricsExtension)(nil)
	_ plugin.OnRefunded               = (*MetricsExtension)(nil)
	_ plugin.OnExcessWithdrawn        = (*MetricsExtension)(nil)
	_ plugin.OnCancelWithdrawn        = (*MetricsExtension)(nil)
	_ plugin.OnSaleEnded              = (*MetricsExtension)(nil)
	_ plugin.OnSaleCanceled           = (*MetricsExtension)(nil)
	_ plugin.OnTermsPublished         = (*MetricsExtension)(nil)
	_ plugin.OnTokensSupplied         = (*MetricsExtension)(nil)
	_ plugin.OnCapitalRaisedPublished = (*MetricsExtension)(nil)
	_ plugin.OnCapitalWithdrawn       = (*MetricsExtension)(nil)
	_ plugin.OnSettled                = (*MetricsExtension)(nil)
	_ plugin.OnTokensReleased         = (*MetricsExtension)(nil)
	_ plugin.OnEmergencyWithdraw      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Presale plugin to automatically track sale metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Capital metrics
	Invested         Counter
	Refunded         Counter
	ExcessWithdrawn  Counter
	CancelWithdrawn  Counter
	InvestedCapital  Histogram
	PositionBalances Histogram

	// Phase metrics
	SaleEnded              Counter
	SaleCanceled           Counter
	TermsPublished         Counter
	TokensSupplied         Counter
	CapitalRaisedPublished Counter
	CapitalWithdrawn       Counter

	// Settlement metrics
	Settled        Counter
	TokensReleased Counter

	// Operator metrics
	EmergencyWithdraws Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Capital metrics
		Invested:         factory.Counter("presale.capital.invested"),
		Refunded:         factory.Counter("presale.capital.refunded"),
		ExcessWithdrawn:  factory.Counter("presale.capital.excess_withdrawn"),
		CancelWithdrawn:  factory.Counter("presale.capital.cancel_withdrawn"),
		InvestedCapital:  factory.Histogram("presale.capital.invested_amount"),
		PositionBalances: factory.Histogram("presale.capital.position_balance"),

		// Phase metrics
		SaleEnded:              factory.Counter("presale.sale.ended"),
		SaleCanceled:           factory.Counter("presale.sale.canceled"),
		TermsPublished:         factory.Counter("presale.sale.terms_published"),
		TokensSupplied:         factory.Counter("presale.sale.tokens_supplied"),
		CapitalRaisedPublished: factory.Counter("presale.sale.capital_raised_published"),
		CapitalWithdrawn:       factory.Counter("presale.sale.capital_withdrawn"),

		// Settlement metrics
		Settled:        factory.Counter("presale.settlement.claimed"),
		TokensReleased: factory.Counter("presale.settlement.released"),

		// Operator metrics
		EmergencyWithdraws: factory.Counter("presale.operator.emergency_withdraws"),

		// Error metrics
		StoreErrors:  factory.Counter("presale.store.errors"),
		PluginErrors: factory.Counter("presale.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Capital ledger hooks
// ──────────────────────────────────────────────────

// OnInvested implements plugin.OnInvested.
func (m *MetricsExtension) OnInvested(_ context.Context, pos interface{}) error {
	m.Invested.Inc()
	if p, ok := pos.(*position.Position); ok {
		m.observeBalance(p)
	}
	return nil
}

// OnRefunded implements plugin.OnRefunded.
func (m *MetricsExtension) OnRefunded(_ context.Context, _ interface{}) error {
	m.Refunded.Inc()
	return nil
}

// OnExcessWithdrawn implements plugin.OnExcessWithdrawn.
func (m *MetricsExtension) OnExcessWithdrawn(_ context.Context, pos interface{}) error {
	m.ExcessWithdrawn.Inc()
	if p, ok := pos.(*position.Position); ok {
		m.observeBalance(p)
	}
	return nil
}

// OnCancelWithdrawn implements plugin.OnCancelWithdrawn.
func (m *MetricsExtension) OnCancelWithdrawn(_ context.Context, _ interface{}) error {
	m.CancelWithdrawn.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Phase hooks
// ──────────────────────────────────────────────────

// OnSaleEnded implements plugin.OnSaleEnded.
func (m *MetricsExtension) OnSaleEnded(_ context.Context, _ interface{}) error {
	m.SaleEnded.Inc()
	return nil
}

// OnSaleCanceled implements plugin.OnSaleCanceled.
func (m *MetricsExtension) OnSaleCanceled(_ context.Context, _ interface{}) error {
	m.SaleCanceled.Inc()
	return nil
}

// OnTermsPublished implements plugin.OnTermsPublished.
func (m *MetricsExtension) OnTermsPublished(_ context.Context, _ interface{}) error {
	m.TermsPublished.Inc()
	return nil
}

// OnTokensSupplied implements plugin.OnTokensSupplied.
func (m *MetricsExtension) OnTokensSupplied(_ context.Context, _ interface{}) error {
	m.TokensSupplied.Inc()
	return nil
}

// OnCapitalRaisedPublished implements plugin.OnCapitalRaisedPublished.
func (m *MetricsExtension) OnCapitalRaisedPublished(_ context.Context, _ interface{}) error {
	m.CapitalRaisedPublished.Inc()
	return nil
}

// OnCapitalWithdrawn implements plugin.OnCapitalWithdrawn.
func (m *MetricsExtension) OnCapitalWithdrawn(_ context.Context, _ interface{}) error {
	m.CapitalWithdrawn.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettled implements plugin.OnSettled.
func (m *MetricsExtension) OnSettled(_ context.Context, _ interface{}) error {
	m.Settled.Inc()
	return nil
}

// OnTokensReleased implements plugin.OnTokensReleased.
func (m *MetricsExtension) OnTokensReleased(_ context.Context, _ interface{}) error {
	m.TokensReleased.Inc()
	return nil
}

// OnEmergencyWithdraw implements plugin.OnEmergencyWithdraw.
func (m *MetricsExtension) OnEmergencyWithdraw(_ context.Context, _, _, _ string) error {
	m.EmergencyWithdraws.Inc()
	return nil
}

// observeBalance records a position balance sample where the magnitude
// still fits a float64 histogram bucket; oversized balances are skipped
// rather than truncated.
func (m *MetricsExtension) observeBalance(p *position.Position) {
	b := p.InvestedCapital.BigInt()
	if !b.IsInt64() {
		return
	}
	m.PositionBalances.Observe(float64(b.Int64()))
}
