// Package plugin provides an extensible plugin system for Presale.
// Plugins can hook into sale lifecycle events to extend functionality.
package plugin

import "context"

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Engine lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Capital ledger hooks
// ──────────────────────────────────────────────────

// OnInvested is called after an investment commits.
type OnInvested interface {
	Plugin
	OnInvested(ctx context.Context, pos interface{}) error
}

// OnRefunded is called after an in-window refund commits.
type OnRefunded interface {
	Plugin
	OnRefunded(ctx context.Context, pos interface{}) error
}

// OnExcessWithdrawn is called after an excess-capital withdrawal commits.
type OnExcessWithdrawn interface {
	Plugin
	OnExcessWithdrawn(ctx context.Context, pos interface{}) error
}

// OnCancelWithdrawn is called after a post-cancellation withdrawal commits.
type OnCancelWithdrawn interface {
	Plugin
	OnCancelWithdrawn(ctx context.Context, pos interface{}) error
}

// ──────────────────────────────────────────────────
// Phase hooks
// ──────────────────────────────────────────────────

// OnSaleEnded is called when the sale is ended.
type OnSaleEnded interface {
	Plugin
	OnSaleEnded(ctx context.Context, status interface{}) error
}

// OnSaleCanceled is called when the sale is canceled.
type OnSaleCanceled interface {
	Plugin
	OnSaleCanceled(ctx context.Context, status interface{}) error
}

// OnTermsPublished is called when the token terms are published.
type OnTermsPublished interface {
	Plugin
	OnTermsPublished(ctx context.Context, status interface{}) error
}

// OnTokensSupplied is called when the project delivers the allocation.
type OnTokensSupplied interface {
	Plugin
	OnTokensSupplied(ctx context.Context, status interface{}) error
}

// OnCapitalRaisedPublished is called when the final raise figure is published.
type OnCapitalRaisedPublished interface {
	Plugin
	OnCapitalRaisedPublished(ctx context.Context, status interface{}) error
}

// OnCapitalWithdrawn is called when the project withdraws the raise.
type OnCapitalWithdrawn interface {
	Plugin
	OnCapitalWithdrawn(ctx context.Context, status interface{}) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettled is called after a position's allocation claim commits.
type OnSettled interface {
	Plugin
	OnSettled(ctx context.Context, pos interface{}) error
}

// OnTokensReleased is called after a vested-release delegation returns.
type OnTokensReleased interface {
	Plugin
	OnTokensReleased(ctx context.Context, pos interface{}) error
}

// OnEmergencyWithdraw is called after the operator escape valve runs.
type OnEmergencyWithdraw interface {
	Plugin
	OnEmergencyWithdraw(ctx context.Context, receiver, asset string, amount string) error
}
