package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                   []OnInit
	onShutdown               []OnShutdown
	onInvested               []OnInvested
	onRefunded               []OnRefunded
	onExcessWithdrawn        []OnExcessWithdrawn
	onCancelWithdrawn        []OnCancelWithdrawn
	onSaleEnded              []OnSaleEnded
	onSaleCanceled           []OnSaleCanceled
	onTermsPublished         []OnTermsPublished
	onTokensSupplied         []OnTokensSupplied
	onCapitalRaisedPublished []OnCapitalRaisedPublished
	onCapitalWithdrawn       []OnCapitalWithdrawn
	onSettled                []OnSettled
	onTokensReleased         []OnTokensReleased
	onEmergencyWithdraw      []OnEmergencyWithdraw
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnInvested); ok {
		r.onInvested = append(r.onInvested, v)
	}
	if v, ok := p.(OnRefunded); ok {
		r.onRefunded = append(r.onRefunded, v)
	}
	if v, ok := p.(OnExcessWithdrawn); ok {
		r.onExcessWithdrawn = append(r.onExcessWithdrawn, v)
	}
	if v, ok := p.(OnCancelWithdrawn); ok {
		r.onCancelWithdrawn = append(r.onCancelWithdrawn, v)
	}
	if v, ok := p.(OnSaleEnded); ok {
		r.onSaleEnded = append(r.onSaleEnded, v)
	}
	if v, ok := p.(OnSaleCanceled); ok {
		r.onSaleCanceled = append(r.onSaleCanceled, v)
	}
	if v, ok := p.(OnTermsPublished); ok {
		r.onTermsPublished = append(r.onTermsPublished, v)
	}
	if v, ok := p.(OnTokensSupplied); ok {
		r.onTokensSupplied = append(r.onTokensSupplied, v)
	}
	if v, ok := p.(OnCapitalRaisedPublished); ok {
		r.onCapitalRaisedPublished = append(r.onCapitalRaisedPublished, v)
	}
	if v, ok := p.(OnCapitalWithdrawn); ok {
		r.onCapitalWithdrawn = append(r.onCapitalWithdrawn, v)
	}
	if v, ok := p.(OnSettled); ok {
		r.onSettled = append(r.onSettled, v)
	}
	if v, ok := p.(OnTokensReleased); ok {
		r.onTokensReleased = append(r.onTokensReleased, v)
	}
	if v, ok := p.(OnEmergencyWithdraw); ok {
		r.onEmergencyWithdraw = append(r.onEmergencyWithdraw, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitInvested emits an investment event.
func (r *Registry) EmitInvested(ctx context.Context, pos interface{}) {
	r.mu.RLock()
	plugins := r.onInvested
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInvested", func() error {
			return p.OnInvested(ctx, pos)
		})
	}
}

// EmitRefunded emits a refund event.
func (r *Registry) EmitRefunded(ctx context.Context, pos interface{}) {
	r.mu.RLock()
	plugins := r.onRefunded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnRefunded", func() error {
			return p.OnRefunded(ctx, pos)
		})
	}
}

// EmitExcessWithdrawn emits an excess-withdrawal event.
func (r *Registry) EmitExcessWithdrawn(ctx context.Context, pos interface{}) {
	r.mu.RLock()
	plugins := r.onExcessWithdrawn
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnExcessWithdrawn", func() error {
			return p.OnExcessWithdrawn(ctx, pos)
		})
	}
}

// EmitCancelWithdrawn emits a post-cancellation withdrawal event.
func (r *Registry) EmitCancelWithdrawn(ctx context.Context, pos interface{}) {
	r.mu.RLock()
	plugins := r.onCancelWithdrawn
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnCancelWithdrawn", func() error {
			return p.OnCancelWithdrawn(ctx, pos)
		})
	}
}

// EmitSaleEnded emits a sale-ended event.
func (r *Registry) EmitSaleEnded(ctx context.Context, status interface{}) {
	r.mu.RLock()
	plugins := r.onSaleEnded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSaleEnded", func() error {
			return p.OnSaleEnded(ctx, status)
		})
	}
}

// EmitSaleCanceled emits a sale-canceled event.
func (r *Registry) EmitSaleCanceled(ctx context.Context, status interface{}) {
	r.mu.RLock()
	plugins := r.onSaleCanceled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSaleCanceled", func() error {
			return p.OnSaleCanceled(ctx, status)
		})
	}
}

// EmitTermsPublished emits a terms-published event.
func (r *Registry) EmitTermsPublished(ctx context.Context, status interface{}) {
	r.mu.RLock()
	plugins := r.onTermsPublished
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTermsPublished", func() error {
			return p.OnTermsPublished(ctx, status)
		})
	}
}

// EmitTokensSupplied emits a tokens-supplied event.
func (r *Registry) EmitTokensSupplied(ctx context.Context, status interface{}) {
	r.mu.RLock()
	plugins := r.onTokensSupplied
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTokensSupplied", func() error {
			return p.OnTokensSupplied(ctx, status)
		})
	}
}

// EmitCapitalRaisedPublished emits a capital-raised-published event.
func (r *Registry) EmitCapitalRaisedPublished(ctx context.Context, status interface{}) {
	r.mu.RLock()
	plugins := r.onCapitalRaisedPublished
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnCapitalRaisedPublished", func() error {
			return p.OnCapitalRaisedPublished(ctx, status)
		})
	}
}

// EmitCapitalWithdrawn emits a capital-withdrawn event.
func (r *Registry) EmitCapitalWithdrawn(ctx context.Context, status interface{}) {
	r.mu.RLock()
	plugins := r.onCapitalWithdrawn
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnCapitalWithdrawn", func() error {
			return p.OnCapitalWithdrawn(ctx, status)
		})
	}
}

// EmitSettled emits a settlement event.
func (r *Registry) EmitSettled(ctx context.Context, pos interface{}) {
	r.mu.RLock()
	plugins := r.onSettled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSettled", func() error {
			return p.OnSettled(ctx, pos)
		})
	}
}

// EmitTokensReleased emits a vested-release event.
func (r *Registry) EmitTokensReleased(ctx context.Context, pos interface{}) {
	r.mu.RLock()
	plugins := r.onTokensReleased
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTokensReleased", func() error {
			return p.OnTokensReleased(ctx, pos)
		})
	}
}

// EmitEmergencyWithdraw emits an emergency-withdraw event.
func (r *Registry) EmitEmergencyWithdraw(ctx context.Context, receiver, asset, amount string) {
	r.mu.RLock()
	plugins := r.onEmergencyWithdraw
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnEmergencyWithdraw", func() error {
			return p.OnEmergencyWithdraw(ctx, receiver, asset, amount)
		})
	}
}

// dispatch runs a hook with a timeout and logs failures. Plugins must
// never block the settlement pipeline.
func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin hook failed",
			"plugin", pluginName,
			"hook", hook,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
