package extension

import (
	presale "github.com/xraph/presale"
	"github.com/xraph/presale/plugin"
	"github.com/xraph/presale/registry"
	"github.com/xraph/presale/store"
	"github.com/xraph/presale/token"
	"github.com/xraph/presale/vesting"
)

// Option configures the Presale Forge extension.
type Option func(*Extension)

// WithStore sets the store for the presale engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a presale.Option through to the underlying engine.
func WithEngineOption(opt presale.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a presale plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, presale.WithPlugin(p))
	}
}

// WithTokens sets the asset transfer primitive for the engine.
func WithTokens(t token.Transferer) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, presale.WithTokens(t))
	}
}

// WithVestingFactory sets the allocation-creation service for the engine.
func WithVestingFactory(f vesting.Factory) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, presale.WithVestingFactory(f))
	}
}

// WithRegistry sets the operator role registry for the engine.
func WithRegistry(r registry.Resolver) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, presale.WithRegistry(r))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithSaleID sets the sale the engine binds to on start.
func WithSaleID(saleID string) Option {
	return func(e *Extension) { e.config.SaleID = saleID }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
