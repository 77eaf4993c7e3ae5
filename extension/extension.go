// Package extension provides the Forge extension adapter for Presale.
//
// It implements the forge.Extension interface to integrate Presale
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.presale" or "presale" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	presale "github.com/xraph/presale"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/store"
	"github.com/xraph/presale/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "presale"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Pre-event token sale accounting and settlement engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Presale as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *presale.Engine
	store      store.Store
	engineOpts []presale.Option
}

// New creates a new Presale Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Presale engine.
// This is nil until Register is called.
func (e *Extension) Engine() *presale.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// constructs the presale engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = presale.New(e.store, e.engineOpts...)

	return vessel.Provide(fapp.Container(), func() (*presale.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("presale: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if e.config.SaleID != "" {
		saleID, err := id.ParseSaleID(e.config.SaleID)
		if err != nil {
			return fmt.Errorf("presale: invalid sale_id in config: %w", err)
		}
		if _, err := e.engine.Load(ctx, saleID); err != nil {
			return fmt.Errorf("presale: load sale %s: %w", saleID, err)
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("presale: store not initialized")
	}
	return e.store.Ping(ctx)
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("presale: configuration is required but not found in config files; " +
				"ensure 'extensions.presale' or 'presale' key exists in your config")
		}

		e.config = programmaticConfig
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("presale: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("sale_id", e.config.SaleID),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.presale" first (namespaced pattern).
	if cm.IsSet("extensions.presale") {
		if err := cm.Bind("extensions.presale", &cfg); err == nil {
			e.Logger().Debug("presale: loaded config from file",
				forge.F("key", "extensions.presale"),
			)
			return cfg, true
		}
		e.Logger().Warn("presale: failed to bind extensions.presale config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "presale" key.
	if cm.IsSet("presale") {
		if err := cm.Bind("presale", &cfg); err == nil {
			e.Logger().Debug("presale: loaded config from file",
				forge.F("key", "presale"),
			)
			return cfg, true
		}
		e.Logger().Warn("presale: failed to bind presale config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.SaleID == "" && programmaticConfig.SaleID != "" {
		yamlConfig.SaleID = programmaticConfig.SaleID
	}
	return yamlConfig
}
