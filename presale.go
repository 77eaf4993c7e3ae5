package presale

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/presale/authz"
	"github.com/xraph/presale/config"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/lifecycle"
	"github.com/xraph/presale/plugin"
	"github.com/xraph/presale/position"
	"github.com/xraph/presale/registry"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/store"
	"github.com/xraph/presale/token"
	"github.com/xraph/presale/types"
	"github.com/xraph/presale/vesting"
)

// Engine is the sale's ledger-and-settlement state machine. It owns all
// sale state exclusively; external collaborators (token transfers, the
// vesting factory, the role registry) only ever receive copies of
// computed amounts and accounts.
//
// The engine's mutex covers only the validate-mutate-persist section of
// each operation and is released before any external interaction. A
// malicious collaborator calling back into the engine therefore
// re-enters cleanly and is rejected by the already-committed guards.
// The effects-before-interactions ordering, not a held lock, is what
// makes settlement single-shot.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	tokens   token.Transferer
	factory  vesting.Factory
	releaser vesting.Releaser
	resolver registry.Resolver

	now func() time.Time

	saleID id.SaleID

	// mu serializes state commits. Never held across an external call.
	mu sync.Mutex
}

// New creates a new Engine instance over the given store.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithTokens sets the asset transfer primitive.
func WithTokens(t token.Transferer) Option {
	return func(e *Engine) {
		e.tokens = t
	}
}

// WithVestingFactory sets the allocation-creation service. If the
// factory also implements vesting.Releaser it is used for releases too.
func WithVestingFactory(f vesting.Factory) Option {
	return func(e *Engine) {
		e.factory = f
		if r, ok := f.(vesting.Releaser); ok && e.releaser == nil {
			e.releaser = r
		}
	}
}

// WithReleaser sets the vested-release delegate separately from the
// factory.
func WithReleaser(r vesting.Releaser) Option {
	return func(e *Engine) {
		e.releaser = r
	}
}

// WithRegistry sets the operator role registry used by SyncRegistry.
func WithRegistry(r registry.Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithClock overrides the engine's time source. Phase guards are
// calendar-based, so tests inject a controllable clock here.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("presale engine started", "sale_id", e.saleID.String())
	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Sale binding
// ──────────────────────────────────────────────────

// Initialize creates the sale record. It is the one-time configuration
// surface: the config and terms are validated and rejected as a unit on
// any bound violation.
func (e *Engine) Initialize(ctx context.Context, cfg config.SaleConfig, terms vesting.Terms) (*sale.Sale, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	// Reject unusable signer keys at configuration time, not first use.
	if _, err := authz.NewVerifier(cfg.ChainID, cfg.SaleID, cfg.SignerPublicKey); err != nil {
		return nil, err
	}

	if cfg.SaleID.IsNil() {
		cfg.SaleID = id.NewSaleID()
	}

	sl := &sale.Sale{
		Entity: types.NewEntity(),
		ID:     cfg.SaleID,
		Config: cfg,
		Terms:  terms,
	}

	if err := e.store.CreateSale(ctx, sl); err != nil {
		return nil, err
	}

	e.saleID = sl.ID
	e.logger.Info("sale initialized",
		"sale_id", sl.ID.String(),
		"bid_token", cfg.BidToken.String(),
		"refund_window", cfg.RefundWindow,
	)
	return sl, nil
}

// Load binds the engine to an existing sale, e.g. after a restart.
func (e *Engine) Load(ctx context.Context, saleID id.SaleID) (*sale.Sale, error) {
	sl, err := e.store.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	e.saleID = sl.ID
	return sl, nil
}

// SyncRegistry refreshes the operator-resolved configuration fields from
// the role registry and commits a new configuration snapshot. Callable
// by the bouncer or the project.
func (e *Engine) SyncRegistry(ctx context.Context, caller types.Account) (*config.SaleConfig, error) {
	if e.resolver == nil {
		return nil, ErrNoRegistry
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sl, err := e.loadSale(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(sl, caller); err != nil {
		return nil, err
	}

	bouncer, err := e.resolver.Resolve(ctx, registry.RoleBouncer)
	if err != nil {
		return nil, err
	}
	signer, err := e.resolver.Resolve(ctx, registry.RoleSigner)
	if err != nil {
		return nil, err
	}
	feeReceiver, err := e.resolver.Resolve(ctx, registry.RoleFeeReceiver)
	if err != nil {
		return nil, err
	}
	factoryAcct, err := e.resolver.Resolve(ctx, registry.RoleVestingFactory)
	if err != nil {
		return nil, err
	}

	sl.Config.Bouncer = bouncer
	sl.Config.SignerPublicKey = signer.String()
	sl.Config.ProtocolFeeReceiver = feeReceiver
	sl.Config.VestingFactory = factoryAcct
	sl.Touch()

	if err := e.store.UpdateSale(ctx, sl); err != nil {
		return nil, err
	}

	e.logger.Info("registry synced",
		"sale_id", sl.ID.String(),
		"bouncer", bouncer.String(),
		"fee_receiver", feeReceiver.String(),
	)

	snapshot := sl.Config
	return &snapshot, nil
}

// ──────────────────────────────────────────────────
// Views
// ──────────────────────────────────────────────────

// Status returns a copy of the sale-wide lifecycle flags and counters.
func (e *Engine) Status(ctx context.Context) (*lifecycle.Status, error) {
	sl, err := e.loadSale(ctx)
	if err != nil {
		return nil, err
	}
	return sl.Status.Clone(), nil
}

// Config returns a copy of the current configuration snapshot.
func (e *Engine) Config(ctx context.Context) (*config.SaleConfig, error) {
	sl, err := e.loadSale(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := sl.Config
	return &snapshot, nil
}

// Terms returns the current vesting terms.
func (e *Engine) Terms(ctx context.Context) (*vesting.Terms, error) {
	sl, err := e.loadSale(ctx)
	if err != nil {
		return nil, err
	}
	terms := sl.Terms
	return &terms, nil
}

// Position returns one investor's position.
func (e *Engine) Position(ctx context.Context, account types.Account) (*position.Position, error) {
	return e.store.GetPosition(ctx, e.saleID, account)
}

// Positions returns every position in the sale.
func (e *Engine) Positions(ctx context.Context) ([]*position.Position, error) {
	return e.store.ListPositions(ctx, e.saleID)
}

// Phase returns the sale's current derived phase.
func (e *Engine) Phase(ctx context.Context) (lifecycle.Phase, error) {
	sl, err := e.loadSale(ctx)
	if err != nil {
		return "", err
	}
	return sl.Status.Phase(e.now()), nil
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Engine) loadSale(ctx context.Context) (*sale.Sale, error) {
	return e.store.GetSale(ctx, e.saleID)
}

func (e *Engine) verifierFor(sl *sale.Sale) (*authz.Verifier, error) {
	return authz.NewVerifier(sl.Config.ChainID, sl.ID, sl.Config.SignerPublicKey)
}

func requireProject(sl *sale.Sale, caller types.Account) error {
	if caller != sl.Config.Project {
		return ErrNotProject
	}
	return nil
}

func requireBouncer(sl *sale.Sale, caller types.Account) error {
	if caller != sl.Config.Bouncer {
		return ErrNotBouncer
	}
	return nil
}

func requireAdmin(sl *sale.Sale, caller types.Account) error {
	if caller != sl.Config.Bouncer && caller != sl.Config.Project {
		return ErrNotAdmin
	}
	return nil
}
