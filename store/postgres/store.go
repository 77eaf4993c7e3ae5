package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	presale "github.com/xraph/presale"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/position"
	"github.com/xraph/presale/replay"
	"github.com/xraph/presale/sale"
	presalestore "github.com/xraph/presale/store"
	"github.com/xraph/presale/types"
)

// compile-time interface check
var _ presalestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("presale/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("presale/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Sale Store ====================

func (s *Store) CreateSale(ctx context.Context, sl *sale.Sale) error {
	m := toSaleModel(sl)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if err != nil {
		if isConflict(err) {
			return presale.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, saleID id.SaleID) (*sale.Sale, error) {
	m := new(saleModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", saleID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, presale.ErrSaleNotFound
		}
		return nil, err
	}
	return fromSaleModel(m)
}

func (s *Store) UpdateSale(ctx context.Context, sl *sale.Sale) error {
	m := toSaleModel(sl)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return presale.ErrSaleNotFound
	}
	return nil
}

// ==================== Position Store ====================

func (s *Store) GetPosition(ctx context.Context, saleID id.SaleID, account types.Account) (*position.Position, error) {
	m := new(positionModel)
	err := s.pg.NewSelect(m).
		Where("sale_id = $1", saleID.String()).
		Where("account = $2", account.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, presale.ErrPositionNotFound
		}
		return nil, err
	}
	return fromPositionModel(m)
}

func (s *Store) SavePosition(ctx context.Context, p *position.Position) error {
	m := toPositionModel(p)
	m.UpdatedAt = now()

	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = s.pg.NewInsert(m).Exec(ctx)
	}
	return err
}

func (s *Store) ListPositions(ctx context.Context, saleID id.SaleID) ([]*position.Position, error) {
	var models []positionModel
	q := s.pg.NewSelect(&models).
		Where("sale_id = $1", saleID.String()).
		OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*position.Position, len(models))
	for i := range models {
		p, err := fromPositionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Replay Store ====================

// ConsumeSignature relies on the primary key for atomicity: two
// concurrent consumptions of the same pair race on the insert and
// exactly one wins.
func (s *Store) ConsumeSignature(ctx context.Context, c *replay.Consumption) error {
	m := toConsumptionModel(c)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if err != nil {
		if isConflict(err) {
			return presale.ErrSignatureReuse
		}
		return err
	}
	return nil
}

func (s *Store) IsSignatureConsumed(ctx context.Context, saleID id.SaleID, account types.Account, signatureHex string) (bool, error) {
	m := new(consumptionModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", consumptionKey(saleID, account, signatureHex)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) RevokeSignature(ctx context.Context, saleID id.SaleID, account types.Account, signatureHex string) error {
	_, err := s.pg.NewDelete((*consumptionModel)(nil)).
		Where("key = $1", consumptionKey(saleID, account, signatureHex)).
		Exec(ctx)
	return err
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isConflict detects a unique-constraint violation across driver
// wrappings; Postgres reports SQLSTATE 23505.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
