package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	presale "github.com/xraph/presale"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/position"
	"github.com/xraph/presale/replay"
	"github.com/xraph/presale/sale"
	presalestore "github.com/xraph/presale/store"
	"github.com/xraph/presale/types"
)

// Collection name constants.
const (
	colSales     = "presale_sales"
	colPositions = "presale_positions"
	colConsumed  = "presale_consumed_signatures"
)

// compile-time interface check
var _ presalestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all presale collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("presale/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return presale.ErrAlreadyExists
		}
		return fmt.Errorf("presale/mongo: create sale: %w", err)
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, saleID id.SaleID) (*sale.Sale, error) {
	var m saleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": saleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, presale.ErrSaleNotFound
		}
		return nil, fmt.Errorf("presale/mongo: get sale: %w", err)
	}
	return fromSaleModel(&m)
}

func (s *Store) UpdateSale(ctx context.Context, sl *sale.Sale) error {
	m := toSaleModel(sl)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/mongo: update sale: %w", err)
	}
	if res.MatchedCount() == 0 {
		return presale.ErrSaleNotFound
	}
	return nil
}

// ==================== Position Store ====================

func (s *Store) GetPosition(ctx context.Context, saleID id.SaleID, account types.Account) (*position.Position, error) {
	var m positionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"sale_id": saleID.String(), "account": account.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, presale.ErrPositionNotFound
		}
		return nil, fmt.Errorf("presale/mongo: get position: %w", err)
	}
	return fromPositionModel(&m)
}

func (s *Store) SavePosition(ctx context.Context, p *position.Position) error {
	m := toPositionModel(p)
	m.UpdatedAt = now()

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":               m.ID,
			"sale_id":           m.SaleID,
			"account":           m.Account,
			"invested_capital":  m.InvestedCapital,
			"invest_cap":        m.InvestCap,
			"token_rate":        m.TokenRate,
			"agreement_hash":    m.AgreementHash,
			"first_invested_at": m.FirstInvestedAt,
			"settled":           m.Settled,
			"refunded":          m.Refunded,
			"vesting_schedule":  m.VestingSchedule,
			"created_at":        m.CreatedAt,
			"updated_at":        m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/mongo: save position: %w", err)
	}
	return nil
}

func (s *Store) ListPositions(ctx context.Context, saleID id.SaleID) ([]*position.Position, error) {
	var models []positionModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{"sale_id": saleID.String()}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("presale/mongo: list positions: %w", err)
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

// ConsumeSignature relies on the _id key for atomicity: two concurrent
// consumptions of the same pair race on the insert and exactly one wins.
func (s *Store) ConsumeSignature(ctx context.Context, c *replay.Consumption) error {
	m := toConsumptionModel(c)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return presale.ErrSignatureReuse
		}
		return fmt.Errorf("presale/mongo: consume signature: %w", err)
	}
	return nil
}

func (s *Store) IsSignatureConsumed(ctx context.Context, saleID id.SaleID, account types.Account, signatureHex string) (bool, error) {
	var m consumptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": consumptionKey(saleID, account, signatureHex)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return false, nil
		}
		return false, fmt.Errorf("presale/mongo: is signature consumed: %w", err)
	}
	return true, nil
}

func (s *Store) RevokeSignature(ctx context.Context, saleID id.SaleID, account types.Account, signatureHex string) error {
	_, err := s.mdb.NewDelete((*consumptionModel)(nil)).
		Filter(bson.M{"_id": consumptionKey(saleID, account, signatureHex)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/mongo: revoke signature: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all presale collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSales: {
			{Keys: bson.D{{Key: "canceled", Value: 1}, {Key: "ended", Value: 1}}},
		},
		colPositions: {
			{
				Keys:    bson.D{{Key: "sale_id", Value: 1}, {Key: "account", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "sale_id", Value: 1}, {Key: "settled", Value: 1}}},
		},
		colConsumed: {
			{Keys: bson.D{{Key: "sale_id", Value: 1}, {Key: "account", Value: 1}}},
		},
	}
}
