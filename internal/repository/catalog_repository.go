package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/internal/service"
	"github.com/hotelhub/loyalty-engine/pkg/database"
)

// CatalogRepository provides data access for coupon and reward
// definitions using pgx.
type CatalogRepository struct {
	pool PoolInterface
}

// NewCatalogRepository creates a new CatalogRepository with the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// NewCatalogRepositoryWithPool creates a CatalogRepository with a custom
// pool interface. This is primarily used for testing.
func NewCatalogRepositoryWithPool(pool PoolInterface) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const itemColumns = `id, code, name, item_type, discount_type, value, max_discount, point_cost, min_tier, min_spend, usage_limit, per_user_limit, usage_count, valid_from, valid_until, is_active, created_at`

func scanItem(row pgx.Row) (*model.CatalogItem, error) {
	var i model.CatalogItem
	var itemType, minTier string
	var discountType *string
	err := row.Scan(
		&i.ID, &i.Code, &i.Name, &itemType, &discountType,
		&i.Value, &i.MaxDiscount, &i.PointCost, &minTier, &i.MinSpend,
		&i.UsageLimit, &i.PerUserLimit, &i.UsageCount,
		&i.ValidFrom, &i.ValidUntil, &i.IsActive, &i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.ItemType = model.ItemType(itemType)
	i.MinTier = model.Tier(minTier)
	if discountType != nil {
		i.DiscountType = model.DiscountType(*discountType)
	}
	return &i, nil
}

// Insert creates a new catalog item.
// Returns service.ErrItemExists if an item with the same code exists.
func (r *CatalogRepository) Insert(ctx context.Context, item *model.CatalogItem) error {
	var discountType *string
	if item.DiscountType != "" {
		s := string(item.DiscountType)
		discountType = &s
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO catalog_items (id, code, name, item_type, discount_type, value, max_discount, point_cost, min_tier, min_spend, usage_limit, per_user_limit, usage_count, valid_from, valid_until, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, $13, $14, $15)`,
		item.ID, item.Code, item.Name, string(item.ItemType), discountType,
		item.Value, item.MaxDiscount, item.PointCost, string(item.MinTier), item.MinSpend,
		item.UsageLimit, item.PerUserLimit, item.ValidFrom, item.ValidUntil, item.IsActive)
	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return service.ErrItemExists
		}
		return fmt.Errorf("insert catalog item: %w", err)
	}
	return nil
}

// GetByCode retrieves a catalog item by its public code.
// Returns nil, nil if the item is not found (service layer handles this).
func (r *CatalogRepository) GetByCode(ctx context.Context, code string) (*model.CatalogItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM catalog_items WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get catalog item by code %s: %w", code, err)
	}
	return item, nil
}

// GetForUpdate retrieves a catalog item by id with an exclusive row lock.
// The usage counter lives on this row, so redemptions against a shared
// limit serialize here. The wait is bounded by the transaction's
// lock_timeout; a timeout surfaces as service.ErrBusy.
// Returns service.ErrItemNotFound if the item doesn't exist.
func (r *CatalogRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.CatalogItem, error) {
	item, err := scanItem(tx.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM catalog_items WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrItemNotFound
		}
		if pgErrCode(err) == pgLockNotAvailable {
			return nil, service.ErrBusy
		}
		return nil, fmt.Errorf("get catalog item for update %s: %w", id, err)
	}
	return item, nil
}

// GetByCodeForUpdate is GetForUpdate keyed by the public code.
func (r *CatalogRepository) GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.CatalogItem, error) {
	item, err := scanItem(tx.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM catalog_items WHERE code = $1 FOR UPDATE`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrItemNotFound
		}
		if pgErrCode(err) == pgLockNotAvailable {
			return nil, service.ErrBusy
		}
		return nil, fmt.Errorf("get catalog item for update %s: %w", code, err)
	}
	return item, nil
}

// IncrementUsage bumps the usage counter if the global limit allows it.
// The check and increment happen in one statement so a burst of
// concurrent redemptions can never overshoot the limit; zero rows
// affected means the limit was already reached.
func (r *CatalogRepository) IncrementUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error {
	tag, err := tx.Exec(ctx,
		`UPDATE catalog_items
		 SET usage_count = usage_count + 1
		 WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		id)
	if err != nil {
		return fmt.Errorf("increment usage for item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &service.RuleViolationError{Reason: service.ReasonUsageLimit}
	}
	return nil
}

// DecrementUsage releases one use, clamped at zero. Called by reversals.
func (r *CatalogRepository) DecrementUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`UPDATE catalog_items
		 SET usage_count = GREATEST(usage_count - 1, 0)
		 WHERE id = $1`,
		id)
	if err != nil {
		return fmt.Errorf("decrement usage for item %s: %w", id, err)
	}
	return nil
}
