package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/internal/service"
	"github.com/hotelhub/loyalty-engine/pkg/database"
)

// RedemptionPoolInterface defines the database operations needed by
// RedemptionRepository outside a transaction.
type RedemptionPoolInterface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RedemptionRepository provides data access for redemption records.
// Records are append-only apart from their bounded status transitions.
type RedemptionRepository struct {
	pool RedemptionPoolInterface
}

// NewRedemptionRepository creates a new RedemptionRepository with the given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// NewRedemptionRepositoryWithPool creates a RedemptionRepository with a
// custom pool interface. This is primarily used for testing.
func NewRedemptionRepositoryWithPool(pool RedemptionPoolInterface) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

const redemptionColumns = `id, customer_id, catalog_item_id, item_type, points_used, discount_amount, status, redemption_code, created_at, used_at, expires_at, reversed_at`

func scanRedemption(row pgx.Row) (*model.RedemptionRecord, error) {
	var rec model.RedemptionRecord
	var itemType, status string
	err := row.Scan(
		&rec.ID, &rec.CustomerID, &rec.CatalogItemID, &itemType,
		&rec.PointsUsed, &rec.DiscountAmount, &status, &rec.RedemptionCode,
		&rec.CreatedAt, &rec.UsedAt, &rec.ExpiresAt, &rec.ReversedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ItemType = model.ItemType(itemType)
	rec.Status = model.RedemptionStatus(status)
	return &rec, nil
}

// Insert creates a redemption record. Must be called within the same
// transaction as the ledger debit / usage increment that it audits.
func (r *RedemptionRepository) Insert(ctx context.Context, tx database.TxQuerier, rec *model.RedemptionRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO redemption_records (id, customer_id, catalog_item_id, item_type, points_used, discount_amount, status, redemption_code, created_at, used_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.CustomerID, rec.CatalogItemID, string(rec.ItemType),
		rec.PointsUsed, rec.DiscountAmount, string(rec.Status), rec.RedemptionCode,
		rec.CreatedAt, rec.UsedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert redemption record: %w", err)
	}
	return nil
}

// GetByID retrieves a redemption record by id.
// Returns nil, nil if not found (service layer handles this).
func (r *RedemptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RedemptionRecord, error) {
	rec, err := scanRedemption(r.pool.QueryRow(ctx,
		`SELECT `+redemptionColumns+` FROM redemption_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get redemption %s: %w", id, err)
	}
	return rec, nil
}

// GetForUpdate retrieves a redemption record by id with a row lock, so
// concurrent reversals of the same record serialize.
// Returns service.ErrRedemptionNotFound if the record doesn't exist.
func (r *RedemptionRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.RedemptionRecord, error) {
	rec, err := scanRedemption(tx.QueryRow(ctx,
		`SELECT `+redemptionColumns+` FROM redemption_records WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrRedemptionNotFound
		}
		if pgErrCode(err) == pgLockNotAvailable {
			return nil, service.ErrBusy
		}
		return nil, fmt.Errorf("get redemption for update %s: %w", id, err)
	}
	return rec, nil
}

// GetByCodeForUpdate is GetForUpdate keyed by the redemption code, used
// by point-of-sale confirmation.
func (r *RedemptionRepository) GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.RedemptionRecord, error) {
	rec, err := scanRedemption(tx.QueryRow(ctx,
		`SELECT `+redemptionColumns+` FROM redemption_records WHERE redemption_code = $1 FOR UPDATE`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrRedemptionNotFound
		}
		if pgErrCode(err) == pgLockNotAvailable {
			return nil, service.ErrBusy
		}
		return nil, fmt.Errorf("get redemption for update by code: %w", err)
	}
	return rec, nil
}

// CountActiveByCustomerItem counts the customer's non-reversed
// redemptions of one catalog item. Read under the catalog item row lock
// so per-user limits hold under concurrency.
func (r *RedemptionRepository) CountActiveByCustomerItem(ctx context.Context, tx database.TxQuerier, customerID, itemID uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM redemption_records
		 WHERE customer_id = $1 AND catalog_item_id = $2 AND status <> 'reversed'`,
		customerID, itemID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count redemptions for customer %s item %s: %w", customerID, itemID, err)
	}
	return count, nil
}

// UpdateStatus applies one of the bounded status transitions. Timestamps
// are stamped to match the transition; other fields never change.
func (r *RedemptionRepository) UpdateStatus(ctx context.Context, tx database.TxQuerier, id uuid.UUID, status model.RedemptionStatus, at time.Time) error {
	var query string
	switch status {
	case model.RedemptionUsed:
		query = `UPDATE redemption_records SET status = $2, used_at = $3 WHERE id = $1`
	case model.RedemptionReversed:
		query = `UPDATE redemption_records SET status = $2, reversed_at = $3 WHERE id = $1`
	default:
		query = `UPDATE redemption_records SET status = $2 WHERE id = $1`
	}

	var err error
	if status == model.RedemptionUsed || status == model.RedemptionReversed {
		_, err = tx.Exec(ctx, query, id, string(status), at)
	} else {
		_, err = tx.Exec(ctx, query, id, string(status))
	}
	if err != nil {
		return fmt.Errorf("update redemption %s status: %w", id, err)
	}
	return nil
}

// ListActiveByCustomer returns the customer's pending and used
// redemptions, newest first, for the dashboard.
func (r *RedemptionRepository) ListActiveByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]model.RedemptionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+redemptionColumns+` FROM redemption_records
		 WHERE customer_id = $1 AND status IN ('pending','used')
		 ORDER BY created_at DESC
		 LIMIT $2`,
		customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list redemptions for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	records := []model.RedemptionRecord{}
	for rows.Next() {
		rec, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemption rows: %w", err)
	}
	return records, nil
}
