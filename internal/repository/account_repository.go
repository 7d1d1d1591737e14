package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/internal/service"
	"github.com/hotelhub/loyalty-engine/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgCheckViolation   = "23514"
)

// pgErrCode extracts the SQLSTATE code from a pgx error, if any.
func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// AccountRepository provides data access for customer accounts using pgx.
type AccountRepository struct {
	pool PoolInterface
}

// NewAccountRepository creates a new AccountRepository with the given pool.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// NewAccountRepositoryWithPool creates an AccountRepository with a custom
// pool interface. This is primarily used for testing.
func NewAccountRepositoryWithPool(pool PoolInterface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, email, tier, points_balance, lifetime_points, nights_this_period, spend_this_period, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.CustomerAccount, error) {
	var a model.CustomerAccount
	var tier string
	err := row.Scan(
		&a.ID,
		&a.Email,
		&tier,
		&a.PointsBalance,
		&a.LifetimePoints,
		&a.NightsThisPeriod,
		&a.SpendThisPeriod,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Tier = model.Tier(tier)
	return &a, nil
}

// Insert creates a new customer account.
// Returns service.ErrCustomerExists if the email is already registered.
func (r *AccountRepository) Insert(ctx context.Context, account *model.CustomerAccount) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO customer_accounts (id, email, tier, points_balance, lifetime_points, nights_this_period, spend_this_period)
		 VALUES ($1, $2, $3, 0, 0, 0, 0)`,
		account.ID, account.Email, string(account.Tier))
	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return service.ErrCustomerExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID retrieves a customer account by id.
// Returns nil, nil if the account is not found (service layer handles this).
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CustomerAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM customer_accounts WHERE id = $1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return account, nil
}

// GetForUpdate retrieves a customer account with an exclusive row lock.
// The account row is the single serialization point for that customer's
// balance: concurrent writers queue on the lock and apply in order. The
// wait is bounded by the transaction's lock_timeout; a timeout raises
// SQLSTATE 55P03 and surfaces as service.ErrBusy.
// Returns service.ErrCustomerNotFound if the account doesn't exist.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.CustomerAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM customer_accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCustomerNotFound
		}
		if pgErrCode(err) == pgLockNotAvailable {
			return nil, service.ErrBusy
		}
		return nil, fmt.Errorf("get account for update %s: %w", id, err)
	}
	return account, nil
}

// ApplyEntry adjusts the cached balance and lifetime points by the given
// deltas. Must be called within a transaction after locking the row.
// The CHECK constraint on points_balance backs up the service-level
// balance check; a violation here means a bug upstream.
func (r *AccountRepository) ApplyEntry(ctx context.Context, tx database.TxQuerier, id uuid.UUID, balanceDelta, lifetimeDelta int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE customer_accounts
		 SET points_balance = points_balance + $2,
		     lifetime_points = lifetime_points + $3,
		     updated_at = now()
		 WHERE id = $1`,
		id, balanceDelta, lifetimeDelta)
	if err != nil {
		if pgErrCode(err) == pgCheckViolation {
			return service.ErrInsufficientBalance
		}
		return fmt.Errorf("apply entry to account %s: %w", id, err)
	}
	return nil
}

// RecordStay accumulates nights and spend into the current period stats.
// Must be called within a transaction after locking the row.
func (r *AccountRepository) RecordStay(ctx context.Context, tx database.TxQuerier, id uuid.UUID, nights int, spend decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`UPDATE customer_accounts
		 SET nights_this_period = nights_this_period + $2,
		     spend_this_period = spend_this_period + $3,
		     updated_at = now()
		 WHERE id = $1`,
		id, nights, spend)
	if err != nil {
		return fmt.Errorf("record stay for account %s: %w", id, err)
	}
	return nil
}

// SetTier updates the stored tier. Must be called within a transaction
// after locking the row; tier is always recomputed from ledger state.
func (r *AccountRepository) SetTier(ctx context.Context, tx database.TxQuerier, id uuid.UUID, tier model.Tier) error {
	_, err := tx.Exec(ctx,
		`UPDATE customer_accounts SET tier = $2, updated_at = now() WHERE id = $1`,
		id, string(tier))
	if err != nil {
		return fmt.Errorf("set tier for account %s: %w", id, err)
	}
	return nil
}
