package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/pkg/database"
)

// LedgerPoolInterface defines the database operations needed by LedgerRepository.
type LedgerPoolInterface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LedgerRepository provides data access to the append-only ledger.
// Entries are inserted, never updated or deleted.
type LedgerRepository struct {
	pool LedgerPoolInterface
}

// NewLedgerRepository creates a new LedgerRepository with the given pool.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// NewLedgerRepositoryWithPool creates a LedgerRepository with a custom
// pool interface. This is primarily used for testing.
func NewLedgerRepositoryWithPool(pool LedgerPoolInterface) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const entryColumns = `id, customer_id, amount, kind, description, reference_id, reference_type, expires_at, created_at`

func scanEntries(rows pgx.Rows) ([]model.LedgerEntry, error) {
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		var e model.LedgerEntry
		var kind string
		err := rows.Scan(&e.ID, &e.CustomerID, &e.Amount, &kind, &e.Description,
			&e.ReferenceID, &e.ReferenceType, &e.ExpiresAt, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Kind = model.EntryKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

// Insert appends a ledger entry. Must be called within a transaction that
// also adjusts the cached balance, so the SUM(amount) invariant holds at
// every commit point.
func (r *LedgerRepository) Insert(ctx context.Context, tx database.TxQuerier, entry *model.LedgerEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, customer_id, amount, kind, description, reference_id, reference_type, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.CustomerID, entry.Amount, string(entry.Kind), entry.Description,
		entry.ReferenceID, entry.ReferenceType, entry.ExpiresAt, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByCustomer returns a page of the customer's entries, newest first.
// The optional kind filter stays fully parameterized: kinds are passed as
// a text array, never concatenated into the query.
func (r *LedgerRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, filter model.HistoryFilter) ([]model.LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var rows pgx.Rows
	var err error
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		rows, err = r.pool.Query(ctx,
			`SELECT `+entryColumns+` FROM ledger_entries
			 WHERE customer_id = $1 AND kind = ANY($2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3 OFFSET $4`,
			customerID, kinds, limit, offset)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+entryColumns+` FROM ledger_entries
			 WHERE customer_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2 OFFSET $3`,
			customerID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list entries for customer %s: %w", customerID, err)
	}
	return scanEntries(rows)
}

// SumByCustomer returns SUM(amount) over the customer's entries. Used by
// reconciliation checks against the cached balance.
func (r *LedgerRepository) SumByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE customer_id = $1`,
		customerID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum entries for customer %s: %w", customerID, err)
	}
	return sum, nil
}

// FindExpirable returns earned entries whose expires_at has passed and
// which have no offsetting expired entry referencing them yet. Ordered by
// customer then age so the sweep can group per customer and consume the
// oldest points first.
func (r *LedgerRepository) FindExpirable(ctx context.Context, now time.Time, batchSize int) ([]model.LedgerEntry, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries e
		 WHERE e.kind = 'earned'
		   AND e.expires_at IS NOT NULL
		   AND e.expires_at < $1
		   AND NOT EXISTS (
		       SELECT 1 FROM ledger_entries o
		       WHERE o.kind = 'expired'
		         AND o.reference_id = e.id::text
		         AND o.reference_type = 'ledger_entry'
		   )
		 ORDER BY e.customer_id, e.created_at
		 LIMIT $2`,
		now, batchSize)
	if err != nil {
		return nil, fmt.Errorf("find expirable entries: %w", err)
	}
	return scanEntries(rows)
}

// HasOffset reports whether an expired entry already references the given
// earned entry. Used inside the sweep transaction to keep overlapping
// runs idempotent.
func (r *LedgerRepository) HasOffset(ctx context.Context, tx database.TxQuerier, entryID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM ledger_entries
		    WHERE kind = 'expired' AND reference_id = $1::text AND reference_type = 'ledger_entry'
		 )`,
		entryID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check offset for entry %s: %w", entryID, err)
	}
	return exists, nil
}
