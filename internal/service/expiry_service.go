package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/hotelhub/loyalty-engine/internal/model"
)

// ExpiryOptions configures an ExpiryProcessor.
type ExpiryOptions struct {
	Interval    time.Duration
	BatchSize   int
	LockRetries int
	LockBackoff time.Duration
	LockTimeout time.Duration
	Now         func() time.Time
}

// ExpiryProcessor is the periodic sweep that expires stale earned points.
// For each expired earned entry it posts a compensating entry of kind
// expired referencing the causing entry id; that reference is what makes
// overlapping runs idempotent.
type ExpiryProcessor struct {
	pool     TxBeginner
	accounts AccountRepositoryInterface
	entries  LedgerRepositoryInterface
	opts     ExpiryOptions
}

// NewExpiryProcessor creates an ExpiryProcessor backed by a pgx pool.
func NewExpiryProcessor(pool *pgxpool.Pool, accounts AccountRepositoryInterface, entries LedgerRepositoryInterface, opts ExpiryOptions) *ExpiryProcessor {
	return newExpiryProcessor(pool, accounts, entries, opts)
}

// NewExpiryProcessorWithTxBeginner creates an ExpiryProcessor with a
// custom TxBeginner. Primarily used for testing.
func NewExpiryProcessorWithTxBeginner(pool TxBeginner, accounts AccountRepositoryInterface, entries LedgerRepositoryInterface, opts ExpiryOptions) *ExpiryProcessor {
	return newExpiryProcessor(pool, accounts, entries, opts)
}

func newExpiryProcessor(pool TxBeginner, accounts AccountRepositoryInterface, entries LedgerRepositoryInterface, opts ExpiryOptions) *ExpiryProcessor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.LockRetries < 1 {
		opts.LockRetries = 3
	}
	if opts.LockBackoff <= 0 {
		opts.LockBackoff = 50 * time.Millisecond
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 3 * time.Second
	}
	return &ExpiryProcessor{pool: pool, accounts: accounts, entries: entries, opts: opts}
}

// Start runs the sweep on a ticker until ctx is cancelled.
func (p *ExpiryProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.opts.Interval).Msg("expiry processor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry processor stopped")
			return
		case <-ticker.C:
			if expired, err := p.Run(ctx); err != nil {
				log.Error().Err(err).Msg("expiry sweep failed")
			} else if expired > 0 {
				log.Info().Int64("points_expired", expired).Msg("expiry sweep completed")
			}
		}
	}
}

// Run performs one sweep and returns the total points expired. Safe to
// run concurrently with live traffic and repeatedly over the same window:
// each customer is processed under their account row lock and offsets are
// re-checked inside the transaction.
func (p *ExpiryProcessor) Run(ctx context.Context) (int64, error) {
	now := p.opts.Now().UTC()
	expirable, err := p.entries.FindExpirable(ctx, now, p.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(expirable) == 0 {
		return 0, nil
	}

	// FindExpirable orders by customer, so group contiguously.
	var total int64
	start := 0
	for i := 1; i <= len(expirable); i++ {
		if i < len(expirable) && expirable[i].CustomerID == expirable[start].CustomerID {
			continue
		}
		expired, err := p.expireForCustomer(ctx, expirable[start:i])
		if err != nil {
			// One stuck customer must not stall the rest of the sweep.
			log.Error().Err(err).
				Str("customer_id", expirable[start].CustomerID.String()).
				Msg("expiry failed for customer")
		} else {
			total += expired
		}
		start = i
	}
	return total, nil
}

// expireForCustomer posts offsets for one customer's expired earned
// entries in a single transaction. The total expired amount is capped at
// the current balance: points already spent cannot expire again, and the
// balance invariant (>= 0) always holds. Entries whose points were fully
// consumed still get a zero-amount offset so they are never re-examined.
func (p *ExpiryProcessor) expireForCustomer(ctx context.Context, entries []model.LedgerEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	customerID := entries[0].CustomerID

	var total int64
	err := withLockRetry(ctx, p.opts.LockRetries, p.opts.LockBackoff, func() error {
		total = 0
		tx, err := beginWithLockTimeout(ctx, p.pool, p.opts.LockTimeout)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		account, err := p.accounts.GetForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}

		budget := account.PointsBalance
		now := p.opts.Now().UTC()
		for _, cause := range entries {
			// Re-check under the lock: a concurrent sweep may have
			// offset this entry between FindExpirable and here.
			offset, err := p.entries.HasOffset(ctx, tx, cause.ID)
			if err != nil {
				return err
			}
			if offset {
				continue
			}

			amount := cause.Amount
			if amount > budget {
				amount = budget
			}

			refID := cause.ID.String()
			refType := "ledger_entry"
			entry := &model.LedgerEntry{
				ID:            uuid.New(),
				CustomerID:    customerID,
				Amount:        -amount,
				Kind:          model.KindExpired,
				Description:   fmt.Sprintf("points expired (earned %s)", cause.CreatedAt.Format("2006-01-02")),
				ReferenceID:   &refID,
				ReferenceType: &refType,
				CreatedAt:     now,
			}
			if err := p.entries.Insert(ctx, tx, entry); err != nil {
				return err
			}
			if amount > 0 {
				if err := p.accounts.ApplyEntry(ctx, tx, customerID, -amount, 0); err != nil {
					return err
				}
			}
			budget -= amount
			total += amount
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit expiry tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
