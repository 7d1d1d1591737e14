package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/pkg/database"
)

// AccountRepositoryInterface defines the interface for account data access.
type AccountRepositoryInterface interface {
	Insert(ctx context.Context, account *model.CustomerAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.CustomerAccount, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.CustomerAccount, error)
	ApplyEntry(ctx context.Context, tx database.TxQuerier, id uuid.UUID, balanceDelta, lifetimeDelta int64) error
	RecordStay(ctx context.Context, tx database.TxQuerier, id uuid.UUID, nights int, spend decimal.Decimal) error
	SetTier(ctx context.Context, tx database.TxQuerier, id uuid.UUID, tier model.Tier) error
}

// LedgerRepositoryInterface defines the interface for ledger data access.
type LedgerRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, entry *model.LedgerEntry) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID, filter model.HistoryFilter) ([]model.LedgerEntry, error)
	SumByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
	FindExpirable(ctx context.Context, now time.Time, batchSize int) ([]model.LedgerEntry, error)
	HasOffset(ctx context.Context, tx database.TxQuerier, entryID uuid.UUID) (bool, error)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TierChange describes a tier transition caused by a ledger mutation.
// Emitted after the transaction commits, never from inside it.
type TierChange struct {
	CustomerID     uuid.UUID
	From           model.Tier
	To             model.Tier
	LifetimePoints int64
}

// TierChangeHook receives tier-change events. The default hook logs;
// wiring the campaign/notification side in is the adopter's business.
type TierChangeHook func(change TierChange)

// LedgerOptions configures a LedgerService.
type LedgerOptions struct {
	TierTable     []model.TierLevel
	EarnRate      decimal.Decimal // points per currency unit spent, before tier multiplier
	PointValidity time.Duration   // how long earned points live; 0 = never expire
	LockRetries   int
	LockBackoff   time.Duration
	LockTimeout   time.Duration // max wait for a row lock before the attempt fails with ErrBusy
	Now           func() time.Time
	OnTierChange  TierChangeHook
}

// LedgerService is the only writer of customer balances. Every mutation
// runs in one transaction holding the customer's account row lock, so
// entries for one customer are totally ordered by commit order.
type LedgerService struct {
	pool     TxBeginner
	accounts AccountRepositoryInterface
	entries  LedgerRepositoryInterface
	opts     LedgerOptions
}

// NewLedgerService creates a LedgerService over the given pool and repositories.
func NewLedgerService(pool *pgxpool.Pool, accounts AccountRepositoryInterface, entries LedgerRepositoryInterface, opts LedgerOptions) *LedgerService {
	return newLedgerService(pool, accounts, entries, opts)
}

// NewLedgerServiceWithTxBeginner creates a LedgerService with a custom
// TxBeginner. Primarily used for testing.
func NewLedgerServiceWithTxBeginner(pool TxBeginner, accounts AccountRepositoryInterface, entries LedgerRepositoryInterface, opts LedgerOptions) *LedgerService {
	return newLedgerService(pool, accounts, entries, opts)
}

func newLedgerService(pool TxBeginner, accounts AccountRepositoryInterface, entries LedgerRepositoryInterface, opts LedgerOptions) *LedgerService {
	if opts.Now == nil {
		opts.Now = time.Now
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
	if opts.EarnRate.IsZero() {
		opts.EarnRate = decimal.NewFromInt(10)
	}
	return &LedgerService{pool: pool, accounts: accounts, entries: entries, opts: opts}
}

// withLockRetry runs fn, retrying a bounded number of times while it
// fails with ErrBusy. Each attempt is a fresh transaction: a lock
// timeout aborts the statement, so the whole transaction is replayed.
func withLockRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if !errors.Is(err, ErrBusy) || attempt >= attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay(attempt, backoff)):
		}
	}
}

// lockRetryDelay doubles per attempt plus up to one base backoff of
// jitter, so callers that timed out on the same lock don't retry in
// lockstep.
func lockRetryDelay(attempt int, backoff time.Duration) time.Duration {
	return backoff<<attempt + rand.N(backoff)
}

// beginWithLockTimeout opens a transaction whose row-lock waits are
// bounded by timeout. A wait past the bound raises SQLSTATE 55P03,
// which the repositories translate to ErrBusy.
func beginWithLockTimeout(ctx context.Context, pool TxBeginner, timeout time.Duration) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	// SET does not take bind parameters.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set lock_timeout: %w", err)
	}
	return tx, nil
}

// inTx runs fn inside one transaction with the lock-retry policy.
func (s *LedgerService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return withLockRetry(ctx, s.opts.LockRetries, s.opts.LockBackoff, func() error {
		tx, err := beginWithLockTimeout(ctx, s.pool, s.opts.LockTimeout)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// RegisterCustomer creates a loyalty account starting at bronze with a
// zero balance.
// Returns ErrCustomerExists if the email is already registered.
func (s *LedgerService) RegisterCustomer(ctx context.Context, email string) (*model.CustomerAccount, error) {
	account := &model.CustomerAccount{
		ID:              uuid.New(),
		Email:           email,
		Tier:            model.TierBronze,
		SpendThisPeriod: decimal.Zero,
	}
	if err := s.accounts.Insert(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount retrieves a customer account.
// Returns ErrCustomerNotFound if the account doesn't exist.
func (s *LedgerService) GetAccount(ctx context.Context, customerID uuid.UUID) (*model.CustomerAccount, error) {
	account, err := s.accounts.GetByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, ErrCustomerNotFound
	}
	return account, nil
}

// GetBalance returns the customer's cached point balance.
func (s *LedgerService) GetBalance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	account, err := s.GetAccount(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return account.PointsBalance, nil
}

// GetHistory returns a page of the customer's ledger entries, newest first.
func (s *LedgerService) GetHistory(ctx context.Context, customerID uuid.UUID, filter model.HistoryFilter) ([]model.LedgerEntry, error) {
	if _, err := s.GetAccount(ctx, customerID); err != nil {
		return nil, err
	}
	return s.entries.ListByCustomer(ctx, customerID, filter)
}

// Credit appends a positive entry and updates the cached balance in one
// transaction. Lifetime points move only for earned/bonus credits, so
// reversal credits cannot inflate tier progress.
func (s *LedgerService) Credit(ctx context.Context, customerID uuid.UUID, amount int64, kind model.EntryKind, description string, ref *model.Reference, expiresAt *time.Time) (*model.LedgerEntry, error) {
	if amount <= 0 || !kind.Valid() {
		return nil, ErrInvalidRequest
	}

	var entry *model.LedgerEntry
	var change *TierChange
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		entry, change, err = s.CreditTx(ctx, tx, customerID, amount, kind, description, ref, expiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.EmitTierChange(change)
	return entry, nil
}

// Debit appends a negative entry after an atomic balance check. The check
// and decrement run under the account row lock, so two concurrent debits
// can never both pass against a stale balance.
// Returns ErrInsufficientBalance when the balance cannot cover the amount.
func (s *LedgerService) Debit(ctx context.Context, customerID uuid.UUID, amount int64, kind model.EntryKind, description string, ref *model.Reference) (*model.LedgerEntry, error) {
	if amount <= 0 || !kind.Valid() {
		return nil, ErrInvalidRequest
	}

	var entry *model.LedgerEntry
	var change *TierChange
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		entry, change, err = s.DebitTx(ctx, tx, customerID, amount, kind, description, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.EmitTierChange(change)
	return entry, nil
}

// CreditTx is Credit running inside a caller-owned transaction, so the
// redemption engine can compose a credit with its own writes atomically.
// The caller must emit the returned TierChange after its commit.
func (s *LedgerService) CreditTx(ctx context.Context, tx database.TxQuerier, customerID uuid.UUID, amount int64, kind model.EntryKind, description string, ref *model.Reference, expiresAt *time.Time) (*model.LedgerEntry, *TierChange, error) {
	if amount <= 0 || !kind.Valid() {
		return nil, nil, ErrInvalidRequest
	}

	account, err := s.accounts.GetForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, nil, err
	}
	return s.applyTx(ctx, tx, account, amount, kind, description, ref, expiresAt)
}

// DebitTx is Debit running inside a caller-owned transaction.
func (s *LedgerService) DebitTx(ctx context.Context, tx database.TxQuerier, customerID uuid.UUID, amount int64, kind model.EntryKind, description string, ref *model.Reference) (*model.LedgerEntry, *TierChange, error) {
	if amount <= 0 || !kind.Valid() {
		return nil, nil, ErrInvalidRequest
	}

	account, err := s.accounts.GetForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, nil, err
	}
	return s.debitLockedTx(ctx, tx, account, amount, kind, description, ref)
}

// DebitLockedTx debits an account the caller has already locked in tx.
// Used when the engine needs the account before deciding to debit.
func (s *LedgerService) DebitLockedTx(ctx context.Context, tx database.TxQuerier, account *model.CustomerAccount, amount int64, kind model.EntryKind, description string, ref *model.Reference) (*model.LedgerEntry, *TierChange, error) {
	if amount <= 0 || !kind.Valid() {
		return nil, nil, ErrInvalidRequest
	}
	return s.debitLockedTx(ctx, tx, account, amount, kind, description, ref)
}

// CreditLockedTx credits an account the caller has already locked in tx.
func (s *LedgerService) CreditLockedTx(ctx context.Context, tx database.TxQuerier, account *model.CustomerAccount, amount int64, kind model.EntryKind, description string, ref *model.Reference, expiresAt *time.Time) (*model.LedgerEntry, *TierChange, error) {
	if amount <= 0 || !kind.Valid() {
		return nil, nil, ErrInvalidRequest
	}
	return s.applyTx(ctx, tx, account, amount, kind, description, ref, expiresAt)
}

func (s *LedgerService) debitLockedTx(ctx context.Context, tx database.TxQuerier, account *model.CustomerAccount, amount int64, kind model.EntryKind, description string, ref *model.Reference) (*model.LedgerEntry, *TierChange, error) {
	if account.PointsBalance < amount {
		return nil, nil, ErrInsufficientBalance
	}
	return s.applyTx(ctx, tx, account, -amount, kind, description, ref, nil)
}

// applyTx appends the entry, adjusts the cached balance and lifetime
// points, and re-evaluates the tier, all against an already-locked
// account row.
func (s *LedgerService) applyTx(ctx context.Context, tx database.TxQuerier, account *model.CustomerAccount, amount int64, kind model.EntryKind, description string, ref *model.Reference, expiresAt *time.Time) (*model.LedgerEntry, *TierChange, error) {
	entry := &model.LedgerEntry{
		ID:          uuid.New(),
		CustomerID:  account.ID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		ExpiresAt:   expiresAt,
		CreatedAt:   s.opts.Now().UTC(),
	}
	if ref != nil {
		entry.ReferenceID = &ref.ID
		entry.ReferenceType = &ref.Type
	}

	if err := s.entries.Insert(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	var lifetimeDelta int64
	if amount > 0 && kind.CountsTowardLifetime() {
		lifetimeDelta = amount
	}
	if err := s.accounts.ApplyEntry(ctx, tx, account.ID, amount, lifetimeDelta); err != nil {
		return nil, nil, err
	}

	change, err := s.reevaluateTier(ctx, tx, account, account.LifetimePoints+lifetimeDelta)
	if err != nil {
		return nil, nil, err
	}
	return entry, change, nil
}

// reevaluateTier computes the tier from the post-mutation lifetime stats
// and persists an upgrade in the same transaction. Downgrades are never
// applied automatically.
func (s *LedgerService) reevaluateTier(ctx context.Context, tx database.TxQuerier, account *model.CustomerAccount, lifetimePoints int64) (*TierChange, error) {
	computed := ComputeTier(lifetimePoints, account.NightsThisPeriod, account.SpendThisPeriod, s.opts.TierTable)
	if computed == account.Tier || !computed.Meets(account.Tier) {
		return nil, nil
	}
	if err := s.accounts.SetTier(ctx, tx, account.ID, computed); err != nil {
		return nil, err
	}
	return &TierChange{
		CustomerID:     account.ID,
		From:           account.Tier,
		To:             computed,
		LifetimePoints: lifetimePoints,
	}, nil
}

// EmitTierChange invokes the tier-change hook, after the owning
// transaction has committed. Nil changes are ignored.
func (s *LedgerService) EmitTierChange(change *TierChange) {
	if change == nil {
		return
	}
	log.Info().
		Str("customer_id", change.CustomerID.String()).
		Str("from", string(change.From)).
		Str("to", string(change.To)).
		Int64("lifetime_points", change.LifetimePoints).
		Msg("tier upgraded")
	if s.opts.OnTierChange != nil {
		s.opts.OnTierChange(*change)
	}
}

// OnStayCompleted turns a completed stay from the booking/PMS side into
// an earned credit. Points = floor(amountSpent x earn rate x tier
// multiplier), using the tier held before this stay is recorded. The stay
// stats, the credit, and any resulting tier upgrade commit atomically.
func (s *LedgerService) OnStayCompleted(ctx context.Context, customerID uuid.UUID, amountSpent decimal.Decimal, nights int, bookingID string) (*model.LedgerEntry, error) {
	if amountSpent.IsNegative() || nights < 0 {
		return nil, ErrInvalidRequest
	}

	var entry *model.LedgerEntry
	var change *TierChange
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}

		if err := s.accounts.RecordStay(ctx, tx, account.ID, nights, amountSpent); err != nil {
			return err
		}
		account.NightsThisPeriod += nights
		account.SpendThisPeriod = account.SpendThisPeriod.Add(amountSpent)

		points := amountSpent.
			Mul(s.opts.EarnRate).
			Mul(Multiplier(account.Tier, s.opts.TierTable)).
			Floor().IntPart()
		if points <= 0 {
			// A free or comped stay still counts toward nights; nothing to credit.
			change, err = s.reevaluateTier(ctx, tx, account, account.LifetimePoints)
			return err
		}

		var expiresAt *time.Time
		if s.opts.PointValidity > 0 {
			t := s.opts.Now().UTC().Add(s.opts.PointValidity)
			expiresAt = &t
		}
		ref := &model.Reference{ID: bookingID, Type: "booking"}
		entry, change, err = s.applyTx(ctx, tx, account, points, model.KindEarned,
			fmt.Sprintf("stay completed: %d night(s)", nights), ref, expiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.EmitTierChange(change)
	return entry, nil
}

// AdjustTier is the documented manual override path. The override itself
// is audited through a zero-effect adjusted entry; it never touches the
// balance.
func (s *LedgerService) AdjustTier(ctx context.Context, customerID uuid.UUID, tier model.Tier, reason string) error {
	if !tier.Valid() {
		return ErrInvalidRequest
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if err := s.accounts.SetTier(ctx, tx, account.ID, tier); err != nil {
			return err
		}
		entry := &model.LedgerEntry{
			ID:          uuid.New(),
			CustomerID:  account.ID,
			Amount:      0,
			Kind:        model.KindAdjusted,
			Description: fmt.Sprintf("manual tier override to %s: %s", tier, reason),
			CreatedAt:   s.opts.Now().UTC(),
		}
		return s.entries.Insert(ctx, tx, entry)
	})
}

// Reconcile checks the cached balance against SUM(amount) over the
// customer's entries. Returns the two values; they must always match.
func (s *LedgerService) Reconcile(ctx context.Context, customerID uuid.UUID) (cached int64, summed int64, err error) {
	account, err := s.GetAccount(ctx, customerID)
	if err != nil {
		return 0, 0, err
	}
	summed, err = s.entries.SumByCustomer(ctx, customerID)
	if err != nil {
		return 0, 0, err
	}
	return account.PointsBalance, summed, nil
}
