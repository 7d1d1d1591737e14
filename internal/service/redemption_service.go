package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/pkg/database"
)

// CatalogRepositoryInterface defines the interface for catalog data access.
type CatalogRepositoryInterface interface {
	Insert(ctx context.Context, item *model.CatalogItem) error
	GetByCode(ctx context.Context, code string) (*model.CatalogItem, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.CatalogItem, error)
	GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.CatalogItem, error)
	IncrementUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error
	DecrementUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error
}

// RedemptionRepositoryInterface defines the interface for redemption
// record data access.
type RedemptionRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, rec *model.RedemptionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.RedemptionRecord, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.RedemptionRecord, error)
	GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.RedemptionRecord, error)
	CountActiveByCustomerItem(ctx context.Context, tx database.TxQuerier, customerID, itemID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, tx database.TxQuerier, id uuid.UUID, status model.RedemptionStatus, at time.Time) error
	ListActiveByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]model.RedemptionRecord, error)
}

// LedgerTxInterface is the slice of the ledger the engine composes into
// its own transactions.
type LedgerTxInterface interface {
	DebitLockedTx(ctx context.Context, tx database.TxQuerier, account *model.CustomerAccount, amount int64, kind model.EntryKind, description string, ref *model.Reference) (*model.LedgerEntry, *TierChange, error)
	CreditLockedTx(ctx context.Context, tx database.TxQuerier, account *model.CustomerAccount, amount int64, kind model.EntryKind, description string, ref *model.Reference, expiresAt *time.Time) (*model.LedgerEntry, *TierChange, error)
	EmitTierChange(change *TierChange)
}

// RedemptionOptions configures a RedemptionService.
type RedemptionOptions struct {
	CouponConfirmWindow time.Duration // how long a pending coupon stays confirmable
	LockRetries         int
	LockBackoff         time.Duration
	LockTimeout         time.Duration
	Now                 func() time.Time
}

// RedemptionService orchestrates atomic redemptions. Every operation is
// one transaction: validation, ledger debit or usage increment, and the
// audit record commit together or not at all.
//
// Lock order is fixed across all operations (redemption record, then
// account, then catalog item) so concurrent redeem/confirm/reverse calls
// cannot deadlock.
type RedemptionService struct {
	pool        TxBeginner
	accounts    AccountRepositoryInterface
	catalog     CatalogRepositoryInterface
	redemptions RedemptionRepositoryInterface
	ledger      LedgerTxInterface
	opts        RedemptionOptions
}

// NewRedemptionService creates a RedemptionService over the given pool,
// repositories, and ledger.
func NewRedemptionService(pool *pgxpool.Pool, accounts AccountRepositoryInterface, catalog CatalogRepositoryInterface, redemptions RedemptionRepositoryInterface, ledger LedgerTxInterface, opts RedemptionOptions) *RedemptionService {
	return newRedemptionService(pool, accounts, catalog, redemptions, ledger, opts)
}

// NewRedemptionServiceWithTxBeginner creates a RedemptionService with a
// custom TxBeginner. Primarily used for testing.
func NewRedemptionServiceWithTxBeginner(pool TxBeginner, accounts AccountRepositoryInterface, catalog CatalogRepositoryInterface, redemptions RedemptionRepositoryInterface, ledger LedgerTxInterface, opts RedemptionOptions) *RedemptionService {
	return newRedemptionService(pool, accounts, catalog, redemptions, ledger, opts)
}

func newRedemptionService(pool TxBeginner, accounts AccountRepositoryInterface, catalog CatalogRepositoryInterface, redemptions RedemptionRepositoryInterface, ledger LedgerTxInterface, opts RedemptionOptions) *RedemptionService {
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
	if opts.CouponConfirmWindow <= 0 {
		opts.CouponConfirmWindow = 72 * time.Hour
	}
	return &RedemptionService{
		pool:        pool,
		accounts:    accounts,
		catalog:     catalog,
		redemptions: redemptions,
		ledger:      ledger,
		opts:        opts,
	}
}

func (s *RedemptionService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
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

// newRedemptionCode returns an opaque code staff can key in at the
// point of sale.
func newRedemptionCode() string {
	return "RDM-" + uuid.NewString()
}

// RedeemReward redeems a point-cost reward: debits the ledger and records
// the redemption as used, all in one transaction.
// Returns:
//   - ErrCustomerNotFound / ErrItemNotFound for unknown ids
//   - RuleViolationError for the first failed eligibility rule
//   - ErrInsufficientBalance when points don't cover the cost
func (s *RedemptionService) RedeemReward(ctx context.Context, customerID, rewardID uuid.UUID) (*model.RedemptionRecord, error) {
	var rec *model.RedemptionRecord
	var change *TierChange
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		item, err := s.catalog.GetForUpdate(ctx, tx, rewardID)
		if err != nil {
			return err
		}
		if item.ItemType != model.ItemReward {
			return ErrItemNotFound
		}

		used, err := s.redemptions.CountActiveByCustomerItem(ctx, tx, customerID, item.ID)
		if err != nil {
			return err
		}
		if err := ValidateRedemption(account, item, RedemptionContext{Now: s.opts.Now().UTC(), PerUserUsed: used}); err != nil {
			return err
		}

		now := s.opts.Now().UTC()
		rec = &model.RedemptionRecord{
			ID:             uuid.New(),
			CustomerID:     account.ID,
			CatalogItemID:  item.ID,
			ItemType:       model.ItemReward,
			PointsUsed:     item.PointCost,
			DiscountAmount: decimal.Zero,
			Status:         model.RedemptionUsed,
			RedemptionCode: newRedemptionCode(),
			CreatedAt:      now,
			UsedAt:         &now,
		}

		ref := &model.Reference{ID: rec.ID.String(), Type: "redemption"}
		_, change, err = s.ledger.DebitLockedTx(ctx, tx, account, item.PointCost, model.KindRedeemed,
			fmt.Sprintf("redeemed reward: %s", item.Name), ref)
		if err != nil {
			return err
		}

		if err := s.catalog.IncrementUsage(ctx, tx, item.ID); err != nil {
			return err
		}
		return s.redemptions.Insert(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}
	s.ledger.EmitTierChange(change)

	log.Info().
		Str("customer_id", customerID.String()).
		Str("reward_id", rewardID.String()).
		Int64("points_used", rec.PointsUsed).
		Msg("reward redeemed")
	return rec, nil
}

// RedeemCoupon redeems a coupon code against an order total. Coupons
// never touch the point balance: the effect is a discount amount plus a
// usage-counter increment. The record starts pending and is confirmed at
// the point of sale.
func (s *RedemptionService) RedeemCoupon(ctx context.Context, customerID uuid.UUID, code string, orderAmount decimal.Decimal) (*model.RedemptionRecord, error) {
	if orderAmount.IsNegative() {
		return nil, ErrInvalidRequest
	}

	var rec *model.RedemptionRecord
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		item, err := s.catalog.GetByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		if item.ItemType != model.ItemCoupon {
			return ErrItemNotFound
		}

		used, err := s.redemptions.CountActiveByCustomerItem(ctx, tx, customerID, item.ID)
		if err != nil {
			return err
		}
		rctx := RedemptionContext{Now: s.opts.Now().UTC(), OrderAmount: orderAmount, PerUserUsed: used}
		if err := ValidateRedemption(account, item, rctx); err != nil {
			return err
		}

		if err := s.catalog.IncrementUsage(ctx, tx, item.ID); err != nil {
			return err
		}

		now := s.opts.Now().UTC()
		expiresAt := now.Add(s.opts.CouponConfirmWindow)
		rec = &model.RedemptionRecord{
			ID:             uuid.New(),
			CustomerID:     account.ID,
			CatalogItemID:  item.ID,
			ItemType:       model.ItemCoupon,
			DiscountAmount: item.Discount(orderAmount),
			Status:         model.RedemptionPending,
			RedemptionCode: newRedemptionCode(),
			CreatedAt:      now,
			ExpiresAt:      &expiresAt,
		}
		return s.redemptions.Insert(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("customer_id", customerID.String()).
		Str("coupon_code", code).
		Str("discount", rec.DiscountAmount.StringFixed(2)).
		Msg("coupon redeemed, pending confirmation")
	return rec, nil
}

// ConfirmCoupon is the staff-validation step that moves a pending coupon
// redemption to used. Confirming an already-used record is a no-op
// success so point-of-sale retries are safe. A pending record past its
// confirmation window flips to expired and the confirmation fails.
func (s *RedemptionService) ConfirmCoupon(ctx context.Context, redemptionCode string) (*model.RedemptionRecord, error) {
	var rec *model.RedemptionRecord
	var confirmErr error
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		rec, err = s.redemptions.GetByCodeForUpdate(ctx, tx, redemptionCode)
		if err != nil {
			return err
		}

		now := s.opts.Now().UTC()
		switch rec.Status {
		case model.RedemptionUsed:
			return nil // idempotent retry
		case model.RedemptionReversed:
			confirmErr = ErrRedemptionReversed
			return nil
		case model.RedemptionExpired:
			confirmErr = &RuleViolationError{Reason: ReasonExpired}
			return nil
		}

		if rec.ExpiresAt != nil && now.After(*rec.ExpiresAt) {
			// The expired flip must commit even though confirmation fails.
			if err := s.redemptions.UpdateStatus(ctx, tx, rec.ID, model.RedemptionExpired, now); err != nil {
				return err
			}
			rec.Status = model.RedemptionExpired
			confirmErr = &RuleViolationError{Reason: ReasonExpired}
			return nil
		}

		if err := s.redemptions.UpdateStatus(ctx, tx, rec.ID, model.RedemptionUsed, now); err != nil {
			return err
		}
		rec.Status = model.RedemptionUsed
		rec.UsedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if confirmErr != nil {
		return nil, confirmErr
	}
	return rec, nil
}

// Reverse undoes a redemption: rewards get a compensating credit for the
// original debit amount, coupons release their usage-counter slot. The
// original record is never deleted; its status flips to reversed.
// Idempotent: reversing an already-reversed record is a no-op success,
// never a duplicate credit.
func (s *RedemptionService) Reverse(ctx context.Context, redemptionID uuid.UUID, reason string) error {
	var change *TierChange
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rec, err := s.redemptions.GetForUpdate(ctx, tx, redemptionID)
		if err != nil {
			return err
		}
		if rec.Status == model.RedemptionReversed {
			return nil // idempotent: already reversed
		}

		if rec.ItemType == model.ItemReward {
			account, err := s.accounts.GetForUpdate(ctx, tx, rec.CustomerID)
			if err != nil {
				return err
			}
			ref := &model.Reference{ID: rec.ID.String(), Type: "redemption"}
			_, change, err = s.ledger.CreditLockedTx(ctx, tx, account, rec.PointsUsed, model.KindAdjusted,
				fmt.Sprintf("redemption reversed: %s", reason), ref, nil)
			if err != nil {
				return err
			}
		}

		if err := s.catalog.DecrementUsage(ctx, tx, rec.CatalogItemID); err != nil {
			return err
		}
		return s.redemptions.UpdateStatus(ctx, tx, rec.ID, model.RedemptionReversed, s.opts.Now().UTC())
	})
	if err != nil {
		return err
	}
	s.ledger.EmitTierChange(change)

	log.Info().
		Str("redemption_id", redemptionID.String()).
		Str("reason", reason).
		Msg("redemption reversed")
	return nil
}

// GetRedemption retrieves a redemption record by id.
// Returns ErrRedemptionNotFound if the record doesn't exist.
func (s *RedemptionService) GetRedemption(ctx context.Context, id uuid.UUID) (*model.RedemptionRecord, error) {
	rec, err := s.redemptions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	if rec == nil {
		return nil, ErrRedemptionNotFound
	}
	return rec, nil
}

// ListActive returns the customer's pending and used redemptions for the
// dashboard.
func (s *RedemptionService) ListActive(ctx context.Context, customerID uuid.UUID, limit int) ([]model.RedemptionRecord, error) {
	return s.redemptions.ListActiveByCustomer(ctx, customerID, limit)
}
