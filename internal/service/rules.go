package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/model"
)

// RedemptionContext carries the per-attempt inputs the rules need. The
// engine loads PerUserUsed under the same row lock as the usage counter,
// so the validator itself never touches the store.
type RedemptionContext struct {
	Now         time.Time
	OrderAmount decimal.Decimal // coupons only
	PerUserUsed int
}

// ValidateRedemption runs the eligibility checks in their fixed order and
// returns the first violated rule as a RuleViolationError. The order
// determines user-facing error messages, so it must not change:
// active/window, tier, global usage, per-user usage, minimum spend.
func ValidateRedemption(account *model.CustomerAccount, item *model.CatalogItem, rctx RedemptionContext) error {
	if !item.IsActive {
		return &RuleViolationError{Reason: ReasonInactive}
	}
	if rctx.Now.Before(item.ValidFrom) {
		return &RuleViolationError{Reason: ReasonNotStarted}
	}
	if rctx.Now.After(item.ValidUntil) {
		return &RuleViolationError{Reason: ReasonExpired}
	}
	if !account.Tier.Meets(item.MinTier) {
		return &RuleViolationError{
			Reason: ReasonTier,
			Detail: fmt.Sprintf("requires %s tier", item.MinTier),
		}
	}
	if item.UsageLimit != nil && item.UsageCount >= *item.UsageLimit {
		return &RuleViolationError{Reason: ReasonUsageLimit}
	}
	if item.PerUserLimit != nil && rctx.PerUserUsed >= *item.PerUserLimit {
		return &RuleViolationError{Reason: ReasonPerUserLimit}
	}
	if item.ItemType == model.ItemCoupon && rctx.OrderAmount.LessThan(item.MinSpend) {
		return &RuleViolationError{
			Reason: ReasonMinSpend,
			Detail: fmt.Sprintf("minimum order amount is %s", item.MinSpend.StringFixed(2)),
		}
	}
	return nil
}
