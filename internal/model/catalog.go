package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemType distinguishes the two redemption flavors. Coupons produce a
// discount against an external order total and never touch the point
// balance; rewards are bought with points through a ledger debit.
type ItemType string

const (
	ItemCoupon ItemType = "coupon"
	ItemReward ItemType = "reward"
)

// DiscountType selects the coupon discount formula.
type DiscountType string

const (
	DiscountFixed      DiscountType = "fixed"
	DiscountPercentage DiscountType = "percentage"
)

// CatalogItem is a coupon or reward definition. Items are created by the
// administrative surface and are read-only to the redemption engine.
type CatalogItem struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	ItemType     ItemType        `json:"item_type"`
	DiscountType DiscountType    `json:"discount_type,omitempty"` // coupons only
	Value        decimal.Decimal `json:"value"`                   // fixed amount or percentage (0-100)
	MaxDiscount  decimal.Decimal `json:"max_discount"`            // percentage coupons only
	PointCost    int64           `json:"point_cost"`              // rewards only
	MinTier      Tier            `json:"min_tier"`
	MinSpend     decimal.Decimal `json:"min_spend"` // coupons only, against order amount
	UsageLimit   *int            `json:"usage_limit"`    // nil = unlimited
	PerUserLimit *int            `json:"per_user_limit"` // nil = unlimited
	UsageCount   int             `json:"usage_count"`
	ValidFrom    time.Time       `json:"valid_from"`
	ValidUntil   time.Time       `json:"valid_until"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"-"`
}

// Discount computes the discount a coupon grants against an order amount.
// Fixed coupons are capped by the order amount; percentage coupons are
// capped by MaxDiscount when one is set.
func (i *CatalogItem) Discount(orderAmount decimal.Decimal) decimal.Decimal {
	switch i.DiscountType {
	case DiscountFixed:
		return decimal.Min(i.Value, orderAmount)
	case DiscountPercentage:
		d := orderAmount.Mul(i.Value).Div(decimal.NewFromInt(100))
		if i.MaxDiscount.IsPositive() {
			d = decimal.Min(d, i.MaxDiscount)
		}
		return d.Round(2)
	default:
		return decimal.Zero
	}
}
