package model

import "github.com/shopspring/decimal"

// RegisterCustomerRequest is the DTO for creating a loyalty account.
type RegisterCustomerRequest struct {
	Email string `json:"email" validate:"required,notblank,email,max=255"`
}

// StayCompletedRequest is the inbound DTO from the booking/PMS side.
// Points are earned from the amount spent; nights feed the tier stats.
type StayCompletedRequest struct {
	AmountSpent decimal.Decimal `json:"amount_spent" validate:"required"`
	Nights      int             `json:"nights" validate:"gte=1,lte=365"`
	BookingID   string          `json:"booking_id" validate:"required,notblank,max=255"`
}

// RedeemRewardRequest is the DTO for point-cost reward redemption.
type RedeemRewardRequest struct {
	CustomerID string `json:"customer_id" validate:"required,uuid4"`
	RewardID   string `json:"reward_id" validate:"required,uuid4"`
}

// RedeemCouponRequest is the DTO for coupon redemption against an order.
type RedeemCouponRequest struct {
	CustomerID  string          `json:"customer_id" validate:"required,uuid4"`
	Code        string          `json:"code" validate:"required,notblank,max=255"`
	OrderAmount decimal.Decimal `json:"order_amount" validate:"required"`
}

// ReverseRedemptionRequest is the DTO for undoing a redemption.
type ReverseRedemptionRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

// CreateCatalogItemRequest is the administrative DTO for defining a
// coupon or reward.
type CreateCatalogItemRequest struct {
	Code         string          `json:"code" validate:"required,notblank,max=255"`
	Name         string          `json:"name" validate:"required,notblank,max=255"`
	ItemType     string          `json:"item_type" validate:"required,oneof=coupon reward"`
	DiscountType string          `json:"discount_type" validate:"omitempty,oneof=fixed percentage"`
	Value        decimal.Decimal `json:"value"`
	MaxDiscount  decimal.Decimal `json:"max_discount"`
	PointCost    int64           `json:"point_cost" validate:"gte=0"`
	MinTier      string          `json:"min_tier" validate:"omitempty,oneof=bronze silver gold platinum"`
	MinSpend     decimal.Decimal `json:"min_spend"`
	UsageLimit   *int            `json:"usage_limit" validate:"omitempty,gte=1"`
	PerUserLimit *int            `json:"per_user_limit" validate:"omitempty,gte=1"`
	ValidFrom    string          `json:"valid_from" validate:"required"` // RFC 3339
	ValidUntil   string          `json:"valid_until" validate:"required"`
}

// DashboardResponse is the API response for the customer dashboard.
type DashboardResponse struct {
	Account          *CustomerAccount   `json:"account"`
	NextTier         Tier               `json:"next_tier,omitempty"`
	PointsToNextTier int64              `json:"points_to_next_tier,omitempty"`
	RecentEntries    []LedgerEntry      `json:"recent_entries"`
	ActiveRewards    []RedemptionRecord `json:"active_redemptions"`
}

// HistoryResponse is the paginated ledger history response.
type HistoryResponse struct {
	Entries []LedgerEntry `json:"entries"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
}
