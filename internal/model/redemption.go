package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedemptionStatus is the lifecycle state of a redemption record.
// Transitions are status-only and bounded: pending -> used -> reversed,
// or pending -> expired. Point and money fields never change.
type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionUsed     RedemptionStatus = "used"
	RedemptionReversed RedemptionStatus = "reversed"
	RedemptionExpired  RedemptionStatus = "expired"
)

// RedemptionRecord is the permanent audit record of one redemption.
// Created exactly once per successful redemption; a reversal flips the
// status and posts a compensating ledger entry, it never deletes this row.
type RedemptionRecord struct {
	ID             uuid.UUID        `json:"id"`
	CustomerID     uuid.UUID        `json:"customer_id"`
	CatalogItemID  uuid.UUID        `json:"catalog_item_id"`
	ItemType       ItemType         `json:"item_type"`
	PointsUsed     int64            `json:"points_used"`     // rewards only
	DiscountAmount decimal.Decimal  `json:"discount_amount"` // coupons only
	Status         RedemptionStatus `json:"status"`
	RedemptionCode string           `json:"redemption_code"`
	CreatedAt      time.Time        `json:"created_at"`
	UsedAt         *time.Time       `json:"used_at,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	ReversedAt     *time.Time       `json:"reversed_at,omitempty"`
}
