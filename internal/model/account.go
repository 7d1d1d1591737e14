package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerAccount is the ledger's view of one loyalty member.
// PointsBalance is a cached sum of that customer's ledger entries and is
// mutated only by ledger operations, never by direct assignment.
type CustomerAccount struct {
	ID               uuid.UUID       `json:"id"`
	Email            string          `json:"email"`
	Tier             Tier            `json:"tier"`
	PointsBalance    int64           `json:"points_balance"`
	LifetimePoints   int64           `json:"lifetime_points"`
	NightsThisPeriod int             `json:"nights_this_period"`
	SpendThisPeriod  decimal.Decimal `json:"spend_this_period"`
	CreatedAt        time.Time       `json:"-"`
	UpdatedAt        time.Time       `json:"-"`
}
