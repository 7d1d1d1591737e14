package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is a loyalty status level. Tiers form a strict total order;
// comparisons must go through Meets, never through string comparison.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// tierRank gives each tier its position in the total order.
var tierRank = map[Tier]int{
	TierBronze:   0,
	TierSilver:   1,
	TierGold:     2,
	TierPlatinum: 3,
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Meets reports whether t satisfies a minimum tier requirement.
func (t Tier) Meets(min Tier) bool {
	return tierRank[t] >= tierRank[min]
}

// ParseTier converts a string into a Tier, case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// TierLevel is one row of the tier threshold table. A customer qualifies
// for a level when all three thresholds are satisfied.
type TierLevel struct {
	Tier            Tier
	MinPoints       int64
	MinNights       int
	MinSpend        decimal.Decimal
	PointMultiplier decimal.Decimal
	Benefits        []string
}
