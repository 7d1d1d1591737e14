package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/model"
)

// ComputeTier selects the highest tier whose thresholds are all satisfied
// by the customer's lifetime stats. Ties break toward the higher MinPoints.
// Pure function: no side effects, no store access.
//
// Tier downgrades are intentionally not computed here; the program only
// upgrades on threshold. A downgrade-at-renewal policy is left to the
// adopting team (see DESIGN.md).
func ComputeTier(lifetimePoints int64, nights int, spend decimal.Decimal, table []model.TierLevel) model.Tier {
	best := model.TierBronze
	bestMin := int64(-1)
	for _, level := range table {
		if lifetimePoints < level.MinPoints {
			continue
		}
		if nights < level.MinNights {
			continue
		}
		if spend.LessThan(level.MinSpend) {
			continue
		}
		if level.MinPoints > bestMin {
			best = level.Tier
			bestMin = level.MinPoints
		}
	}
	return best
}

// NextTierTarget returns the cheapest not-yet-reached level by MinPoints
// and how many lifetime points remain to reach it. ok is false when the
// customer already sits at the top of the table.
func NextTierTarget(lifetimePoints int64, table []model.TierLevel) (model.Tier, int64, bool) {
	sorted := make([]model.TierLevel, len(table))
	copy(sorted, table)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinPoints < sorted[j].MinPoints })

	for _, level := range sorted {
		if level.MinPoints > lifetimePoints {
			return level.Tier, level.MinPoints - lifetimePoints, true
		}
	}
	return "", 0, false
}

// Multiplier returns the point multiplier for a tier, defaulting to 1
// when the tier has no row in the table.
func Multiplier(tier model.Tier, table []model.TierLevel) decimal.Decimal {
	for _, level := range table {
		if level.Tier == tier {
			return level.PointMultiplier
		}
	}
	return decimal.NewFromInt(1)
}
