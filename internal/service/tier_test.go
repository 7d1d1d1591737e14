package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelhub/loyalty-engine/internal/model"
)

func TestComputeTier_PointBoundaries(t *testing.T) {
	table := testTierTable()

	tests := []struct {
		name           string
		lifetimePoints int64
		want           model.Tier
	}{
		{"zero points", 0, model.TierBronze},
		{"one below silver", 9999, model.TierBronze},
		{"exactly silver", 10000, model.TierSilver},
		{"one below gold", 29999, model.TierSilver},
		{"exactly gold", 30000, model.TierGold},
		{"exactly platinum", 75000, model.TierPlatinum},
		{"far past platinum", 1000000, model.TierPlatinum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTier(tt.lifetimePoints, 0, decimal.Zero, table)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeTier_AllThresholdsRequired(t *testing.T) {
	table := []model.TierLevel{
		{Tier: model.TierBronze, MinPoints: 0, PointMultiplier: decimal.NewFromInt(1)},
		{Tier: model.TierSilver, MinPoints: 10000, MinNights: 10, MinSpend: decimal.NewFromInt(1000), PointMultiplier: decimal.NewFromFloat(1.1)},
	}

	// Points alone are not enough.
	assert.Equal(t, model.TierBronze, ComputeTier(20000, 5, decimal.NewFromInt(2000), table))
	// Spend alone is not enough.
	assert.Equal(t, model.TierBronze, ComputeTier(20000, 12, decimal.NewFromInt(500), table))
	// All three satisfied.
	assert.Equal(t, model.TierSilver, ComputeTier(20000, 12, decimal.NewFromInt(2000), table))
}

func TestComputeTier_EmptyTable(t *testing.T) {
	assert.Equal(t, model.TierBronze, ComputeTier(50000, 10, decimal.NewFromInt(5000), nil))
}

func TestNextTierTarget(t *testing.T) {
	table := testTierTable()

	tier, remaining, ok := NextTierTarget(2500, table)
	require.True(t, ok)
	assert.Equal(t, model.TierSilver, tier)
	assert.Equal(t, int64(7500), remaining)

	tier, remaining, ok = NextTierTarget(30000, table)
	require.True(t, ok)
	assert.Equal(t, model.TierPlatinum, tier)
	assert.Equal(t, int64(45000), remaining)

	_, _, ok = NextTierTarget(80000, table)
	assert.False(t, ok, "platinum members have no next target")
}

func TestMultiplier(t *testing.T) {
	table := testTierTable()

	assert.True(t, Multiplier(model.TierGold, table).Equal(decimal.NewFromFloat(1.25)))
	assert.True(t, Multiplier(model.TierBronze, nil).Equal(decimal.NewFromInt(1)), "missing rows default to 1x")
}
