package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitsForRisk_Table(t *testing.T) {
	tests := []struct {
		level   RiskLevel
		daily   int64
		monthly int64
	}{
		{RiskLow, 50_000, 250_000},
		{RiskMedium, 10_000, 50_000},
		{RiskHigh, 1_000, 5_000},
		{RiskRestricted, 0, 0},
	}

	for _, tt := range tests {
		limits := LimitsForRisk(tt.level)
		assert.Equal(t, tt.daily, limits.Daily, "daily limit for %s", tt.level)
		assert.Equal(t, tt.monthly, limits.Monthly, "monthly limit for %s", tt.level)
	}
}

func TestLimitsForRisk_UnknownLevelFailsSafe(t *testing.T) {
	limits := LimitsForRisk(RiskLevel(42))
	assert.Equal(t, int64(0), limits.Daily)
	assert.Equal(t, int64(0), limits.Monthly)
}

func TestParseRiskLevel_RoundTrip(t *testing.T) {
	for _, level := range []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskRestricted} {
		parsed, err := ParseRiskLevel(level.String())
		assert.NoError(t, err)
		assert.Equal(t, level, parsed)
	}
}

func TestParseRiskLevel_Invalid(t *testing.T) {
	_, err := ParseRiskLevel("catastrophic")
	assert.Error(t, err)
}

func TestRiskLevelOrdering(t *testing.T) {
	assert.True(t, RiskLow < RiskMedium)
	assert.True(t, RiskMedium < RiskHigh)
	assert.True(t, RiskHigh < RiskRestricted)
}
