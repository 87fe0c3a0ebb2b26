package models

// RiskLevel is an ordered classification governing transaction ceilings.
// Levels only move upward automatically; downgrades require an explicit
// administrative re-assessment.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskRestricted
)

var riskLevelNames = map[RiskLevel]string{
	RiskLow:        "low",
	RiskMedium:     "medium",
	RiskHigh:       "high",
	RiskRestricted: "restricted",
}

func (r RiskLevel) String() string {
	if name, ok := riskLevelNames[r]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether r is a defined risk level.
func (r RiskLevel) Valid() bool {
	_, ok := riskLevelNames[r]
	return ok
}

// ParseRiskLevel converts a stored level name back to a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for level, name := range riskLevelNames {
		if name == s {
			return level, nil
		}
	}
	return RiskLow, ErrBadRequest
}

// TransactionLimits holds the daily and monthly ceilings for a risk level.
type TransactionLimits struct {
	Daily   int64
	Monthly int64
}

// riskLimitTable is the single source of truth mapping risk levels to
// transaction limits. Risk level and limits must never be updated
// independently of each other.
var riskLimitTable = map[RiskLevel]TransactionLimits{
	RiskLow:        {Daily: 50_000, Monthly: 250_000},
	RiskMedium:     {Daily: 10_000, Monthly: 50_000},
	RiskHigh:       {Daily: 1_000, Monthly: 5_000},
	RiskRestricted: {Daily: 0, Monthly: 0},
}

// LimitsForRisk returns the transaction limits for a risk level.
func LimitsForRisk(level RiskLevel) TransactionLimits {
	limits, ok := riskLimitTable[level]
	if !ok {
		// Unknown levels fail safe to the most restrictive tier.
		return riskLimitTable[RiskRestricted]
	}
	return limits
}
