package risk

import "github.com/dyike/FinSight/models"

const (
	HighVolatility       = 0.35
	ExtremeDrawdown      = -0.30
	LowVolatility        = 0.20
	LowSharpe            = 0.7
	ModerateVolatility   = 0.25
	DefaultRiskFreeRate  = 0.04
	DefaultVaRConfidence = 0.95
	parametricZScore95   = 1.65
)

// Classify applies the ordered rules; the first match wins.
//
// The Extreme rule sits behind the volatility check and is evaluated only
// for volatility below 0.35. Keep the order as is.
func Classify(volatility, currentDrawdown, sharpe float64) models.RiskLevel {
	switch {
	case volatility >= HighVolatility:
		return models.RiskHigh
	case currentDrawdown < ExtremeDrawdown:
		return models.RiskExtreme
	case volatility < LowVolatility && sharpe >= LowSharpe:
		return models.RiskLow
	case volatility < ModerateVolatility:
		return models.RiskMedium
	default:
		return models.RiskMedium
	}
}
