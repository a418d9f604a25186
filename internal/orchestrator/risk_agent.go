package orchestrator

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/models"
	"github.com/dyike/FinSight/pkg/indicators"
	"github.com/dyike/FinSight/pkg/risk"
)

// RiskReport is a volatility-only risk estimate for the orchestration view.
type RiskReport struct {
	Volatility          float64          `json:"volatility"`
	RiskLevel           models.RiskLevel `json:"risk_level"`
	VaR95               float64          `json:"var_95"`
	MaxDrawdownEstimate float64          `json:"max_drawdown_estimate"`
	Confidence          float64          `json:"confidence"`
	Outcome
}

type RiskAgent struct {
	tracker *tracker
}

func NewRiskAgent(logger zerolog.Logger) *RiskAgent {
	return &RiskAgent{tracker: newTracker("Risk Agent", "risk", logger)}
}

func (a *RiskAgent) Run(series models.PriceSeries) RiskReport {
	var report RiskReport
	outcome := a.tracker.run(func() error {
		report = assessVolatility(series)
		return nil
	})
	report.Outcome = outcome
	return report
}

func assessVolatility(series models.PriceSeries) RiskReport {
	if len(series) == 0 {
		return RiskReport{RiskLevel: models.RiskUnknown}
	}
	vol := indicators.AnnualizedVolatility(indicators.DailyReturns(series.Closes()))
	return RiskReport{
		Volatility:          vol,
		RiskLevel:           VolatilityLevel(vol),
		VaR95:               risk.ParametricVaR(vol),
		MaxDrawdownEstimate: -math.Abs(vol * 2),
		Confidence:          0.7,
	}
}

// VolatilityLevel buckets annualised volatility: above 0.40 is High, above
// 0.25 Medium, otherwise Low.
func VolatilityLevel(vol float64) models.RiskLevel {
	switch {
	case vol > 0.40:
		return models.RiskHigh
	case vol > 0.25:
		return models.RiskMedium
	}
	return models.RiskLow
}
