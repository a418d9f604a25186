package risk

import (
	"github.com/dyike/FinSight/models"
	"github.com/dyike/FinSight/pkg/indicators"
)

type Params struct {
	RiskFreeRate  float64
	VaRConfidence float64
}

func DefaultParams() Params {
	return Params{RiskFreeRate: DefaultRiskFreeRate, VaRConfidence: DefaultVaRConfidence}
}

// Assess computes the risk metrics over the full close series and the
// classified level.
func Assess(series models.PriceSeries, p Params) (models.RiskMetrics, models.RiskLevel) {
	returns := indicators.DailyReturns(series.Closes())
	drawdowns := indicators.Drawdowns(returns)

	vol := indicators.AnnualizedVolatility(returns)
	annual := indicators.AnnualizedReturn(returns)

	m := models.RiskMetrics{
		MaxDrawdown:     indicators.MaxDrawdown(drawdowns),
		CurrentDrawdown: indicators.CurrentDrawdown(drawdowns),
		Volatility:      vol,
		SharpeRatio:     indicators.SharpeRatio(annual, vol, p.RiskFreeRate),
		AnnualReturn:    annual,
		HistoricalVaR:   HistoricalVaR(returns, p.VaRConfidence),
		ParametricVaR:   ParametricVaR(vol),
	}
	return m, Classify(m.Volatility, m.CurrentDrawdown, m.SharpeRatio)
}
