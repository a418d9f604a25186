package risk

import (
	"math"
	"sort"

	"github.com/dyike/FinSight/pkg/indicators"
)

// HistoricalVaR is the (1-confidence) empirical quantile of daily returns,
// reported as a return (negative for a loss). The quantile interpolates
// linearly between order statistics at rank (n-1)*q, the same rule as
// numpy's default percentile.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = DefaultVaRConfidence
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	return linearQuantile(sorted, 1-confidence)
}

// linearQuantile expects sorted input and q in [0, 1].
func linearQuantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	a, b := sorted[lo], sorted[lo+1]
	frac := h - float64(lo)
	// interpolate from the nearer end to keep the result within [a, b]
	if frac >= 0.5 {
		return b - (b-a)*(1-frac)
	}
	return a + (b-a)*frac
}

// ParametricVaR is the one-day 95% normal VaR implied by annualised volatility.
func ParametricVaR(volatility float64) float64 {
	return -parametricZScore95 * volatility / math.Sqrt(indicators.TradingDaysPerYear)
}
