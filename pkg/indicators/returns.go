package indicators

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const TradingDaysPerYear = 252

// DailyReturns returns simple returns; the first observation has none, so
// the result is one shorter than closes. A zero previous close yields 0.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			continue
		}
		out[i-1] = (closes[i] - prev) / prev
	}
	return out
}

// Drawdowns computes (cum - runningMax) / runningMax over the compounded
// return path. Every value is <= 0.
func Drawdowns(returns []float64) []float64 {
	if len(returns) == 0 {
		return nil
	}
	out := make([]float64, len(returns))
	cum, peak := 1.0, math.Inf(-1)
	for i, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if peak == 0 {
			continue
		}
		out[i] = (cum - peak) / peak
	}
	return out
}

// MaxDrawdown is the most negative drawdown over the window.
func MaxDrawdown(drawdowns []float64) float64 {
	worst := 0.0
	for _, d := range drawdowns {
		if d < worst {
			worst = d
		}
	}
	return worst
}

// CurrentDrawdown is the drawdown at the latest observation.
func CurrentDrawdown(drawdowns []float64) float64 {
	if len(drawdowns) == 0 {
		return 0
	}
	return drawdowns[len(drawdowns)-1]
}

// AnnualizedVolatility uses the sample standard deviation. Fewer than two
// returns give 0.
func AnnualizedVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := stat.StdDev(returns, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd * math.Sqrt(TradingDaysPerYear)
}

func AnnualizedReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return stat.Mean(returns, nil) * TradingDaysPerYear
}

// SharpeRatio is defined as 0 when volatility is 0.
func SharpeRatio(annualReturn, volatility, riskFreeRate float64) float64 {
	if volatility == 0 {
		return 0
	}
	return (annualReturn - riskFreeRate) / volatility
}
