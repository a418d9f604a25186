package indicators

import (
	"context"
	"math"

	"github.com/markcheno/go-talib"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/FinSight/models"
)

// Supplemental indicators shown alongside the core set. Each is nil when the
// series is too short.
type Supplemental struct {
	SMA50          *float64
	SMA200         *float64
	BollingerUpper *float64
	BollingerLower *float64
	ATR14          *float64
}

func ComputeSupplemental(series models.PriceSeries) Supplemental {
	closes := series.Closes()
	var out Supplemental

	if len(closes) >= 50 {
		out.SMA50 = last(talib.Sma(closes, 50))
	}
	if len(closes) >= 200 {
		out.SMA200 = last(talib.Sma(closes, 200))
	}
	if len(closes) >= 20 {
		upper, _, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
		out.BollingerUpper = last(upper)
		out.BollingerLower = last(lower)
	}
	if len(closes) > 14 {
		out.ATR14 = last(talib.Atr(series.Highs(), series.Lows(), closes, 14))
	}
	return out
}

func last(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Compute derives the technical indicator set from the close series. The
// independent calculations run concurrently over the read-only input and
// are joined before the result is assembled.
func Compute(ctx context.Context, series models.PriceSeries) (models.TechnicalIndicators, error) {
	if len(series) == 0 {
		return models.TechnicalIndicators{}, models.ErrEmptySeries
	}
	closes := series.Closes()

	var (
		rsi  float64
		macd MACDResult
		sup  Supplemental
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		rsi = RSI(closes, RSIPeriod)
		return nil
	})
	g.Go(func() error {
		macd = MACD(closes)
		return nil
	})
	g.Go(func() error {
		sup = ComputeSupplemental(series)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.TechnicalIndicators{}, err
	}

	line, signal := macd.Last()
	return models.TechnicalIndicators{
		CurrentPrice:   closes[len(closes)-1],
		RSI14:          rsi,
		MACDLine:       line,
		SignalLine:     signal,
		Histogram:      line - signal,
		Trend:          TrendOf(line, signal),
		SMA50:          sup.SMA50,
		SMA200:         sup.SMA200,
		BollingerUpper: sup.BollingerUpper,
		BollingerLower: sup.BollingerLower,
		ATR14:          sup.ATR14,
	}, nil
}
