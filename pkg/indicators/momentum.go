package indicators

import "github.com/dyike/FinSight/models"

const (
	RSIPeriod     = 14
	RSIOverbought = 70.0
	MACDFast      = 12
	MACDSlow      = 26
	MACDSignal    = 9
)

// EWM is an exponentially weighted mean without bias adjustment, seeded
// with the first value: out[0] = v[0], out[i] = a*v[i] + (1-a)*out[i-1].
func EWM(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMA uses the span convention alpha = 2/(span+1).
func EMA(values []float64, span int) []float64 {
	return EWM(values, 2/(float64(span)+1))
}

// RSISeries computes Wilder's RSI for every observation. The first delta is
// undefined and contributes neither gain nor loss. Where the smoothed loss
// is zero the value saturates at 100.
func RSISeries(closes []float64, period int) []float64 {
	if len(closes) == 0 {
		return nil
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else if d < 0 {
			losses[i] = -d
		}
	}

	alpha := 1 / float64(period)
	avgGain := EWM(gains, alpha)
	avgLoss := EWM(losses, alpha)

	out := make([]float64, len(closes))
	for i := range out {
		out[i] = rsiValue(avgGain[i], avgLoss[i])
	}
	return out
}

// RSI returns the latest RSI value. An empty or single-row series yields 100.
func RSI(closes []float64, period int) float64 {
	s := RSISeries(closes, period)
	if len(s) == 0 {
		return 100
	}
	return s[len(s)-1]
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// Last returns the most recent line and signal values.
func (m MACDResult) Last() (line, signal float64) {
	if len(m.Line) == 0 {
		return 0, 0
	}
	return m.Line[len(m.Line)-1], m.Signal[len(m.Signal)-1]
}

func MACD(closes []float64) MACDResult {
	if len(closes) == 0 {
		return MACDResult{}
	}
	fast := EMA(closes, MACDFast)
	slow := EMA(closes, MACDSlow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	signal := EMA(line, MACDSignal)
	hist := make([]float64, len(line))
	for i := range line {
		hist[i] = line[i] - signal[i]
	}
	return MACDResult{Line: line, Signal: signal, Histogram: hist}
}

// TrendOf is Bullish only when the MACD line is strictly above its signal.
func TrendOf(line, signal float64) models.Trend {
	if line > signal {
		return models.TrendBullish
	}
	return models.TrendBearish
}
