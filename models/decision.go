package models

import (
	"math"
	"strings"
)

type Trend string

const (
	TrendBullish Trend = "Bullish"
	TrendBearish Trend = "Bearish"
)

type Recommendation string

const (
	RecommendationBuy   Recommendation = "BUY"
	RecommendationSell  Recommendation = "SELL"
	RecommendationHold  Recommendation = "HOLD"
	RecommendationError Recommendation = "ERROR"
)

// ParseRecommendation accepts the three actionable values, case-insensitively.
func ParseRecommendation(s string) (Recommendation, bool) {
	switch Recommendation(strings.ToUpper(strings.TrimSpace(s))) {
	case RecommendationBuy:
		return RecommendationBuy, true
	case RecommendationSell:
		return RecommendationSell, true
	case RecommendationHold:
		return RecommendationHold, true
	}
	return "", false
}

type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskExtreme RiskLevel = "Extreme"
	RiskUnknown RiskLevel = "Unknown"
)

func ParseRiskLevel(s string) (RiskLevel, bool) {
	for _, lvl := range []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskExtreme} {
		if strings.EqualFold(strings.TrimSpace(s), string(lvl)) {
			return lvl, true
		}
	}
	return RiskUnknown, false
}

// NotAvailable marks a fundamental the company-info source did not provide.
const NotAvailable = "N/A"

// Fundamentals holds company-level metrics. Nil pointers mean "not available".
type Fundamentals struct {
	Name      string   `json:"name,omitempty"`
	Sector    string   `json:"sector,omitempty"`
	MarketCap *float64 `json:"market_cap,omitempty"`
	PERatio   *float64 `json:"pe_ratio,omitempty"`
	ForwardPE *float64 `json:"forward_pe,omitempty"`
}

// Map renders the display mapping, passing through the N/A sentinel.
func (f Fundamentals) Map() map[string]any {
	sector := f.Sector
	if sector == "" {
		sector = "Unknown"
	}
	return map[string]any{
		"market_cap": optional(f.MarketCap, -1),
		"pe_ratio":   optional(f.PERatio, 2),
		"forward_pe": optional(f.ForwardPE, 2),
		"sector":     sector,
	}
}

type TechnicalIndicators struct {
	CurrentPrice float64 `json:"current_price"`
	RSI14        float64 `json:"rsi_14"`
	MACDLine     float64 `json:"macd_line"`
	SignalLine   float64 `json:"signal_line"`
	Histogram    float64 `json:"macd_histogram"`
	Trend        Trend   `json:"trend"`

	SMA50          *float64 `json:"sma_50,omitempty"`
	SMA200         *float64 `json:"sma_200,omitempty"`
	BollingerUpper *float64 `json:"bollinger_upper,omitempty"`
	BollingerLower *float64 `json:"bollinger_lower,omitempty"`
	ATR14          *float64 `json:"atr_14,omitempty"`
}

// Map rounds every value to 2 decimals. The struct itself keeps full precision.
func (t TechnicalIndicators) Map() map[string]any {
	m := map[string]any{
		"current_price":  Round(t.CurrentPrice, 2),
		"rsi_14":         Round(t.RSI14, 2),
		"macd_line":      Round(t.MACDLine, 2),
		"signal_line":    Round(t.SignalLine, 2),
		"macd_histogram": Round(t.Histogram, 2),
		"trend":          string(t.Trend),
	}
	for key, v := range map[string]*float64{
		"sma_50":          t.SMA50,
		"sma_200":         t.SMA200,
		"bollinger_upper": t.BollingerUpper,
		"bollinger_lower": t.BollingerLower,
		"atr_14":          t.ATR14,
	} {
		if v != nil {
			m[key] = Round(*v, 2)
		}
	}
	return m
}

type RiskMetrics struct {
	MaxDrawdown     float64 `json:"max_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`
	Volatility      float64 `json:"volatility"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	AnnualReturn    float64 `json:"annual_return"`
	HistoricalVaR   float64 `json:"var_95"`
	ParametricVaR   float64 `json:"parametric_var"`
}

func (r RiskMetrics) Map() map[string]any {
	return map[string]any{
		"max_drawdown":     Round(r.MaxDrawdown, 4),
		"current_drawdown": Round(r.CurrentDrawdown, 4),
		"volatility":       Round(r.Volatility, 4),
		"sharpe_ratio":     Round(r.SharpeRatio, 2),
		"annual_return":    Round(r.AnnualReturn, 4),
		"var_95":           Round(r.HistoricalVaR, 4),
		"parametric_var":   Round(r.ParametricVaR, 4),
	}
}

// Round rounds half away from zero. NaN and Inf pass through.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func optional(v *float64, places int) any {
	if v == nil {
		return NotAvailable
	}
	if places < 0 {
		return *v
	}
	return Round(*v, places)
}

func Float(v float64) *float64 { return &v }
