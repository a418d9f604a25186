package synthesis

import (
	"fmt"
	"math"
	"strings"

	"github.com/dyike/FinSight/models"
)

const (
	neutralRSI        = 50.0
	overboughtRSI     = 70.0
	maxReasonablePE   = 30.0
	positiveSharpe    = 0.5
	severeDrawdown    = -0.15
	maxKeyDrivers     = 5
	unknownTrendLabel = "Unknown"
)

// Inputs are the metrics the decision framework reads.
type Inputs struct {
	Trend           models.Trend
	RSI             float64
	PERatio         *float64
	SharpeRatio     float64
	Volatility      float64
	CurrentDrawdown float64
	RiskLevel       models.RiskLevel
}

// InputsFromState extracts unrounded metrics. A missing or non-numeric RSI
// becomes the neutral 50.
func InputsFromState(s models.State) Inputs {
	in := Inputs{RSI: neutralRSI, RiskLevel: s.RiskLevel}
	if t := s.Technicals; t != nil {
		in.Trend = t.Trend
		if !math.IsNaN(t.RSI14) && !math.IsInf(t.RSI14, 0) {
			in.RSI = t.RSI14
		}
	}
	if f := s.Fundamentals; f != nil && f.PERatio != nil && !math.IsNaN(*f.PERatio) {
		pe := *f.PERatio
		in.PERatio = &pe
	}
	if r := s.Risk; r != nil {
		in.SharpeRatio = r.SharpeRatio
		in.Volatility = r.Volatility
		in.CurrentDrawdown = r.CurrentDrawdown
	}
	return in
}

func (in Inputs) peReasonable() bool {
	return in.PERatio == nil || *in.PERatio < maxReasonablePE
}

// Decide maps the inputs to a recommendation. It is a pure function.
func Decide(in Inputs) models.Recommendation {
	bullish := in.Trend == models.TrendBullish
	rsiOK := in.RSI < overboughtRSI
	sharpePositive := in.SharpeRatio >= positiveSharpe
	drawdownSevere := in.CurrentDrawdown < severeDrawdown

	switch {
	case bullish && rsiOK && (in.peReasonable() || sharpePositive):
		return models.RecommendationBuy
	case !bullish && (!in.peReasonable() || drawdownSevere):
		return models.RecommendationSell
	default:
		return models.RecommendationHold
	}
}

func trendLabel(t models.Trend) string {
	if t == "" {
		return unknownTrendLabel
	}
	return string(t)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// Reasoning builds the justification text from the same inputs Decide reads.
func Reasoning(in Inputs) string {
	parts := []string{
		fmt.Sprintf("Technical analysis shows a %s trend with RSI at %.2f.", strings.ToLower(trendLabel(in.Trend)), in.RSI),
	}
	if in.PERatio != nil {
		verdict := "reasonable"
		if !in.peReasonable() {
			verdict = "elevated"
		}
		parts = append(parts, fmt.Sprintf("P/E ratio of %.2f indicates %s valuation.", *in.PERatio, verdict))
	} else {
		parts = append(parts, "Valuation metrics are not available.")
	}
	parts = append(parts,
		fmt.Sprintf("Volatility is %s with a Sharpe ratio of %.2f.", pct(in.Volatility), in.SharpeRatio),
		fmt.Sprintf("Current drawdown is %s.", pct(in.CurrentDrawdown)),
	)
	return strings.Join(parts, " ")
}

// KeyDrivers lists trend, RSI, P/E (when known), Sharpe, volatility and
// current drawdown, capped at five entries.
func KeyDrivers(in Inputs) []string {
	drivers := []string{
		"Trend signal: " + trendLabel(in.Trend),
		fmt.Sprintf("RSI (14): %.2f", in.RSI),
	}
	if in.PERatio != nil {
		drivers = append(drivers, fmt.Sprintf("P/E ratio: %.2f", *in.PERatio))
	}
	drivers = append(drivers,
		fmt.Sprintf("Sharpe ratio: %.2f", in.SharpeRatio),
		"Volatility: "+pct(in.Volatility),
		"Current drawdown: "+pct(in.CurrentDrawdown),
	)
	if len(drivers) > maxKeyDrivers {
		drivers = drivers[:maxKeyDrivers]
	}
	return drivers
}

// FormatReport renders the fixed-layout report text.
func FormatReport(rec models.Recommendation, level models.RiskLevel, reasoning string, drivers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Recommendation:** %s\n", rec)
	fmt.Fprintf(&b, "**Risk Level:** %s\n\n", level)
	fmt.Fprintf(&b, "**Reasoning:**\n%s\n\n", reasoning)
	b.WriteString("**Key Drivers:**\n- ")
	b.WriteString(strings.Join(drivers, "\n- "))
	return b.String()
}

// Report is the synthesis output shared by every strategy.
type Report struct {
	Recommendation models.Recommendation `json:"recommendation"`
	RiskLevel      models.RiskLevel      `json:"risk_level"`
	Reasoning      string                `json:"reasoning"`
	KeyDrivers     []string              `json:"key_drivers"`
	FinalReport    string                `json:"final_report"`
	UsedModelPath  bool                  `json:"used_model_path"`
}

// Apply returns a copy of s carrying the report fields.
func (r Report) Apply(s models.State) models.State {
	next := s.Clone()
	next.Recommendation = r.Recommendation
	next.RiskLevel = r.RiskLevel
	next.Reasoning = r.Reasoning
	next.KeyDrivers = append([]string(nil), r.KeyDrivers...)
	next.FinalReport = r.FinalReport
	next.UsedModelPath = r.UsedModelPath
	return next
}

// ErrorReport is emitted when an earlier stage failed.
func ErrorReport(identifier, errMsg string) Report {
	return Report{
		Recommendation: models.RecommendationError,
		RiskLevel:      models.RiskUnknown,
		Reasoning:      "Analysis could not be completed: " + errMsg,
		KeyDrivers:     []string{errMsg},
		FinalReport: fmt.Sprintf("**Error:** %s\n\nAnalysis could not be completed for ticker '%s'. "+
			"Please verify the ticker symbol is correct and try again.", errMsg, identifier),
	}
}
