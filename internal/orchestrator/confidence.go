package orchestrator

import (
	"math"

	"github.com/dyike/FinSight/models"
)

const (
	confidenceBaseline = 0.4

	weightMarket    = 0.4
	weightSentiment = 0.35
	weightRisk      = 0.25
)

// ConfidenceInputs are the agent signals the aggregate confidence is built from.
type ConfidenceInputs struct {
	MarketOK       bool
	HasPrice       bool
	ChangePercent  float64
	HasCompanyName bool

	SentimentOK      bool
	Positive         int
	Negative         int
	ArticlesAnalyzed int

	RiskOK    bool
	RiskLevel models.RiskLevel
}

// Aggregate combines the market, sentiment and risk scores into a confidence
// in [0.4, 1], rounded to 2 decimals. A failed agent contributes 0.
func Aggregate(in ConfidenceInputs) float64 {
	weighted := weightMarket*marketScore(in) +
		weightSentiment*sentimentScore(in) +
		weightRisk*riskScore(in)

	conf := confidenceBaseline + weighted*(1-confidenceBaseline)
	conf = math.Min(math.Max(conf, confidenceBaseline), 1)
	return models.Round(conf, 2)
}

func marketScore(in ConfidenceInputs) float64 {
	if !in.MarketOK {
		return 0
	}
	var score float64
	if in.HasPrice {
		score += 0.3
	}
	score += math.Min(math.Abs(in.ChangePercent)/10, 0.2)
	if in.HasCompanyName {
		score += 0.2
	}
	return math.Min(score, 1)
}

func sentimentScore(in ConfidenceInputs) float64 {
	if !in.SentimentOK {
		return 0
	}
	total := in.ArticlesAnalyzed
	if total < 1 {
		total = 1
	}
	raw := float64(in.Positive-in.Negative) / float64(total)
	return (raw + 1) / 2
}

func riskScore(in ConfidenceInputs) float64 {
	if !in.RiskOK {
		return 0
	}
	switch in.RiskLevel {
	case models.RiskLow:
		return 1
	case models.RiskHigh:
		return 0.3
	}
	return 0.6
}

// Recommend is the orchestration rule: positive sentiment at Low risk buys,
// negative sentiment or High risk sells, anything else holds.
func Recommend(sentiment string, level models.RiskLevel) string {
	switch {
	case sentiment == SentimentPositive && level == models.RiskLow:
		return "buy"
	case sentiment == SentimentNegative || level == models.RiskHigh:
		return "sell"
	}
	return "hold"
}

func confidenceInputs(m MarketReport, s SentimentReport, r RiskReport) ConfidenceInputs {
	in := ConfidenceInputs{
		MarketOK:         m.OK(),
		HasPrice:         m.PriceData != nil,
		HasCompanyName:   m.CompanyInfo.Name != "",
		SentimentOK:      s.OK(),
		Positive:         s.Distribution.Positive,
		Negative:         s.Distribution.Negative,
		ArticlesAnalyzed: s.ArticlesAnalyzed,
		RiskOK:           r.OK(),
		RiskLevel:        r.RiskLevel,
	}
	if m.PriceData != nil {
		in.ChangePercent = m.PriceData.ChangePercent
	}
	return in
}
