package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/FinSight/models"
)

const (
	DefaultPeriod       = "1y"
	DefaultAnalysisType = "comprehensive"
)

var periods = map[string]time.Duration{
	"1mo": 30 * 24 * time.Hour,
	"3mo": 91 * 24 * time.Hour,
	"6mo": 182 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
	"2y":  2 * 365 * 24 * time.Hour,
	"5y":  5 * 365 * 24 * time.Hour,
}

// ParsePeriod maps a lookback label ("1mo", "3mo", "6mo", "1y", "2y", "5y")
// to a duration.
func ParsePeriod(period string) (time.Duration, error) {
	if period == "" {
		period = DefaultPeriod
	}
	d, ok := periods[strings.ToLower(period)]
	if !ok {
		return 0, fmt.Errorf("unsupported period %q", period)
	}
	return d, nil
}

// Overview is the short cross-agent digest of an analysis.
type Overview struct {
	CurrentPrice *float64         `json:"current_price"`
	PriceChange  *float64         `json:"price_change"`
	Sentiment    string           `json:"sentiment"`
	RiskLevel    models.RiskLevel `json:"risk_level"`
	Volatility   float64          `json:"volatility"`
}

type AgentResults struct {
	MarketData MarketReport    `json:"market_data"`
	Sentiment  SentimentReport `json:"sentiment"`
	Risk       RiskReport      `json:"risk"`
}

// Analysis is the orchestration result for one symbol.
type Analysis struct {
	Symbol         string       `json:"symbol"`
	Period         string       `json:"period"`
	AnalysisType   string       `json:"analysis_type"`
	AgentResults   AgentResults `json:"agent_results"`
	Overall        Overview     `json:"overall_analysis"`
	Recommendation string       `json:"recommendation"`
	Confidence     float64      `json:"confidence"`
	LLMSummary     string       `json:"llm_summary,omitempty"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type Health struct {
	Orchestrator AgentMetrics            `json:"orchestrator"`
	Agents       map[string]AgentMetrics `json:"agents"`
	LLMAvailable bool                    `json:"llm_available"`
}

// Orchestrator runs the market agent, then the sentiment and risk agents in
// parallel on its output, and combines the three into one Analysis.
type Orchestrator struct {
	market    *MarketAgent
	sentiment *SentimentAgent
	risk      *RiskAgent
	summary   *Summarizer
	tracker   *tracker
	logger    zerolog.Logger
	now       func() time.Time
}

// New wires the agents. summary may be nil, in which case no LLM summary is
// produced.
func New(market *MarketAgent, summary *Summarizer, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		market:    market,
		sentiment: NewSentimentAgent(logger),
		risk:      NewRiskAgent(logger),
		summary:   summary,
		tracker:   newTracker("Master Orchestrator", "orchestrator", logger),
		logger:    logger,
		now:       time.Now,
	}
}

func (o *Orchestrator) Analyze(ctx context.Context, symbol, period string) Analysis {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if period == "" {
		period = DefaultPeriod
	}
	a := Analysis{
		Symbol:         symbol,
		Period:         period,
		AnalysisType:   DefaultAnalysisType,
		Recommendation: "hold",
		CreatedAt:      o.now(),
	}

	outcome := o.tracker.run(func() error {
		return o.analyze(ctx, &a)
	})
	if !outcome.OK() {
		a.Error = outcome.Error
	}
	return a
}

func (o *Orchestrator) analyze(ctx context.Context, a *Analysis) error {
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	lookback, err := ParsePeriod(a.Period)
	if err != nil {
		return err
	}

	market := o.market.Run(ctx, a.Symbol, lookback)
	a.AgentResults.MarketData = market

	var g errgroup.Group
	g.Go(func() error {
		a.AgentResults.Sentiment = o.sentiment.Run(market.News)
		return nil
	})
	g.Go(func() error {
		a.AgentResults.Risk = o.risk.Run(market.Series)
		return nil
	})
	_ = g.Wait()

	res := a.AgentResults
	a.Overall = Overview{
		Sentiment:  res.Sentiment.OverallSentiment,
		RiskLevel:  res.Risk.RiskLevel,
		Volatility: res.Risk.Volatility,
	}
	if q := res.MarketData.PriceData; q != nil {
		price, change := q.CurrentPrice, q.ChangePercent
		a.Overall.CurrentPrice = &price
		a.Overall.PriceChange = &change
	}
	a.Recommendation = Recommend(res.Sentiment.OverallSentiment, res.Risk.RiskLevel)
	a.Confidence = Aggregate(confidenceInputs(res.MarketData, res.Sentiment, res.Risk))

	o.logger.Info().
		Str("symbol", a.Symbol).
		Str("recommendation", a.Recommendation).
		Float64("confidence", a.Confidence).
		Msg("orchestration complete")

	if o.summary.Available() {
		a.LLMSummary = o.summary.Summarize(ctx, a)
	}
	return ctx.Err()
}

func (o *Orchestrator) Health() Health {
	return Health{
		Orchestrator: o.tracker.metrics(),
		Agents: map[string]AgentMetrics{
			"market_data": o.market.tracker.metrics(),
			"sentiment":   o.sentiment.tracker.metrics(),
			"risk":        o.risk.tracker.metrics(),
		},
		LLMAvailable: o.summary.Available(),
	}
}

func (o *Orchestrator) ResetMetrics() {
	for _, t := range []*tracker{o.tracker, o.market.tracker, o.sentiment.tracker, o.risk.tracker} {
		t.reset()
	}
}
