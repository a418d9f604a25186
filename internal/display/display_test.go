package display

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinSight/internal/orchestrator"
	"github.com/dyike/FinSight/models"
)

func sampleResult() models.Result {
	s := models.NewState("AAPL")
	s.PriceSeries = models.PriceSeries{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 10},
		{Date: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), Close: 12},
	}
	s.StartDate, s.EndDate = s.PriceSeries.Bounds()
	s.Technicals = &models.TechnicalIndicators{CurrentPrice: 12, RSI14: 55.5, Trend: models.TrendBullish}
	s.Recommendation = models.RecommendationBuy
	s.RiskLevel = models.RiskLow
	s.KeyDrivers = []string{"Bullish trend"}
	s.Reasoning = "Momentum is positive."
	return models.ResultFromState("run-1", s, time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC))
}

func TestRenderResult(t *testing.T) {
	out := RenderResult(sampleResult())
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "2024-01-02 to 2024-06-03")
	assert.Contains(t, out, "rsi_14")
	assert.Contains(t, out, "55.5")
	assert.Contains(t, out, "Bullish trend")
	assert.Contains(t, out, "deterministic")
}

func TestRenderFailedResult(t *testing.T) {
	s := models.NewState("NOPE").Fail("no price data for NOPE")
	s.Recommendation = models.RecommendationError
	r := models.ResultFromState("run-2", s, time.Now())

	out := RenderResult(r)
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "no price data for NOPE")
	assert.NotContains(t, out, "Technicals")
}

func TestRenderBatchSummary(t *testing.T) {
	failed := models.ResultFromState("run-3", models.NewState("BAD").Fail("x"), time.Now())
	out := RenderBatchSummary([]models.Result{sampleResult(), failed})
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "BAD")
	assert.Contains(t, out, "1/2 succeeded")
}

func TestRenderAnalysis(t *testing.T) {
	price := 101.5
	change := 1.25
	a := orchestrator.Analysis{
		Symbol:         "MSFT",
		Period:         "1y",
		Recommendation: "hold",
		Confidence:     0.73,
		Overall: orchestrator.Overview{
			CurrentPrice: &price,
			PriceChange:  &change,
			Sentiment:    "neutral",
			RiskLevel:    models.RiskMedium,
			Volatility:   0.3,
		},
		LLMSummary: "Shares look fairly valued.",
	}
	a.AgentResults.MarketData.Outcome = orchestrator.Outcome{AgentName: "Market Data Agent", Status: orchestrator.StatusSuccess, ExecutionTime: 0.5}
	a.AgentResults.MarketData.News = []models.NewsArticle{{Title: "Microsoft beats estimates"}}

	out := RenderAnalysis(a)
	assert.Contains(t, out, "MSFT (1y)")
	assert.Contains(t, out, "HOLD")
	assert.Contains(t, out, "73%")
	assert.Contains(t, out, "101.50")
	assert.Contains(t, out, "+1.25%")
	assert.Contains(t, out, "Market Data Agent")
	assert.Contains(t, out, "Microsoft beats estimates")
	assert.Contains(t, out, "fairly valued")
}

func TestRenderHistory(t *testing.T) {
	assert.Contains(t, RenderHistory(nil), "No analyses")

	out := RenderHistory([]models.AnalysisRecord{
		{ID: 9, Symbol: "AAPL", Recommendation: models.RecommendationBuy, RiskLevel: models.RiskLow, CreatedAt: time.Now()},
		{ID: 7, Symbol: "TSLA", Recommendation: models.RecommendationSell, RiskLevel: models.RiskHigh, UsedModelPath: true, CreatedAt: time.Now()},
	})
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "TSLA")
	assert.Contains(t, out, "--cursor 7")
}

func TestRenderHealth(t *testing.T) {
	out := RenderHealth(orchestrator.Health{
		Orchestrator: orchestrator.AgentMetrics{AgentName: "Master Orchestrator", TotalExecutions: 2, SuccessRate: 1},
		Agents: map[string]orchestrator.AgentMetrics{
			"risk": {AgentName: "Risk Agent", TotalExecutions: 2, SuccessRate: 0.5},
		},
	})
	assert.Contains(t, out, "Master Orchestrator")
	assert.Contains(t, out, "Risk Agent")
	assert.Contains(t, out, "ok=50%")
	assert.Contains(t, out, "unavailable")
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	require.NoError(t, p.Results([]models.Result{sampleResult()}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "AAPL", decoded[0]["identifier"])
	assert.Equal(t, "BUY", decoded[0]["recommendation"])
}

func TestPrinterText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	require.NoError(t, p.Results([]models.Result{sampleResult(), sampleResult()}))
	assert.Contains(t, buf.String(), "Batch summary")
}
