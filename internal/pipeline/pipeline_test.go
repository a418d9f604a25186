package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinSight/internal/synthesis"
	"github.com/dyike/FinSight/models"
	"github.com/dyike/FinSight/pkg/risk"
)

var fixedNow = time.Date(2025, 6, 30, 16, 0, 0, 0, time.UTC)

type fakePrices struct {
	series map[string]models.PriceSeries
	err    error
	calls  int
	mu     sync.Mutex
}

func (f *fakePrices) FetchPrices(_ context.Context, symbol string, start, end time.Time) (models.PriceSeries, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if !start.Equal(end.AddDate(-5, 0, 0)) {
		return nil, errors.New("unexpected lookback window")
	}
	return f.series[symbol], nil
}

type fakeInfo struct {
	fund models.Fundamentals
	err  error
}

func (f fakeInfo) FetchFundamentals(context.Context, string) (models.Fundamentals, error) {
	return f.fund, f.err
}

type failingModel struct{}

func (failingModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, errors.New("503 service unavailable")
}

func (failingModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("503 service unavailable")
}

type failingProvider struct{ attempts int }

func (p *failingProvider) ChatModel(context.Context, string) (model.BaseChatModel, error) {
	p.attempts++
	return failingModel{}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	results []models.Result
	err     error
}

func (s *recordingSink) Save(_ context.Context, r models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return s.err
}

// trending builds a gently rising, slightly noisy daily series.
func trending(n int) models.PriceSeries {
	out := make(models.PriceSeries, n)
	start := fixedNow.AddDate(-1, 0, 0)
	price := 100.0
	for i := range out {
		price *= 1.001 + 0.004*math.Sin(float64(i)/3)
		out[i] = models.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1000,
		}
	}
	return out
}

func newTestPipeline(t *testing.T, prices PriceSource, info CompanyInfoSource, resolver *synthesis.Resolver, sink Sink) *Pipeline {
	t.Helper()
	if resolver == nil {
		resolver = synthesis.NewResolver(zerolog.Nop())
	}
	p, err := New(context.Background(), Options{
		Stages: &Stages{
			Prices:        prices,
			CompanyInfo:   info,
			Resolver:      resolver,
			Risk:          risk.DefaultParams(),
			LookbackYears: 5,
			Logger:        zerolog.Nop(),
			Now:           func() time.Time { return fixedNow },
		},
		Sink:        sink,
		MaxParallel: 2,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

func TestRunUnknownSymbol(t *testing.T) {
	p := newTestPipeline(t, &fakePrices{}, fakeInfo{}, nil, nil)

	r := p.Run(context.Background(), "zzzz")
	assert.Equal(t, "ZZZZ", r.Identifier)
	assert.False(t, r.Succeeded)
	assert.Equal(t, models.RecommendationError, r.Recommendation)
	assert.Equal(t, models.RiskUnknown, r.RiskLevel)
	assert.Equal(t, "No data found for ticker 'ZZZZ'. Please verify the ticker symbol is correct.", r.Error)
	assert.Contains(t, r.FinalReport, "'ZZZZ'")
	assert.Empty(t, r.TechnicalIndicators)
	assert.Empty(t, r.RiskMetrics)
	assert.Nil(t, r.DateRange)
	assert.NotEmpty(t, r.RunID)
}

func TestRunFetchError(t *testing.T) {
	p := newTestPipeline(t, &fakePrices{err: errors.New("connection reset")}, fakeInfo{}, nil, nil)

	r := p.Run(context.Background(), "AAPL")
	assert.Equal(t, models.RecommendationError, r.Recommendation)
	assert.Equal(t, "Error fetching data for ticker 'AAPL': connection reset", r.Error)
}

func TestRunSuccessWithModelFailure(t *testing.T) {
	series := trending(300)
	provider := &failingProvider{}
	strategy := synthesis.NewModelStrategy(provider, synthesis.RetryPolicy{
		Models:         []string{"primary", "secondary"},
		AttemptTimeout: time.Second,
	}, zerolog.Nop())
	resolver := synthesis.NewResolver(zerolog.Nop(), strategy)
	sink := &recordingSink{err: errors.New("disk full")}

	p := newTestPipeline(t, &fakePrices{series: map[string]models.PriceSeries{"MSFT": series}},
		fakeInfo{fund: models.Fundamentals{PERatio: models.Float(18)}}, resolver, sink)

	r := p.Run(context.Background(), "MSFT")
	require.True(t, r.Succeeded, r.Error)
	assert.False(t, r.UsedModelPath)
	assert.Equal(t, 2, provider.attempts)
	assert.NotEqual(t, models.RecommendationError, r.Recommendation)
	assert.NotEqual(t, models.RiskUnknown, r.RiskLevel)
	assert.GreaterOrEqual(t, len(r.KeyDrivers), 3)
	assert.LessOrEqual(t, len(r.KeyDrivers), 5)
	assert.Equal(t, 300, r.Observations)
	require.NotNil(t, r.DateRange)
	assert.Equal(t, series[0].Date, r.DateRange.Start.Time)
	assert.Equal(t, 18.0, r.FundamentalMetrics["pe_ratio"])
	assert.Equal(t, models.NotAvailable, r.FundamentalMetrics["market_cap"])

	// sink failure does not change the result
	require.Len(t, sink.results, 1)
	assert.Equal(t, r.RunID, sink.results[0].RunID)

	// same field set as any other result
	data, err := json.Marshal(r)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"identifier", "date_range", "fundamental_metrics", "technical_indicators",
		"risk_metrics", "recommendation", "risk_level", "reasoning", "key_drivers", "final_report",
		"used_model_path", "succeeded"} {
		assert.Contains(t, fields, key)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	prices := &fakePrices{series: map[string]models.PriceSeries{"AAPL": trending(400)}}
	p := newTestPipeline(t, prices, fakeInfo{}, nil, nil)

	a := p.Run(context.Background(), "AAPL")
	b := p.Run(context.Background(), "AAPL")
	assert.Equal(t, a.TechnicalIndicators, b.TechnicalIndicators)
	assert.Equal(t, a.RiskMetrics, b.RiskMetrics)
	assert.Equal(t, a.Recommendation, b.Recommendation)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestStagesShortCircuit(t *testing.T) {
	st := &Stages{Logger: zerolog.Nop(), Risk: risk.DefaultParams()}
	failed := models.NewState("X").Fail("No data found for ticker 'X'. Please verify the ticker symbol is correct.")
	failed.Technicals = &models.TechnicalIndicators{RSI14: 10}

	out, err := st.Analyze(context.Background(), failed)
	require.NoError(t, err)
	assert.Nil(t, out.Technicals)
	assert.Equal(t, failed.Error, out.Error)
	assert.NotNil(t, failed.Technicals, "input state is untouched")

	out, err = st.AssessRisk(context.Background(), out)
	require.NoError(t, err)
	assert.Nil(t, out.Risk)
	assert.Equal(t, models.RiskUnknown, out.RiskLevel)

	out, err = st.Synthesize(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationError, out.Recommendation)
	assert.Equal(t, failed.Error, out.Error)
	assert.False(t, out.Succeeded)
}

func TestAnalyzeWithoutSeriesFails(t *testing.T) {
	st := &Stages{Logger: zerolog.Nop()}
	out, err := st.Analyze(context.Background(), models.NewState("X"))
	require.NoError(t, err)
	assert.Equal(t, "No historical data available", out.Error)
}

func TestAnalyzeToleratesMissingFundamentals(t *testing.T) {
	st := &Stages{Logger: zerolog.Nop(), CompanyInfo: fakeInfo{err: errors.New("quote not found")}}
	s := models.NewState("X")
	s.PriceSeries = trending(60)

	out, err := st.Analyze(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, out.Failed())
	require.NotNil(t, out.Fundamentals)
	assert.Nil(t, out.Fundamentals.PERatio)
	require.NotNil(t, out.Technicals)
	assert.NotNil(t, out.Technicals.SMA50)
}

func TestAnalyzeDegradesWhenIndicatorsFail(t *testing.T) {
	st := &Stages{
		Logger:      zerolog.Nop(),
		Risk:        risk.DefaultParams(),
		CompanyInfo: fakeInfo{},
		Indicators: func(context.Context, models.PriceSeries) (models.TechnicalIndicators, error) {
			return models.TechnicalIndicators{}, errors.New("indicator failure")
		},
	}
	s := models.NewState("X")
	s.PriceSeries = trending(60)

	out, err := st.Analyze(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, out.Failed())
	assert.Nil(t, out.Technicals)
	assert.NotNil(t, out.Fundamentals)

	out, err = st.AssessRisk(context.Background(), out)
	require.NoError(t, err)
	require.NotNil(t, out.Risk)

	out, err = st.Synthesize(context.Background(), out)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Empty(t, out.Error)
	assert.NotEqual(t, models.RecommendationError, out.Recommendation)
	assert.Contains(t, out.KeyDrivers, "Trend signal: Unknown")
}

func TestRunBatchKeepsOrder(t *testing.T) {
	prices := &fakePrices{series: map[string]models.PriceSeries{
		"AAPL": trending(120),
		"MSFT": trending(150),
	}}
	p := newTestPipeline(t, prices, fakeInfo{}, nil, nil)

	results := p.RunBatch(context.Background(), []string{"AAPL", "ZZZZ", "MSFT"})
	require.Len(t, results, 3)
	assert.Equal(t, "AAPL", results[0].Identifier)
	assert.True(t, results[0].Succeeded)
	assert.Equal(t, models.RecommendationError, results[1].Recommendation)
	assert.Equal(t, 150, results[2].Observations)
	assert.Equal(t, 3, prices.calls)
}
