package synthesis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinSight/models"
	"github.com/dyike/FinSight/pkg/risk"
)

func buyState() models.State {
	s := models.NewState("AAPL")
	s.StartDate = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	s.EndDate = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	s.Fundamentals = &models.Fundamentals{PERatio: models.Float(18)}
	s.Technicals = &models.TechnicalIndicators{CurrentPrice: 190, RSI14: 45, Trend: models.TrendBullish}
	s.Risk = &models.RiskMetrics{SharpeRatio: 0.9, CurrentDrawdown: -0.05, Volatility: 0.18}
	s.RiskLevel = risk.Classify(s.Risk.Volatility, s.Risk.CurrentDrawdown, s.Risk.SharpeRatio)
	return s
}

func sellState() models.State {
	s := models.NewState("XYZ")
	s.Fundamentals = &models.Fundamentals{PERatio: models.Float(40)}
	s.Technicals = &models.TechnicalIndicators{CurrentPrice: 12, RSI14: 72, Trend: models.TrendBearish}
	s.Risk = &models.RiskMetrics{SharpeRatio: -0.2, CurrentDrawdown: -0.20, Volatility: 0.30}
	s.RiskLevel = risk.Classify(s.Risk.Volatility, s.Risk.CurrentDrawdown, s.Risk.SharpeRatio)
	return s
}

func TestOfflineBuy(t *testing.T) {
	r := Offline(buyState())
	assert.Equal(t, models.RecommendationBuy, r.Recommendation)
	assert.Equal(t, models.RiskLow, r.RiskLevel)
	assert.False(t, r.UsedModelPath)
	assert.Equal(t, "Technical analysis shows a bullish trend with RSI at 45.00. "+
		"P/E ratio of 18.00 indicates reasonable valuation. "+
		"Volatility is 18.00% with a Sharpe ratio of 0.90. Current drawdown is -5.00%.", r.Reasoning)
	assert.Equal(t, []string{
		"Trend signal: Bullish",
		"RSI (14): 45.00",
		"P/E ratio: 18.00",
		"Sharpe ratio: 0.90",
		"Volatility: 18.00%",
	}, r.KeyDrivers)
	assert.True(t, strings.HasPrefix(r.FinalReport, "**Recommendation:** BUY\n**Risk Level:** Low\n\n**Reasoning:**\n"))
	assert.True(t, strings.HasSuffix(r.FinalReport, "**Key Drivers:**\n- Trend signal: Bullish\n- RSI (14): 45.00\n- P/E ratio: 18.00\n- Sharpe ratio: 0.90\n- Volatility: 18.00%"))
}

func TestOfflineSell(t *testing.T) {
	r := Offline(sellState())
	assert.Equal(t, models.RecommendationSell, r.Recommendation)
	// 30% volatility is below the high-risk threshold and the drawdown is not extreme
	assert.Equal(t, models.RiskMedium, r.RiskLevel)
	assert.Contains(t, r.Reasoning, "indicates elevated valuation")
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name string
		in   Inputs
		want models.Recommendation
	}{
		{"bullish without pe", Inputs{Trend: models.TrendBullish, RSI: 60}, models.RecommendationBuy},
		{"bullish expensive but strong sharpe", Inputs{Trend: models.TrendBullish, RSI: 60, PERatio: models.Float(45), SharpeRatio: 0.5}, models.RecommendationBuy},
		{"bullish expensive weak sharpe", Inputs{Trend: models.TrendBullish, RSI: 60, PERatio: models.Float(45), SharpeRatio: 0.1}, models.RecommendationHold},
		{"bullish overbought", Inputs{Trend: models.TrendBullish, RSI: 70}, models.RecommendationHold},
		{"bearish deep drawdown", Inputs{Trend: models.TrendBearish, RSI: 40, CurrentDrawdown: -0.16}, models.RecommendationSell},
		{"bearish mild", Inputs{Trend: models.TrendBearish, RSI: 40, PERatio: models.Float(12), CurrentDrawdown: -0.15}, models.RecommendationHold},
		{"bearish pe at threshold", Inputs{Trend: models.TrendBearish, PERatio: models.Float(30)}, models.RecommendationSell},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.in))
			assert.Equal(t, Decide(tc.in), Decide(tc.in))
		})
	}
}

func TestInputsFromStateDefaults(t *testing.T) {
	in := InputsFromState(models.NewState("X"))
	assert.Equal(t, 50.0, in.RSI)
	assert.Nil(t, in.PERatio)
	assert.Equal(t, []string{
		"Trend signal: Unknown",
		"RSI (14): 50.00",
		"Sharpe ratio: 0.00",
		"Volatility: 0.00%",
		"Current drawdown: 0.00%",
	}, KeyDrivers(in))
	assert.Contains(t, Reasoning(in), "Valuation metrics are not available.")
}

func TestErrorReport(t *testing.T) {
	r := ErrorReport("ZZZZ", "No data found for ticker 'ZZZZ'")
	assert.Equal(t, models.RecommendationError, r.Recommendation)
	assert.Equal(t, models.RiskUnknown, r.RiskLevel)
	assert.Equal(t, []string{"No data found for ticker 'ZZZZ'"}, r.KeyDrivers)
	assert.Contains(t, r.FinalReport, "Analysis could not be completed for ticker 'ZZZZ'")
}

type fakeChatModel struct {
	reply string
	err   error
	// hang until the caller's context ends
	block bool
}

func (f *fakeChatModel) Generate(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

type fakeProvider struct {
	mu     sync.Mutex
	models map[string]*fakeChatModel
	calls  []string
}

func (p *fakeProvider) ChatModel(_ context.Context, id string) (model.BaseChatModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, id)
	m, ok := p.models[id]
	if !ok {
		return nil, errors.New("404 model not found")
	}
	return m, nil
}

func newModelStrategy(p *fakeProvider, ids ...string) *ModelStrategy {
	return NewModelStrategy(p, RetryPolicy{Models: ids, AttemptTimeout: time.Second}, zerolog.Nop())
}

func TestResolverFallsBackWhenModelsFail(t *testing.T) {
	p := &fakeProvider{models: map[string]*fakeChatModel{
		"primary": {err: errors.New("boom")},
	}}
	resolver := NewResolver(zerolog.Nop(), newModelStrategy(p, "primary", "secondary"))

	got := resolver.Resolve(context.Background(), buyState())
	want := Offline(buyState())
	assert.Equal(t, want, got)
	assert.False(t, got.UsedModelPath)
	assert.Equal(t, []string{"primary", "secondary"}, p.calls)
}

func TestModelStrategySecondarySucceeds(t *testing.T) {
	reply := "```json\n{\"recommendation\": \"sell\", \"risk_level\": \"High\", \"reasoning\": \"Overextended.\", \"key_drivers\": [\"valuation\", \"momentum\", \"drawdown\"]}\n```"
	p := &fakeProvider{models: map[string]*fakeChatModel{
		"secondary": {reply: reply},
	}}

	s := buyState()
	r, err := newModelStrategy(p, "primary", "secondary").Synthesize(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, r.UsedModelPath)
	assert.Equal(t, models.RecommendationSell, r.Recommendation)
	assert.Equal(t, models.RiskLow, r.RiskLevel, "risk level comes from the risk stage")
	assert.Equal(t, []string{"valuation", "momentum", "drawdown"}, r.KeyDrivers)
	assert.Equal(t, FormatReport(models.RecommendationSell, models.RiskLow, "Overextended.", r.KeyDrivers), r.FinalReport)
}

func TestModelStrategyMalformedIsNotRetried(t *testing.T) {
	p := &fakeProvider{models: map[string]*fakeChatModel{
		"primary":   {reply: "I think you should buy."},
		"secondary": {reply: `{"recommendation":"BUY","reasoning":"x","key_drivers":["a"]}`},
	}}

	_, err := newModelStrategy(p, "primary", "secondary").Synthesize(context.Background(), buyState())
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, []string{"primary"}, p.calls)

	got := NewResolver(zerolog.Nop(), newModelStrategy(p, "primary")).Resolve(context.Background(), buyState())
	assert.False(t, got.UsedModelPath)
}

func TestModelStrategyRejectsInvalidRecommendation(t *testing.T) {
	p := &fakeProvider{models: map[string]*fakeChatModel{
		"primary": {reply: `{"recommendation":"STRONG BUY","reasoning":"x","key_drivers":["a"]}`},
	}}
	_, err := newModelStrategy(p, "primary").Synthesize(context.Background(), buyState())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestModelStrategyKeyDriverCount(t *testing.T) {
	cases := map[string]string{
		"too few":  `{"recommendation":"BUY","reasoning":"x","key_drivers":["a","b"]}`,
		"too many": `{"recommendation":"BUY","reasoning":"x","key_drivers":["a","b","c","d","e","f"]}`,
		"blank":    `{"recommendation":"BUY","reasoning":"x","key_drivers":["a","","c"]}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			p := &fakeProvider{models: map[string]*fakeChatModel{"primary": {reply: reply}}}
			_, err := newModelStrategy(p, "primary").Synthesize(context.Background(), buyState())
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}

	p := &fakeProvider{models: map[string]*fakeChatModel{"primary": {
		reply: `{"recommendation":"HOLD","reasoning":"x","key_drivers":["a","b","c","d","e"]}`,
	}}}
	r, err := newModelStrategy(p, "primary").Synthesize(context.Background(), buyState())
	require.NoError(t, err)
	assert.Len(t, r.KeyDrivers, 5)
}

func TestResolverBoundsHungModels(t *testing.T) {
	p := &fakeProvider{models: map[string]*fakeChatModel{
		"primary":   {block: true},
		"secondary": {block: true},
	}}
	strategy := NewModelStrategy(p, RetryPolicy{Models: []string{"primary", "secondary"}, AttemptTimeout: 50 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	got := NewResolver(zerolog.Nop(), strategy).Resolve(context.Background(), buyState())
	elapsed := time.Since(start)

	assert.Equal(t, []string{"primary", "secondary"}, p.calls)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second, "each attempt is cut off at its own timeout")
	assert.False(t, got.UsedModelPath)
	assert.Equal(t, Offline(buyState()), got)
	assert.Equal(t, models.RecommendationBuy, got.Recommendation)
}

func TestModelStrategyWithoutModels(t *testing.T) {
	_, err := newModelStrategy(&fakeProvider{}).Synthesize(context.Background(), buyState())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestResolverFailedState(t *testing.T) {
	p := &fakeProvider{}
	s := models.NewState("ZZZZ").Fail("No data found for ticker 'ZZZZ'")

	got := NewResolver(zerolog.Nop(), newModelStrategy(p, "primary")).Resolve(context.Background(), s)
	assert.Equal(t, models.RecommendationError, got.Recommendation)
	assert.Empty(t, p.calls)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("  {\"a\":1} "))
}

func TestStrategistMessages(t *testing.T) {
	msgs, err := StrategistMessages(context.Background(), buyState())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "AAPL")
	assert.Contains(t, msgs[0].Content, `"pe_ratio":18`)
	assert.NotContains(t, msgs[0].Content, "{ticker}")
}
