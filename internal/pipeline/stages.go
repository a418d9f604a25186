package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/internal/synthesis"
	"github.com/dyike/FinSight/models"
	"github.com/dyike/FinSight/pkg/indicators"
	"github.com/dyike/FinSight/pkg/risk"
)

const (
	StageIngest     = "ingest"
	StageAnalyze    = "analyze"
	StageRisk       = "risk"
	StageSynthesize = "synthesize"

	DefaultLookbackYears = 5
)

const noHistoryMessage = "No historical data available"

// Stages holds the collaborators used by the four pipeline steps. Each step
// takes a state and returns a new one; the input is never modified.
type Stages struct {
	Prices        PriceSource
	CompanyInfo   CompanyInfoSource
	Resolver      *synthesis.Resolver
	Risk          risk.Params
	LookbackYears int
	Logger        zerolog.Logger
	Now           func() time.Time

	// Indicators defaults to indicators.Compute.
	Indicators func(ctx context.Context, series models.PriceSeries) (models.TechnicalIndicators, error)
}

func (st *Stages) now() time.Time {
	if st.Now != nil {
		return st.Now()
	}
	return time.Now()
}

// Ingest fetches the lookback window of prices. It is the only step that
// can start a failure.
func (st *Stages) Ingest(ctx context.Context, s models.State) (models.State, error) {
	if s.Failed() {
		return s, nil
	}
	if s.Identifier == "" {
		return s.Fail("identifier is required"), nil
	}
	log := st.Logger.With().Str("symbol", s.Identifier).Str("stage", StageIngest).Logger()

	years := st.LookbackYears
	if years <= 0 {
		years = DefaultLookbackYears
	}
	end := st.now()
	start := end.AddDate(-years, 0, 0)

	if st.Prices == nil {
		return s.Fail(fmt.Sprintf("Error fetching data for ticker '%s': no price source configured", s.Identifier)), nil
	}
	series, err := st.Prices.FetchPrices(ctx, s.Identifier, start, end)
	if err != nil && !errors.Is(err, models.ErrEmptySeries) {
		msg := fmt.Sprintf("Error fetching data for ticker '%s': %v", s.Identifier, err)
		log.Error().Err(err).Msg("price fetch failed")
		return s.Fail(msg), nil
	}

	series = series.Normalize()
	if len(series) == 0 {
		msg := fmt.Sprintf("No data found for ticker '%s'. Please verify the ticker symbol is correct.", s.Identifier)
		log.Warn().Msg("no price data")
		return s.Fail(msg), nil
	}

	next := s.Clone()
	next.PriceSeries = series
	next.StartDate, next.EndDate = series.Bounds()
	next.Succeeded = true
	log.Info().
		Int("rows", len(series)).
		Str("start", next.StartDate.Format(models.DateLayout)).
		Str("end", next.EndDate.Format(models.DateLayout)).
		Msg("price history loaded")
	return next, nil
}

// Analyze computes technical indicators and pulls fundamentals.
func (st *Stages) Analyze(ctx context.Context, s models.State) (models.State, error) {
	if s.Failed() || len(s.PriceSeries) == 0 {
		return skipped(s, StageAnalyze, st.Logger), nil
	}
	log := st.Logger.With().Str("symbol", s.Identifier).Str("stage", StageAnalyze).Logger()

	compute := st.Indicators
	if compute == nil {
		compute = indicators.Compute
	}
	// Missing technicals leave the decision framework on its neutral
	// defaults; only ingest decides whether a run fails.
	var techPtr *models.TechnicalIndicators
	tech, err := compute(ctx, s.PriceSeries)
	if err != nil {
		log.Warn().Err(err).Msg("indicator computation failed, continuing without technicals")
	} else {
		techPtr = &tech
	}

	var fund models.Fundamentals
	if st.CompanyInfo != nil {
		var ferr error
		fund, ferr = st.CompanyInfo.FetchFundamentals(ctx, s.Identifier)
		if ferr != nil {
			// Fundamentals are optional; every field falls back to N/A.
			log.Warn().Err(ferr).Msg("company info unavailable")
			fund = models.Fundamentals{}
		}
	}

	next := s.Clone()
	next.Technicals = techPtr
	next.Fundamentals = &fund
	if techPtr != nil {
		log.Info().
			Float64("rsi_14", tech.RSI14).
			Str("trend", string(tech.Trend)).
			Msg("indicators computed")
	}
	return next, nil
}

// AssessRisk computes drawdown, volatility, Sharpe, VaR and the risk level.
func (st *Stages) AssessRisk(_ context.Context, s models.State) (models.State, error) {
	if s.Failed() || len(s.PriceSeries) == 0 {
		return skipped(s, StageRisk, st.Logger), nil
	}
	metrics, level := risk.Assess(s.PriceSeries, st.Risk)

	next := s.Clone()
	next.Risk = &metrics
	next.RiskLevel = level
	st.Logger.Info().
		Str("symbol", s.Identifier).
		Str("stage", StageRisk).
		Float64("volatility", metrics.Volatility).
		Float64("current_drawdown", metrics.CurrentDrawdown).
		Str("risk_level", string(level)).
		Msg("risk assessed")
	return next, nil
}

// Synthesize resolves the report. Failed states receive the error report.
func (st *Stages) Synthesize(ctx context.Context, s models.State) (models.State, error) {
	resolver := st.Resolver
	if resolver == nil {
		resolver = synthesis.NewResolver(st.Logger)
	}
	report := resolver.Resolve(ctx, s)
	next := report.Apply(s)
	st.Logger.Info().
		Str("symbol", s.Identifier).
		Str("stage", StageSynthesize).
		Str("recommendation", string(next.Recommendation)).
		Bool("used_model_path", next.UsedModelPath).
		Msg("report ready")
	return next, nil
}

// skipped forwards an earlier failure and clears the stage's own outputs.
func skipped(s models.State, stage string, logger zerolog.Logger) models.State {
	msg := s.Error
	if msg == "" {
		msg = noHistoryMessage
	}
	next := s.Fail(msg)
	switch stage {
	case StageAnalyze:
		next.Fundamentals = nil
		next.Technicals = nil
	case StageRisk:
		next.Risk = nil
		next.RiskLevel = models.RiskUnknown
	}
	logger.Warn().Str("symbol", s.Identifier).Str("stage", stage).Str("error", msg).Msg("skipping stage")
	return next
}
