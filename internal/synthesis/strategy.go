package synthesis

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/models"
)

var (
	ErrModelUnavailable  = errors.New("language model unavailable")
	ErrMalformedResponse = errors.New("malformed model response")
)

// Strategy turns a successful analysis state into a report.
type Strategy interface {
	Name() string
	Synthesize(ctx context.Context, s models.State) (Report, error)
}

// Deterministic applies the decision framework directly. It never fails.
type Deterministic struct{}

func (Deterministic) Name() string { return "deterministic" }

func (Deterministic) Synthesize(_ context.Context, s models.State) (Report, error) {
	return Offline(s), nil
}

// Offline is the deterministic report for s.
func Offline(s models.State) Report {
	in := InputsFromState(s)
	rec := Decide(in)
	reasoning := Reasoning(in)
	drivers := KeyDrivers(in)
	level := in.RiskLevel
	if level == "" {
		level = models.RiskUnknown
	}
	return Report{
		Recommendation: rec,
		RiskLevel:      level,
		Reasoning:      reasoning,
		KeyDrivers:     drivers,
		FinalReport:    FormatReport(rec, level, reasoning, drivers),
		UsedModelPath:  false,
	}
}

// Resolver tries each strategy in order and falls back to the
// deterministic framework when all of them fail.
type Resolver struct {
	strategies []Strategy
	logger     zerolog.Logger
}

func NewResolver(logger zerolog.Logger, strategies ...Strategy) *Resolver {
	var kept []Strategy
	for _, s := range strategies {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Resolver{strategies: kept, logger: logger}
}

// Resolve produces the synthesis report for s. Failed states get the error
// report without consulting any strategy.
func (r *Resolver) Resolve(ctx context.Context, s models.State) Report {
	if s.Failed() {
		return ErrorReport(s.Identifier, s.Error)
	}
	for _, strategy := range r.strategies {
		report, err := strategy.Synthesize(ctx, s)
		if err == nil {
			return report
		}
		r.logger.Warn().
			Err(err).
			Str("symbol", s.Identifier).
			Str("strategy", strategy.Name()).
			Msg("synthesis strategy failed, falling back")
	}
	return Offline(s)
}
