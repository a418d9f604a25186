package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/FinSight/internal/synthesis"
	"github.com/dyike/FinSight/models"
)

const GraphName = "FinSight-Analysis"

// Options configure a Pipeline. Sink and MaxParallel are optional.
type Options struct {
	Stages      *Stages
	Sink        Sink
	MaxParallel int
	Logger      zerolog.Logger
}

// Pipeline runs ingest -> analyze -> risk -> synthesize as a compiled graph.
type Pipeline struct {
	stages      *Stages
	runner      compose.Runnable[models.State, models.State]
	callback    callbacks.Handler
	sink        Sink
	maxParallel int
	logger      zerolog.Logger
	newID       func() string
}

func New(ctx context.Context, opts Options) (*Pipeline, error) {
	if opts.Stages == nil {
		return nil, errors.New("pipeline stages are required")
	}
	runner, err := buildGraph(ctx, opts.Stages)
	if err != nil {
		return nil, err
	}
	maxParallel := opts.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Pipeline{
		stages:      opts.Stages,
		runner:      runner,
		callback:    newLoggerCallback(opts.Logger),
		sink:        opts.Sink,
		maxParallel: maxParallel,
		logger:      opts.Logger,
		newID:       uuid.NewString,
	}, nil
}

func buildGraph(ctx context.Context, st *Stages) (compose.Runnable[models.State, models.State], error) {
	g := compose.NewGraph[models.State, models.State]()

	nodes := []struct {
		key string
		fn  func(context.Context, models.State) (models.State, error)
	}{
		{StageIngest, st.Ingest},
		{StageAnalyze, st.Analyze},
		{StageRisk, st.AssessRisk},
		{StageSynthesize, st.Synthesize},
	}

	prev := compose.START
	for _, n := range nodes {
		if err := g.AddLambdaNode(n.key, compose.InvokableLambda(n.fn), compose.WithNodeName(n.key)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.key, err)
		}
		if err := g.AddEdge(prev, n.key); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", prev, n.key, err)
		}
		prev = n.key
	}
	if err := g.AddEdge(prev, compose.END); err != nil {
		return nil, fmt.Errorf("add edge %s -> end: %w", prev, err)
	}

	r, err := g.Compile(ctx, compose.WithGraphName(GraphName))
	if err != nil {
		return nil, fmt.Errorf("compile pipeline graph: %w", err)
	}
	return r, nil
}

// Run analyses one symbol. It always returns a fully populated result; data
// problems surface as recommendation ERROR, never as a Go error.
func (p *Pipeline) Run(ctx context.Context, symbol string) models.Result {
	state := models.NewState(symbol)
	started := time.Now()

	out, err := p.runner.Invoke(ctx, state, compose.WithCallbacks(p.callback))
	if err != nil {
		p.logger.Error().Err(err).Str("symbol", state.Identifier).Msg("pipeline run failed")
		out = state.Fail(fmt.Sprintf("Error analyzing ticker '%s': %v", state.Identifier, err))
	}
	if out.Failed() && out.Recommendation != models.RecommendationError {
		out = synthesis.ErrorReport(out.Identifier, out.Error).Apply(out)
	}

	result := models.ResultFromState(p.newID(), out, p.stages.now())
	p.logger.Info().
		Str("symbol", result.Identifier).
		Str("run_id", result.RunID).
		Str("recommendation", string(result.Recommendation)).
		Bool("succeeded", result.Succeeded).
		Dur("elapsed", time.Since(started)).
		Msg("analysis finished")

	if p.sink != nil {
		if err := p.sink.Save(ctx, result); err != nil {
			p.logger.Warn().Err(err).Str("symbol", result.Identifier).Msg("result sink failed")
		}
	}
	return result
}

// RunBatch analyses independent symbols concurrently, at most MaxParallel at
// a time. Results keep the order of symbols.
func (p *Pipeline) RunBatch(ctx context.Context, symbols []string) []models.Result {
	results := make([]models.Result, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxParallel)
	for i, sym := range symbols {
		g.Go(func() error {
			r := p.Run(gctx, sym)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
