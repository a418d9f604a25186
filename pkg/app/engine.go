package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/config"
	"github.com/dyike/FinSight/internal/llm"
	"github.com/dyike/FinSight/internal/orchestrator"
	"github.com/dyike/FinSight/internal/pipeline"
	"github.com/dyike/FinSight/internal/storage"
	"github.com/dyike/FinSight/internal/synthesis"
	"github.com/dyike/FinSight/pkg/dataflows"
	"github.com/dyike/FinSight/pkg/risk"
)

// Engine owns every collaborator built from one configuration snapshot.
type Engine struct {
	Config  config.Config
	BuiltAt time.Time
	Version uint64

	Pipeline     *pipeline.Pipeline
	Orchestrator *orchestrator.Orchestrator
	Store        *storage.Store
	Recorder     *storage.Recorder

	closers []func() error
}

var engineSeq atomic.Uint64

// BuildEngine wires sources, synthesis, sinks and both analysis surfaces.
// Optional sinks (SQLite, Kafka) that fail to start are logged and skipped.
func BuildEngine(cfg config.Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	e := &Engine{
		Config:  cfg,
		BuiltAt: time.Now(),
		Version: engineSeq.Add(1),
	}

	market := newMarketRouter(&cfg, logger)

	factory := llm.NewFactory(cfg)
	var provider synthesis.ChatModelProvider
	strategies := []synthesis.Strategy{}
	if factory.Available() {
		provider = factory
		strategies = append(strategies, synthesis.NewModelStrategy(factory, synthesis.RetryPolicy{
			Models:         cfg.Models(),
			AttemptTimeout: cfg.LLMTimeout,
		}, logger))
	} else {
		logger.Warn().Str("provider", cfg.LLMProvider).Msg("no llm api key, using deterministic synthesis only")
	}
	strategies = append(strategies, synthesis.Deterministic{})

	e.Recorder = storage.NewRecorder(logger, e.buildSinks(cfg, logger)...)
	e.closers = append([]func() error{func() error { e.Recorder.Close(); return nil }}, e.closers...)

	p, err := pipeline.New(context.Background(), pipeline.Options{
		Stages: &pipeline.Stages{
			Prices:        market,
			CompanyInfo:   market,
			Resolver:      synthesis.NewResolver(logger, strategies...),
			Risk:          risk.Params{RiskFreeRate: cfg.RiskFreeRate, VaRConfidence: cfg.VaRConfidence},
			LookbackYears: cfg.LookbackYears,
			Logger:        logger,
		},
		Sink:        e.Recorder,
		MaxParallel: cfg.MaxParallel,
		Logger:      logger,
	})
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	e.Pipeline = p

	var news orchestrator.NewsSource
	if cfg.OnlineTools {
		news = dataflows.NewNewsChain(logger,
			dataflows.NewFinnhubClient(&cfg),
			dataflows.NewGoogleNewsClient(&cfg),
			dataflows.NewRedditClient(&cfg),
		)
	}
	var summary *orchestrator.Summarizer
	if provider != nil {
		summary = orchestrator.NewSummarizer(provider, cfg.Models(), cfg.LLMTimeout, logger)
	}
	e.Orchestrator = orchestrator.New(orchestrator.NewMarketAgent(market, market, news, logger), summary, logger)

	return e, nil
}

func newMarketRouter(cfg *config.Config, logger zerolog.Logger) *dataflows.Router {
	router := dataflows.NewRouter(dataflows.NewYahooFinanceClient(cfg, logger))
	if cfg.OnlineTools && cfg.FinnhubAPIKey != "" {
		router.WithSectors(dataflows.NewFinnhubClient(cfg))
	}
	if !cfg.LongportConfigured() {
		return router
	}
	lp, err := dataflows.NewLongportClient(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("longport unavailable, HK/CN symbols use yahoo")
		return router
	}
	return router.Route(lp, "HK", "SH", "SZ")
}

func (e *Engine) buildSinks(cfg config.Config, logger zerolog.Logger) []storage.NamedSink {
	sinks := []storage.NamedSink{storage.NewFileSink(cfg.ResultsDir)}

	if strings.TrimSpace(cfg.DBPath) != "" {
		store, err := storage.NewStore(cfg.DBPath, logger)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.DBPath).Msg("sqlite store unavailable")
		} else {
			e.Store = store
			sinks = append(sinks, store)
			e.closers = append(e.closers, store.Close)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := storage.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.Error().Err(err).Strs("brokers", cfg.KafkaBrokers).Msg("kafka publisher unavailable")
		} else {
			sinks = append(sinks, pub)
			e.closers = append(e.closers, pub.Close)
		}
	}
	return sinks
}

// Close flushes queued results and releases sinks. Safe to call twice.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	closers := e.closers
	e.closers = nil
	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
