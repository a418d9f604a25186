package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/models"
)

// BatchRunner analyses a set of symbols. *pipeline.Pipeline satisfies it.
type BatchRunner interface {
	RunBatch(ctx context.Context, symbols []string) []models.Result
}

type Options struct {
	Watchlist Watchlist
	// Runner is resolved on every tick so a hot-reloaded engine is picked up.
	Runner     func() BatchRunner
	OnResults  func([]models.Result)
	RunTimeout time.Duration
	Logger     zerolog.Logger
}

// Scheduler re-runs a watchlist on a cron schedule. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	cron      *cron.Cron
	watchlist Watchlist
	runner    func() BatchRunner
	onResults func([]models.Result)
	timeout   time.Duration
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	runs int
}

func New(opts Options) (*Scheduler, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("scheduler: runner is required")
	}
	if err := opts.Watchlist.Normalize(); err != nil {
		return nil, err
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}

	loc := time.Local
	if opts.Watchlist.Timezone != "" {
		l, err := time.LoadLocation(opts.Watchlist.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", opts.Watchlist.Timezone, err)
		}
		loc = l
	}

	clog := cronLogger{logger: opts.Logger}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		watchlist: opts.Watchlist,
		runner:    opts.Runner,
		onResults: opts.OnResults,
		timeout:   opts.RunTimeout,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	if _, err := s.cron.AddFunc(opts.Watchlist.Schedule, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("register schedule %q: %w", opts.Watchlist.Schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.watchlist.Schedule).
		Strs("symbols", s.watchlist.Symbols).
		Msg("scheduler started")
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// Next reports when the watchlist runs next. Zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// RunNow analyses the watchlist once, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) []models.Result {
	runner := s.runner()
	if runner == nil {
		s.logger.Warn().Msg("no engine available, skipping watchlist run")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	results := runner.RunBatch(ctx, s.watchlist.Symbols)

	failed := 0
	for _, r := range results {
		if !r.Succeeded {
			failed++
		}
	}
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	s.logger.Info().
		Int("symbols", len(results)).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("watchlist run complete")

	if s.onResults != nil {
		s.onResults(results)
	}
	return results
}

func (s *Scheduler) tick() {
	s.RunNow(s.ctx)
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
