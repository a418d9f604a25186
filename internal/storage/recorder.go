package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/models"
)

var ErrRecorderClosed = errors.New("recorder is closed")

// NamedSink is a result destination the Recorder can fan out to.
type NamedSink interface {
	Name() string
	Save(ctx context.Context, result models.Result) error
}

type recordEvent struct {
	result models.Result
}

// Recorder hands results to its sinks on a background goroutine so a slow
// sink never delays the caller. Close drains everything queued.
type Recorder struct {
	sinks       []NamedSink
	logger      zerolog.Logger
	sinkTimeout time.Duration

	events chan recordEvent
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   map[string]*SinkStats
}

// SinkStats counts deliveries per sink.
type SinkStats struct {
	Delivered int
	Failed    int
	LastError string
}

func NewRecorder(logger zerolog.Logger, sinks ...NamedSink) *Recorder {
	r := &Recorder{
		sinks:       sinks,
		logger:      logger,
		sinkTimeout: 10 * time.Second,
		events:      make(chan recordEvent, 256),
		stats:       make(map[string]*SinkStats, len(sinks)),
	}
	for _, s := range sinks {
		r.stats[s.Name()] = &SinkStats{}
	}

	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for ev := range r.events {
		for _, sink := range r.sinks {
			r.deliver(sink, ev.result)
		}
	}
}

func (r *Recorder) deliver(sink NamedSink, result models.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), r.sinkTimeout)
	defer cancel()

	err := sink.Save(ctx, result)

	r.statsMu.Lock()
	st := r.stats[sink.Name()]
	if err != nil {
		st.Failed++
		st.LastError = err.Error()
	} else {
		st.Delivered++
	}
	r.statsMu.Unlock()

	if err != nil {
		r.logger.Error().Err(err).
			Str("sink", sink.Name()).
			Str("symbol", result.Identifier).
			Str("run_id", result.RunID).
			Msg("failed to record analysis")
	}
}

// Save queues result for every sink. It blocks only while the queue is full.
func (r *Recorder) Save(ctx context.Context, result models.Result) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.events <- recordEvent{result: result}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting results and waits for queued ones to be delivered.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.events)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

// Stats returns a copy of the per-sink counters.
func (r *Recorder) Stats() map[string]SinkStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	out := make(map[string]SinkStats, len(r.stats))
	for name, st := range r.stats {
		out[name] = *st
	}
	return out
}
