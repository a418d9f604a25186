package orchestrator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Outcome is the bookkeeping attached to every agent report.
type Outcome struct {
	AgentName     string    `json:"agent_name"`
	AgentType     string    `json:"agent_type"`
	Status        Status    `json:"status"`
	Error         string    `json:"error,omitempty"`
	ExecutionTime float64   `json:"execution_time"`
	Timestamp     time.Time `json:"timestamp"`
}

func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// AgentMetrics summarises the executions of one agent since start or the
// last reset. Times are in seconds.
type AgentMetrics struct {
	AgentName            string     `json:"agent_name"`
	TotalExecutions      int        `json:"total_executions"`
	SuccessfulExecutions int        `json:"successful_executions"`
	SuccessRate          float64    `json:"success_rate"`
	AvgExecutionTime     float64    `json:"avg_execution_time"`
	TotalTime            float64    `json:"total_time"`
	LastExecution        *time.Time `json:"last_execution"`
}

// tracker times agent executions. Only successful runs add to the total time
// and move the last execution timestamp.
type tracker struct {
	name   string
	kind   string
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	executions int
	successes  int
	total      time.Duration
	last       time.Time
}

func newTracker(name, kind string, logger zerolog.Logger) *tracker {
	return &tracker{name: name, kind: kind, logger: logger, now: time.Now}
}

func (t *tracker) run(fn func() error) Outcome {
	start := t.now()
	t.mu.Lock()
	t.executions++
	t.mu.Unlock()

	t.logger.Info().Str("agent", t.name).Msg("agent started")
	err := fn()
	end := t.now()
	elapsed := end.Sub(start)

	out := Outcome{
		AgentName:     t.name,
		AgentType:     t.kind,
		Status:        StatusSuccess,
		ExecutionTime: elapsed.Seconds(),
		Timestamp:     end,
	}
	if err != nil {
		out.Status = StatusError
		out.Error = err.Error()
		t.logger.Error().Err(err).Str("agent", t.name).Msg("agent failed")
		return out
	}

	t.mu.Lock()
	t.successes++
	t.total += elapsed
	t.last = end
	t.mu.Unlock()
	t.logger.Info().Str("agent", t.name).Dur("elapsed", elapsed).Msg("agent completed")
	return out
}

func (t *tracker) metrics() AgentMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := AgentMetrics{
		AgentName:            t.name,
		TotalExecutions:      t.executions,
		SuccessfulExecutions: t.successes,
		TotalTime:            t.total.Seconds(),
	}
	if t.executions > 0 {
		m.AvgExecutionTime = t.total.Seconds() / float64(t.executions)
		m.SuccessRate = float64(t.successes) / float64(t.executions)
	}
	if !t.last.IsZero() {
		last := t.last
		m.LastExecution = &last
	}
	return m
}

func (t *tracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executions, t.successes = 0, 0
	t.total = 0
	t.last = time.Time{}
}
