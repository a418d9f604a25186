package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinSight/config"
	"github.com/dyike/FinSight/models"
)

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.OnlineTools = false
	return *cfg
}

func TestBuildEngineOffline(t *testing.T) {
	cfg := offlineConfig(t)
	e, err := BuildEngine(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, e.Pipeline)
	require.NotNil(t, e.Orchestrator)
	require.NotNil(t, e.Store)
	assert.False(t, e.Orchestrator.Health().LLMAvailable)

	// rejected by symbol validation before any network call
	res := e.Pipeline.Run(context.Background(), "bad symbol!")
	assert.Equal(t, models.RecommendationError, res.Recommendation)
	assert.False(t, res.Succeeded)
	assert.False(t, res.UsedModelPath)

	e.Recorder.Close()
	latest, err := e.Store.LatestFor(context.Background(), res.Identifier)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, res.RunID, latest.RunID)

	reports, err := filepath.Glob(filepath.Join(cfg.ResultsDir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	markdown, err := filepath.Glob(filepath.Join(cfg.ResultsDir, "*.md"))
	require.NoError(t, err)
	assert.Len(t, markdown, 1)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
}

func TestBuildEngineRejectsInvalidConfig(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.LookbackYears = 0
	_, err := BuildEngine(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "lookback years")
}

type notifications struct {
	mu     sync.Mutex
	topics []string
}

func (n *notifications) add(topic, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
}

func (n *notifications) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.topics...)
}

func TestRuntimeReloadsOnConfigUpdate(t *testing.T) {
	dir := t.TempDir()
	initial := config.DefaultConfigWithRoot(dir)
	mgr, err := config.NewManager(config.WithConfigDir(dir), config.WithInitialConfig(initial), config.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	var built []config.Config
	failNext := false
	builder := func(cfg config.Config) (*Engine, error) {
		if failNext {
			return nil, errors.New("broken config")
		}
		built = append(built, cfg)
		return &Engine{Config: cfg, BuiltAt: time.Now(), Version: uint64(len(built))}, nil
	}
	notes := &notifications{}

	rt, err := NewRuntime(mgr, WithBuilder(builder), WithNotifier(notes.add))
	require.NoError(t, err)
	defer rt.Close()
	assert.Equal(t, uint64(1), rt.Engine().Version)

	next := *initial
	next.MaxParallel = 8
	data, err := json.Marshal(next)
	require.NoError(t, err)
	require.NoError(t, rt.UpdateConfigJSON(string(data)))

	assert.Equal(t, uint64(2), rt.Engine().Version)
	assert.Equal(t, 8, rt.Engine().Config.MaxParallel)

	failNext = true
	next.MaxParallel = 2
	data, _ = json.Marshal(next)
	require.NoError(t, rt.UpdateConfigJSON(string(data)))
	assert.Equal(t, uint64(2), rt.Engine().Version, "failed rebuild keeps the previous engine")

	assert.Equal(t, []string{"engine.reloaded", "engine.reloaded", "engine.reload_failed"}, notes.list())
}

func TestNewRuntimeRequiresManager(t *testing.T) {
	_, err := NewRuntime(nil)
	assert.Error(t, err)
}
