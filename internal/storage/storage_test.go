package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinSight/models"
)

func sampleResult(runID, symbol string, rec models.Recommendation, at time.Time) models.Result {
	return models.Result{
		RunID:               runID,
		Identifier:          symbol,
		FundamentalMetrics:  map[string]any{"pe_ratio": 18.5},
		TechnicalIndicators: map[string]any{"trend": "Bullish"},
		RiskMetrics:         map[string]any{},
		Recommendation:      rec,
		RiskLevel:           models.RiskLow,
		KeyDrivers:          []string{"Trend is Bullish"},
		Succeeded:           rec != models.RecommendationError,
		CreatedAt:           at,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "db", "finsight.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSaveAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleResult("r1", "AAPL", models.RecommendationBuy, base)))
	require.NoError(t, store.Save(ctx, sampleResult("r2", "MSFT", models.RecommendationHold, base.Add(time.Hour))))
	require.NoError(t, store.Save(ctx, sampleResult("r3", "AAPL", models.RecommendationSell, base.Add(2*time.Hour))))

	all, err := store.RecentAnalyses(ctx, models.HistoryParams{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r3", all[0].RunID)
	assert.Equal(t, models.RecommendationSell, all[0].Recommendation)
	assert.True(t, all[0].CreatedAt.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, []string{"Trend is Bullish"}, all[0].Payload.KeyDrivers)

	aapl, err := store.RecentAnalyses(ctx, models.HistoryParams{Symbol: "aapl", Limit: 1})
	require.NoError(t, err)
	require.Len(t, aapl, 1)
	assert.Equal(t, "r3", aapl[0].RunID)

	next, err := store.RecentAnalyses(ctx, models.HistoryParams{Symbol: "AAPL", Cursor: aapl[0].ID})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "r1", next[0].RunID)
}

func TestStoreSaveReplacesRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleResult("same", "TSLA", models.RecommendationHold, at)))
	require.NoError(t, store.Save(ctx, sampleResult("same", "TSLA", models.RecommendationError, at)))

	latest, err := store.LatestFor(ctx, "tsla")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.RecommendationError, latest.Recommendation)
	assert.False(t, latest.Succeeded)

	all, err := store.RecentAnalyses(ctx, models.HistoryParams{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStoreLatestForMissing(t *testing.T) {
	store := newTestStore(t)
	rec, err := store.LatestFor(context.Background(), "NONE")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = store.LatestFor(context.Background(), " ")
	assert.Error(t, err)
	assert.Error(t, store.Save(context.Background(), models.Result{Identifier: "X"}))
}

func TestPublisherSendsJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var decoded map[string]any
		if err := json.Unmarshal(val, &decoded); err != nil {
			return err
		}
		if decoded["identifier"] != "NVDA" {
			return errors.New("unexpected identifier")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewPublisherWithProducer(producer, "finsight.analyses", zerolog.Nop())
	ctx := context.Background()
	result := sampleResult("k1", "NVDA", models.RecommendationBuy, time.Now())

	require.NoError(t, pub.Save(ctx, result))
	assert.ErrorIs(t, pub.Save(ctx, result), sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher(nil, "topic", zerolog.Nop())
	assert.Error(t, err)
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	sink := NewFileSink(dir)
	at := time.Date(2025, 6, 2, 14, 5, 9, 0, time.UTC)
	result := sampleResult("0123456789abcdef", "^GSPC", models.RecommendationHold, at)

	require.NoError(t, sink.Save(context.Background(), result))

	path := sink.Path(result)
	assert.Equal(t, filepath.Join(dir, "GSPC_20250602_140509_01234567.json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded models.Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "^GSPC", decoded.Identifier)
	assert.Equal(t, models.RecommendationHold, decoded.Recommendation)

	_, err = os.Stat(filepath.Join(dir, "GSPC_20250602_140509_01234567.md"))
	assert.True(t, os.IsNotExist(err), "no markdown without a final report")

	result.FinalReport = "Hold: trend is flat."
	require.NoError(t, sink.Save(context.Background(), result))
	md, err := os.ReadFile(filepath.Join(dir, "GSPC_20250602_140509_01234567.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# ^GSPC")
	assert.Contains(t, string(md), "**HOLD**")
	assert.Contains(t, string(md), "Hold: trend is flat.")
}

func TestWriteHistoryCSV(t *testing.T) {
	at := time.Date(2025, 6, 2, 14, 5, 9, 0, time.UTC)
	records := []models.AnalysisRecord{{
		ID:             4,
		RunID:          "run-4",
		Symbol:         "AAPL",
		Recommendation: models.RecommendationBuy,
		RiskLevel:      models.RiskLow,
		Succeeded:      true,
		Payload:        sampleResult("run-4", "AAPL", models.RecommendationBuy, at),
		CreatedAt:      at,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Symbol", rows[0][2])
	assert.Equal(t, []string{"4", "run-4", "AAPL", "BUY", "Low", "false", "true", "Trend is Bullish", "2025-06-02T14:05:09Z"}, rows[1])
}

type memorySink struct {
	name string
	err  error

	mu      sync.Mutex
	results []models.Result
}

func (m *memorySink) Name() string { return m.name }

func (m *memorySink) Save(_ context.Context, r models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return m.err
}

func TestRecorderFansOut(t *testing.T) {
	good := &memorySink{name: "good"}
	bad := &memorySink{name: "bad", err: errors.New("disk full")}
	rec := NewRecorder(zerolog.Nop(), good, bad)

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, rec.Save(ctx, sampleResult(id, "AAPL", models.RecommendationBuy, time.Now())))
	}
	rec.Close()

	require.Len(t, good.results, 3)
	assert.Equal(t, "a", good.results[0].RunID)
	assert.Equal(t, "c", good.results[2].RunID)
	assert.Len(t, bad.results, 3)

	stats := rec.Stats()
	assert.Equal(t, 3, stats["good"].Delivered)
	assert.Equal(t, 3, stats["bad"].Failed)
	assert.Equal(t, "disk full", stats["bad"].LastError)

	assert.ErrorIs(t, rec.Save(ctx, models.Result{}), ErrRecorderClosed)
	rec.Close()
}

func TestRecorderWithStore(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(zerolog.Nop(), store)
	require.NoError(t, rec.Save(context.Background(), sampleResult("s1", "AMD", models.RecommendationBuy, time.Now())))
	rec.Close()

	latest, err := store.LatestFor(context.Background(), "AMD")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "s1", latest.RunID)
}
