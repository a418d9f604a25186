package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/models"
	"github.com/dyike/FinSight/pkg/sqlite"
)

// Store keeps one row per analysis run in the analyses table.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStore(dbPath string, logger zerolog.Logger) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS analyses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    symbol TEXT NOT NULL,
    recommendation TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    used_model_path INTEGER NOT NULL DEFAULT 0,
    succeeded INTEGER NOT NULL DEFAULT 0,
    payload TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_symbol ON analyses(symbol, id);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) Name() string { return "sqlite" }

// Save stores the result. Saving the same run twice replaces the row.
func (s *Store) Save(ctx context.Context, result models.Result) error {
	if strings.TrimSpace(result.RunID) == "" {
		return errors.New("run id is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO analyses (run_id, symbol, recommendation, risk_level, used_model_path, succeeded, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
    recommendation=excluded.recommendation,
    risk_level=excluded.risk_level,
    used_model_path=excluded.used_model_path,
    succeeded=excluded.succeeded,
    payload=excluded.payload
`, result.RunID, result.Identifier, string(result.Recommendation), string(result.RiskLevel),
		result.UsedModelPath, result.Succeeded, string(payload), createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	s.logger.Debug().Str("symbol", result.Identifier).Str("run_id", result.RunID).Msg("analysis stored")
	return nil
}

// RecentAnalyses lists runs newest first. Pass the smallest ID of a page as
// the next Cursor to continue.
func (s *Store) RecentAnalyses(ctx context.Context, params models.HistoryParams) ([]models.AnalysisRecord, error) {
	params = params.Normalized()
	symbol := strings.ToUpper(strings.TrimSpace(params.Symbol))

	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, symbol, recommendation, risk_level, used_model_path, succeeded, payload, created_at
FROM analyses
WHERE (? = '' OR symbol = ?) AND (? = 0 OR id < ?)
ORDER BY id DESC
LIMIT ?
`, symbol, symbol, params.Cursor, params.Cursor, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var records []models.AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses rows: %w", err)
	}
	return records, nil
}

// LatestFor returns the newest run for symbol, or nil when there is none.
func (s *Store) LatestFor(ctx context.Context, symbol string) (*models.AnalysisRecord, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, run_id, symbol, recommendation, risk_level, used_model_path, succeeded, payload, created_at
FROM analyses
WHERE symbol = ?
ORDER BY id DESC
LIMIT 1
`, symbol)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (models.AnalysisRecord, error) {
	var (
		rec            models.AnalysisRecord
		recommendation string
		level          string
		payload        string
		createdAt      string
	)
	if err := row.Scan(&rec.ID, &rec.RunID, &rec.Symbol, &recommendation, &level, &rec.UsedModelPath, &rec.Succeeded, &payload, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan analysis: %w", err)
	}
	rec.Recommendation = models.Recommendation(recommendation)
	rec.RiskLevel = models.RiskLevel(level)
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return rec, fmt.Errorf("decode analysis %s: %w", rec.RunID, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}
