package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"PriceProphet/internal/model"
)

// SQLiteRecorder persists forecast runs to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while a batch writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS forecast_runs (
			id               TEXT PRIMARY KEY,
			timestamp        INTEGER NOT NULL,
			symbol           TEXT NOT NULL,
			provider         TEXT,
			horizon          INTEGER,
			current_price    REAL,
			final_estimate   REAL,
			trend            TEXT,
			confidence       REAL,
			price_change_pct REAL,
			generated_at     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol_ts ON forecast_runs(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS forecast_points (
			run_id     TEXT NOT NULL REFERENCES forecast_runs(id),
			step       INTEGER NOT NULL,
			ds         INTEGER NOT NULL,
			yhat       REAL,
			yhat_lower REAL,
			yhat_upper REAL,
			PRIMARY KEY (run_id, step)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordForecast writes the run and its points in one transaction.
func (r *SQLiteRecorder) RecordForecast(run *ForecastRun) error {
	if run == nil || run.Result == nil || len(run.Result.Forecast) == 0 {
		return fmt.Errorf("record forecast: empty run")
	}
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res := run.Result
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`INSERT INTO forecast_runs
		(id, timestamp, symbol, provider, horizon, current_price, final_estimate,
		 trend, confidence, price_change_pct, generated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		run.RunID, time.Now().Unix(), res.Symbol, run.Provider, run.Horizon,
		res.CurrentPrice, res.Final().Estimate, string(res.Trend),
		res.Confidence, res.PriceChangePct, res.GeneratedAt.Unix(),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, p := range res.Forecast {
		if _, err := tx.Exec(`INSERT INTO forecast_points
			(run_id, step, ds, yhat, yhat_lower, yhat_upper)
			VALUES (?,?,?,?,?,?)`,
			run.RunID, i+1, p.Time.Unix(), p.Estimate, p.Lower, p.Upper,
		); err != nil {
			return fmt.Errorf("insert point %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// RecentForecasts returns the latest runs for symbol, newest first.
func (r *SQLiteRecorder) RecentForecasts(symbol string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(`SELECT id, symbol, provider, current_price, final_estimate,
		trend, confidence, price_change_pct, generated_at
		FROM forecast_runs WHERE symbol = ? ORDER BY generated_at DESC, timestamp DESC LIMIT ?`,
		symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s         RunSummary
			trend     string
			generated int64
		)
		if err := rows.Scan(&s.RunID, &s.Symbol, &s.Provider, &s.CurrentPrice, &s.FinalEstimate,
			&trend, &s.Confidence, &s.PriceChangePct, &generated); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.Trend = model.Trend(trend)
		s.GeneratedAt = time.Unix(generated, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
