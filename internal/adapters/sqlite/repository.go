package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"coinchart/internal/domain"
	"coinchart/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.SnapshotRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// SnapshotInfo summarizes one stored series.
type SnapshotInfo struct {
	Selection domain.Selection
	Count     int
	First     int64
	Last      int64
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/coinchart.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("%w: failed to create data directory '%s': %w", ports.ErrDBConnection, filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers; snapshot saves come from background goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candle_snapshots (
		asset_id TEXT NOT NULL,
		period TEXT NOT NULL,
		ts INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		saved_at TIMESTAMP NOT NULL,
		PRIMARY KEY (asset_id, period, ts)
	);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to execute schema initialization: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveSeries replaces the stored series for sel in one transaction.
func (r *Repository) SaveSeries(ctx context.Context, sel domain.Selection, candles []domain.Candle) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin snapshot transaction: %w", ports.ErrUpdateFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candle_snapshots WHERE asset_id = ? AND period = ?`, sel.AssetID, string(sel.Period)); err != nil {
		return fmt.Errorf("%w: clear snapshot for %s/%s: %w", ports.ErrUpdateFailed, sel.AssetID, sel.Period, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candle_snapshots (asset_id, period, ts, open, high, low, close, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare snapshot insert: %w", ports.ErrUpdateFailed, err)
	}
	defer stmt.Close()

	savedAt := time.Now().UTC()
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, sel.AssetID, string(sel.Period), c.Time, c.Open, c.High, c.Low, c.Close, savedAt); err != nil {
			return fmt.Errorf("%w: insert candle %d for %s/%s: %w", ports.ErrUpdateFailed, c.Time, sel.AssetID, sel.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit snapshot: %w", ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Saved series snapshot", map[string]interface{}{"asset": sel.AssetID, "period": sel.Period, "count": len(candles)})
	return nil
}

// LoadSeries returns the stored series for sel ordered by time, or nil if none.
func (r *Repository) LoadSeries(ctx context.Context, sel domain.Selection) ([]domain.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close FROM candle_snapshots
		WHERE asset_id = ? AND period = ?
		ORDER BY ts ASC`, sel.AssetID, string(sel.Period))
	if err != nil {
		return nil, fmt.Errorf("%w: load snapshot for %s/%s: %w", ports.ErrQueryFailed, sel.AssetID, sel.Period, err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("%w: scan snapshot row: %w", ports.ErrQueryFailed, err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate snapshot rows: %w", ports.ErrQueryFailed, err)
	}
	return candles, nil
}

// DeleteSeries removes the stored series for sel.
func (r *Repository) DeleteSeries(ctx context.Context, sel domain.Selection) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM candle_snapshots WHERE asset_id = ? AND period = ?`, sel.AssetID, string(sel.Period)); err != nil {
		return fmt.Errorf("%w: delete snapshot for %s/%s: %w", ports.ErrUpdateFailed, sel.AssetID, sel.Period, err)
	}
	return nil
}

// ListSnapshots summarizes every stored series, ordered by asset then period.
func (r *Repository) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT asset_id, period, COUNT(*), MIN(ts), MAX(ts)
		FROM candle_snapshots
		GROUP BY asset_id, period
		ORDER BY asset_id, period`)
	if err != nil {
		return nil, fmt.Errorf("%w: list snapshots: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var period string
		if err := rows.Scan(&info.Selection.AssetID, &period, &info.Count, &info.First, &info.Last); err != nil {
			return nil, fmt.Errorf("%w: scan snapshot summary: %w", ports.ErrQueryFailed, err)
		}
		info.Selection.Period = domain.Period(period)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate snapshot summaries: %w", ports.ErrQueryFailed, err)
	}
	return infos, nil
}

var _ ports.SnapshotRepository = (*Repository)(nil)
