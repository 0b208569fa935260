package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"macross/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	symbol       TEXT    NOT NULL,
	start_ms     INTEGER NOT NULL,
	end_ms       INTEGER NOT NULL,
	bars         INTEGER NOT NULL,
	best_short   INTEGER NOT NULL,
	best_long    INTEGER NOT NULL,
	total_return REAL    NOT NULL,
	sharpe_ratio REAL    NOT NULL,
	max_drawdown REAL    NOT NULL,
	evaluated    INTEGER NOT NULL,
	skipped      INTEGER NOT NULL,
	created_ms   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_symbol_created ON runs (symbol, created_ms DESC);

CREATE TABLE IF NOT EXISTS trials (
	run_id       TEXT    NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	short_window INTEGER NOT NULL,
	long_window  INTEGER NOT NULL,
	total_return REAL    NOT NULL,
	sharpe_ratio REAL    NOT NULL,
	max_drawdown REAL    NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run and its trials in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, symbol, start_ms, end_ms, bars, best_short, best_long,
			total_return, sharpe_ratio, max_drawdown, evaluated, skipped, created_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Start.UnixMilli(), run.End.UnixMilli(), run.Bars,
		run.Best.Short, run.Best.Long,
		run.Result.TotalReturn, run.Result.SharpeRatio, run.Result.MaxDrawdown,
		run.Evaluated, run.Skipped, run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trials (run_id, seq, short_window, long_window, total_return, sharpe_ratio, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range run.Trials {
		if _, err := stmt.ExecContext(ctx, run.ID, i, t.Params.Short, t.Params.Long,
			t.Result.TotalReturn, t.Result.SharpeRatio, t.Result.MaxDrawdown); err != nil {
			return fmt.Errorf("inserting trial %d of run %s: %w", i, run.ID, err)
		}
	}
	return tx.Commit()
}

// GetRun returns a run by id with all of its trials in enumeration order.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT short_window, long_window, total_return, sharpe_ratio, max_drawdown
		FROM trials WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.Trial
		if err := rows.Scan(&t.Params.Short, &t.Params.Long,
			&t.Result.TotalReturn, &t.Result.SharpeRatio, &t.Result.MaxDrawdown); err != nil {
			return nil, err
		}
		run.Trials = append(run.Trials, t)
	}
	return &run, rows.Err()
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means 50.
func (s *SQLiteStore) ListRuns(ctx context.Context, symbol string, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE (? = '' OR symbol = ?)
		ORDER BY created_ms DESC, id
		LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const runColumns = `id, symbol, start_ms, end_ms, bars, best_short, best_long,
	total_return, sharpe_ratio, max_drawdown, evaluated, skipped, created_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (domain.Run, error) {
	var (
		r                         domain.Run
		startMS, endMS, createdMS int64
	)
	err := sc.Scan(&r.ID, &r.Symbol, &startMS, &endMS, &r.Bars, &r.Best.Short, &r.Best.Long,
		&r.Result.TotalReturn, &r.Result.SharpeRatio, &r.Result.MaxDrawdown,
		&r.Evaluated, &r.Skipped, &createdMS)
	if err != nil {
		return domain.Run{}, err
	}
	r.Start = time.UnixMilli(startMS).UTC()
	r.End = time.UnixMilli(endMS).UTC()
	r.CreatedAt = time.UnixMilli(createdMS).UTC()
	return r, nil
}
