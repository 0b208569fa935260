// Package store defines storage interfaces for daily bars and optimization
// runs, with a Parquet-backed bar cache and a SQLite-backed run history.
package store

import (
	"context"
	"errors"
	"time"

	"macross/internal/domain"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// BarStore persists and retrieves daily OHLCV bars.
type BarStore interface {
	// WriteBars persists a batch of bars, replacing bars with the same
	// symbol and timestamp.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for symbol within [start, end], oldest first.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunStore persists optimization runs and their trials.
type RunStore interface {
	// SaveRun inserts a run together with its trials.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun returns a run with its trials, or ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns returns the most recent runs, newest first, without trials.
	// An empty symbol matches every symbol.
	ListRuns(ctx context.Context, symbol string, limit int) ([]domain.Run, error)
}

// ReadSeries loads bars for symbol within [start, end] and validates them
// into a price series.
func ReadSeries(ctx context.Context, bs BarStore, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	bars, err := bs.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return domain.PriceSeries{}, err
	}
	return domain.SeriesFromBars(bars)
}
