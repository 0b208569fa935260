// Package strategy implements the moving-average crossover strategy: signal
// generation, backtesting of the lagged positions, and the parameter grid
// search that ties the two together.
package strategy

import (
	"errors"
	"fmt"

	"macross/internal/domain"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	// ErrInvalidParameter reports malformed window sizes.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrMissingPosition reports a backtest over rows without any defined
	// position, e.g. a series shorter than the long window.
	ErrMissingPosition = errors.New("no defined position to backtest")
	// ErrNoValidParameters reports a grid search in which every pair was
	// skipped.
	ErrNoValidParameters = errors.New("no valid parameters in grid")
)

// Compute derives moving averages, the crossover signal and the one-bar
// lagged position for every bar in series.
//
// Windows must satisfy 1 <= short < long; anything else is rejected with
// ErrInvalidParameter.
func Compute(series domain.PriceSeries, short, long int) ([]domain.SignalRow, error) {
	p := domain.Params{Short: short, Long: long}
	if !p.Valid() {
		return nil, fmt.Errorf("%w: windows short=%d long=%d", ErrInvalidParameter, short, long)
	}

	n := series.Len()
	rows := make([]domain.SignalRow, n)
	if n == 0 {
		return rows, nil
	}

	closes := series.Closes()
	for i := 0; i < n; i++ {
		bar := series.At(i)
		row := domain.SignalRow{
			Timestamp: bar.Timestamp,
			Close:     bar.Close,
			ShortMA:   movingAverage(closes, i, short),
			LongMA:    movingAverage(closes, i, long),
		}
		if row.ShortMA.Valid && row.LongMA.Valid {
			if row.ShortMA.Value > row.LongMA.Value {
				row.Signal = domain.SignalLong
			} else {
				row.Signal = domain.SignalShort
			}
		}
		if i > 0 {
			row.Position = rows[i-1].Signal
		}
		rows[i] = row
	}
	return rows, nil
}

// movingAverage returns the mean of the w closes ending at index i. The
// mean is formed as close[i] plus the mean deviation from it, so a flat
// window yields close[i] exactly and w == 1 returns the close unchanged.
func movingAverage(closes []float64, i, w int) domain.Float {
	if i < w-1 {
		return domain.Float{}
	}
	anchor := closes[i]
	var dev float64
	for j := i - w + 1; j < i; j++ {
		dev += closes[j] - anchor
	}
	return domain.Some(anchor + dev/float64(w))
}
