package strategy

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"macross/internal/domain"
)

// SearchResult is the outcome of a grid search.
type SearchResult struct {
	Params    domain.Params
	Result    domain.PerformanceResult
	Evaluated int
	Skipped   int
	// Trials holds every evaluated pair in enumeration order.
	Trials []domain.Trial
}

// TrialOutcome is passed to the OnTrial hook after every grid point.
type TrialOutcome struct {
	Params  domain.Params
	Result  domain.PerformanceResult
	Skipped bool
	Err     error
}

// Optimizer searches a (short, long) grid for the highest Sharpe ratio.
type Optimizer struct {
	// Workers bounds concurrent trials. Values <= 1 evaluate inline.
	Workers int
	// OnTrial, when set, is called once per grid point. It may be called
	// from several goroutines.
	OnTrial func(TrialOutcome)
}

// NewOptimizer returns an Optimizer running up to workers trials at once.
func NewOptimizer(workers int) *Optimizer {
	return &Optimizer{Workers: workers}
}

// trial is the per-slot scratch space for one grid point.
type trial struct {
	params domain.Params
	result domain.PerformanceResult
	ok     bool
}

// Search evaluates every pair of shortRange x longRange with short < long.
// Pairs are enumerated short-major in the order the ranges are given; the
// pair with the strictly highest Sharpe ratio wins and ties go to the pair
// enumerated first. Pairs that fail with ErrMissingPosition or
// ErrInvalidParameter are skipped. If nothing could be evaluated Search
// returns ErrNoValidParameters.
func (o *Optimizer) Search(ctx context.Context, series domain.PriceSeries, shortRange, longRange []int) (*SearchResult, error) {
	grid := make([]trial, 0, len(shortRange)*len(longRange))
	skipped := 0
	for _, s := range shortRange {
		for _, l := range longRange {
			if s >= l {
				skipped++
				continue
			}
			grid = append(grid, trial{params: domain.Params{Short: s, Long: l}})
		}
	}

	if o.Workers <= 1 {
		for i := range grid {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := o.evaluate(series, &grid[i]); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.Workers)
		for i := range grid {
			slot := &grid[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return o.evaluate(series, slot)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Reduce by enumeration index so the winner does not depend on
	// completion order.
	res := &SearchResult{Skipped: skipped}
	best := -1
	for i := range grid {
		t := grid[i]
		if !t.ok {
			res.Skipped++
			continue
		}
		res.Evaluated++
		res.Trials = append(res.Trials, domain.Trial{Params: t.params, Result: t.result})
		if best < 0 || t.result.SharpeRatio > grid[best].result.SharpeRatio {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("%w: %d pairs skipped", ErrNoValidParameters, res.Skipped)
	}
	res.Params = grid[best].params
	res.Result = grid[best].result
	return res, nil
}

// evaluate runs one grid point into t. Expected per-pair failures mark the
// slot as skipped; anything else aborts the search.
func (o *Optimizer) evaluate(series domain.PriceSeries, t *trial) error {
	rows, err := Compute(series, t.params.Short, t.params.Long)
	if err == nil {
		t.result, err = Backtest(rows)
	}

	switch {
	case err == nil:
		t.ok = true
	case errors.Is(err, ErrMissingPosition), errors.Is(err, ErrInvalidParameter):
		err = nil
	}

	if o.OnTrial != nil {
		o.OnTrial(TrialOutcome{Params: t.params, Result: t.result, Skipped: !t.ok, Err: err})
	}
	return err
}
