// Package engine coordinates loading price history, running the crossover
// grid search, and persisting the resulting runs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"macross/internal/domain"
	"macross/internal/metrics"
	"macross/internal/store"
	"macross/internal/strategy"
)

// ErrBadRequest reports a malformed request.
var ErrBadRequest = errors.New("bad request")

// OptimizeRequest asks for a grid search over one symbol's history.
type OptimizeRequest struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Short  []int
	Long   []int
}

// BacktestRequest asks for a single parameter pair to be replayed.
type BacktestRequest struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Params domain.Params
}

// BacktestReport holds the derived rows and their score.
type BacktestReport struct {
	Symbol string
	Params domain.Params
	Rows   []domain.SignalRow
	Result domain.PerformanceResult
}

// Engine wires the bar store, optimizer and run history together.
type Engine struct {
	bars      store.BarStore
	runs      store.RunStore
	optimizer *strategy.Optimizer
	limits    Limits
	log       *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewEngine creates an Engine. runs may be nil, in which case runs are not
// persisted.
func NewEngine(bars store.BarStore, runs store.RunStore, workers int, limits Limits, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	opt := strategy.NewOptimizer(workers)
	opt.OnTrial = func(o strategy.TrialOutcome) {
		if o.Skipped {
			metrics.TrialsTotal.WithLabelValues("skipped").Inc()
		} else {
			metrics.TrialsTotal.WithLabelValues("evaluated").Inc()
		}
	}
	return &Engine{
		bars:      bars,
		runs:      runs,
		optimizer: opt,
		limits:    limits,
		log:       log.With("component", "engine"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Optimize loads the series for req, searches the grid, and persists the
// run with all evaluated trials.
func (e *Engine) Optimize(ctx context.Context, req OptimizeRequest) (*domain.Run, error) {
	symbol, err := normalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	short, long, truncated, err := e.limits.Apply(req.Short, req.Long)
	if err != nil {
		return nil, err
	}
	if truncated {
		e.log.Warn("grid truncated to trial limit",
			"symbol", symbol, "short", len(short), "long", len(long), "maxTrials", e.limits.MaxTrials)
	}

	series, err := store.ReadSeries(ctx, e.bars, symbol, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", symbol, err)
	}

	started := time.Now()
	res, err := e.optimizer.Search(ctx, series, short, long)
	metrics.SearchDuration.Observe(time.Since(started).Seconds())
	switch {
	case errors.Is(err, strategy.ErrNoValidParameters):
		metrics.SearchesTotal.WithLabelValues("no_valid").Inc()
		return nil, fmt.Errorf("optimizing %s over %d bars: %w", symbol, series.Len(), err)
	case err != nil:
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("optimizing %s: %w", symbol, err)
	}
	metrics.SearchesTotal.WithLabelValues("ok").Inc()
	metrics.BestSharpe.WithLabelValues(symbol).Set(res.Result.SharpeRatio)

	run := &domain.Run{
		ID:        e.newID(),
		Symbol:    symbol,
		Start:     series.Start(),
		End:       series.End(),
		Bars:      series.Len(),
		Best:      res.Params,
		Result:    res.Result,
		Evaluated: res.Evaluated,
		Skipped:   res.Skipped,
		Trials:    res.Trials,
		CreatedAt: e.now().UTC(),
	}

	e.log.Info("optimization complete",
		"run", run.ID,
		"symbol", symbol,
		"bars", run.Bars,
		"short", run.Best.Short,
		"long", run.Best.Long,
		"sharpe", run.Result.SharpeRatio,
		"evaluated", run.Evaluated,
		"skipped", run.Skipped,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if e.runs != nil {
		if err := e.runs.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("saving run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

// Backtest replays one parameter pair over the symbol's history.
func (e *Engine) Backtest(ctx context.Context, req BacktestRequest) (*BacktestReport, error) {
	symbol, err := normalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	if e.limits.MaxWindow > 0 && req.Params.Long > e.limits.MaxWindow {
		return nil, fmt.Errorf("%w: window %d exceeds limit %d", ErrBadRequest, req.Params.Long, e.limits.MaxWindow)
	}

	series, err := store.ReadSeries(ctx, e.bars, symbol, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", symbol, err)
	}
	rows, err := strategy.Compute(series, req.Params.Short, req.Params.Long)
	if err != nil {
		return nil, err
	}
	result, err := strategy.Backtest(rows)
	if err != nil {
		return nil, fmt.Errorf("backtesting %s %d/%d: %w", symbol, req.Params.Short, req.Params.Long, err)
	}
	return &BacktestReport{Symbol: symbol, Params: req.Params, Rows: rows, Result: result}, nil
}

// Run returns a stored run by id.
func (e *Engine) Run(ctx context.Context, id string) (*domain.Run, error) {
	if e.runs == nil {
		return nil, store.ErrRunNotFound
	}
	return e.runs.GetRun(ctx, id)
}

// Runs lists stored runs, newest first.
func (e *Engine) Runs(ctx context.Context, symbol string, limit int) ([]domain.Run, error) {
	if e.runs == nil {
		return nil, nil
	}
	return e.runs.ListRuns(ctx, strings.ToUpper(symbol), limit)
}

// Symbols lists symbols with stored bars.
func (e *Engine) Symbols(ctx context.Context) ([]string, error) {
	return e.bars.ListSymbols(ctx)
}

func normalizeSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: symbol is required", ErrBadRequest)
	}
	return s, nil
}
