package api

import (
	"fmt"
	"time"

	"macross/internal/domain"
	"macross/internal/engine"
	"macross/internal/report"
	"macross/pkg/macross"
)

// Defaults supplies grid ranges for requests that omit them and bounds
// the ranges a request may ask for.
type Defaults struct {
	Short domain.IntRange
	Long  domain.IntRange
	// MaxRangeLen caps the number of windows in one requested range. Zero
	// means maxRangeValues.
	MaxRangeLen int
}

// maxRangeValues bounds range expansion when no window limit is configured.
const maxRangeValues = 1 << 16

func parseSpan(start, end string, now time.Time) (time.Time, time.Time, error) {
	var s, e time.Time
	var err error
	if start != "" {
		if s, err = time.Parse(time.DateOnly, start); err != nil {
			return s, e, fmt.Errorf("%w: start date %q", engine.ErrBadRequest, start)
		}
	}
	e = now.UTC()
	if end != "" {
		if e, err = time.Parse(time.DateOnly, end); err != nil {
			return s, e, fmt.Errorf("%w: end date %q", engine.ErrBadRequest, end)
		}
	}
	if e.Before(s) {
		return s, e, fmt.Errorf("%w: end %s before start %s", engine.ErrBadRequest, end, start)
	}
	return s, e, nil
}

// toRange expands a requested range, refusing ranges longer than maxLen
// before anything is allocated.
func toRange(name string, r *macross.Range, def domain.IntRange, maxLen int) ([]int, error) {
	if r == nil {
		return def.Values(), nil
	}
	if maxLen <= 0 {
		maxLen = maxRangeValues
	}
	ir := domain.IntRange{Start: r.Start, Stop: r.Stop, Step: r.Step}
	if n := ir.Len(); n > maxLen {
		return nil, fmt.Errorf("%w: %s range has %d windows, limit %d", engine.ErrBadRequest, name, n, maxLen)
	}
	return ir.Values(), nil
}

func optimizeRequest(in macross.OptimizeRequest, defs Defaults, now time.Time) (engine.OptimizeRequest, error) {
	start, end, err := parseSpan(in.Start, in.End, now)
	if err != nil {
		return engine.OptimizeRequest{}, err
	}
	short, err := toRange("short", in.Short, defs.Short, defs.MaxRangeLen)
	if err != nil {
		return engine.OptimizeRequest{}, err
	}
	long, err := toRange("long", in.Long, defs.Long, defs.MaxRangeLen)
	if err != nil {
		return engine.OptimizeRequest{}, err
	}
	return engine.OptimizeRequest{
		Symbol: in.Symbol,
		Start:  start,
		End:    end,
		Short:  short,
		Long:   long,
	}, nil
}

func backtestRequest(in macross.BacktestRequest, now time.Time) (engine.BacktestRequest, error) {
	start, end, err := parseSpan(in.Start, in.End, now)
	if err != nil {
		return engine.BacktestRequest{}, err
	}
	return engine.BacktestRequest{
		Symbol: in.Symbol,
		Start:  start,
		End:    end,
		Params: domain.Params{Short: in.Short, Long: in.Long},
	}, nil
}

func fromPerformance(p domain.PerformanceResult) macross.Performance {
	return macross.Performance{TotalReturn: p.TotalReturn, SharpeRatio: p.SharpeRatio, MaxDrawdown: p.MaxDrawdown}
}

func fromParams(p domain.Params) macross.Params {
	return macross.Params{Short: p.Short, Long: p.Long}
}

func fromRun(r *domain.Run) macross.Run {
	out := macross.Run{
		ID:        r.ID,
		Symbol:    r.Symbol,
		Start:     r.Start,
		End:       r.End,
		Bars:      r.Bars,
		Best:      fromParams(r.Best),
		Result:    fromPerformance(r.Result),
		Evaluated: r.Evaluated,
		Skipped:   r.Skipped,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Trials) > 0 {
		out.Trials = make([]macross.Trial, len(r.Trials))
		for i, t := range r.Trials {
			out.Trials[i] = macross.Trial{Params: fromParams(t.Params), Result: fromPerformance(t.Result)}
		}
	}
	return out
}

func floatPtr(f domain.Float) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

func fromBacktest(rep *engine.BacktestReport, withRows bool) macross.BacktestResponse {
	out := macross.BacktestResponse{
		Symbol: rep.Symbol,
		Params: fromParams(rep.Params),
		Result: fromPerformance(rep.Result),
		Bars:   len(rep.Rows),
	}
	if !withRows {
		return out
	}
	out.Rows = make([]macross.SignalRow, len(rep.Rows))
	for i, r := range rep.Rows {
		out.Rows[i] = macross.SignalRow{
			Date:     r.Timestamp.Format(time.DateOnly),
			Close:    r.Close,
			ShortMA:  floatPtr(r.ShortMA),
			LongMA:   floatPtr(r.LongMA),
			Signal:   int(r.Signal),
			Position: int(r.Position),
		}
	}
	curves := report.EquityCurves(rep.Rows)
	out.Equity = make([]macross.EquityPoint, len(curves))
	for i, p := range curves {
		out.Equity[i] = macross.EquityPoint{
			Date:     p.Timestamp.Format(time.DateOnly),
			Strategy: p.Strategy,
			BuyHold:  p.BuyHold,
		}
	}
	return out
}
