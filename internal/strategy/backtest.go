package strategy

import (
	"fmt"
	"math"

	"macross/internal/domain"
)

// TradingDaysPerYear annualises the daily Sharpe ratio.
const TradingDaysPerYear = 252

// Backtest scores rows produced by Compute.
//
// It fails with ErrMissingPosition when no row carries a defined position.
func Backtest(rows []domain.SignalRow) (domain.PerformanceResult, error) {
	if !hasPosition(rows) {
		return domain.PerformanceResult{}, fmt.Errorf("%w: %d rows", ErrMissingPosition, len(rows))
	}

	returns := StrategyReturns(rows)
	return domain.PerformanceResult{
		TotalReturn: totalReturn(returns),
		SharpeRatio: sharpeRatio(returns),
		MaxDrawdown: maxDrawdown(returns),
	}, nil
}

// DailyReturns returns close[i]/close[i-1]-1 per row; row 0 is undefined.
func DailyReturns(rows []domain.SignalRow) []domain.Float {
	out := make([]domain.Float, len(rows))
	for i := 1; i < len(rows); i++ {
		out[i] = domain.Some(rows[i].Close/rows[i-1].Close - 1)
	}
	return out
}

// StrategyReturns returns position*daily return per row. Rows where either
// side is undefined contribute exactly 0.
func StrategyReturns(rows []domain.SignalRow) []float64 {
	daily := DailyReturns(rows)
	out := make([]float64, len(rows))
	for i, row := range rows {
		if !row.Position.Defined() || !daily[i].Valid {
			continue
		}
		out[i] = float64(row.Position) * daily[i].Value
	}
	return out
}

func hasPosition(rows []domain.SignalRow) bool {
	for _, r := range rows {
		if r.Position.Defined() {
			return true
		}
	}
	return false
}

// totalReturn compounds log-style: exp(sum) - 1.
func totalReturn(returns []float64) float64 {
	var sum float64
	for _, r := range returns {
		sum += r
	}
	return math.Exp(sum) - 1
}

// sharpeRatio is mean/stddev*sqrt(252) using the sample standard deviation.
// It is 0 when the deviation is zero or cannot be formed.
func sharpeRatio(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}

// maxDrawdown walks the wealth curve prod(1+r) and returns the most negative
// W[i]/max(W[0..i]) - 1.
func maxDrawdown(returns []float64) float64 {
	var (
		wealth = 1.0
		peak   float64
		worst  float64
	)
	for i, r := range returns {
		wealth *= 1 + r
		if i == 0 || wealth > peak {
			peak = wealth
		}
		if dd := wealth/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}
