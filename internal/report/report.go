// Package report renders optimization runs and backtests for terminals.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"macross/internal/domain"
	"macross/internal/strategy"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
)

// EquityPoint is one row of the strategy and buy-and-hold wealth curves.
type EquityPoint struct {
	Timestamp time.Time
	Strategy  float64
	BuyHold   float64
}

// EquityCurves compounds strategy and buy-and-hold returns from 1.0.
// Undefined returns contribute nothing.
func EquityCurves(rows []domain.SignalRow) []EquityPoint {
	strat := strategy.StrategyReturns(rows)
	daily := strategy.DailyReturns(rows)

	out := make([]EquityPoint, len(rows))
	s, b := 1.0, 1.0
	for i, r := range rows {
		s *= 1 + strat[i]
		if daily[i].Valid {
			b *= 1 + daily[i].Value
		}
		out[i] = EquityPoint{Timestamp: r.Timestamp, Strategy: s, BuyHold: b}
	}
	return out
}

// Percent formats a fraction as a percentage with two decimals.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}

// Ratio formats a ratio with three decimals.
func Ratio(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(3)
}

func signed(v float64, s string) string {
	if v < 0 {
		return lossStyle.Render(s)
	}
	return gainStyle.Render(s)
}

// Summary writes the headline figures of a run.
func Summary(w io.Writer, run *domain.Run) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  SMA %d/%d", run.Symbol, run.Best.Short, run.Best.Long)))
	b.WriteByte('\n')
	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", label)), value)
	}
	if run.ID != "" {
		line("run", run.ID)
	}
	line("period", fmt.Sprintf("%s .. %s (%d bars)",
		run.Start.Format(time.DateOnly), run.End.Format(time.DateOnly), run.Bars))
	line("total return", signed(run.Result.TotalReturn, Percent(run.Result.TotalReturn)))
	line("sharpe", signed(run.Result.SharpeRatio, Ratio(run.Result.SharpeRatio)))
	line("max drawdown", signed(run.Result.MaxDrawdown, Percent(run.Result.MaxDrawdown)))
	line("trials", fmt.Sprintf("%d evaluated, %d skipped", run.Evaluated, run.Skipped))

	_, err := io.WriteString(w, b.String())
	return err
}

// TopTrials writes the n trials with the highest Sharpe ratio. Equal
// ratios keep enumeration order.
func TopTrials(w io.Writer, trials []domain.Trial, n int) error {
	sorted := append([]domain.Trial(nil), trials...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Result.SharpeRatio > sorted[j].Result.SharpeRatio
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%6s %6s %10s %8s %10s", "short", "long", "return", "sharpe", "drawdown")))
	b.WriteByte('\n')
	for _, t := range sorted {
		fmt.Fprintf(&b, "%6d %6d %10s %8s %10s\n",
			t.Params.Short, t.Params.Long,
			Percent(t.Result.TotalReturn), Ratio(t.Result.SharpeRatio), Percent(t.Result.MaxDrawdown))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Backtest writes a single backtest result followed by the final equity of
// both curves.
func Backtest(w io.Writer, symbol string, p domain.Params, rows []domain.SignalRow, res domain.PerformanceResult) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  SMA %d/%d backtest", symbol, p.Short, p.Long)))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("total return  "), signed(res.TotalReturn, Percent(res.TotalReturn)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("sharpe        "), signed(res.SharpeRatio, Ratio(res.SharpeRatio)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("max drawdown  "), signed(res.MaxDrawdown, Percent(res.MaxDrawdown)))

	if curves := EquityCurves(rows); len(curves) > 0 {
		last := curves[len(curves)-1]
		fmt.Fprintf(&b, "%s strategy %s, buy&hold %s\n",
			labelStyle.Render("final equity  "),
			decimal.NewFromFloat(last.Strategy).StringFixed(4),
			decimal.NewFromFloat(last.BuyHold).StringFixed(4))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
