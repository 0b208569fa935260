// Package domain defines the core data types shared across macross: price
// bars and series, derived signal rows, strategy parameters, and performance
// results.
package domain

import (
	"time"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is a single daily OHLCV bar as delivered by the market-data provider
// and persisted in the bar store.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// PriceBar is the minimal bar the signal engine consumes.
type PriceBar struct {
	Timestamp time.Time
	Close     float64
}

// ---------------------------------------------------------------------------
// Derived rows
// ---------------------------------------------------------------------------

// Float is a float64 that may be undefined, e.g. a moving average before
// its window has filled.
type Float struct {
	Value float64
	Valid bool
}

// Some returns a defined Float.
func Some(v float64) Float { return Float{Value: v, Valid: true} }

// Signal is a directional indicator. The zero value means undefined.
type Signal int8

const (
	SignalNone  Signal = 0
	SignalLong  Signal = 1
	SignalShort Signal = -1
)

// Defined reports whether s carries a direction.
func (s Signal) Defined() bool { return s != SignalNone }

// String returns "long", "short" or "none".
func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "long"
	case SignalShort:
		return "short"
	default:
		return "none"
	}
}

// SignalRow is one derived row per input bar.
type SignalRow struct {
	Timestamp time.Time
	Close     float64
	ShortMA   Float
	LongMA    Float
	Signal    Signal
	// Position is the previous row's Signal.
	Position Signal
}

// ---------------------------------------------------------------------------
// Parameters and results
// ---------------------------------------------------------------------------

// Params is a (short window, long window) pair.
type Params struct {
	Short int `json:"short" yaml:"short"`
	Long  int `json:"long" yaml:"long"`
}

// Valid reports whether both windows are positive and Short < Long.
func (p Params) Valid() bool {
	return p.Short >= 1 && p.Long >= 1 && p.Short < p.Long
}

// PerformanceResult summarises a single backtest.
type PerformanceResult struct {
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Trial is one evaluated grid point.
type Trial struct {
	Params Params            `json:"params"`
	Result PerformanceResult `json:"result"`
}

// Run is a persisted optimization run.
type Run struct {
	ID        string            `json:"id"`
	Symbol    string            `json:"symbol"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	Bars      int               `json:"bars"`
	Best      Params            `json:"best"`
	Result    PerformanceResult `json:"result"`
	Evaluated int               `json:"evaluated"`
	Skipped   int               `json:"skipped"`
	Trials    []Trial           `json:"trials,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
