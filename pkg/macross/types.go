package macross

import "time"

// Range is a half-open integer range [Start, Stop) advanced by Step. A
// zero Step means 1.
type Range struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
	Step  int `json:"step,omitempty"`
}

// OptimizeRequest is the body of POST /api/v1/optimize. Dates are
// YYYY-MM-DD; nil ranges use the server defaults.
type OptimizeRequest struct {
	Symbol string `json:"symbol"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	Short  *Range `json:"short,omitempty"`
	Long   *Range `json:"long,omitempty"`
}

// BacktestRequest is the body of POST /api/v1/backtest.
type BacktestRequest struct {
	Symbol string `json:"symbol"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	Short  int    `json:"short"`
	Long   int    `json:"long"`
	// Rows asks for the per-bar signal table and equity curves.
	Rows bool `json:"rows,omitempty"`
}

// Params is a (short, long) window pair.
type Params struct {
	Short int `json:"short"`
	Long  int `json:"long"`
}

// Performance holds the three backtest metrics.
type Performance struct {
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Trial is one evaluated grid point.
type Trial struct {
	Params Params      `json:"params"`
	Result Performance `json:"result"`
}

// Run is a stored optimization.
type Run struct {
	ID        string      `json:"id"`
	Symbol    string      `json:"symbol"`
	Start     time.Time   `json:"start"`
	End       time.Time   `json:"end"`
	Bars      int         `json:"bars"`
	Best      Params      `json:"best"`
	Result    Performance `json:"result"`
	Evaluated int         `json:"evaluated"`
	Skipped   int         `json:"skipped"`
	Trials    []Trial     `json:"trials,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// SignalRow is one bar of a backtest. Nil averages are still warming up.
type SignalRow struct {
	Date     string   `json:"date"`
	Close    float64  `json:"close"`
	ShortMA  *float64 `json:"short_ma"`
	LongMA   *float64 `json:"long_ma"`
	Signal   int      `json:"signal"`
	Position int      `json:"position"`
}

// EquityPoint is one bar of the strategy and buy-and-hold wealth curves.
type EquityPoint struct {
	Date     string  `json:"date"`
	Strategy float64 `json:"strategy"`
	BuyHold  float64 `json:"buy_hold"`
}

// BacktestResponse is returned by POST /api/v1/backtest.
type BacktestResponse struct {
	Symbol string        `json:"symbol"`
	Params Params        `json:"params"`
	Result Performance   `json:"result"`
	Bars   int           `json:"bars"`
	Rows   []SignalRow   `json:"rows,omitempty"`
	Equity []EquityPoint `json:"equity,omitempty"`
}

// RunList is returned by GET /api/v1/runs.
type RunList struct {
	Runs []Run `json:"runs"`
}

// SymbolList is returned by GET /api/v1/symbols.
type SymbolList struct {
	Symbols []string `json:"symbols"`
}

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}
