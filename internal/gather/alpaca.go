package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"macross/internal/domain"
	"macross/internal/store"
	"macross/internal/util"
)

var _ Gatherer = (*DailyBarFetcher)(nil)

// BarSource is the subset of the Alpaca market-data client the fetcher
// needs. *marketdata.Client satisfies it.
type BarSource interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// FetcherOptions configures a DailyBarFetcher.
type FetcherOptions struct {
	Symbols         []string
	Range           DateRange
	Feed            marketdata.Feed
	RateLimitPerMin int
	MaxAttempts     int
	RetryDelay      time.Duration
}

// DailyBarFetcher downloads split- and dividend-adjusted daily bars for a
// fixed symbol list and writes them to a BarStore.
type DailyBarFetcher struct {
	source  BarSource
	store   store.BarStore
	opts    FetcherOptions
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewAlpacaSource builds a market-data client from credentials. An empty
// dataURL uses the SDK default.
func NewAlpacaSource(apiKey, apiSecret, dataURL string) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return marketdata.NewClient(opts)
}

// NewDailyBarFetcher creates a fetcher reading from source and writing to s.
func NewDailyBarFetcher(source BarSource, s store.BarStore, opts FetcherOptions, log *slog.Logger) *DailyBarFetcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	limit := rate.Inf
	if opts.RateLimitPerMin > 0 {
		limit = rate.Limit(float64(opts.RateLimitPerMin) / 60)
	}
	if log == nil {
		log = slog.Default()
	}
	return &DailyBarFetcher{
		source:  source,
		store:   s,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With("gatherer", "daily-bars"),
	}
}

// Name returns the gatherer identifier.
func (f *DailyBarFetcher) Name() string { return "daily-bars" }

// Run fetches every configured symbol. A failing symbol is logged and the
// remaining symbols are still fetched; the joined errors are returned.
func (f *DailyBarFetcher) Run(ctx context.Context) error {
	runStart := time.Now()
	var errs []error
	total := 0

	f.log.Info("starting fetch",
		"symbols", len(f.opts.Symbols),
		"start", f.opts.Range.Start.Format(time.DateOnly),
		"end", f.opts.Range.End.Format(time.DateOnly),
	)

	for _, sym := range f.opts.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := f.FetchSymbol(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Error("fetch failed", "symbol", sym, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
			continue
		}
		total += n
		f.log.Info("symbol done", "symbol", sym, "bars", n)
	}

	f.log.Info("complete",
		"bars", total,
		"failed", len(errs),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return errors.Join(errs...)
}

// FetchSymbol downloads one symbol's bars and stores them, returning the
// number written.
func (f *DailyBarFetcher) FetchSymbol(ctx context.Context, symbol string) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, errors.New("empty symbol")
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, f.opts.MaxAttempts, f.opts.RetryDelay, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		raw, err = f.source.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Start:      f.opts.Range.Start,
			End:        f.opts.Range.End,
			Adjustment: marketdata.All,
			Feed:       f.opts.Feed,
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("GetBars: %w", err)
	}

	bars := toDomainBars(symbol, raw)
	if len(bars) == 0 {
		return 0, nil
	}
	if err := f.store.WriteBars(ctx, bars); err != nil {
		return 0, fmt.Errorf("writing bars: %w", err)
	}
	return len(bars), nil
}

// toDomainBars converts provider bars, dropping bars without a positive
// close and normalising timestamps to UTC midnight.
func toDomainBars(symbol string, raw []marketdata.Bar) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		if !(ab.Close > 0) {
			continue
		}
		ts := ab.Timestamp.UTC()
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return bars
}
