package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"macross/internal/config"
	"macross/internal/gather"
	"macross/internal/store"
	"macross/internal/util"
)

func main() {
	symbols := flag.String("symbols", "", "comma-separated symbols (overrides fetch.symbols)")
	start := flag.String("start", "", "start date YYYY-MM-DD (overrides fetch.start_date)")
	end := flag.String("end", "", "end date YYYY-MM-DD (default today)")
	flag.Parse()

	cfgPath := "config/macross.yaml"
	if p := os.Getenv("MACROSS_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	syms := cfg.Fetch.Symbols
	if *symbols != "" {
		syms = strings.Split(*symbols, ",")
	}
	if len(syms) == 0 {
		log.Fatal("no symbols: set fetch.symbols or pass -symbols")
	}
	startDate, endDate := cfg.Fetch.StartDate, cfg.Fetch.EndDate
	if *start != "" {
		startDate = *start
	}
	if *end != "" {
		endDate = *end
	}
	span, err := gather.ParseDateRange(startDate, endDate, time.Now())
	if err != nil {
		log.Fatalf("invalid date range: %v", err)
	}

	source := gather.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
	fetcher := gather.NewDailyBarFetcher(source, store.NewParquetStore(cfg.Storage.DataDir), gather.FetcherOptions{
		Symbols:         syms,
		Range:           span,
		Feed:            marketdata.Feed(cfg.Alpaca.Feed),
		RateLimitPerMin: cfg.Fetch.RateLimitPerMin,
		MaxAttempts:     cfg.Fetch.MaxAttempts,
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting macross-fetch", "symbols", len(syms), "dataDir", cfg.Storage.DataDir)
	if err := fetcher.Run(ctx); err != nil {
		log.Fatalf("fetch error: %v", err)
	}
}
