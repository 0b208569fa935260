package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"macross/internal/config"
	"macross/internal/domain"
	"macross/internal/engine"
	"macross/internal/report"
	"macross/internal/store"
	"macross/internal/util"
	"macross/pkg/macross"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: macross <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  optimize   Grid-search SMA crossover windows for a symbol\n")
	fmt.Fprintf(os.Stderr, "  backtest   Backtest one window pair\n")
	fmt.Fprintf(os.Stderr, "  runs       List stored optimization runs\n")
	fmt.Fprintf(os.Stderr, "  show       Show a stored run\n")
	fmt.Fprintf(os.Stderr, "  symbols    List symbols with cached bars\n")
	fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "\nPass -server URL to run against macross-server instead of local storage.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("macross %s\n", version)
	case "optimize":
		err = cmdOptimize(ctx, os.Args[2:])
	case "backtest":
		err = cmdBacktest(ctx, os.Args[2:])
	case "runs":
		err = cmdRuns(ctx, os.Args[2:])
	case "show":
		err = cmdShow(ctx, os.Args[2:])
	case "symbols":
		err = cmdSymbols(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "macross %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Shared flags and backends
// ---------------------------------------------------------------------------

type common struct {
	server string
	config string
}

func (c *common) register(fs *flag.FlagSet) {
	cfgPath := "config/macross.yaml"
	if p := os.Getenv("MACROSS_CONFIG"); p != "" {
		cfgPath = p
	}
	fs.StringVar(&c.server, "server", os.Getenv("MACROSS_SERVER"), "macross-server base URL; empty uses local storage")
	fs.StringVar(&c.config, "config", cfgPath, "config file for local mode")
}

// local opens the engine over the configured stores. The returned func
// closes the run store.
func (c *common) local() (*engine.Engine, *config.Config, func(), error) {
	cfg, err := config.Load(c.config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, nil, nil, err
	}
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening run store: %w", err)
	}
	eng := engine.NewEngine(
		store.NewParquetStore(cfg.Storage.DataDir),
		runs,
		cfg.Optimize.Workers,
		engine.NewLimits(cfg.Limits.MaxTrials, cfg.Limits.MaxWindow),
		logger,
	)
	return eng, cfg, func() { runs.Close() }, nil
}

// parseRange parses "start:stop[:step]" into a half-open range.
func parseRange(s string) (*domain.IntRange, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("range %q: want start:stop[:step]", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", s, err)
		}
		nums[i] = n
	}
	r := &domain.IntRange{Start: nums[0], Stop: nums[1], Step: 1}
	if len(nums) == 3 {
		r.Step = nums[2]
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("range %q: %w", s, err)
	}
	return r, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func toWireRange(r *domain.IntRange) *macross.Range {
	if r == nil {
		return nil
	}
	return &macross.Range{Start: r.Start, Stop: r.Stop, Step: r.Step}
}

func fromWireRun(r *macross.Run) *domain.Run {
	out := &domain.Run{
		ID:        r.ID,
		Symbol:    r.Symbol,
		Start:     r.Start,
		End:       r.End,
		Bars:      r.Bars,
		Best:      domain.Params{Short: r.Best.Short, Long: r.Best.Long},
		Result:    fromWirePerformance(r.Result),
		Evaluated: r.Evaluated,
		Skipped:   r.Skipped,
		CreatedAt: r.CreatedAt,
	}
	for _, t := range r.Trials {
		out.Trials = append(out.Trials, domain.Trial{
			Params: domain.Params{Short: t.Params.Short, Long: t.Params.Long},
			Result: fromWirePerformance(t.Result),
		})
	}
	return out
}

func fromWirePerformance(p macross.Performance) domain.PerformanceResult {
	return domain.PerformanceResult{TotalReturn: p.TotalReturn, SharpeRatio: p.SharpeRatio, MaxDrawdown: p.MaxDrawdown}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func cmdOptimize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	var c common
	c.register(fs)
	symbol := fs.String("symbol", "", "ticker symbol (required)")
	start := fs.String("start", "", "first date YYYY-MM-DD")
	end := fs.String("end", "", "last date YYYY-MM-DD (default today)")
	shortFlag := fs.String("short", "", "short windows start:stop[:step] (default from config)")
	longFlag := fs.String("long", "", "long windows start:stop[:step] (default from config)")
	top := fs.Int("top", 10, "number of best trials to print")
	fs.Parse(args)

	shortR, err := parseRange(*shortFlag)
	if err != nil {
		return err
	}
	longR, err := parseRange(*longFlag)
	if err != nil {
		return err
	}

	var run *domain.Run
	if c.server != "" {
		wire, err := macross.NewClient(c.server).Optimize(ctx, macross.OptimizeRequest{
			Symbol: *symbol, Start: *start, End: *end,
			Short: toWireRange(shortR), Long: toWireRange(longR),
		})
		if err != nil {
			return err
		}
		run = fromWireRun(wire)
	} else {
		eng, cfg, closeFn, err := c.local()
		if err != nil {
			return err
		}
		defer closeFn()
		if shortR == nil {
			shortR = &cfg.Optimize.Short
		}
		if longR == nil {
			longR = &cfg.Optimize.Long
		}
		from, err := parseDate(*start)
		if err != nil {
			return err
		}
		to := time.Now().UTC()
		if *end != "" {
			if to, err = parseDate(*end); err != nil {
				return err
			}
		}
		run, err = eng.Optimize(ctx, engine.OptimizeRequest{
			Symbol: *symbol, Start: from, End: to,
			Short: shortR.Values(), Long: longR.Values(),
		})
		if err != nil {
			return err
		}
	}

	if err := report.Summary(os.Stdout, run); err != nil {
		return err
	}
	if *top > 0 && len(run.Trials) > 0 {
		fmt.Println()
		return report.TopTrials(os.Stdout, run.Trials, *top)
	}
	return nil
}

func cmdBacktest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	var c common
	c.register(fs)
	symbol := fs.String("symbol", "", "ticker symbol (required)")
	start := fs.String("start", "", "first date YYYY-MM-DD")
	end := fs.String("end", "", "last date YYYY-MM-DD (default today)")
	short := fs.Int("short", 0, "short window")
	long := fs.Int("long", 0, "long window")
	fs.Parse(args)

	params := domain.Params{Short: *short, Long: *long}
	if c.server != "" {
		resp, err := macross.NewClient(c.server).Backtest(ctx, macross.BacktestRequest{
			Symbol: *symbol, Start: *start, End: *end, Short: *short, Long: *long,
		})
		if err != nil {
			return err
		}
		return report.Backtest(os.Stdout, resp.Symbol, params, nil, fromWirePerformance(resp.Result))
	}

	eng, _, closeFn, err := c.local()
	if err != nil {
		return err
	}
	defer closeFn()
	from, err := parseDate(*start)
	if err != nil {
		return err
	}
	to := time.Now().UTC()
	if *end != "" {
		if to, err = parseDate(*end); err != nil {
			return err
		}
	}
	rep, err := eng.Backtest(ctx, engine.BacktestRequest{Symbol: *symbol, Start: from, End: to, Params: params})
	if err != nil {
		return err
	}
	return report.Backtest(os.Stdout, rep.Symbol, rep.Params, rep.Rows, rep.Result)
}

func cmdRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	var c common
	c.register(fs)
	symbol := fs.String("symbol", "", "filter by symbol")
	limit := fs.Int("limit", 20, "maximum runs to list")
	fs.Parse(args)

	var runs []domain.Run
	if c.server != "" {
		wire, err := macross.NewClient(c.server).ListRuns(ctx, *symbol, *limit)
		if err != nil {
			return err
		}
		for i := range wire {
			runs = append(runs, *fromWireRun(&wire[i]))
		}
	} else {
		eng, _, closeFn, err := c.local()
		if err != nil {
			return err
		}
		defer closeFn()
		if runs, err = eng.Runs(ctx, *symbol, *limit); err != nil {
			return err
		}
	}

	for _, r := range runs {
		fmt.Printf("%s  %-6s %4d/%-4d sharpe %s  return %s  %s\n",
			r.ID, r.Symbol, r.Best.Short, r.Best.Long,
			report.Ratio(r.Result.SharpeRatio), report.Percent(r.Result.TotalReturn),
			r.CreatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func cmdShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	var c common
	c.register(fs)
	top := fs.Int("top", 10, "number of best trials to print")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: macross show [options] <run-id>")
	}
	id := fs.Arg(0)

	var run *domain.Run
	if c.server != "" {
		wire, err := macross.NewClient(c.server).GetRun(ctx, id)
		if err != nil {
			return err
		}
		run = fromWireRun(wire)
	} else {
		eng, _, closeFn, err := c.local()
		if err != nil {
			return err
		}
		defer closeFn()
		if run, err = eng.Run(ctx, id); err != nil {
			return err
		}
	}

	if err := report.Summary(os.Stdout, run); err != nil {
		return err
	}
	if *top > 0 && len(run.Trials) > 0 {
		fmt.Println()
		return report.TopTrials(os.Stdout, run.Trials, *top)
	}
	return nil
}

func cmdSymbols(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("symbols", flag.ExitOnError)
	var c common
	c.register(fs)
	fs.Parse(args)

	var symbols []string
	if c.server != "" {
		var err error
		if symbols, err = macross.NewClient(c.server).Symbols(ctx); err != nil {
			return err
		}
	} else {
		eng, _, closeFn, err := c.local()
		if err != nil {
			return err
		}
		defer closeFn()
		if symbols, err = eng.Symbols(ctx); err != nil {
			return err
		}
	}
	for _, s := range symbols {
		fmt.Println(s)
	}
	return nil
}
