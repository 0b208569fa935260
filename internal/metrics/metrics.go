// Package metrics exposes Prometheus instruments for grid searches.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TrialsTotal counts grid points by outcome: evaluated or skipped.
	TrialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "macross_trials_total", Help: "Grid points processed, by outcome"},
		[]string{"outcome"},
	)
	// SearchesTotal counts grid searches by result: ok, no_valid or error.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "macross_searches_total", Help: "Grid searches run, by result"},
		[]string{"result"},
	)
	// SearchDuration observes the wall time of each grid search.
	SearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "macross_search_duration_seconds",
		Help:    "Wall time of a full grid search",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})
	// BestSharpe holds the winning Sharpe ratio of the latest search per symbol.
	BestSharpe = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "macross_best_sharpe_ratio", Help: "Sharpe ratio of the latest winning pair"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(TrialsTotal, SearchesTotal, SearchDuration, BestSharpe)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a /metrics listener on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
