package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve("127.0.0.1:0")
	defer srv.Close()

	TrialsTotal.WithLabelValues("evaluated").Inc()
	SearchesTotal.WithLabelValues("ok").Inc()
	BestSharpe.WithLabelValues("AAPL").Set(1.25)

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{
		"macross_trials_total":      false,
		"macross_searches_total":    false,
		"macross_best_sharpe_ratio": false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s metric not found", name)
		}
	}
}
