package macross

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestClientOptimize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/optimize" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req OptimizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if req.Symbol != "SPY" || req.Short == nil || req.Short.Stop != 5 {
			t.Errorf("body = %+v", req)
		}
		json.NewEncoder(w).Encode(Run{ID: "r1", Symbol: "SPY", Best: Params{Short: 2, Long: 20}})
	}))
	defer srv.Close()

	run, err := NewClient(srv.URL).Optimize(context.Background(), OptimizeRequest{
		Symbol: "SPY", Short: &Range{Start: 1, Stop: 5}, Long: &Range{Start: 10, Stop: 30},
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if run.ID != "r1" || run.Best.Long != 20 {
		t.Errorf("Optimize = %+v", run)
	}
}

func TestClientListRunsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("symbol = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		json.NewEncoder(w).Encode(RunList{Runs: []Run{{ID: "a"}, {ID: "b"}}})
	}))
	defer srv.Close()

	runs, err := NewClient(srv.URL).ListRuns(context.Background(), "AAPL", 5)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[1].ID != "b" {
		t.Errorf("ListRuns = %+v", runs)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorBody{Error: "run not found"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetRun(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetRun err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "run not found" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestClientPlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Symbols(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "boom" {
		t.Errorf("Symbols err = %v, want APIError with body text", err)
	}
}
