package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"macross/internal/domain"
	"macross/internal/engine"
	"macross/internal/store"
	"macross/internal/strategy"
	"macross/pkg/macross"
)

const maxBodyBytes = 1 << 20

// Service is the engine surface exposed over HTTP and gRPC.
// *engine.Engine satisfies it.
type Service interface {
	Optimize(ctx context.Context, req engine.OptimizeRequest) (*domain.Run, error)
	Backtest(ctx context.Context, req engine.BacktestRequest) (*engine.BacktestReport, error)
	Run(ctx context.Context, id string) (*domain.Run, error)
	Runs(ctx context.Context, symbol string, limit int) ([]domain.Run, error)
	Symbols(ctx context.Context) ([]string, error)
}

var _ Service = (*engine.Engine)(nil)

// Handlers serves the REST API.
type Handlers struct {
	svc      Service
	defaults Defaults
	log      *slog.Logger
	now      func() time.Time
}

// NewHandlers creates REST handlers backed by svc.
func NewHandlers(svc Service, defaults Defaults, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{svc: svc, defaults: defaults, log: log, now: time.Now}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/optimize", h.handleOptimize)
	mux.HandleFunc("POST /api/v1/backtest", h.handleBacktest)
	mux.HandleFunc("GET /api/v1/runs", h.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.handleGetRun)
	mux.HandleFunc("GET /api/v1/symbols", h.handleSymbols)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (h *Handlers) Handler() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(macross.ErrorBody{Error: msg})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrBadRequest),
		errors.Is(err, strategy.ErrInvalidParameter),
		errors.Is(err, domain.ErrInvalidSeries):
		return http.StatusBadRequest
	case errors.Is(err, strategy.ErrNoValidParameters):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrBadRequest, err)
	}
	return nil
}

func (h *Handlers) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var in macross.OptimizeRequest
	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := optimizeRequest(in, h.defaults, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	run, err := h.svc.Optimize(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, fromRun(run))
}

func (h *Handlers) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var in macross.BacktestRequest
	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := backtestRequest(in, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rep, err := h.svc.Backtest(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, fromBacktest(rep, in.Rows))
}

func (h *Handlers) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := h.svc.Runs(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := macross.RunList{Runs: make([]macross.Run, len(runs))}
	for i := range runs {
		out.Runs[i] = fromRun(&runs[i])
	}
	writeJSON(w, out)
}

func (h *Handlers) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, fromRun(run))
}

func (h *Handlers) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.svc.Symbols(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, macross.SymbolList{Symbols: symbols})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
