// Package api serves the optimizer over REST and gRPC.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"macross/internal/config"
	"macross/internal/metrics"
)

// Server hosts the REST API, /metrics, and the gRPC Optimizer service.
type Server struct {
	httpAddr string
	grpcAddr string
	log      *slog.Logger

	handlers *Handlers
	grpc     *grpc.Server
	http     *http.Server
}

// NewServer creates a Server configured from cfg and backed by svc. A zero
// grpc_port disables the gRPC listener.
func NewServer(cfg *config.Config, svc Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	defaults := Defaults{Short: cfg.Optimize.Short, Long: cfg.Optimize.Long, MaxRangeLen: cfg.Limits.MaxWindow}
	s := &Server{
		httpAddr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		log:      log.With("component", "api"),
		handlers: NewHandlers(svc, defaults, log),
	}
	if cfg.Server.GRPCPort > 0 {
		s.grpcAddr = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort))
		s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
		RegisterOptimizerServer(s.grpc, NewOptimizerService(svc, defaults, log))
	}

	mux := http.NewServeMux()
	s.handlers.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	s.http = &http.Server{
		Addr:              s.httpAddr,
		Handler:           corsMiddleware(logRequests(s.log, mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, including /metrics.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	var grpcLn net.Listener
	if s.grpc != nil {
		if grpcLn, err = net.Listen("tcp", s.grpcAddr); err != nil {
			httpLn.Close()
			return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
		}
	}
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve runs on already-open listeners. grpcLn may be nil.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("http listening", "addr", httpLn.Addr().String())
		if err := s.http.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if s.grpc != nil && grpcLn != nil {
		g.Go(func() error {
			s.log.Info("grpc listening", "addr", grpcLn.Addr().String())
			if err := s.grpc.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	if s.grpc != nil {
		done := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.grpc.Stop()
		}
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("grpc", "method", info.FullMethod, "elapsed", time.Since(start).Round(time.Millisecond), "error", err)
	return resp, err
}

func logRequests(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("http", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start).Round(time.Millisecond))
	})
}
