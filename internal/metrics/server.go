package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firestige.xyz/pktlive/internal/log"
)

// Options configures the metrics listener.
type Options struct {
	Addr string
	Path string // default /metrics
	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// CaptureState is reported by /healthz next to liveness. Optional.
	CaptureState func() string
}

// Server serves Prometheus metrics and a health probe for scrapers that
// cannot reach the main listener.
type Server struct {
	opts   Options
	server *http.Server
	addr   string
}

// NewServer creates a metrics server. It does not listen until Start.
func NewServer(opts Options) *Server {
	if opts.Path == "" {
		opts.Path = "/metrics"
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{opts: opts}
}

// Handler returns the metrics router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, s.opts.Path, promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	r.Get("/healthz", s.handleHealthz)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	if s.opts.CaptureState != nil {
		body["capture"] = s.opts.CaptureState()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// Start binds the listen address and serves in the background. Bind errors
// are returned.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", s.opts.Addr, err)
	}
	s.addr = ln.Addr().String()
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	logger := log.Component("metrics")
	logger.Infof("serving %s on %s", s.opts.Path, s.addr)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Stop shuts the listener down, waiting at most 5s for scrapes in flight.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	log.Component("metrics").Info("metrics server stopped")
	return nil
}
