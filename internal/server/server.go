// Package server exposes capture control and the live event stream over
// HTTP and websocket.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"firestige.xyz/pktlive/internal/capture"
	"firestige.xyz/pktlive/internal/core"
	"firestige.xyz/pktlive/internal/log"
	"firestige.xyz/pktlive/internal/metrics"
)

//go:embed web
var webFS embed.FS

// Controller is the capture control surface used by the server.
type Controller interface {
	Start() core.Status
	Stop() core.Status
	OnClientConnect()
	Status() capture.Snapshot
}

// Options configures the HTTP server.
type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string
}

// Server hosts the static client page, the websocket stream and the REST
// control API.
type Server struct {
	ctrl     Controller
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
	http     *http.Server
	addr     string
}

// New creates a server. It does not listen until Start is called.
func New(ctrl Controller, hub *Hub, opts Options) *Server {
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		ctrl: ctrl,
		hub:  hub,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	static, _ := fs.Sub(webFS, "web")
	r.Handle("/", http.FileServer(http.FS(static)))
	r.Get("/healthz", s.handleHealthz)
	r.Get("/ws", s.handleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
	})
	return r
}

// Start binds the listen address and serves HTTP in a background goroutine.
// Bind errors are returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.addr = ln.Addr().String()

	logger := log.Component("http")
	logger.Infof("listening on %s", s.addr)
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Errorf("serve error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Stop gracefully shuts down the server and disconnects every client.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == origin || allowed == u.Host {
			return true
		}
	}
	return false
}

// handleWS upgrades the connection. Opening a session counts as connect.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Component("hub").Warnf("websocket upgrade failed: %v", err)
		return
	}

	c := newClient(conn, s.hub.bufSize)
	if !s.hub.register(c) {
		conn.Close()
		return
	}
	log.Component("hub").WithField("client", c.id).Infof("client connected from %s", r.RemoteAddr)

	go c.writePump()
	s.ctrl.OnClientConnect()

	c.readPump(s.ctrl)
	s.hub.unregister(c)
	log.Component("hub").WithField("client", c.id).Info("client disconnected")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the body of the REST control endpoints.
type statusResponse struct {
	Result core.Status `json:"result,omitempty"`
	capture.Snapshot
	Clients int `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Snapshot: s.ctrl.Status(), Clients: s.hub.Len()})
}

// handleStart and handleStop answer 202 since the loop itself runs
// asynchronously; the same status is also broadcast to websocket clients.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	metrics.CommandsTotal.WithLabelValues("http", core.CommandStartSniff).Inc()
	result := s.ctrl.Start()
	writeJSON(w, http.StatusAccepted, statusResponse{Result: result, Snapshot: s.ctrl.Status(), Clients: s.hub.Len()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	metrics.CommandsTotal.WithLabelValues("http", core.CommandStopSniff).Inc()
	result := s.ctrl.Stop()
	writeJSON(w, http.StatusAccepted, statusResponse{Result: result, Snapshot: s.ctrl.Status(), Clients: s.hub.Len()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Component("http").Warnf("writing response: %v", err)
	}
}
