// Package server exposes one optimization session over HTTP: a dashboard
// page, a JSON API and a server-sent event stream.
package server

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cwbudde/routeviz/internal/session"
	"github.com/cwbudde/routeviz/internal/store"
	"github.com/cwbudde/routeviz/internal/viz"
)

const apiPrefix = "/api/v1"

// Server represents the HTTP server
type Server struct {
	ctrl        *session.Controller
	display     *viz.Display
	runs        store.Store
	broadcaster *EventBroadcaster
	addr        string
	server      *http.Server

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Server.
type Option func(*Server)

// WithStore serves archived runs from st.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.runs = st }
}

// WithRand sets the random source used to randomize points.
func WithRand(rng *rand.Rand) Option {
	return func(s *Server) { s.rng = rng }
}

// NewServer creates a server for ctrl. The display must already be
// registered as a listener of ctrl.
func NewServer(addr string, ctrl *session.Controller, display *viz.Display, opts ...Option) *Server {
	s := &Server{
		ctrl:        ctrl,
		display:     display,
		broadcaster: NewEventBroadcaster(),
		addr:        addr,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	ctrl.AddListener(&eventListener{s: s})
	return s
}

// Handler returns the routed handler wrapped with middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// UI
	mux.HandleFunc("GET /{$}", s.handleIndex)

	// Session
	mux.HandleFunc("GET "+apiPrefix+"/session", s.handleSession)
	mux.HandleFunc("POST "+apiPrefix+"/session/start", s.handleStart)
	mux.HandleFunc("POST "+apiPrefix+"/session/stop", s.handleStop)
	mux.HandleFunc("POST "+apiPrefix+"/session/toggle", s.handleToggle)
	mux.HandleFunc("GET "+apiPrefix+"/settings", s.handleGetSettings)
	mux.HandleFunc("PUT "+apiPrefix+"/settings", s.handlePutSettings)

	// Points
	mux.HandleFunc("GET "+apiPrefix+"/points", s.handleGetPoints)
	mux.HandleFunc("POST "+apiPrefix+"/points/randomize", s.handleRandomize)
	mux.HandleFunc("PUT "+apiPrefix+"/points/anchors", s.handleAnchors)
	mux.HandleFunc("PATCH "+apiPrefix+"/points/{index}", s.handlePatchPoint)

	// History and images
	mux.HandleFunc("GET "+apiPrefix+"/history", s.handleHistory)
	mux.HandleFunc("GET "+apiPrefix+"/history/{generation}", s.handleGeneration)
	mux.HandleFunc("GET "+apiPrefix+"/history/{generation}/route.png", s.handleGenerationImage)
	mux.HandleFunc("POST "+apiPrefix+"/history/{generation}/select", s.handleSelect)
	mux.HandleFunc("GET "+apiPrefix+"/canvas.png", s.handleCanvas)
	mux.HandleFunc("GET "+apiPrefix+"/best.png", s.handleBestImage)
	mux.HandleFunc("GET "+apiPrefix+"/chart", s.handleChart)
	mux.HandleFunc("GET "+apiPrefix+"/chart.png", s.handleChartImage)

	// Archive
	mux.HandleFunc("GET "+apiPrefix+"/runs", s.handleListRuns)
	mux.HandleFunc("GET "+apiPrefix+"/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE "+apiPrefix+"/runs/{id}", s.handleDeleteRun)
	mux.HandleFunc("GET "+apiPrefix+"/runs/{id}/history", s.handleRunHistory)
	mux.HandleFunc("GET "+apiPrefix+"/runs/{id}/best.png", s.handleRunImage)

	// Events
	mux.HandleFunc("GET "+apiPrefix+"/stream", s.handleStream)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.broadcaster.Close()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
