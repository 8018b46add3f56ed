package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/antenna-survey/internal/metrics"
)

const maxBodySize = 1 << 16

// Instrument is an open instrument session
type Instrument interface {
	Read(ctx context.Context) (string, error)
	Close() error
}

// Opener opens a new instrument session
type Opener func(ctx context.Context) (Instrument, error)

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "relay"))
	}
}

// WithMetrics records request and instrument metrics and serves g on /metrics
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) func(*Server) {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// Server answers magnitude requests by reading the instrument. One session
// is opened per request and requests are served one at a time.
type Server struct {
	open Opener
	mu   sync.Mutex

	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewServer creates a new Server with a discard logger
func NewServer(open Opener, options ...func(*Server)) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Server{
		open:   open,
		logger: logger,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Handler returns the HTTP handler serving the relay routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+Path, s.handleRequest)
	mux.HandleFunc("GET /healthz", healthz)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}

	var handler http.Handler = mux
	handler = loggingMiddleware(s.logger)(handler)
	if s.metrics != nil {
		handler = s.metrics.Middleware(handler)
	}
	return handler
}

// HTTPServer returns an *http.Server for addr serving Handler
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req ValueSet
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, ok := req[KeyMagnitude]; !ok {
		http.Error(w, "unsupported request", http.StatusBadRequest)
		return
	}

	resp := ValueSet{KeyMagnitude: s.magnitude(r.Context())}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("writing response: " + err.Error())
	}
}

// magnitude reads the instrument once. Every failure is reported to the
// caller as BadData.
func (s *Server) magnitude(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	data, err := s.read(ctx)
	if s.metrics != nil {
		s.metrics.RecordInstrumentRead(time.Since(start), err)
	}

	if err != nil {
		s.logger.Error("reading instrument: " + err.Error())
		return BadData
	}

	s.logger.Debug("instrument read", slog.String("data", data))
	return data
}

func (s *Server) read(ctx context.Context) (string, error) {
	inst, err := s.open(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := inst.Close(); err != nil {
			s.logger.Warn("closing instrument: " + err.Error())
		}
	}()

	return inst.Read(ctx)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("status", strconv.Itoa(sr.statusCode)),
				slog.Int64("durationMs", time.Since(start).Milliseconds()),
				slog.String("remoteIP", r.RemoteAddr))
		})
	}
}
