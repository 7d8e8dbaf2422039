// Package api exposes the dedup service over HTTP. The wire format is
// fixed: independently written claimants match on the exact status codes
// and JSON bodies documented on each handler.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dedupow/libdedupow-go/dedup"
)

// DefaultMaxUpload caps upload request bodies at 1 GiB.
const DefaultMaxUpload = 1 << 30

// Server routes protocol requests to a dedup.Service.
type Server struct {
	router    *mux.Router
	svc       *dedup.Service
	log       *logrus.Logger
	metrics   *Metrics
	maxUpload int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger injects a logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithMaxUpload caps the upload request body size in bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New creates a Server over svc.
func New(svc *dedup.Service, opts ...Option) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		svc:       svc,
		log:       logrus.New(),
		metrics:   NewMetrics(),
		maxUpload: DefaultMaxUpload,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/check-file", s.handleCheckFile).Methods(http.MethodPost)
	s.router.HandleFunc("/upload-file", s.handleUploadFile).Methods(http.MethodPost)
	s.router.HandleFunc("/verify", s.handleVerify).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	s.router.Use(s.requestIDMiddleware, s.loggingMiddleware, s.metricsMiddleware)
}

// ServeHTTP applies the service's permissive CORS policy, answers
// preflight requests, and dispatches everything else to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	} else {
		w.Header().Set("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)

	allowedHeaders := r.Header.Get("Access-Control-Request-Headers")
	if allowedHeaders == "" {
		allowedHeaders = "Content-Type, Accept"
	}
	w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.router.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.WithError(err).Error("encode response")
	}
}
