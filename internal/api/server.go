// Package api exposes the webhook, replay, health and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"candidate-notifier/internal/common/admission"
	"candidate-notifier/internal/common/logger"
	"candidate-notifier/internal/common/validation"
	"candidate-notifier/internal/models"
	"candidate-notifier/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Submitter accepts orchestration requests without waiting for them.
type Submitter interface {
	Submit(event models.ApplicationEvent) error
	Pending() int
	Capacity() int
}

type AdmissionStats interface {
	Stats() admission.Stats
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Features are the configuration booleans reported by /health. StoreDriver
// names the backend when Store is set.
type Features struct {
	Store         bool   `json:"store"`
	StoreDriver   string `json:"store_driver,omitempty"`
	Email         bool   `json:"email"`
	SMS           bool   `json:"sms"`
	WebhookSecret bool   `json:"webhook_secret"`
	RunLock       bool   `json:"run_lock"`
	Journal       bool   `json:"journal"`
}

type Options struct {
	Service        string
	Version        string
	WebhookSecret  string
	MonitoredTable string
	Tables         store.Tables
	Features       Features
}

type Dependencies struct {
	Dispatcher Submitter
	Admission  AdmissionStats
	Store      Pinger
	Logger     logger.Logger
	// Metrics serves /metrics; promhttp.Handler() when nil.
	Metrics http.Handler
}

// Server holds all dependencies for the HTTP handlers.
type Server struct {
	opts             Options
	dispatcher       Submitter
	admission        AdmissionStats
	store            Pinger
	logger           logger.Logger
	metrics          http.Handler
	envelope         *validation.Validator
	record           *validation.Validator
	replay           *validation.Validator
	now              func() time.Time
	storePingTimeout time.Duration
}

func New(opts Options, deps Dependencies) (*Server, error) {
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	envelope, err := validation.NewWebhookValidator()
	if err != nil {
		return nil, err
	}
	record, err := validation.NewWebhookRecordValidator()
	if err != nil {
		return nil, err
	}
	replay, err := validation.NewReplayValidator()
	if err != nil {
		return nil, err
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	return &Server{
		opts:             opts,
		dispatcher:       deps.Dispatcher,
		admission:        deps.Admission,
		store:            deps.Store,
		logger:           log.WithFields(map[string]interface{}{"component": "http"}),
		metrics:          metricsHandler,
		envelope:         envelope,
		record:           record,
		replay:           replay,
		now:              func() time.Time { return time.Now().UTC() },
		storePingTimeout: 2 * time.Second,
	}, nil
}

// Routes builds the router with request ID, recovery and access logging.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	r.Route("/webhook", func(r chi.Router) {
		r.Post("/job-match", s.handleJobMatch)
		r.Post("/replay", s.handleReplay)
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down within grace.
func (s *Server) Run(ctx context.Context, addr string, readHeaderTimeout, grace time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.logger.Info("http server listening", map[string]interface{}{"address": ln.Addr().String()})

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		s.logger.Info("shutting down http server", nil)
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}

// ==========================
// Shared helpers
// ==========================

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details ...string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Details: details})
}
