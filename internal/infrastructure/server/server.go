package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"signalbridge/internal/core"
	"signalbridge/pkg/telemetry"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminServer exposes health, status, pending trades and Prometheus metrics
type AdminServer struct {
	port   int
	logger core.ILogger
	hm     core.IHealthMonitor
	srv    *http.Server

	mu        sync.RWMutex
	status    map[string]string
	providers map[string]func() interface{}
	pending   func() interface{}
}

func NewAdminServer(port int, logger core.ILogger, hm core.IHealthMonitor) *AdminServer {
	return &AdminServer{
		port:      port,
		logger:    logger.WithField("component", "admin_server"),
		hm:        hm,
		status:    make(map[string]string),
		providers: make(map[string]func() interface{}),
	}
}

// AddStatusProvider includes fn's result under name in /status
func (s *AdminServer) AddStatusProvider(name string, fn func() interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[name] = fn
}

// SetPendingSource sets what /pending lists
func (s *AdminServer) SetPendingSource(fn func() interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = fn
}

func (s *AdminServer) UpdateStatus(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[key] = value
}

// Handler returns the admin routes
func (s *AdminServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/pending", s.handlePending).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Run serves until ctx is done, then shuts down gracefully
func (s *AdminServer) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting admin server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("admin server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"time":   time.Now(),
		"metrics": map[string]interface{}{
			"pending_trades": telemetry.GetGlobalMetrics().GetPendingTrades(),
		},
	}

	code := http.StatusOK
	if s.hm != nil {
		health["components"] = s.hm.GetStatus()
		if !s.hm.IsHealthy() {
			health["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, health)
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	merged := make(map[string]interface{}, len(s.status)+len(s.providers))
	for k, v := range s.status {
		merged[k] = v
	}
	providers := make(map[string]func() interface{}, len(s.providers))
	for k, fn := range s.providers {
		providers[k] = fn
	}
	s.mu.RUnlock()

	for k, fn := range providers {
		merged[k] = fn()
	}
	if s.hm != nil {
		merged["components"] = s.hm.GetStatus()
	}

	writeJSON(w, http.StatusOK, merged)
}

func (s *AdminServer) handlePending(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	pending := s.pending
	s.mu.RUnlock()

	if pending == nil {
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, pending())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
