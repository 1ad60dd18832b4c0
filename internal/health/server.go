// Package health exposes liveness and metrics endpoints for long runs.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status values reported by the health endpoint.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Probe checks one dependency (inference runtime, database, redis).
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	probes []Probe
	server *http.Server
}

// NewServer creates a new health server.
func NewServer(port int, probes []Probe) *Server {
	mux := http.NewServeMux()
	s := &Server{
		probes: probes,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) run(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	report := make(map[string]string, len(s.probes))
	for _, p := range s.probes {
		if err := p.Check(ctx); err != nil {
			report[p.Name] = err.Error()
		} else {
			report[p.Name] = "ok"
		}
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.run(r.Context())
	status := StatusHealthy

	// A single failing dependency degrades the whole process.
	for _, result := range report {
		if result != "ok" {
			status = StatusDegraded
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status == StatusDegraded {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.run(r.Context()))
}
