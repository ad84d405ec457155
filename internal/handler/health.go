package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"steam-trade-farm/internal/cache"
	"steam-trade-farm/internal/farm"
	"steam-trade-farm/pkg/apierror"
	"steam-trade-farm/pkg/response"
)

// StatusProvider reports the state of the trade cycle.
type StatusProvider interface {
	Status() farm.Status
}

// StatsProvider reports exchange counters. Optional.
type StatsProvider interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// Config holds the dependencies of Handler.
type Config struct {
	Service  string
	Version  string
	GameCode int
	Farm     StatusProvider
	Exchange StatsProvider
	Cache    cache.Cache
}

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	cfg     Config
	started time.Time
	now     func() time.Time
}

// New creates a new handler.
func New(cfg Config) *Handler {
	return &Handler{cfg: cfg, started: time.Now(), now: time.Now}
}

// Liveness handles GET / with a plain text banner for uptime pingers.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Steam Trade Farm is running!\n")
	fmt.Fprintf(w, "Last ping: %s\n", h.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Game configured: %d\n", h.cfg.GameCode)
	fmt.Fprint(w, "Server active and working")
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Version:   h.cfg.Version,
	}
	response.OK(w, resp)
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Ready handles GET /api/v1/ready. It is ready once every account has a
// web session.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	var checks []Check
	allReady := h.cfg.Farm != nil
	if h.cfg.Farm != nil {
		for _, a := range h.cfg.Farm.Status().Accounts {
			status := "ok"
			if a.State != farm.StateReady.String() && a.State != farm.StateCycling.String() {
				status = a.State
				allReady = false
			}
			checks = append(checks, Check{Name: a.Username, Status: status})
		}
	}

	if !allReady {
		apierror.ServiceUnavailable("accounts are not ready").Write(w)
		return
	}

	response.OK(w, ReadyResponse{
		Ready:     true,
		Timestamp: h.now().UTC(),
		Checks:    checks,
	})
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Exchange interface{} `json:"exchange,omitempty"`
	MemoryMB float64     `json:"memory_mb"`
}

// StatusResponse represents the unified status response for monitoring.
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	GameCode      int          `json:"game_code"`
	Farm          *farm.Status `json:"farm,omitempty"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	resp := StatusResponse{
		Service:       h.cfg.Service,
		Status:        "ok",
		Timestamp:     h.now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(h.now().Sub(h.started).Seconds()),
		GameCode:      h.cfg.GameCode,
		Checks: StatusChecks{
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}
	if h.cfg.Farm != nil {
		st := h.cfg.Farm.Status()
		resp.Farm = &st
	}
	if h.cfg.Exchange != nil {
		stats, err := h.cfg.Exchange.Stats(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.Checks.Exchange = err.Error()
		} else {
			resp.Checks.Exchange = stats
		}
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
