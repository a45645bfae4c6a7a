package handlers

import (
	"context"
	"time"

	"github.com/jmylchreest/renderd/internal/browser"
	"github.com/jmylchreest/renderd/internal/cookies"
	"github.com/jmylchreest/renderd/internal/version"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptimeSeconds"`
	Browser       browser.Stats `json:"browser"`
	CookieCount   int           `json:"cookieCount"`
}

// HealthOutput is the output wrapper for Huma.
type HealthOutput struct {
	Body HealthResponse
}

// HealthHandler reports pool/browser liveness for diagnostics.
type HealthHandler struct {
	pool    *browser.Pool
	store   *cookies.Store
	started time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(pool *browser.Pool, store *cookies.Store) *HealthHandler {
	return &HealthHandler{pool: pool, store: store, started: time.Now()}
}

// Handle returns the health status.
func (h *HealthHandler) Handle(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:        "healthy",
		Version:       version.Get().Version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Browser:       h.pool.Stats(),
		CookieCount:   h.store.Count(),
	}
}
