// Package handlers implements the status API endpoint handlers for a running
// nettest peer.
//
// Endpoints:
//   - GET /api/v1/health - Health check status
//   - GET /api/v1/stats - Uptime, memory, goroutines, and peer counters
//   - GET /api/v1/config - Effective configuration (api.api_key redacted)
//   - GET /api/v1/profile - Values stored in the SQLite profile
//
// Everything except /health requires the X-API-Key header when api.api_key is
// set.
package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jroosing/nettest/internal/config"
	"github.com/jroosing/nettest/internal/database"
	"github.com/jroosing/nettest/internal/peer"
)

// StatsFunc returns the peer counters reported by /stats.
type StatsFunc func() peer.StatsSnapshot

// Handler contains dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	db        *database.DB
	logger    *slog.Logger
	startTime time.Time

	mu        sync.RWMutex
	statsFunc StatsFunc
}

// New creates a new Handler. db may be nil when no profile store is open.
func New(cfg *config.Config, db *database.DB, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		db:        db,
		logger:    logger,
		startTime: time.Now(),
	}
}

// SetStatsFunc sets the function /stats reads peer counters from.
func (h *Handler) SetStatsFunc(fn StatsFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statsFunc = fn
}

func (h *Handler) peerStats() peer.StatsSnapshot {
	h.mu.RLock()
	fn := h.statsFunc
	h.mu.RUnlock()
	if fn == nil {
		return peer.StatsSnapshot{}
	}
	return fn()
}
