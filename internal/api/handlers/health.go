package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/nettest/internal/api/models"
)

// Health reports that the API is serving.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Stats returns process statistics and the peer's datagram counters.
func (h *Handler) Stats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)
	ps := h.peerStats()

	c.JSON(http.StatusOK, models.ServerStatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		GoRoutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(m.Alloc) / 1024 / 1024,
		NumCPU:        runtime.NumCPU(),
		Peer: models.PeerStatsResponse{
			Received:      ps.Received,
			Replied:       ps.Replied,
			Ignored:       ps.Ignored,
			Sent:          ps.Sent,
			SendErrors:    ps.SendErrors,
			UptimeSeconds: int64(ps.Uptime.Seconds()),
		},
	})
}
