package models

import "time"

// ServerStatsResponse contains process and peer runtime statistics.
type ServerStatsResponse struct {
	Uptime        string            `json:"uptime"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartTime     time.Time         `json:"start_time"`
	GoRoutines    int               `json:"goroutines"`
	MemoryAllocMB float64           `json:"memory_alloc_mb"`
	NumCPU        int               `json:"num_cpu"`
	Peer          PeerStatsResponse `json:"peer"`
}

// PeerStatsResponse mirrors the peer's datagram counters.
type PeerStatsResponse struct {
	Received      uint64 `json:"received"`
	Replied       uint64 `json:"replied"`
	Ignored       uint64 `json:"ignored"`
	Sent          uint64 `json:"sent"`
	SendErrors    uint64 `json:"send_errors"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
