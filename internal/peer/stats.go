package peer

import (
	"sync/atomic"
	"time"
)

// Stats collects peer traffic counters.
// All methods are safe for concurrent use.
type Stats struct {
	started    time.Time
	received   atomic.Uint64
	replied    atomic.Uint64
	ignored    atomic.Uint64
	sent       atomic.Uint64
	sendErrors atomic.Uint64
}

// NewStats creates a collector whose uptime starts now.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

// RecordReceived records one datagram read from the socket.
func (s *Stats) RecordReceived() {
	if s != nil {
		s.received.Add(1)
	}
}

// RecordReplied records one reply written back to a sender.
func (s *Stats) RecordReplied() {
	if s != nil {
		s.replied.Add(1)
	}
}

// RecordIgnored records a datagram the handler chose not to answer.
func (s *Stats) RecordIgnored() {
	if s != nil {
		s.ignored.Add(1)
	}
}

// RecordSent records a datagram sent by a streamer, or a failed send.
func (s *Stats) RecordSent(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.sendErrors.Add(1)
		return
	}
	s.sent.Add(1)
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Received   uint64
	Replied    uint64
	Ignored    uint64
	Sent       uint64
	SendErrors uint64
	Uptime     time.Duration
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Received:   s.received.Load(),
		Replied:    s.replied.Load(),
		Ignored:    s.ignored.Load(),
		Sent:       s.sent.Load(),
		SendErrors: s.sendErrors.Load(),
		Uptime:     time.Since(s.started),
	}
}
