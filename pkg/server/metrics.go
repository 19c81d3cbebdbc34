package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime connections accepted
	ActiveConnections atomic.Int64 // current open sessions
	TotalDisconnects  atomic.Int64 // sessions closed for any reason

	// Registration counters
	Registrations atomic.Int64 // names claimed
	NameConflicts atomic.Int64 // names refused (taken or invalid)

	// Frame counters
	TextMessagesRelayed atomic.Int64 // USER_TEXT frames broadcast
	FramesIgnored       atomic.Int64 // valid frames the server does not act on
	MalformedFrames     atomic.Int64 // undecodable frames (session closed)
	SendFailures        atomic.Int64 // per-recipient write failures
	RateLimited         atomic.Int64 // USER_TEXT frames dropped by the flood limit
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	Registrations int64 `json:"registrations"`
	NameConflicts int64 `json:"name_conflicts"`

	TextMessagesRelayed int64 `json:"text_messages_relayed"`
	FramesIgnored       int64 `json:"frames_ignored"`
	MalformedFrames     int64 `json:"malformed_frames"`
	SendFailures        int64 `json:"send_failures"`
	RateLimited         int64 `json:"rate_limited"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:              uptime.Truncate(time.Second).String(),
		UptimeSeconds:       int64(uptime.Seconds()),
		ActiveConnections:   m.ActiveConnections.Load(),
		TotalConnections:    m.TotalConnections.Load(),
		TotalDisconnects:    m.TotalDisconnects.Load(),
		Registrations:       m.Registrations.Load(),
		NameConflicts:       m.NameConflicts.Load(),
		TextMessagesRelayed: m.TextMessagesRelayed.Load(),
		FramesIgnored:       m.FramesIgnored.Load(),
		MalformedFrames:     m.MalformedFrames.Load(),
		SendFailures:        m.SendFailures.Load(),
		RateLimited:         m.RateLimited.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"registrations", s.Registrations,
		"messages", s.TextMessagesRelayed,
		"ignored", s.FramesIgnored,
		"send_failures", s.SendFailures,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
