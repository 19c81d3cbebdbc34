// Package server implements the chat broadcast server.
package server

import (
	"context"
	"net"
	"sync"
	"time"
)

// Config holds server configuration.
type Config struct {
	ListenAddr         string        `yaml:"listen_addr"`          // TCP bind address (e.g. ":9600")
	MetricsAddr        string        `yaml:"metrics_addr"`         // HTTP bind address for /metrics (empty = disabled)
	JournalPath        string        `yaml:"journal_path"`         // SQLite membership journal (empty = disabled)
	WriteTimeout       time.Duration `yaml:"write_timeout"`        // per-frame write deadline (0 = none)
	TextRate           float64       `yaml:"text_rate"`            // USER_TEXT frames per second per session (0 = unlimited)
	TextBurst          int           `yaml:"text_burst"`           // burst allowance for TextRate
	MetricsLogInterval time.Duration `yaml:"metrics_log_interval"` // periodic metrics summary (0 = disabled)
}

// MembershipJournal is notified of registrations and departures.
type MembershipJournal interface {
	Joined(userName string) error
	Parted(userName string) error
}

// Dependencies holds optional collaborators for the server.
type Dependencies struct {
	Journal MembershipJournal
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":9600",
		MetricsAddr:        ":9602",
		WriteTimeout:       10 * time.Second,
		TextBurst:          5,
		MetricsLogInterval: 60 * time.Second,
	}
}

// Server accepts chat connections and relays frames between them.
type Server struct {
	cfg      Config
	registry *Registry
	metrics  *Metrics

	mu       sync.Mutex
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	metrics := NewMetrics()
	return &Server{
		cfg:      cfg,
		registry: NewRegistry(metrics, deps.Journal),
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the connection registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
