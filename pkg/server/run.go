package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/msuslov84/Chat/pkg/version"
)

// Run binds the listener, serves until SIGINT/SIGTERM, then shuts down.
// A bind failure is returned before anything else starts.
func (s *Server) Run() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()

	slog.Info("chat server running",
		"addr", ln.Addr().String(),
		"version", version.String(),
	)

	s.StartMetricsHTTP()
	if s.cfg.MetricsLogInterval > 0 {
		s.metrics.StartPeriodicLog(s.cfg.MetricsLogInterval, s.ctx.Done())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		slog.Info("shutting down...")
	case err := <-errc:
		if err != nil {
			s.Shutdown()
			return err
		}
	}
	s.Shutdown()
	return nil
}

// Shutdown stops accepting connections. Open sessions are not drained and
// no shutdown notice is broadcast; they end when the process exits.
func (s *Server) Shutdown() {
	s.cancel()
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
}
