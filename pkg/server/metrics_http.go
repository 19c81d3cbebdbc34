package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP serves /metrics (Prometheus text exposition),
// /metrics.json and /healthz in the background until the server context
// is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

func (s *Server) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/metrics.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintln(w, s.metrics.JSON())
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP chat_uptime_seconds Server uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE chat_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "chat_uptime_seconds %f\n", uptime)

	write("chat_connections_active", "Current open sessions.", "gauge",
		m.ActiveConnections.Load())
	write("chat_connections_total", "Lifetime connections accepted.", "counter",
		m.TotalConnections.Load())
	write("chat_disconnects_total", "Sessions closed.", "counter",
		m.TotalDisconnects.Load())
	write("chat_roster_size", "Currently registered users.", "gauge",
		int64(len(s.registry.Roster())))

	write("chat_registrations_total", "Names claimed.", "counter",
		m.Registrations.Load())
	write("chat_name_conflicts_total", "Names refused.", "counter",
		m.NameConflicts.Load())

	write("chat_messages_relayed_total", "USER_TEXT frames broadcast.", "counter",
		m.TextMessagesRelayed.Load())
	write("chat_frames_ignored_total", "Valid frames the server does not act on.", "counter",
		m.FramesIgnored.Load())
	write("chat_frames_malformed_total", "Undecodable frames.", "counter",
		m.MalformedFrames.Load())
	write("chat_send_failures_total", "Per-recipient write failures.", "counter",
		m.SendFailures.Load())
	write("chat_rate_limited_total", "USER_TEXT frames dropped by the flood limit.", "counter",
		m.RateLimited.Load())
}
