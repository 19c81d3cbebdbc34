package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// ErrListen wraps failures to bind the chat listener.
var ErrListen = errors.New("server: listen")

// acceptRetryDelay throttles the accept loop after a non-fatal error.
const acceptRetryDelay = 50 * time.Millisecond

// Listen binds the TCP listener on Config.ListenAddr.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("%w on %s: %w", ErrListen, s.cfg.ListenAddr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	slog.Info("chat listener bound", "addr", ln.Addr().String())
	return ln, nil
}

// Serve accepts connections on ln and runs one session goroutine per
// connection. It returns nil once the listener is closed by Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("accept error", "err", err)
			time.Sleep(acceptRetryDelay)
			continue
		}
		go s.handleConn(conn)
	}
}
