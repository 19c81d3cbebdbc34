package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/msuslov84/Chat/pkg/protocol"
)

// Session is the server side of one accepted connection.
type Session struct {
	id     string
	conn   net.Conn
	remote string

	writeMu      sync.Mutex
	writeTimeout time.Duration
	broken       atomic.Bool // set after a failed write; the conn is closed

	limiter *rate.Limiter // nil = unlimited
}

func newSession(conn net.Conn, cfg Config) *Session {
	s := &Session{
		id:           uuid.NewString(),
		conn:         conn,
		remote:       conn.RemoteAddr().String(),
		writeTimeout: cfg.WriteTimeout,
	}
	if cfg.TextRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.TextRate), cfg.TextBurst)
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.remote }

// errSessionBroken is returned by Send once an earlier write has failed.
var errSessionBroken = errors.New("server: session broken by earlier write failure")

// Send writes one frame. Writes are serialized so frames reach the peer in
// the order Send was called.
//
// A failed write may leave part of a frame on the wire, so the first failure
// closes the connection. The session's read loop then ends and removes it
// from the registry; sends in the meantime fail fast with errSessionBroken.
func (s *Session) Send(msg *protocol.Message) error {
	if s.broken.Load() {
		return errSessionBroken
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.broken.Load() {
		return errSessionBroken
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := protocol.WriteFrame(s.conn, msg); err != nil {
		s.broken.Store(true)
		_ = s.conn.Close()
		return err
	}
	return nil
}

// handleConn runs one session from accept to close. The loop exits only on
// end of stream, a read error, or a malformed frame.
func (s *Server) handleConn(conn net.Conn) {
	sess := newSession(conn, s.cfg)
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	s.registry.Add(sess)
	slog.Info("client connected", "session", sess.id, "remote", sess.RemoteAddr())

	defer func() {
		name, registered := s.registry.Remove(sess)
		if err := conn.Close(); err != nil && !isClosedErr(err) {
			slog.Error("close connection", "session", sess.id, "err", err)
		}
		s.metrics.ActiveConnections.Add(-1)
		s.metrics.TotalDisconnects.Add(1)
		if registered {
			slog.Info("user parted", "user", name, "session", sess.id)
		}
		slog.Info("client disconnected", "session", sess.id, "remote", sess.RemoteAddr())
	}()

	fr := protocol.NewFrameReader(conn)
	for {
		msg, err := fr.ReadFrame()
		if err != nil {
			switch {
			case sess.broken.Load():
				slog.Info("closed session after failed write", "session", sess.id, "remote", sess.RemoteAddr())
			case errors.Is(err, io.EOF) || isClosedErr(err):
				slog.Debug("connection closed by peer", "session", sess.id)
			case errors.Is(err, protocol.ErrMalformedFrame):
				s.metrics.MalformedFrames.Add(1)
				slog.Warn("malformed frame, closing session", "session", sess.id, "err", err)
			default:
				slog.Warn("read error", "session", sess.id, "err", err)
			}
			return
		}
		s.handleMessage(sess, msg)
	}
}

// handleMessage dispatches a decoded frame. Types a client has no business
// sending fall through to ignoreFrame.
func (s *Server) handleMessage(sess *Session, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeUserName:
		s.handleUserName(sess, msg)
	case protocol.TypeUserText:
		s.handleUserText(sess, msg)
	default:
		s.ignoreFrame(sess, msg)
	}
}

// ignoreFrame drops a structurally valid frame the server does not act on.
// The session stays open; the drop is only counted and debug-logged.
func (s *Server) ignoreFrame(sess *Session, msg *protocol.Message) {
	s.metrics.FramesIgnored.Add(1)
	slog.Debug("ignoring frame", "session", sess.id, "type", msg.Type)
}

func (s *Server) handleUserName(sess *Session, msg *protocol.Message) {
	name := msg.UserName
	switch res := s.registry.TryRegister(sess, name); res {
	case Accepted:
		slog.Info("user registered", "user", name, "session", sess.id)
		s.registry.Announce(protocol.Welcome(name))
	case RejectedTaken, RejectedInvalid:
		slog.Info("name rejected", "user", name, "session", sess.id, "reason", res)
		reply := protocol.NameTaken(name)
		if res == RejectedInvalid {
			reply = protocol.NameInvalid(name)
		}
		if err := sess.Send(reply); err != nil {
			s.metrics.SendFailures.Add(1)
			slog.Warn("name rejection write failed", "session", sess.id, "err", err)
		}
	case AlreadyRegistered:
		s.ignoreFrame(sess, msg)
	}
}

func (s *Server) handleUserText(sess *Session, msg *protocol.Message) {
	if sess.limiter != nil && !sess.limiter.Allow() {
		s.metrics.RateLimited.Add(1)
		slog.Debug("text rate limit exceeded, dropping", "session", sess.id)
		return
	}
	s.metrics.TextMessagesRelayed.Add(1)
	slog.Debug("relay message", "user", msg.UserName, "session", sess.id, "len", len(msg.Text))
	s.registry.BroadcastText(msg)
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
