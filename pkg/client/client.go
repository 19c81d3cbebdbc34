// Package client implements the chat client connection and its incoming
// message dispatcher.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/msuslov84/Chat/pkg/protocol"
)

var (
	// ErrConnect wraps failures to reach the server.
	ErrConnect = errors.New("client: connect")
	// ErrNotConnected is returned by sends on a nil or closed client.
	ErrNotConnected = errors.New("client: not connected")
)

// Handlers are the callbacks the presentation layer receives. Any of them
// may be nil. They run on the receive goroutine.
type Handlers struct {
	OnServiceMessage func(text string)
	OnRosterUpdated  func(names []string)
	OnUserMessage    func(userName string, at time.Time, text string)
	OnNameRejected   func(reason string)
	OnDisconnect     func(err error) // err is nil on a clean end of stream
}

// Client is one connection to a chat server.
type Client struct {
	conn    net.Conn
	writeMu sync.Mutex

	mu     sync.RWMutex
	name   string   // candidate or assigned name, empty when none
	roster []string // latest roster snapshot

	handlers Handlers
	now      func() time.Time

	startOnce sync.Once
	done      chan struct{}
}

// Dial connects to addr. A failure wraps ErrConnect and leaves nothing open.
func Dial(ctx context.Context, addr string, h Handlers) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w to %s: %w", ErrConnect, addr, err)
	}
	slog.Info("connected to chat server", "addr", addr)
	return New(conn, h), nil
}

// New wraps an established connection.
func New(conn net.Conn, h Handlers) *Client {
	return &Client{
		conn:     conn,
		handlers: h,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

func (c *Client) connected() bool {
	return c != nil && c.conn != nil
}

func (c *Client) send(msg *protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.conn, msg)
}

// Register asks the server for name. The outcome arrives asynchronously:
// a roster including name, or OnNameRejected with the server's reason.
func (c *Client) Register(name string) error {
	if !c.connected() {
		return ErrNotConnected
	}
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()

	if err := c.send(protocol.NewMessage(protocol.TypeUserName, name)); err != nil {
		c.mu.Lock()
		c.name = ""
		c.mu.Unlock()
		return fmt.Errorf("client: send name: %w", err)
	}
	return nil
}

// SendText sends a chat message under the current name. Blank text is
// not sent.
func (c *Client) SendText(text string) error {
	if !c.connected() {
		return ErrNotConnected
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := c.send(protocol.Text(c.Name(), text)); err != nil {
		return fmt.Errorf("client: send text: %w", err)
	}
	return nil
}

// Name returns the candidate or assigned name, or "" when the client must
// (re)enter one.
func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Roster returns the latest roster received.
func (c *Client) Roster() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.roster))
	copy(out, c.roster)
	return out
}

// StartReceiving starts the receive goroutine. Calling it again is a no-op.
func (c *Client) StartReceiving() {
	c.startOnce.Do(func() {
		go c.receive(c.conn)
	})
}

// Done returns a channel that's closed when the receive loop ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection, which also ends the receive loop.
func (c *Client) Close() error {
	if !c.connected() {
		return nil
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	slog.Info("connection closed")
	return nil
}
