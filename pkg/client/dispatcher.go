package client

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"

	"github.com/msuslov84/Chat/pkg/protocol"
)

// receive reads frames until the stream ends and turns each into a
// presentation event. It never writes to or closes the connection.
func (c *Client) receive(r io.Reader) {
	var loopErr error
	defer func() {
		close(c.done)
		if c.handlers.OnDisconnect != nil {
			c.handlers.OnDisconnect(loopErr)
		}
	}()

	fr := protocol.NewFrameReader(r)
	for {
		msg, err := fr.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				slog.Debug("server connection closed")
			case errors.Is(err, protocol.ErrMalformedFrame):
				slog.Warn("malformed frame from server", "err", err)
				loopErr = err
			default:
				slog.Warn("error reading incoming message", "err", err)
				loopErr = err
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeErrorName:
		c.mu.Lock()
		c.name = ""
		c.mu.Unlock()
		slog.Info("name rejected", "user", msg.UserName, "reason", msg.Text)
		if c.handlers.OnNameRejected != nil {
			c.handlers.OnNameRejected(msg.Text)
		}

	case protocol.TypeWelcomeUser, protocol.TypePartingUser:
		if c.handlers.OnServiceMessage != nil {
			c.handlers.OnServiceMessage(msg.Text)
		}

	case protocol.TypeUserName:
		names := protocol.SplitRoster(msg.UserName)
		c.mu.Lock()
		c.roster = names
		c.mu.Unlock()
		if c.handlers.OnRosterUpdated != nil {
			c.handlers.OnRosterUpdated(slices.Clone(names))
		}

	case protocol.TypeUserText:
		if c.handlers.OnUserMessage != nil {
			c.handlers.OnUserMessage(msg.UserName, c.now(), msg.Text)
		}
	}
}
