// Package protocol defines the chat wire record and its newline-delimited framing.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// MaxFrameSize is the maximum size of a single frame, terminator excluded (64KB).
	MaxFrameSize = 65536

	// RosterSeparator joins usernames inside a USER_NAME roster frame.
	RosterSeparator = ";"
)

// ErrMalformedFrame is returned when a line is not a well-formed message record.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// Encode serializes a message into a single-line JSON frame without the
// trailing line terminator. String escaping keeps embedded newlines out of
// the output.
func Encode(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("protocol: encode nil message")
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("protocol: encode: unknown type %q", string(msg.Type))
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return data, nil
}

// Decode parses one frame (without its terminator) into a message.
func Decode(line []byte) (*Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedFrame)
	}
	msg := &Message{}
	if err := json.Unmarshal(line, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return msg, nil
}

// WriteFrame writes an encoded message followed by a line terminator in a
// single Write call.
func WriteFrame(w io.Writer, msg *Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("protocol: frame too large: %d bytes", len(data))
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}

// FrameReader reads newline-delimited frames from a byte stream.
type FrameReader struct {
	sc *bufio.Scanner
}

// NewFrameReader wraps r. Lines longer than MaxFrameSize fail the reader.
func NewFrameReader(r io.Reader) *FrameReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), MaxFrameSize+1)
	return &FrameReader{sc: sc}
}

// ReadFrame blocks until the next frame arrives and decodes it.
// It returns io.EOF when the stream ends cleanly. Decode failures wrap
// ErrMalformedFrame; the reader itself stays usable after one.
func (fr *FrameReader) ReadFrame() (*Message, error) {
	for fr.sc.Scan() {
		line := bytes.TrimSuffix(fr.sc.Bytes(), []byte{'\r'})
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return Decode(line)
	}
	if err := fr.sc.Err(); err != nil {
		return nil, fmt.Errorf("protocol: read frame: %w", err)
	}
	return nil, io.EOF
}

// SplitRoster turns the userName field of a roster frame back into names.
// An empty field is an empty roster.
func SplitRoster(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, RosterSeparator)
}
