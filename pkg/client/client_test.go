package client

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/msuslov84/Chat/pkg/protocol"
	"github.com/msuslov84/Chat/pkg/server"
)

// recorder collects callback invocations as readable strings.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnServiceMessage: func(text string) { r.add("service:" + text) },
		OnRosterUpdated:  func(names []string) { r.add("roster:" + strings.Join(names, ",")) },
		OnUserMessage: func(user string, at time.Time, text string) {
			r.add("text:" + user + "@" + at.Format("15:04:05") + ":" + text)
		},
		OnNameRejected: func(reason string) { r.add("rejected:" + reason) },
		OnDisconnect: func(err error) {
			if err != nil {
				r.add("disconnect:error")
				return
			}
			r.add("disconnect")
		},
	}
}

func encodeFrames(t *testing.T, msgs ...*protocol.Message) string {
	t.Helper()
	var sb strings.Builder
	for _, m := range msgs {
		if err := protocol.WriteFrame(&sb, m); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	return sb.String()
}

func TestDispatchEvents(t *testing.T) {
	rec := &recorder{}
	c := New(nil, rec.handlers())
	c.now = func() time.Time { return time.Date(2026, 3, 4, 12, 30, 45, 0, time.UTC) }
	c.name = "alice"

	input := encodeFrames(t,
		protocol.Welcome("bob"),
		protocol.Roster([]string{"alice", "bob"}),
		protocol.Text("bob", "hi"),
		protocol.Parting("bob"),
		protocol.Roster([]string{"alice"}),
	)
	c.receive(strings.NewReader(input))

	want := []string{
		"service:" + protocol.Welcome("bob").Text,
		"roster:alice,bob",
		"text:bob@12:30:45:hi",
		"service:" + protocol.Parting("bob").Text,
		"roster:alice",
		"disconnect",
	}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"alice"}, c.Roster()); diff != "" {
		t.Errorf("Roster mismatch (-want +got):\n%s", diff)
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done not closed after receive loop ended")
	}
}

func TestDispatchNameRejectedClearsName(t *testing.T) {
	rec := &recorder{}
	c := New(nil, rec.handlers())
	c.name = "alice"

	c.receive(strings.NewReader(encodeFrames(t, protocol.NameTaken("alice"))))

	if c.Name() != "" {
		t.Errorf("Name = %q after rejection, want empty", c.Name())
	}
	want := []string{"rejected:" + protocol.NameTakenText, "disconnect"}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchNameInvalidPassesReason(t *testing.T) {
	rec := &recorder{}
	c := New(nil, rec.handlers())
	c.name = "a;b"

	c.receive(strings.NewReader(encodeFrames(t, protocol.NameInvalid("a;b"))))

	want := []string{"rejected:" + protocol.NameInvalidText, "disconnect"}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchRosterKeepsOrderAndDuplicates(t *testing.T) {
	var got []string
	c := New(nil, Handlers{OnRosterUpdated: func(names []string) { got = names }})
	c.receive(strings.NewReader(`{"type":"USER_NAME","userName":"c;a;b;a","text":"c;a;b;a"}` + "\n"))

	if diff := cmp.Diff([]string{"c", "a", "b", "a"}, got); diff != "" {
		t.Errorf("roster mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchEmptyRoster(t *testing.T) {
	var got []string
	c := New(nil, Handlers{OnRosterUpdated: func(names []string) { got = names }})
	c.receive(strings.NewReader(encodeFrames(t, protocol.Roster(nil))))

	if got == nil || len(got) != 0 {
		t.Errorf("roster = %#v, want empty", got)
	}
}

func TestReceiveStopsOnMalformedFrame(t *testing.T) {
	rec := &recorder{}
	c := New(nil, rec.handlers())

	input := "not json\n" + encodeFrames(t, protocol.Welcome("bob"))
	c.receive(strings.NewReader(input))

	if diff := cmp.Diff([]string{"disconnect:error"}, rec.list()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestNilHandlersAreSafe(t *testing.T) {
	c := New(nil, Handlers{})
	c.receive(strings.NewReader(encodeFrames(t,
		protocol.Welcome("a"),
		protocol.Roster([]string{"a"}),
		protocol.Text("a", "x"),
		protocol.NameTaken("a"),
	)))
}

func TestRegisterAndSendText(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	c := New(clientSide, Handlers{})
	frames := make(chan *protocol.Message, 4)
	go func() {
		fr := protocol.NewFrameReader(serverSide)
		for {
			m, err := fr.ReadFrame()
			if err != nil {
				close(frames)
				return
			}
			frames <- m
		}
	}()

	if err := c.Register("alice"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.SendText("   "); err != nil {
		t.Fatalf("SendText blank: %v", err)
	}
	if err := c.SendText("hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	want := []*protocol.Message{
		protocol.NewMessage(protocol.TypeUserName, "alice"),
		protocol.Text("alice", "hello"),
	}
	for i, w := range want {
		select {
		case got := <-frames:
			if diff := cmp.Diff(w, got); diff != "" {
				t.Errorf("frame %d mismatch (-want +got):\n%s", i, diff)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
	if c.Name() != "alice" {
		t.Errorf("Name = %q, want alice", c.Name())
	}
}

func TestRegisterFailureClearsName(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	_ = serverSide.Close()
	_ = clientSide.Close()

	c := New(clientSide, Handlers{})
	if err := c.Register("alice"); err == nil {
		t.Fatal("Register on closed connection: expected error")
	}
	if c.Name() != "" {
		t.Errorf("Name = %q, want empty", c.Name())
	}
}

func TestSendWithoutConnection(t *testing.T) {
	var c *Client
	if err := c.SendText("hi"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendText on nil client = %v, want ErrNotConnected", err)
	}
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := Dial(ctx, addr, Handlers{}); !errors.Is(err, ErrConnect) {
		t.Errorf("Dial closed port = %v, want ErrConnect", err)
	}
}

func TestClientAgainstServer(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.MetricsAddr = ""
	srv := server.New(cfg, server.Dependencies{})
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(srv.Shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rosters := make(chan []string, 8)
	rejected := make(chan struct{}, 1)
	texts := make(chan string, 1)
	alice, err := Dial(ctx, srv.Addr().String(), Handlers{
		OnRosterUpdated: func(names []string) { rosters <- names },
		OnUserMessage:   func(user string, _ time.Time, text string) { texts <- user + ":" + text },
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer alice.Close()
	alice.StartReceiving()

	bob, err := Dial(ctx, srv.Addr().String(), Handlers{
		OnNameRejected: func(string) { rejected <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer bob.Close()
	bob.StartReceiving()

	if err := alice.Register("alice"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	select {
	case names := <-rosters:
		if diff := cmp.Diff([]string{"alice"}, names); diff != "" {
			t.Errorf("roster mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for roster")
	}

	if err := bob.Register("alice"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	select {
	case <-rejected:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for name rejection")
	}
	if bob.Name() != "" {
		t.Errorf("bob Name = %q after rejection, want empty", bob.Name())
	}

	if err := alice.SendText("hi"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	select {
	case got := <-texts:
		if got != "alice:hi" {
			t.Errorf("text = %q, want alice:hi", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for text")
	}

	_ = alice.Close()
	select {
	case <-alice.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("receive loop did not end after Close")
	}
}
