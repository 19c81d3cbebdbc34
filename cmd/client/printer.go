package main

import (
	"bufio"
	"strings"
	"sync"
	"time"

	"github.com/msuslov84/Chat/pkg/client"
)

// printer renders client events as terminal lines.
type printer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (p *printer) line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = p.w.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		_ = p.w.WriteByte('\n')
	}
	_ = p.w.Flush()
}

func (p *printer) handlers() client.Handlers {
	return client.Handlers{
		OnServiceMessage: p.line,
		OnRosterUpdated: func(names []string) {
			p.line("Users: " + strings.Join(names, ", "))
		},
		OnUserMessage: func(user string, at time.Time, text string) {
			p.line(at.Format("15:04:05") + " " + user + ": " + text)
		},
		OnNameRejected: func(reason string) {
			if reason == "" {
				reason = "Name rejected by the server"
			}
			p.line(reason)
			p.line(namePrompt)
		},
	}
}
