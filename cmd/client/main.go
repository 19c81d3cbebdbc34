package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/msuslov84/Chat/pkg/client"
	"github.com/msuslov84/Chat/pkg/config"
	"github.com/msuslov84/Chat/pkg/logging"
	"github.com/msuslov84/Chat/pkg/version"
)

const namePrompt = "Enter your name:"

func main() {
	fs := pflag.NewFlagSet("chat-client", pflag.ExitOnError)
	connFile := fs.StringP("connection", "c", config.DefaultPath, "YAML connection settings (host, port)")
	host := fs.String("host", "", "server host (overrides the settings file)")
	port := fs.String("port", "", "server port (overrides the settings file)")
	name := fs.StringP("name", "n", "", "name to register with (prompted if empty)")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	// Default to "warn" so logs stay out of the chat; override with
	// CHAT_LOG_LEVEL / CHAT_LOG_FORMAT. Logs go to stderr.
	level := "warn"
	if v := os.Getenv("CHAT_LOG_LEVEL"); v != "" {
		level = v
	}
	_ = logging.Setup(logging.Options{
		Level:  level,
		Format: os.Getenv("CHAT_LOG_FORMAT"),
		Output: os.Stderr,
	})

	conn := config.Load(*connFile)
	if fs.Changed("host") || fs.Changed("port") {
		h, p := conn.Host, fmt.Sprint(conn.Port)
		if fs.Changed("host") {
			h = *host
		}
		if fs.Changed("port") {
			p = *port
		}
		conn = config.FromStrings(h, p)
		slog.Info("connection settings overridden", "host", conn.Host, "port", conn.Port)
	}

	out := &printer{w: bufio.NewWriter(os.Stdout)}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, conn.Addr(), out.handlers())
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "server connection error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()
	c.StartReceiving()

	go func() {
		<-c.Done()
		out.line("connection lost")
		os.Exit(0)
	}()

	if *name != "" {
		if err := c.Register(*name); err != nil {
			slog.Warn("error sending the entered name", "err", err)
		}
	} else {
		out.line(namePrompt)
	}

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := in.Text()
		switch {
		case line == "/quit":
			return
		case line == "/users":
			out.line("Users: " + strings.Join(c.Roster(), ", "))
		case c.Name() == "":
			if line == "" {
				out.line(namePrompt)
				continue
			}
			if err := c.Register(line); err != nil {
				slog.Warn("error sending the entered name", "err", err)
			}
		default:
			if err := c.SendText(line); err != nil {
				slog.Warn("message sending error", "err", err)
			}
		}
	}
}
