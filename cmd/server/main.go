package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/msuslov84/Chat/pkg/config"
	"github.com/msuslov84/Chat/pkg/journal"
	"github.com/msuslov84/Chat/pkg/logging"
	"github.com/msuslov84/Chat/pkg/server"
	"github.com/msuslov84/Chat/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()
	fs := pflag.NewFlagSet("chat-server", pflag.ExitOnError)

	configFile := fs.StringP("config", "c", "", "YAML server config file")
	connFile := fs.String("connection", "", "YAML connection settings (host, port); the server listens on its port")
	fs.StringVarP(&cfg.ListenAddr, "listen", "l", cfg.ListenAddr, "TCP bind address for chat clients")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "SQLite membership journal path (empty to disable)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-frame write deadline (0 = none)")
	fs.Float64Var(&cfg.TextRate, "text-rate", cfg.TextRate, "max chat messages per second per client (0 = unlimited)")
	fs.IntVar(&cfg.TextBurst, "text-burst", cfg.TextBurst, "burst allowance for --text-rate")
	journalDump := fs.Int("journal-dump", 0, "print the newest N journal events and exit (needs --journal)")
	printConfig := fs.Bool("print-config", false, "print the effective config as YAML and exit")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	logLevel := fs.String("log-level", "info", "log level: "+logging.LevelNames())
	logFormat := fs.String("log-format", "text", "log format: text or json")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	// File values sit between defaults and explicitly set flags.
	if *configFile != "" {
		fileCfg, err := server.LoadConfigFile(*configFile, server.DefaultConfig())
		if err != nil {
			slog.Error("load server config", "err", err)
			os.Exit(1)
		}
		cfg = mergeFlags(fs, fileCfg, cfg)
	}
	if *connFile != "" && !fs.Changed("listen") {
		conn := config.Load(*connFile)
		if conn.Port == 0 {
			slog.Error("server startup error: no usable port in connection settings", "path", *connFile)
			os.Exit(1)
		}
		cfg.ListenAddr = net.JoinHostPort("", strconv.Itoa(int(conn.Port)))
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid server config", "err", err)
		os.Exit(1)
	}

	if *journalDump > 0 {
		if err := dumpJournal(context.Background(), os.Stdout, cfg.JournalPath, *journalDump); err != nil {
			slog.Error("dump journal", "err", err)
			os.Exit(1)
		}
		return
	}

	if *printConfig {
		data, err := server.ExportConfigYAML(cfg)
		if err != nil {
			slog.Error("export config", "err", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
		return
	}

	var deps server.Dependencies
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			slog.Error("open journal", "err", err)
			os.Exit(1)
		}
		defer j.Close()
		deps.Journal = j
	}

	srv := server.New(cfg, deps)
	if err := srv.Run(); err != nil {
		slog.Error("server startup error", "err", err)
		os.Exit(1) //nolint:gocritic // journal close is best effort
	}
}

// mergeFlags returns fileCfg with every explicitly set flag applied on top.
func mergeFlags(fs *pflag.FlagSet, fileCfg, flagCfg server.Config) server.Config {
	if fs.Changed("listen") {
		fileCfg.ListenAddr = flagCfg.ListenAddr
	}
	if fs.Changed("metrics") {
		fileCfg.MetricsAddr = flagCfg.MetricsAddr
	}
	if fs.Changed("journal") {
		fileCfg.JournalPath = flagCfg.JournalPath
	}
	if fs.Changed("write-timeout") {
		fileCfg.WriteTimeout = flagCfg.WriteTimeout
	}
	if fs.Changed("text-rate") {
		fileCfg.TextRate = flagCfg.TextRate
	}
	if fs.Changed("text-burst") {
		fileCfg.TextBurst = flagCfg.TextBurst
	}
	return fileCfg
}
