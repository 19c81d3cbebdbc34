// Package config loads the host/port pair both chat binaries connect with.
package config

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the binaries look for connection settings.
const DefaultPath = "connection.yaml"

// Connection is the address of a chat server. The zero value is what a
// broken configuration yields; dialing or listening on it fails.
type Connection struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

// Addr returns host:port for the net package.
func (c Connection) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// IsZero reports whether c is the unusable zero connection.
func (c Connection) IsZero() bool {
	return c.Host == "" && c.Port == 0
}

// file mirrors the YAML document loosely so bad values can be reported
// per key instead of failing the whole decode.
type file struct {
	Host *string `yaml:"host"`
	Port *string `yaml:"port"`
}

// Load reads connection settings from a YAML file. Any failure is logged and
// yields the zero Connection.
func Load(path string) Connection {
	data, err := os.ReadFile(path) //nolint:gosec // path from CLI config
	if err != nil {
		slog.Error("connection settings loading error", "path", path, "err", err)
		return Connection{}
	}
	return Parse(data)
}

// Parse decodes YAML connection settings. Missing or invalid keys are
// logged and left at their zero value.
func Parse(data []byte) Connection {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Error("parse connection settings", "err", err)
		return Connection{}
	}

	var c Connection
	if f.Host == nil {
		slog.Error("connection setting missing", "key", "host")
	} else {
		c.Host = *f.Host
	}
	if f.Port == nil {
		slog.Error("connection setting missing", "key", "port")
	} else {
		c.Port = parsePort(*f.Port)
	}
	return c
}

// FromStrings builds a Connection from values typed into a settings form.
// An unparsable port becomes 0.
func FromStrings(host, port string) Connection {
	return Connection{Host: host, Port: parsePort(port)}
}

func parsePort(s string) uint16 {
	p, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		slog.Error("invalid port value", "value", s, "err", err)
		return 0
	}
	return uint16(p)
}

// Save writes c as YAML to path.
func (c Connection) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
