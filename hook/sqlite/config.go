package sqlite

import (
	"log/slog"
	"net/url"
	"strings"
)

type Config struct {
	uri    string
	conns  int
	logger *slog.Logger
}

type ConfigFunc = func(c *Config)

// URI sets the database URI. It's either a path or a "file:" URI, optionally followed by query
// parameters that override the defaults. Default is ":memory:".
func (c *Config) URI(uri string) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		panic("URI can't be blank")
	}
	_, query, _ := strings.Cut(uri, "?")
	if _, err := url.ParseQuery(query); err != nil {
		panic("URI query is invalid")
	}
	c.uri = uri
}

// Conns sets the maximum number of open connections to a file database. Default is 4.
func (c *Config) Conns(conns int) {
	if conns < 1 {
		panic("conns can't be < 1")
	}
	c.conns = conns
}

// Logger sets the logger used to report attempts that couldn't be recorded. Default is
// [slog.Default] at the time of logging.
func (c *Config) Logger(logger *slog.Logger) {
	if logger == nil {
		panic("logger can't be nil")
	}
	c.logger = logger
}
