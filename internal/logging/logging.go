// Package logging builds the leveled console logger shared by the CLI and the server.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Options configure New.
type Options struct {
	Level           string
	Formatter       string
	ReportTimestamp bool
	Prefix          string
}

// New returns a logger writing to w. Unknown levels and formatters are errors.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	formatter, err := parseFormatter(opts.Formatter)
	if err != nil {
		return nil, err
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "taskdeck"
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: opts.ReportTimestamp,
		Prefix:          prefix,
	}), nil
}

// ParseLevel maps a level name to a log.Level. Empty means info.
func ParseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func parseFormatter(s string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("invalid log format %q (want text, json or logfmt)", s)
	}
}
