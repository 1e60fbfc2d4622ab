// Package sysutil holds process-level helpers for the recipes binary:
// global logger setup and environment string parsing.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogOptions configures the process-wide logger.
type LogOptions struct {
	Level   string
	Pretty  bool // human-readable console output instead of JSON
	NoColor bool // only meaningful with Pretty
	Service string
	Version string
}

// ConfigureLogger replaces the global zerolog logger with one writing to w.
// Every line carries a timestamp and, when set, the service name and version.
func ConfigureLogger(w io.Writer, opts LogOptions) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: opts.NoColor}
	}
	lc := zerolog.New(w).With().Timestamp()
	if opts.Service != "" {
		lc = lc.Str("service", opts.Service)
	}
	if opts.Version != "" {
		lc = lc.Str("version", opts.Version)
	}
	log.Logger = lc.Logger()
	zerolog.SetGlobalLevel(ParseLevel(opts.Level))
}

// ParseLevel maps a level name to a zerolog level. "warning" is accepted as
// an alias; blank or unknown names give info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// IsTruthy reports whether v reads as an enabled flag: 1, true, yes, y or on.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank, unchanged.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
