// Package logging configures the zerolog logger shared by every harvester component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every outbound request and cache operation.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs phase and page progress.
	LevelInfo LogLevel = "info"

	// LevelWarn logs only skipped work and degraded dependencies.
	LevelWarn LogLevel = "warn"

	// LevelError logs resource failures only.
	LevelError LogLevel = "error"
)

// Component names used as the "component" field.
const (
	ComponentFetcher   = "fetcher"
	ComponentThrottle  = "throttle"
	ComponentRetriever = "retriever"
	ComponentHarvest   = "harvest"
	ComponentStore     = "store"
	ComponentCache     = "cache"
	ComponentClient    = "sonar-client"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns the configuration used by the CLI when no flags are given.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: true,
		Output: os.Stderr,
	}
}

// ParseLevel validates a textual level. Unlike Setup it rejects unknown values
// so that a typo in configuration is reported instead of silently ignored.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level guidelines:
//
// Debug: request URLs, cache hits and misses, throttle counter values.
// Info: phase start/end, "retrieving page N", throttle waits, files written.
// Warn: hard cap or per-project ceiling reached, cache unavailable.
// Error: a resource (project, endpoint) failed and was skipped.
//
// Context fields: endpoint, project, page, total, retrieved, count, wait, path.
