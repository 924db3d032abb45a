// Package logging builds the structured loggers used across the module. Components take a *slog.Logger and log
// key/value pairs, this package only decides level, format and destination.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level - Log severity, ordered Debug < Info < Warn < Error
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String - Returns the upper case name of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel - Returns the level named s, case insensitive
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Format - Output format of log records
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config - Logger configuration. The zero value logs Info and above as text to stderr.
//   - Service is added to every record as "service" when set
//   - Output defaults to os.Stderr
type Config struct {
	Level   Level
	Format  Format
	Service string
	Output  io.Writer
}

// New - Returns a logger built from config
func New(config Config) *slog.Logger {
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}
	var handler slog.Handler
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With("service", config.Service)
	}

	return logger
}

// Default - Returns an Info level text logger writing to stderr
func Default() *slog.Logger {
	return New(Config{Level: LevelInfo})
}

// Nop - Returns a logger discarding everything
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
