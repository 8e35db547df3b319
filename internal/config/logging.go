package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = newNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = newNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.normalize(raw)
}

// SlogLevel maps a LogLevel to slog. verbose forces debug.
// WIKIBUILDER_LOG_LEVEL overrides the configured level.
func (l LogLevel) SlogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	if env := os.Getenv("WIKIBUILDER_LOG_LEVEL"); env != "" {
		l = NormalizeLogLevel(env)
	}
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger for cfg. A nil cfg yields a text logger at info level.
func NewLogger(w io.Writer, cfg *Config, verbose bool) *slog.Logger {
	level, format := LogLevelInfo, LogFormatText
	if cfg != nil {
		level, format = cfg.LogLevel, cfg.LogFormat
	}
	opts := &slog.HandlerOptions{Level: level.SlogLevel(verbose)}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

type normalizer[T comparable] struct {
	values map[string]T
	def    T
}

func newNormalizer[T comparable](values map[string]T, def T) normalizer[T] {
	return normalizer[T]{values: values, def: def}
}

func (n normalizer[T]) normalize(raw string) T {
	if v, ok := n.values[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return v
	}
	return n.def
}
