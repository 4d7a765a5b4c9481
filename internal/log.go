package internal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `yaml:"level" default:"INFO"`     // ERROR, WARN, INFO, DEBUG, TRACE
	Format string `yaml:"format" default:"console"` // console or json
	Output string `yaml:"output" default:"stderr"`  // stdout, stderr or a file path
}

// ParseLogLevel maps the LOG_LEVEL vocabulary onto a LogLevel
func ParseLogLevel(value string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "ERROR":
		return LogLevelError, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "", "INFO":
		return LogLevelInfo, nil
	case "DEBUG":
		return LogLevelDebug, nil
	case "TRACE":
		return LogLevelTrace, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", value)
}

// Zerolog returns the matching zerolog level
func (l LogLevel) Zerolog() zerolog.Level {
	switch l {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelTrace:
		return zerolog.TraceLevel
	}
	return zerolog.InfoLevel
}

// NewLogger builds a zerolog logger from cfg. The returned closer releases the
// log file when Output names one and is a no-op for stdout and stderr.
func NewLogger(cfg LogConfig) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLogLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var output io.Writer
	var closer io.Closer = nopCloser{}
	switch cfg.Output {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
		closer = file
	}

	return newLogger(output, cfg.Format, level), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(output io.Writer, format string, level LogLevel) zerolog.Logger {
	if format != "json" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	return zerolog.New(output).
		Level(level.Zerolog()).
		With().
		Timestamp().
		Str("service", "leadscope").
		Logger()
}

// NewDefaultLogger creates a console logger based on the LOG_LEVEL environment variable
func NewDefaultLogger() zerolog.Logger {
	level, _ := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	return newLogger(os.Stderr, os.Getenv("LOG_FORMAT"), level)
}
