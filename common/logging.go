// Package common provides the centralized logging infrastructure for the
// vitalog services. It implements output routing that directs error messages
// to stderr while sending other log levels to stdout, enabling proper stream
// separation for containerized deployments.
//
// The logging system is built on logrus for structured logging. The package
// exposes a global Logger instance plus NewLogger for building configured
// instances; all services log through these to keep output handling and
// formatting uniform.
package common

import (
	"bytes"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log output to the right stream: entries
// carrying an error level indicator go to stderr, everything else to stdout.
// It operates on the final formatted output, so it works with both the text
// and JSON formatters.
type OutputSplitter struct{}

// Write implements io.Writer with level-based stream routing.
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the global logger instance shared by code without its own
// configured logger.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

// LogLevel represents standard logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggerConfig contains configuration for creating a logger.
type LoggerConfig struct {
	Level      LogLevel // Minimum log level
	Format     string   // "json" or "text"
	Service    string   // Service name added to all entries
	Version    string   // Service version added to all entries
	TimeFormat string   // Time format for log timestamps
}

// DefaultLoggerConfig returns a logger config with sensible defaults.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      LogLevelInfo,
		Format:     "text",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new configured logger instance.
func NewLogger(config LoggerConfig) *logrus.Logger {
	logger := logrus.New()

	switch config.Level {
	case LogLevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LogLevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: config.TimeFormat,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: config.TimeFormat,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(&OutputSplitter{})

	if config.Service != "" {
		logger.AddHook(&serviceHook{service: config.Service, version: config.Version})
	}

	return logger
}

// serviceHook stamps service identity fields onto every entry.
type serviceHook struct {
	service string
	version string
}

func (h *serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.service
	if h.version != "" {
		entry.Data["service_version"] = h.version
	}
	return nil
}
