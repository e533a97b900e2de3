package common

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  logrus.Level
	}{
		{LogLevelDebug, logrus.DebugLevel},
		{LogLevelInfo, logrus.InfoLevel},
		{LogLevelWarn, logrus.WarnLevel},
		{LogLevelError, logrus.ErrorLevel},
		{LogLevel("bogus"), logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			logger := NewLogger(LoggerConfig{Level: tt.level})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNewLoggerServiceFields(t *testing.T) {
	logger := NewLogger(LoggerConfig{
		Level:   LogLevelInfo,
		Format:  "json",
		Service: "vitalog-auth",
		Version: "v1.2.3",
	})

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Info("hello")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"service":"vitalog-auth"`)
	assert.Contains(t, out, `"service_version":"v1.2.3"`)
	assert.Contains(t, out, `"msg":"hello"`)
}

func TestNewLoggerJSONFormat(t *testing.T) {
	logger := NewLogger(LoggerConfig{Level: LogLevelInfo, Format: "json"})
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)

	logger = NewLogger(LoggerConfig{Level: LogLevelInfo, Format: "text"})
	_, ok = logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}
