package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b1signal/backend/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_SetsGlobalLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := New(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"})
			require.NotNil(t, log)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"fatal", zerolog.FatalLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestLogger_LevelsAndMessages(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	log := NewWithWriter(&buf, "test")

	cases := []struct {
		name  string
		emit  func()
		level string
		msg   string
	}{
		{"debug", func() { log.Debug("debug message") }, "debug", "debug message"},
		{"info", func() { log.Info("info message") }, "info", "info message"},
		{"warnf", func() { log.Warnf("retry %d", 3) }, "warn", "retry 3"},
		{"errorf", func() { log.Errorf("failed: %s", "timeout") }, "error", "failed: timeout"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.emit()
			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["message"])
			assert.Equal(t, "test", entry["env"])
		})
	}
}

func TestLogger_Fields(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	log := NewWithWriter(&buf, "test")

	log.Component("quick_filter").
		WithFields(map[string]interface{}{"trade_date": "20240115", "passed": 12}).
		WithError(errors.New("boom")).
		Info("stage done")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "quick_filter", entry["component"])
	assert.Equal(t, "20240115", entry["trade_date"])
	assert.Equal(t, float64(12), entry["passed"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNewNop_DiscardsOutput(t *testing.T) {
	log := NewNop()
	assert.NotPanics(t, func() {
		log.WithField("k", "v").Info("ignored")
	})
}
