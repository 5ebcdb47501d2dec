package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/fyrsmithlabs/pdfqa/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Caller = false
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	l, err := newLogger(cfg, zapcore.AddSync(&buf), nil)
	require.NoError(t, err)
	return l, &buf
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)

	cfg = NewDefaultConfig()
	cfg.Stdout = false
	_, err = NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	l.Info(context.Background(), "calling model",
		zap.String("api_key", "sk-abcdefghijklmnop"),
		zap.String("note", "header was Bearer abc.def"),
		zap.String("model", "gpt-3.5-turbo-0125"),
	)
	l.With(zap.String("token", "xoxb-1234")).Info(context.Background(), "posting")

	out := buf.String()
	assert.NotContains(t, out, "sk-abcdefghijklmnop")
	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "xoxb-1234")
	assert.Contains(t, out, "gpt-3.5-turbo-0125")
	assert.Contains(t, out, redactedValue)
}

func TestLogger_RedactsMessageText(t *testing.T) {
	l, buf := newBufferLogger(t, nil)
	l.Warn(context.Background(), "bad key sk-0123456789abcdef rejected")
	assert.NotContains(t, buf.String(), "sk-0123456789abcdef")
}

func TestLogger_RedactionDisabled(t *testing.T) {
	l, buf := newBufferLogger(t, func(c *Config) { c.Redaction.Enabled = false })
	l.Info(context.Background(), "raw", zap.String("token", "visible"))
	assert.Contains(t, buf.String(), "visible")
}

func TestLogger_TraceLevel(t *testing.T) {
	l, buf := newBufferLogger(t, func(c *Config) { c.Level = TraceLevel })
	l.Trace(context.Background(), "chunk scored")
	assert.Contains(t, buf.String(), `"level":"trace"`)

	quiet, quietBuf := newBufferLogger(t, nil)
	quiet.Trace(context.Background(), "chunk scored")
	quiet.Debug(context.Background(), "dropped")
	assert.Empty(t, quietBuf.String())
}

func TestLogger_ConstantFields(t *testing.T) {
	l, buf := newBufferLogger(t, nil)
	l.Info(context.Background(), "hello")
	assert.Contains(t, buf.String(), `"service":"pdfqa"`)
}

func TestSecretField(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "configured", Secret("api_key", config.Secret("abcd")))
	tl.AssertField(t, "configured", "api_key", "[REDACTED:4]")
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(config.LoggingConfig{Level: "debug", Format: "console", OTEL: true})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.OTEL)
	assert.True(t, cfg.Redaction.Enabled)

	cfg, err = FromAppConfig(config.LoggingConfig{})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	_, err = FromAppConfig(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
