package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestForTurn_AttachesSharedKeys(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &Logger{Logger: zap.New(core)}

	l.Named("engine").ForTurn("c-1", "hotel-a", "s-1", "guest").Info("turn answered")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "engine", entry.LoggerName)
	assert.Equal(t, map[string]any{
		KeyCorrelation: "c-1",
		KeyTenant:      "hotel-a",
		KeySession:     "s-1",
		KeyActor:       "guest",
	}, entry.ContextMap())
}

func TestForSession(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	(&Logger{Logger: zap.New(core)}).ForSession("hotel-a", "s-1").Info("session ended")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, map[string]any{KeyTenant: "hotel-a", KeySession: "s-1"}, logs.All()[0].ContextMap())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "DEBUG", want: zapcore.DebugLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: " error ", want: zapcore.ErrorLevel},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Level: "info", Format: "xml"})
	assert.Error(t, err)

	l, err := New(Options{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
