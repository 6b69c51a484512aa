package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelMapping(t *testing.T) {
	tests := []struct {
		in   LogLevel
		want zapcore.Level
	}{
		{DebugLevel, zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{ErrorLevel, zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			require.Equal(t, tt.want, tt.in.zapLevel())
		})
	}
}

func TestHelpersBeforeInit(t *testing.T) {
	// Package helpers must be safe to call before InitLogger.
	require.NotPanics(t, func() {
		Debug("debug", String("k", "v"))
		Info("info", Int("n", 1))
		Warn("warn", Bool("b", true))
		Error("error", ErrorField(errors.New("boom")))
		Printf{}.Printf("%s", "printf")
		Sync()
	})
}
