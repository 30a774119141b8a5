package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFieldsAndLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core), LevelInfo)

	l.Debug("hidden")
	l.With(String("agent", "a1")).Info("episode done",
		Float64("reward", 9.5),
		Int("steps", 42),
		Bool("goal", true),
		Error(errors.New("boom")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "a1", ctx["agent"])
	assert.Equal(t, 9.5, ctx["reward"])
	assert.Equal(t, int64(42), ctx["steps"])
	assert.Equal(t, true, ctx["goal"])
	assert.Equal(t, "boom", ctx["error"])

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	l.Debug("visible")
	assert.Equal(t, 2, logs.Len())
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Info("dropped")
	l.With(String("k", "v")).Warn("dropped")
	assert.Equal(t, LevelError, l.GetLevel())
}
