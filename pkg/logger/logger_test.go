package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		l, err := New(Config{})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(Config{Level: "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("console development", func(t *testing.T) {
		l, err := New(Config{Level: "debug", Encoding: "console", Development: true})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := context.WithValue(context.Background(), TableKey, "animals")
	ctx = context.WithValue(ctx, SourceKey, "arrow")
	ctx = context.WithValue(ctx, RequestIDKey, "req-1")

	WithContext(ctx, base).Info("table created")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "animals", fields["table"])
	assert.Equal(t, "arrow", fields["source"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestGetAndInit(t *testing.T) {
	require.NotNil(t, Get())

	require.NoError(t, Init(Config{Level: "warn"}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, Init(DefaultConfig()))
	assert.True(t, Get().Core().Enabled(zapcore.InfoLevel))
}
