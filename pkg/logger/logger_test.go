// pkg/logger/logger_test.go
package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/YaganovValera/quote-stream/pkg/logger"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := logger.New(logger.Config{Level: "invalid"})
	assert.Error(t, err)
}

func TestNew_ValidLevels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
		l, err := logger.New(logger.Config{Level: lvl, DevMode: true})
		require.NoError(t, err, "level %q", lvl)
		l.Sync()
	}
}

func TestWithContext_TraceAndSessionID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := logger.FromZap(zap.New(core))

	ctx := logger.ContextWithTraceID(context.Background(), "trace-123")
	ctx = logger.ContextWithSessionID(ctx, "sess-1")
	l.WithContext(ctx).Named("stream").Info("hello")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "stream", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "trace-123", fields["trace_id"])
	assert.Equal(t, "sess-1", fields["session_id"])
}

func TestWithContext_NoValuesReturnsSame(t *testing.T) {
	l := logger.NewNop()
	assert.Same(t, l, l.WithContext(context.Background()))
}
