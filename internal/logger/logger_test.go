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

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("prod", "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewLogger("staging", "debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewLogger("local", "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("qa", "")
	assert.Error(t, err)

	_, err = NewLogger("local", "loud")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background(), nil))

	fallback := zap.NewExample()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx, fallback))
}

func TestForDocument(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	req := zap.New(core).With(zap.String("request_id", "r-1"))
	ctx := WithContext(context.Background(), req)

	ctx, worker := ForDocument(ctx, nil, "doc-1", zap.Int("worker", 2))
	_, run := ForDocument(ctx, nil, "doc-1")
	worker.Info("picked up")
	run.Info("stage done")

	require.Equal(t, 2, logs.Len())
	for _, e := range logs.All() {
		fields := e.ContextMap()
		assert.Equal(t, "r-1", fields["request_id"])
		assert.Equal(t, "doc-1", fields["document_id"])
		assert.EqualValues(t, 2, fields["worker"])
	}
	assert.Len(t, logs.All()[1].Context, 3, "document_id is not repeated by a nested scope")
}

func TestForDocument_FallsBackToBase(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	ctx, l := ForDocument(context.Background(), zap.New(core), "doc-2")
	l.Info("claimed")
	assert.Same(t, l, FromContext(ctx, nil))

	_, other := ForDocument(ctx, zap.New(core), "doc-3")
	other.Info("claimed")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "doc-2", logs.All()[0].ContextMap()["document_id"])
	assert.Equal(t, "doc-3", logs.All()[1].ContextMap()["document_id"])
	assert.Len(t, logs.All()[1].Context, 1, "a new document scope starts from the unscoped logger")
}
