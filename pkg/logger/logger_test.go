package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reqLogger := zap.New(core).Sugar().With("request_id", "abc")

	ctx := WithLogger(context.Background(), reqLogger)
	Log(ctx).Infof("hello %s", "there")

	assert.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "hello there", entry.Message)
	assert.Equal(t, "abc", entry.ContextMap()["request_id"])
}

func TestLogFallback(t *testing.T) {
	l := Run("fatal")
	assert.Same(t, l, Log(context.Background()))
	assert.Same(t, l, Log(nil))
}
