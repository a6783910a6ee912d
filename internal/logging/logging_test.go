package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"k8s.io/klog/v2"
)

func TestNew_Production(t *testing.T) {
	log, err := New(false)
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
}

func TestNew_Debug(t *testing.T) {
	log, err := New(true)
	require.NoError(t, err)
	assert.True(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNewTest(t *testing.T) {
	log := NewTest()
	require.NotNil(t, log)
	log.Debugw("test logger works", "cluster", "demo")
}

func TestRouteKlog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	RouteKlog(zap.New(core).Sugar())
	t.Cleanup(klog.ClearLogger)

	klog.InfoS("request sent", "verb", "GET")
	klog.Flush()

	entries := logs.FilterMessage("request sent").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "client-go", entries[0].LoggerName)
}
