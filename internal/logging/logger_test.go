package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"", "console", "text", "json", "JSON"} {
		l, err := New(Options{Format: format})
		require.NoError(t, err, "format %q", format)
		assert.NotNil(t, l)
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log format")
}

func TestNew_DebugLevel(t *testing.T) {
	l, err := New(Options{Debug: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(Options{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Named(zap.New(core), CategoryImport)
	l.Info("linked")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "import", entries[0].LoggerName)
}

func TestNamed_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		Named(nil, CategoryStartup).Info("ignored")
	})
}

func TestTimer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	timer := StartTimer(zap.New(core), "fetch")
	elapsed := timer.StopWithInfo()

	assert.GreaterOrEqual(t, int64(elapsed), int64(0))
	entries := logs.FilterMessage("fetch completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}
