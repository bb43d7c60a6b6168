package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpersWriteToGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Info("search finished", String("query", "lofi"), Int("count", 3))
	Error("transcode failed", ErrorField(errors.New("exit status 1")))

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "search finished", first.Message)
	assert.Equal(t, "lofi", first.ContextMap()["query"])
	assert.Equal(t, int64(3), first.ContextMap()["count"])
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

func TestInitLoggerCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, InitLogger(Config{Level: "debug", OutputPath: path, MaxSize: 1}))
	t.Cleanup(func() { SetLogger(nil) })

	Info("hello")
	Sync()

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestNilLoggerIsNoop(t *testing.T) {
	SetLogger(nil)
	assert.NotPanics(t, func() { Warn("nothing listens") })
}
