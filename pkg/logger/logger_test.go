package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.log")
	require.NoError(t, Init(path))
	defer Close()

	Info("launching %s", "com.comesee.app")
	Warn("alert %q left unhandled", "Camera")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "launching com.comesee.app")
	assert.Contains(t, string(data), "WARN")
}

func TestInitFailsOnMissingDir(t *testing.T) {
	err := Init(filepath.Join(t.TempDir(), "missing", "runner.log"))
	assert.Error(t, err)
}

func TestInitWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	defer Close()

	Debug("poll %d", 3)
	Error("tap failed")

	assert.Contains(t, buf.String(), "poll 3")
	assert.Contains(t, buf.String(), "tap failed")
}

func TestLoggingWithoutInitIsNoop(t *testing.T) {
	Close()
	assert.NotPanics(t, func() {
		Info("dropped")
		Warn("dropped")
	})
}
