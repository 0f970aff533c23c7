package logger

import (
	"os"
	"path/filepath"
	"testing"

	"papertrade/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestNewWithFile
func TestNewWithFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "logs", "papertrade.log")

	log, err := New(config.LogConfig{Level: "debug", Format: "json", OutputFile: out, Environment: "prod"})
	require.NoError(t, err)

	log.Info("hello")
	_ = log.Sync() // stdout sync fails on pipes; the file core is unbuffered

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
