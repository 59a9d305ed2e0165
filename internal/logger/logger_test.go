package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "chatty"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewRejectsUnknownOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "syslog"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestInitLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	cfg := Config{Level: "info", Format: "json", Output: "file", FilePath: path}

	require.NoError(t, InitLogger(cfg))
	t.Cleanup(func() { _ = InitLogger(DefaultConfig()) })

	log := Component("test")
	log.Info().Str("session_id", "abc").Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"session_id":"abc"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}
