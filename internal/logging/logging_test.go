package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/claude-code-chat/backend/internal/config"
)

func TestNewDebugOverridesLevel(t *testing.T) {
	logger, closer, err := New(config.LogConfig{Level: "error", Debug: true})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, log.DebugLevel, logger.GetLevel())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chat.log")

	logger, closer, err := New(config.LogConfig{Level: "info", FilePath: path, Format: "logfmt"})
	require.NoError(t, err)

	logger.Info("session created", "session", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session created")
	assert.Contains(t, string(data), "session=abc")
}
