package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/school-system/grade-engine/internal/config"
)

func TestNewHonoursLevel(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Env: config.EnvProduction},
		Log:    config.LogConfig{Level: "warn", Format: "console"},
	}

	l, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNewFallsBackToInfo(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Env: config.EnvProduction},
		Log:    config.LogConfig{Level: "loud"},
	}

	l, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
