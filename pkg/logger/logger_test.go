package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tasktracker/pkg/config"
)

func TestNewReplacesGlobals(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	cfg := &config.Config{AppEnv: "development", AppName: "tasktracker"}
	log, err := New(ConfigParams{Cfg: cfg})
	require.NoError(t, err)
	require.Same(t, log, zap.L())
}

func TestBuildProduction(t *testing.T) {
	cfg := &config.Config{AppEnv: "production", AppName: "tasktracker"}
	log, err := Build(cfg)
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zap.DebugLevel))
	require.True(t, log.Core().Enabled(zap.InfoLevel))
}

func TestBuildNilConfig(t *testing.T) {
	log, err := Build(nil)
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zap.DebugLevel))
}
