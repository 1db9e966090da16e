package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger(t *testing.T) {
	prev := logger
	t.Cleanup(func() {
		logger = prev
		zap.ReplaceGlobals(zap.NewNop())
	})

	t.Run("Production defaults to info", func(t *testing.T) {
		require.NoError(t, InitLogger("production", ""))
		assert.False(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
		assert.True(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("Level overrides the environment", func(t *testing.T) {
		require.NoError(t, InitLogger("production", "debug"))
		assert.True(t, GetLogger().Core().Enabled(zapcore.DebugLevel))

		require.NoError(t, InitLogger("development", "warn"))
		assert.False(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
		assert.True(t, GetLogger().Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("Unknown level is rejected", func(t *testing.T) {
		before := GetLogger()
		err := InitLogger("production", "loud")
		assert.Error(t, err)
		assert.Same(t, before, GetLogger())
	})
}
