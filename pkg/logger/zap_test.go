package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "<unset>", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("whsec"))
	assert.Equal(t, "whsec_***", MaskSecret("whsec_abcdef123456"))
}

func TestNewZapLogger_Level(t *testing.T) {
	logger, err := NewZapLogger(Config{Level: "warn", Format: "console", Output: "stderr"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
