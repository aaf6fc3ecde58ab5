package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewLogger_Defaults(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stderr, logger.Out)
}

func TestNewLogger_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "panel.log")

	logger, err := NewLogger(&LogConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	logger.WithField("component", "test").Debug("ABI已加载")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"ABI已加载"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestNewLogger_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")

	logger, err := NewLogger(&LogConfig{Level: "warn", Format: "text", Output: path, Rotation: true, MaxSize: 1})
	require.NoError(t, err)

	rotator, ok := logger.Out.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, rotator.Filename)
	assert.Equal(t, 1, rotator.MaxSize)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(&LogConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)

	_, err = NewLogger(&LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
