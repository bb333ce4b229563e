package internal

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerIsSingleton(t *testing.T) {
	assert.Same(t, GetLogger(), GetLogger())
}

func TestSetLogLevel(t *testing.T) {
	original := GetLogger().GetLevel()
	t.Cleanup(func() { SetLogLevel(original) })

	SetLogLevel(logrus.DebugLevel)
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())
}

func TestSetLogFormat(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, SetLogFormat(LogFormatText)) })

	require.NoError(t, SetLogFormat("JSON"))
	assert.IsType(t, &logrus.JSONFormatter{}, GetLogger().Formatter)

	require.NoError(t, SetLogFormat(""))
	assert.IsType(t, &logrus.TextFormatter{}, GetLogger().Formatter)

	err := SetLogFormat("logfmt")
	assert.ErrorContains(t, err, `unsupported log format "logfmt"`)
	assert.IsType(t, &logrus.TextFormatter{}, GetLogger().Formatter)

	assert.True(t, ValidLogFormat(LogFormatJSON))
	assert.False(t, ValidLogFormat("xml"))
}

func TestLeveledLogrus(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	leveled := NewLeveledLogrus(logger, "remote-engine")
	leveled.Debug("performing request", "method", "POST", "url", "http://localhost:5002/analyze", "dangling")

	out := buf.String()
	assert.Contains(t, out, `"msg":"performing request"`)
	assert.Contains(t, out, `"level":"debug"`)
	assert.Contains(t, out, `"component":"remote-engine"`)
	assert.Contains(t, out, `"method":"POST"`)
	assert.Contains(t, out, `"url":"http://localhost:5002/analyze"`)
	assert.NotContains(t, out, "dangling")

	buf.Reset()
	logger.SetLevel(logrus.WarnLevel)
	leveled.Info("retrying request")
	assert.Empty(t, buf.String())
}
