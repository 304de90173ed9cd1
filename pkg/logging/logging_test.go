package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBufferLines(t *testing.T) {
	buf, err := NewBuffer()
	require.NoError(t, err)

	require.Empty(t, buf.Lines())

	_, err = buf.Write([]byte("first\nsecond\n"))
	require.NoError(t, err)

	require.Equal(t, []string{"first", "second"}, buf.Lines())
	// reading does not consume
	require.Equal(t, []string{"first", "second"}, buf.Lines())
}

func TestLoggerTee(t *testing.T) {
	buf, err := NewBuffer()
	require.NoError(t, err)

	var console bytes.Buffer

	logger := NewLogger(
		NewDestination(buf, zapcore.InfoLevel, WithoutTimestamp()),
		NewDestination(&console, zapcore.WarnLevel),
	)

	logger.Info("found device", zap.String("device", "/dev/sda1"))
	logger.Warn("can't mount")

	lines := buf.Lines()
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "found device")
	require.Contains(t, lines[0], "/dev/sda1")

	require.NotContains(t, console.String(), "found device")
	require.Contains(t, console.String(), "can't mount")
}
