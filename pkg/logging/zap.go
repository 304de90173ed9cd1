package logging

import (
	"io"

	"github.com/siderolabs/gen/xslices"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Destination is one sink of the process logger.
type Destination struct {
	level  zapcore.LevelEnabler
	writer io.Writer
	config zapcore.EncoderConfig
}

// EncoderOption tweaks a destination encoder config.
type EncoderOption func(config *zapcore.EncoderConfig)

// WithoutTimestamp disables timestamps, the debug view is too narrow for them.
func WithoutTimestamp() EncoderOption {
	return func(config *zapcore.EncoderConfig) {
		config.EncodeTime = nil
	}
}

// NewDestination creates a log destination.
func NewDestination(writer io.Writer, level zapcore.LevelEnabler, options ...EncoderOption) *Destination {
	config := zap.NewDevelopmentEncoderConfig()
	config.ConsoleSeparator = " "
	config.StacktraceKey = "error"

	for _, option := range options {
		option(&config)
	}

	return &Destination{
		level:  level,
		writer: writer,
		config: config,
	}
}

// NewLogger creates a logger writing to every destination.
func NewLogger(dests ...*Destination) *zap.Logger {
	if len(dests) == 0 {
		return zap.NewNop()
	}

	cores := xslices.Map(dests, func(dest *Destination) zapcore.Core {
		return zapcore.NewCore(
			zapcore.NewConsoleEncoder(dest.config),
			zapcore.AddSync(dest.writer),
			dest.level,
		)
	})

	return zap.New(zapcore.NewTee(cores...))
}
