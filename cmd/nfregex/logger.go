package main

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a logger writing to stderr. stdout carries the protocol
// lines only.
func newLogger(level string, format string) (*zap.Logger, error) {

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	var config zap.Config
	switch format {
	case "json":
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		config = zap.NewDevelopmentConfig()
		config.Development = false
	default:
		return nil, errors.Errorf("invalid log format %q", format)
	}

	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.DisableStacktrace = lvl > zapcore.DebugLevel

	return config.Build()
}
