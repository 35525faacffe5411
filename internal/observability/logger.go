// Package observability holds the process-wide structured loggers.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger for command-level events. It writes
// human-readable output to stderr so it never interleaves with relayed
// workload output on stdout.
var CLILogger *zap.Logger

// atomicLevel allows runtime level changes from config or flags.
var atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	CLILogger = logger
}

// SetLevel adjusts the CLI logger's level. Unknown strings keep the
// current level.
func SetLevel(level string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return
	}
	atomicLevel.SetLevel(l)
}

// Sync flushes buffered log entries. Called before process exit.
func Sync() {
	_ = CLILogger.Sync()
}
