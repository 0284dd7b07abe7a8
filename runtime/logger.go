package runtime

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ydbbridge "github.com/wippyai/ydb-bridge"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the runtime package's logger.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the runtime package's logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

// NewLogger builds the stderr logger used for dispatch tracing at level.
// DebugOff yields a no-op logger.
func NewLogger(level ydbbridge.DebugLevel) (*zap.Logger, error) {
	if level == ydbbridge.DebugOff {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	switch level {
	case ydbbridge.DebugLow:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case ydbbridge.DebugMedium:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.DisableCaller = false
		cfg.DisableStacktrace = false
	}
	return cfg.Build()
}
