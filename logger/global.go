package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	globalMu     sync.RWMutex
	initOnce     sync.Once
)

// setGlobalLoggerInternal installs the logger built by New.
func setGlobalLoggerInternal(l *zap.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// SetGlobalLogger replaces the global logger. Pass a logger built with
// AddCallerSkip(1) for correct caller locations from the package-level
// helpers.
func SetGlobalLogger(l *zap.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalLogger returns the global logger, building a default one on
// first use.
func GetGlobalLogger() *zap.Logger {
	return getGlobalLogger()
}

func getGlobalLogger() *zap.Logger {
	globalMu.RLock()
	if globalLogger != nil {
		defer globalMu.RUnlock()
		return globalLogger
	}
	globalMu.RUnlock()

	initOnce.Do(func() {
		globalMu.Lock()
		defer globalMu.Unlock()
		if globalLogger == nil {
			globalLogger = mustBuildDefaultLogger()
		}
	})

	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// mustBuildDefaultLogger builds the fallback logger used before New is
// called. It never fails; a nop logger is the last resort.
func mustBuildDefaultLogger() *zap.Logger {
	cfg := DefaultConfig()

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig(),
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	}

	log, err := zapCfg.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.DPanicLevel),
	)
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// Debug logs at debug level using the global logger.
func Debug(msg string, fields ...zap.Field) {
	getGlobalLogger().Debug(msg, fields...)
}

// Info logs at info level using the global logger.
func Info(msg string, fields ...zap.Field) {
	getGlobalLogger().Info(msg, fields...)
}

// Warn logs at warn level using the global logger.
func Warn(msg string, fields ...zap.Field) {
	getGlobalLogger().Warn(msg, fields...)
}

// Error logs at error level using the global logger.
func Error(msg string, fields ...zap.Field) {
	getGlobalLogger().Error(msg, fields...)
}

// Sync flushes buffered entries from the global logger.
func Sync() error {
	return getGlobalLogger().Sync()
}
