package logger

import (
	"context"

	"github.com/ecofinds/marketplace/constant"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	// wrapped backs the package-level helpers; it skips their own frame.
	wrapped *zap.Logger
)

// Init initializes the global Zap logger
func Init(environment string) error {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := config.Build()
	if err != nil {
		return err
	}
	Set(l)

	return nil
}

// Set replaces the global logger, mainly for tests.
func Set(l *zap.Logger) {
	globalLogger = l
	wrapped = nil
	if l != nil {
		wrapped = l.WithOptions(zap.AddCallerSkip(1))
	}
}

// Get returns the global logger
func Get() *zap.Logger {
	if globalLogger == nil {
		Set(zap.NewNop())
	}
	return globalLogger
}

func helper() *zap.Logger {
	if wrapped == nil {
		Get()
	}
	return wrapped
}

// Close flushes the logger
func Close() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// FromContext returns the global logger annotated with the request and user
// ids stored on ctx, if any.
func FromContext(ctx context.Context) *zap.Logger {
	l := Get()
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(constant.RequestIDKey).(string); ok && id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if uid, ok := ctx.Value(constant.UserIDKey).(uint64); ok {
		l = l.With(zap.Uint64("user_id", uid))
	}
	return l
}

// Info logs at info level
func Info(msg string, fields ...zap.Field) {
	helper().Info(msg, fields...)
}

// Error logs at error level
func Error(msg string, fields ...zap.Field) {
	helper().Error(msg, fields...)
}

// Debug logs at debug level
func Debug(msg string, fields ...zap.Field) {
	helper().Debug(msg, fields...)
}

// Warn logs at warn level
func Warn(msg string, fields ...zap.Field) {
	helper().Warn(msg, fields...)
}

// Fatal logs at fatal level and exits
func Fatal(msg string, fields ...zap.Field) {
	helper().Fatal(msg, fields...)
}
