// Package logger wraps zap with the request-scoped fields vibelink's
// HTTP middleware and services attach. One logger is built at startup
// and installed globally; the realtime layer derives its own scoped
// logger from the zap global.
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ProductionMode  = "production"
	DevelopmentMode = "development"
)

type ctxKey string

// Context keys under which the middleware stores request metadata.
const (
	RequestIdKey ctxKey = "request_id"
	UserIdKey    ctxKey = "user_id"
)

type Logger struct {
	Logger *zap.Logger
}

// New builds a logger for the given app mode: JSON with RFC3339
// timestamps in production, colored console output everywhere else.
func New(mode string) *Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if mode == ProductionMode {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	}

	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: zl}
}

var global *Logger

// SetGlobalLogger installs l for GetGlobalLogger callers and replaces
// the zap globals so component loggers built from zap.L() inherit it.
func SetGlobalLogger(l *Logger) {
	global = l
	zap.ReplaceGlobals(l.Logger)
}

func GetGlobalLogger() *Logger {
	return global
}

// For returns a zap logger carrying whatever request metadata ctx
// holds. The caller skip is undone because For callers log through
// zap directly rather than the Sugar helpers below.
func (l *Logger) For(ctx context.Context) *zap.Logger {
	zl := l.Logger.WithOptions(zap.AddCallerSkip(-1))
	if ctx == nil {
		return zl
	}
	var fields []zap.Field
	if requestID, ok := ctx.Value(RequestIdKey).(string); ok {
		fields = append(fields, zap.String(string(RequestIdKey), requestID))
	}
	if userID, ok := ctx.Value(UserIdKey).(string); ok {
		fields = append(fields, zap.String(string(UserIdKey), userID))
	}
	return zl.With(fields...)
}

func (l *Logger) Infof(template string, args ...any) {
	l.Logger.Sugar().Infof(template, args...)
}

func (l *Logger) Errorf(template string, args ...any) {
	l.Logger.Sugar().Errorf(template, args...)
}
