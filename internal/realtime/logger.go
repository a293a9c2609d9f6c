package realtime

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventLogger is the realtime layer's scoped logger. Every entry names
// the user and connection it happened on so one session can be traced
// across the hub, presence, and call components.
type EventLogger struct {
	base *zap.Logger
}

func newEventLogger() *EventLogger {
	return &EventLogger{base: zap.L().Named("realtime")}
}

func (l *EventLogger) Info(msg string, userID uuid.UUID, connID string, fields ...zap.Field) {
	l.base.Info(msg, l.tagged(userID, connID, fields)...)
}

func (l *EventLogger) Warn(msg string, userID uuid.UUID, connID string, fields ...zap.Field) {
	l.base.Warn(msg, l.tagged(userID, connID, fields)...)
}

func (l *EventLogger) Error(msg string, userID uuid.UUID, connID string, err error, fields ...zap.Field) {
	l.base.Error(msg, append(l.tagged(userID, connID, fields), zap.Error(err))...)
}

func (l *EventLogger) tagged(userID uuid.UUID, connID string, extra []zap.Field) []zap.Field {
	fields := make([]zap.Field, 0, len(extra)+2)
	fields = append(fields, zap.Stringer("user_id", userID), zap.String("conn_id", connID))
	return append(fields, extra...)
}
