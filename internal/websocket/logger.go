package websocket

import (
	"go.uber.org/zap"
)

// ConnLogger provides structured logging for WebSocket connection
// lifecycle events.
type ConnLogger struct {
	logger *zap.Logger
}

// NewConnLogger creates a logger scoped to the websocket component.
func NewConnLogger() *ConnLogger {
	return &ConnLogger{
		logger: zap.L().With(zap.String("component", "websocket")),
	}
}

// Info logs an info-level connection event.
func (l *ConnLogger) Info(event string, userID string, clientID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID),
		zap.String("client_id", clientID),
	}, fields...)
	l.logger.Info("websocket_event", allFields...)
}

// Error logs an error-level connection event.
func (l *ConnLogger) Error(event string, userID string, clientID string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID),
		zap.String("client_id", clientID),
		zap.Error(err),
	}, fields...)
	l.logger.Error("websocket_error", allFields...)
}
