package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types emitted by the IP guard
const (
	EventLoginSuccess = "login_success"
	EventLoginFailed  = "login_failed"
	EventIPWarning    = "ip_guard_warning"
	EventAutoLock     = "ip_guard_auto_lock"
	EventAutoUnlock   = "ip_guard_auto_unlock"
	EventManualLock   = "ip_guard_manual_lock"
	EventManualUnlock = "ip_guard_manual_unlock"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	attrs = appendOptional(attrs, event)

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogLockEvent logs lock state transitions and warnings raised by the IP guard
func (al *AuditLogger) LogLockEvent(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "ip_guard"),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	attrs = appendOptional(attrs, event)

	level := slog.LevelInfo
	if event.EventType == EventAutoLock || event.EventType == EventIPWarning {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

func appendOptional(attrs []slog.Attr, event AuditEvent) []slog.Attr {
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}
	return attrs
}
