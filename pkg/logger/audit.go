package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventUserRegistered    = "user_registered"
	EventLoginSuccess      = "login_success"
	EventLoginFailure      = "login_failure"
	EventAccountLocked     = "account_locked"
	EventAccountUnlocked   = "account_unlocked"
	EventTokenRefreshed    = "token_refreshed"
	EventLogout            = "logout"
	EventCodeIssued        = "verification_code_issued"
	EventCodeVerified      = "verification_code_verified"
	EventCodeRejected      = "verification_code_rejected"
	EventUserActivated     = "user_activated"
	EventExpiredCodesPurge = "verification_codes_purged"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string // Masked before it is written
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

type clientIPKey struct{}

// WithClientIP stores the request's client address for audit records
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP, if any
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// AuditLogger writes audit events as structured log records. Nothing is persisted.
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// Log records event at INFO on success and WARN on failure
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if al == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if ip := ClientIPFromContext(ctx); ip != "" {
		attrs = append(attrs, slog.String("ip_address", ip))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
