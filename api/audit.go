package api

import (
	"log/slog"
	"net/http"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess     AuditEvent = "login_success"
	AuditLoginFailure     AuditEvent = "login_failure"
	AuditLoginMFARequired AuditEvent = "login_mfa_required"
	AuditLoginRateLimited AuditEvent = "login_rate_limited"
	AuditRegister         AuditEvent = "register"
	AuditTOTPEnabled      AuditEvent = "totp_enabled"
	AuditTOTPFailure      AuditEvent = "totp_failure"
	AuditResetRequested   AuditEvent = "reset_requested"
	AuditResetCompleted   AuditEvent = "reset_completed"
	AuditResetFailure     AuditEvent = "reset_failure"
)

// auditLogger wraps slog.Logger for structured security audit logging.
// Tokens, codes, and reset tokens must never be passed as attributes.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{logger: logger.With("component", "audit")}
}

func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, username string) {
	al.logger.Info("audit",
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("username", username),
	)
}

func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, attrs ...slog.Attr) {
	args := []any{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("reason", reason),
	}
	for _, attr := range attrs {
		args = append(args, attr)
	}
	al.logger.Warn("audit", args...)
}
