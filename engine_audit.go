package goThrottle

import (
	"context"
	"errors"
)

const (
	auditEventRateLimitBlocked    = "rate_limit_blocked"
	auditEventRateLimitReset      = "rate_limit_reset"
	auditEventLoginBlocked        = "login_blocked"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginLockout        = "login_lockout"
	auditEventLoginReset          = "login_reset"
	auditEventSubjectLoginReset   = "subject_login_reset"
	auditEventSubjectRateUnlocked = "subject_rate_limits_unlocked"
)

// retainedAuditEvents are never dropped for backpressure: they are rare and
// record state changes rather than per-request denials.
var retainedAuditEvents = []string{
	auditEventLoginLockout,
	auditEventLoginReset,
	auditEventSubjectLoginReset,
	auditEventSubjectRateUnlocked,
	auditEventRateLimitReset,
}

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrUnavailable        AuditErrorCode = "store_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

type auditTarget struct {
	subject string
	client  string
	limiter string
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	target auditTarget,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Type:     eventType,
		Subject:  target.subject,
		Client:   target.client,
		Limiter:  target.limiter,
		Metadata: metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	event.Stamp(e.now())

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidConfiguration):
		return auditErrInvalidRequest
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
