package goThrottle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// EvaluateLogin describes the evaluatelogin operation and its observable behavior.
//
// EvaluateLogin reports whether (subject, client) is locked out. Below the failure threshold it
// returns a zero RetryAfter and BlockDuration. At or above it, BlockDuration is the schedule
// entry of the current tier and RetryAfter is the time left on the block, which is zero once
// the block has expired even though the failure count stays elevated.
// EvaluateLogin never records anything.
func (e *Engine) EvaluateLogin(ctx context.Context, subject, client string) (LoginStatus, error) {
	if e == nil || e.logins == nil {
		return LoginStatus{}, ErrEngineNotReady
	}

	st, err := e.logins.Evaluate(ctx, subject, client)
	if err != nil {
		return LoginStatus{}, e.translateError("evaluate_login", err)
	}

	status := LoginStatus{
		FailedCount:   st.FailedCount,
		RetryAfter:    st.RetryAfter,
		BlockDuration: st.BlockDuration,
	}
	if status.Blocked() {
		e.metricInc(MetricLoginBlocked)
	}
	return status, nil
}

// RecordLoginFailure describes the recordloginfailure operation and its observable behavior.
//
// RecordLoginFailure atomically adds one failure for (subject, client). When the new count is
// an exact multiple of FailuresPerBlock a lockout is applied with the schedule entry for that
// tier, clamped to the last entry.
func (e *Engine) RecordLoginFailure(ctx context.Context, subject, client string) (LoginFailure, error) {
	if e == nil || e.logins == nil {
		return LoginFailure{}, ErrEngineNotReady
	}

	f, err := e.logins.RecordFailure(ctx, subject, client)
	if err != nil {
		return LoginFailure{}, e.translateError("record_login_failure", err)
	}

	failure := LoginFailure{
		FailedCount:   f.FailedCount,
		BlockApplied:  f.BlockApplied,
		BlockDuration: f.BlockDuration,
	}

	e.metricInc(MetricLoginFailure)
	target := auditTarget{subject: subject, client: client}
	e.emitAudit(ctx, auditEventLoginFailure, target, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"failed_count": fmt.Sprint(failure.FailedCount)}
	})

	if failure.BlockApplied {
		e.metricInc(MetricLoginLockout)
		e.logger.Info("login lockout applied",
			zap.String("subject", subject),
			zap.String("client", client),
			zap.Int64("failed_count", failure.FailedCount),
			zap.Duration("block", failure.BlockDuration),
		)
		e.emitAudit(ctx, auditEventLoginLockout, target, nil, func() map[string]string {
			return map[string]string{
				"failed_count": fmt.Sprint(failure.FailedCount),
				"block":        failure.BlockDuration.String(),
			}
		})
	}

	return failure, nil
}

// ResetLogin deletes the failure count and any lockout of (subject, client). Resetting a clear
// pair is not an error.
func (e *Engine) ResetLogin(ctx context.Context, subject, client string) error {
	if e == nil || e.logins == nil {
		return ErrEngineNotReady
	}

	if err := e.logins.Reset(ctx, subject, client); err != nil {
		return e.translateError("reset_login", err)
	}

	e.metricInc(MetricLoginReset)
	e.emitAudit(ctx, auditEventLoginReset, auditTarget{subject: subject, client: client}, nil, nil)
	return nil
}

// ResetLoginsForSubject describes the resetloginsforsubject operation and its observable
// behavior.
//
// ResetLoginsForSubject deletes the failure counts and lockouts of subject for every client and
// returns how many keys were removed. Calling it again, or for an unknown subject, returns 0 and
// no error.
func (e *Engine) ResetLoginsForSubject(ctx context.Context, subject string) (int, error) {
	if e == nil || e.logins == nil {
		return 0, ErrEngineNotReady
	}

	deleted, err := e.logins.ResetSubject(ctx, subject)
	if err != nil {
		return int(deleted), e.translateError("reset_logins_for_subject", err)
	}

	e.metricInc(MetricSubjectLoginReset)
	e.logger.Info("login throttle reset for subject",
		zap.String("subject", subject),
		zap.Int64("deleted_keys", deleted),
	)
	e.emitAudit(ctx, auditEventSubjectLoginReset, auditTarget{subject: subject}, nil, func() map[string]string {
		return map[string]string{"deleted_keys": fmt.Sprint(deleted)}
	})

	return int(deleted), nil
}

// GuardLogin describes the guardlogin operation and its observable behavior.
//
// GuardLogin wraps a credential check with the login throttle:
//
//  1. If (subject, client) is locked out it returns Blocked without calling verify.
//  2. If verify returns an error matching [ErrInvalidCredentials], one failure is recorded and
//     the verifier error is returned with Failure populated.
//  3. If verify returns any other error, it is returned unchanged and nothing is recorded.
//  4. On success the pair is reset and Succeeded is set.
//
// Being blocked is a decision, not an error. Store failures wrap [ErrStoreUnavailable].
func (e *Engine) GuardLogin(ctx context.Context, subject, client string, verify func(context.Context) error) (LoginAttempt, error) {
	if verify == nil {
		return LoginAttempt{}, fmt.Errorf("%w: nil verifier", ErrInvalidRequest)
	}

	status, err := e.EvaluateLogin(ctx, subject, client)
	if err != nil {
		return LoginAttempt{}, err
	}
	if status.Blocked() {
		e.emitAudit(ctx, auditEventLoginBlocked, auditTarget{subject: subject, client: client}, nil, func() map[string]string {
			return map[string]string{
				"retry_after": status.RetryAfter.String(),
				"block":       status.BlockDuration.String(),
			}
		})
		return LoginAttempt{Blocked: true, Status: status}, nil
	}

	if verr := verify(ctx); verr != nil {
		if !errors.Is(verr, ErrInvalidCredentials) {
			return LoginAttempt{Status: status}, verr
		}
		failure, err := e.RecordLoginFailure(ctx, subject, client)
		if err != nil {
			return LoginAttempt{Status: status}, err
		}
		return LoginAttempt{Status: status, Failure: failure}, verr
	}

	if err := e.ResetLogin(ctx, subject, client); err != nil {
		return LoginAttempt{Status: status}, err
	}
	return LoginAttempt{Succeeded: true, Status: status}, nil
}
