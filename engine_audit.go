package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventCredentialValidated  = "credential_validated"
	auditEventCredentialRejected   = "credential_rejected"
	auditEventCodeDispatched       = "code_dispatched"
	auditEventCodeDispatchFailed   = "code_dispatch_failed"
	auditEventCodeDispatchThrottle = "code_dispatch_rate_limited"
	auditEventCodeVerified         = "code_verified"
	auditEventCodeRejected         = "code_rejected"
	auditEventSSOAuthorized        = "sso_authorized"
	auditEventSSORejected          = "sso_rejected"
	auditEventSessionMaterialized  = "session_materialized"
	auditEventSessionCleared       = "session_cleared"
	auditEventGuardRedirect        = "guard_redirect"
)

// AuditErrorCode is the normalized error label attached to failed audit
// events.
type AuditErrorCode string

const (
	auditErrIdentifierMalformed AuditErrorCode = "identifier_malformed"
	auditErrIdentifierNotFound  AuditErrorCode = "identifier_not_found"
	auditErrPendingNotFound     AuditErrorCode = "pending_not_found"
	auditErrChannelUnknown      AuditErrorCode = "channel_unknown"
	auditErrDispatchFailed      AuditErrorCode = "dispatch_failed"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrCodeInvalid         AuditErrorCode = "code_invalid"
	auditErrSSORejected         AuditErrorCode = "sso_rejected"
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrMaterialization     AuditErrorCode = "materialization_failed"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	role string,
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
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventID:   uuid.NewString(),
		EventType: eventType,
		Subject:   subject,
		Role:      role,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrIdentifierMalformed):
		return auditErrIdentifierMalformed
	case errors.Is(err, ErrIdentifierNotFound):
		return auditErrIdentifierNotFound
	case errors.Is(err, ErrPendingNotFound):
		return auditErrPendingNotFound
	case errors.Is(err, ErrChannelUnknown):
		return auditErrChannelUnknown
	case errors.Is(err, ErrDispatchRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrDispatchFailed):
		return auditErrDispatchFailed
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrSSORejected):
		return auditErrSSORejected
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionMaterialization):
		return auditErrMaterialization
	case errors.Is(err, ErrIdentityUnavailable),
		errors.Is(err, ErrVerificationUnavailable),
		errors.Is(err, ErrPendingBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
