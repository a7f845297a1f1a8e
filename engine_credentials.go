package authgate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/recluta/authgate/permission"
	"github.com/recluta/authgate/upstream"
)

// ValidateCredentials checks the identifier format, confirms it with
// the identity service, and opens a pending verification holding the
// offered channel set and the planned permission grant. A repeated call
// for the same identifier replaces any earlier pending verification.
func (e *Engine) ValidateCredentials(ctx context.Context, identifier string) (*PendingVerification, error) {
	if e == nil || e.pending == nil || e.upstream == nil {
		return nil, ErrEngineNotReady
	}

	if !e.trust.ValidIdentifier(identifier) {
		e.metricInc(MetricCredentialValidateFailure)
		e.emitAudit(ctx, auditEventCredentialRejected, false, identifier, "", ErrIdentifierMalformed, func() map[string]string {
			return map[string]string{
				"reason": "malformed_identifier",
			}
		})
		return nil, ErrIdentifierMalformed
	}

	identity, err := e.upstream.ValidateIdentifier(ctx, identifier)
	if err != nil {
		mapped := ErrIdentityUnavailable
		reason := "identity_unavailable"
		if errors.Is(err, upstream.ErrIdentifierNotFound) {
			mapped = ErrIdentifierNotFound
			reason = "identifier_not_found"
		}
		e.metricInc(MetricCredentialValidateFailure)
		e.emitAudit(ctx, auditEventCredentialRejected, false, identifier, "", mapped, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return nil, mapped
	}

	var scopes permission.Records
	if identity.RoleID != "" {
		scopes, err = e.upstream.PermissionsByRole(ctx, identity.RoleID)
		if err != nil {
			e.metricInc(MetricCredentialValidateFailure)
			e.emitAudit(ctx, auditEventCredentialRejected, false, identifier, identity.RoleID, ErrIdentityUnavailable, func() map[string]string {
				return map[string]string{
					"reason": "permission_lookup_failed",
				}
			})
			return nil, ErrIdentityUnavailable
		}
	}

	record := &PendingVerification{
		Subject:   identifier,
		Channels:  identity.Channels,
		Scopes:    scopes,
		RoleID:    identity.RoleID,
		ExpiresAt: time.Now().Add(e.config.Session.PendingTTL).Unix(),
	}

	if err := e.pending.Save(ctx, record, e.config.Session.PendingTTL); err != nil {
		e.metricInc(MetricCredentialValidateFailure)
		e.emitAudit(ctx, auditEventCredentialRejected, false, identifier, identity.RoleID, ErrPendingBackendUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "pending_save_failed",
			}
		})
		return nil, ErrPendingBackendUnavailable
	}

	e.metricInc(MetricCredentialValidateSuccess)
	e.emitAudit(ctx, auditEventCredentialValidated, true, identifier, identity.RoleID, nil, func() map[string]string {
		return map[string]string{
			"channels": strconv.Itoa(len(identity.Channels)),
		}
	})

	return record, nil
}
