package authgate

import (
	"context"
	"time"

	"github.com/recluta/authgate/token"
)

// AuthorizeSSO attempts the trusted-referrer auto-login: the referrer
// must pass the trust gate, the identifier must be well formed and
// known to the identity service, and its role must resolve to a
// non-empty permission set. Every failure collapses into
// [ErrSSORejected]; the caller falls back to the manual login page and
// never learns which check failed.
func (e *Engine) AuthorizeSSO(ctx context.Context, referrer, identifier string) (*SessionRecord, error) {
	if e == nil || e.upstream == nil {
		return nil, ErrEngineNotReady
	}

	if !e.trust.TrustedReferrer(referrer) {
		e.metricInc(MetricTrustRejected)
		return nil, e.rejectSSO(ctx, identifier, "", "untrusted_referrer")
	}
	if !e.trust.ValidIdentifier(identifier) {
		return nil, e.rejectSSO(ctx, identifier, "", "malformed_identifier")
	}

	identity, err := e.upstream.ValidateIdentifier(ctx, identifier)
	if err != nil {
		return nil, e.rejectSSO(ctx, identifier, "", "identity_rejected")
	}
	if identity.RoleID == "" {
		return nil, e.rejectSSO(ctx, identifier, "", "no_role")
	}

	permissions, err := e.upstream.PermissionsByRole(ctx, identity.RoleID)
	if err != nil {
		return nil, e.rejectSSO(ctx, identifier, identity.RoleID, "permission_lookup_failed")
	}
	if len(permissions) == 0 {
		return nil, e.rejectSSO(ctx, identifier, identity.RoleID, "empty_permission_set")
	}

	signed, err := e.upstream.IssueToken(ctx, identifier, e.config.SSO.DurationHours)
	if err != nil {
		return nil, e.rejectSSO(ctx, identifier, identity.RoleID, "token_issue_failed")
	}

	role := identity.RoleID
	expiresAt := time.Now().Add(time.Duration(e.config.SSO.DurationHours) * time.Hour).Unix()
	if claims := token.Decode(signed); claims != nil {
		if claims.Role != "" {
			role = claims.Role
		}
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Unix()
		}
	}

	record := &SessionRecord{
		Token:       signed,
		Permissions: permissions,
		Class:       ClassSSO,
		Subject:     identifier,
		Role:        role,
		ExpiresAt:   expiresAt,
	}

	e.metricInc(MetricSSOSuccess)
	e.emitAudit(ctx, auditEventSSOAuthorized, true, identifier, role, nil, nil)

	return record, nil
}

func (e *Engine) rejectSSO(ctx context.Context, identifier, role, reason string) error {
	e.metricInc(MetricSSOFailure)
	e.emitAudit(ctx, auditEventSSORejected, false, identifier, role, ErrSSORejected, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return ErrSSORejected
}
