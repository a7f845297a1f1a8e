package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/recluta/authgate/token"
	"github.com/recluta/authgate/upstream"
)

// VerifyCode submits a one-time code against the outstanding
// verification session and, on success, assembles the session record
// for the requested duration class. A rejected code spends the
// verification session but keeps the pending verification alive; an
// unreachable OTC service keeps both so the same code can be retried.
func (e *Engine) VerifyCode(
	ctx context.Context,
	identifier, code, verificationID string,
	class DurationClass,
) (*SessionRecord, error) {
	if e == nil || e.pending == nil || e.upstream == nil {
		return nil, ErrEngineNotReady
	}

	hours, err := e.classHours(class)
	if err != nil {
		return nil, err
	}

	record, err := e.pending.Get(ctx, identifier)
	if err != nil {
		mapped := mapPendingError(err)
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventCodeRejected, false, identifier, "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "pending_lookup",
			}
		})
		return nil, mapped
	}

	if record.VerificationSessionID == "" || record.VerificationSessionID != verificationID {
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventCodeRejected, false, identifier, record.RoleID, ErrCodeInvalid, func() map[string]string {
			return map[string]string{
				"reason": "verification_session_mismatch",
			}
		})
		return nil, ErrCodeInvalid
	}

	verified, err := e.upstream.VerifyCode(ctx, identifier, code, verificationID, hours)
	if err != nil {
		if errors.Is(err, upstream.ErrCodeRejected) {
			// The verification session is spent upstream; detach it so the
			// user can request a fresh dispatch.
			if clearErr := e.pending.ClearVerificationSession(ctx, identifier); clearErr != nil {
				log.Print("authgate: verification session cleanup failed")
			}
			e.metricInc(MetricVerifyFailure)
			e.emitAudit(ctx, auditEventCodeRejected, false, identifier, record.RoleID, ErrCodeInvalid, func() map[string]string {
				return map[string]string{
					"reason": "code_rejected",
				}
			})
			return nil, ErrCodeInvalid
		}
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventCodeRejected, false, identifier, record.RoleID, ErrVerificationUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "otc_unavailable",
			}
		})
		return nil, ErrVerificationUnavailable
	}

	permissions := verified.Permissions
	if len(permissions) == 0 {
		permissions = record.Scopes
	}

	role := record.RoleID
	expiresAt := time.Now().Add(time.Duration(hours) * time.Hour).Unix()
	if claims := token.Decode(verified.Token); claims != nil {
		if claims.Role != "" {
			role = claims.Role
		}
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Unix()
		}
	}

	sessionRecord := &SessionRecord{
		Token:       verified.Token,
		Permissions: permissions,
		Class:       class,
		Subject:     identifier,
		Role:        role,
		ExpiresAt:   expiresAt,
	}

	if _, err := e.pending.Delete(ctx, identifier); err != nil {
		log.Print("authgate: pending verification cleanup failed")
	}
	if err := e.limiter.Reset(ctx, identifier); err != nil {
		log.Print("authgate: dispatch limiter reset failed")
	}

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventCodeVerified, true, identifier, role, nil, func() map[string]string {
		return map[string]string{
			"class": string(class),
		}
	})

	return sessionRecord, nil
}

// Verify runs VerifyCode and materializes the resulting session onto w
// in one step.
func (e *Engine) Verify(
	ctx context.Context,
	w http.ResponseWriter,
	identifier, code, verificationID string,
	class DurationClass,
) (*SessionRecord, error) {
	record, err := e.VerifyCode(ctx, identifier, code, verificationID, class)
	if err != nil {
		return nil, err
	}
	if err := e.MaterializeSession(ctx, w, record); err != nil {
		return nil, err
	}
	return record, nil
}

// classHours resolves a manual-login duration class to whole hours.
// The SSO class is reserved for the trusted-referrer path.
func (e *Engine) classHours(class DurationClass) (int, error) {
	switch class {
	case ClassShort:
		return e.config.Session.ShortHours, nil
	case ClassExtended:
		return e.config.Session.ExtendedHours, nil
	default:
		return 0, fmt.Errorf("unknown duration class %q", class)
	}
}
