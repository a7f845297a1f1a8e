package authgate

import (
	"context"
	"errors"
)

// DispatchCode asks the OTC service to deliver a one-time code to one
// of the channels offered by the pending verification. On success the
// returned verification-session id replaces any earlier one; a failed
// delivery leaves the pending verification intact so another channel
// can be tried.
func (e *Engine) DispatchCode(ctx context.Context, identifier, channelID string) (string, error) {
	if e == nil || e.pending == nil || e.upstream == nil {
		return "", ErrEngineNotReady
	}

	if err := e.limiter.Check(ctx, identifier); err != nil {
		if errors.Is(err, errDispatchRateLimited) {
			e.metricInc(MetricDispatchRateLimited)
			e.emitAudit(ctx, auditEventCodeDispatchThrottle, false, identifier, "", ErrDispatchRateLimited, nil)
			return "", ErrDispatchRateLimited
		}
		e.metricInc(MetricDispatchFailure)
		e.emitAudit(ctx, auditEventCodeDispatchFailed, false, identifier, "", ErrPendingBackendUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "limiter_unavailable",
			}
		})
		return "", ErrPendingBackendUnavailable
	}

	record, err := e.pending.Get(ctx, identifier)
	if err != nil {
		mapped := mapPendingError(err)
		e.metricInc(MetricDispatchFailure)
		e.emitAudit(ctx, auditEventCodeDispatchFailed, false, identifier, "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "pending_lookup",
			}
		})
		return "", mapped
	}

	if !pendingHasChannel(record, channelID) {
		e.metricInc(MetricDispatchFailure)
		e.emitAudit(ctx, auditEventCodeDispatchFailed, false, identifier, record.RoleID, ErrChannelUnknown, func() map[string]string {
			return map[string]string{
				"channel_id": channelID,
			}
		})
		return "", ErrChannelUnknown
	}

	verificationID, err := e.upstream.DispatchCode(ctx, identifier, channelID)
	if err != nil {
		e.metricInc(MetricDispatchFailure)
		e.emitAudit(ctx, auditEventCodeDispatchFailed, false, identifier, record.RoleID, ErrDispatchFailed, func() map[string]string {
			return map[string]string{
				"channel_id": channelID,
			}
		})
		return "", ErrDispatchFailed
	}

	if err := e.pending.SetVerificationSession(ctx, identifier, verificationID); err != nil {
		mapped := mapPendingError(err)
		e.metricInc(MetricDispatchFailure)
		e.emitAudit(ctx, auditEventCodeDispatchFailed, false, identifier, record.RoleID, mapped, func() map[string]string {
			return map[string]string{
				"reason": "verification_session_update",
			}
		})
		return "", mapped
	}

	e.metricInc(MetricDispatchSuccess)
	e.emitAudit(ctx, auditEventCodeDispatched, true, identifier, record.RoleID, nil, func() map[string]string {
		return map[string]string{
			"channel_id": channelID,
		}
	})

	return verificationID, nil
}

func pendingHasChannel(record *PendingVerification, channelID string) bool {
	for _, ch := range record.Channels {
		if ch.ID == channelID {
			return true
		}
	}
	return false
}

func mapPendingError(err error) error {
	switch {
	case errors.Is(err, errPendingNotFound), errors.Is(err, errPendingExpired):
		return ErrPendingNotFound
	default:
		return ErrPendingBackendUnavailable
	}
}
