package authgate

import (
	"context"
	"errors"
	"net/http"
	"time"

	internalaudit "github.com/recluta/authgate/internal/audit"
	"github.com/recluta/authgate/session"
	"github.com/recluta/authgate/upstream"
)

// Engine coordinates the authentication flows: credential validation,
// one-time-code dispatch and verification, SSO authorization, and
// session materialization. Construct it through [Builder]; a zero
// Engine is not usable.
type Engine struct {
	config       Config
	trust        *TrustGate
	upstream     *upstream.Client
	sessions     *session.Store
	materializer *session.Materializer
	pending      *pendingStore
	limiter      *dispatchLimiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Trust exposes the engine's trust gate for edge middleware.
func (e *Engine) Trust() *TrustGate {
	if e == nil {
		return nil
	}
	return e.trust
}

// Materializer exposes the dual-store session writer for edge
// middleware.
func (e *Engine) Materializer() *session.Materializer {
	if e == nil {
		return nil
	}
	return e.materializer
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a deep copy of the engine's metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeGuardLatency(start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricGuardLatency, time.Since(start))
}

// RecordGuardPass counts an edge guard evaluation that admitted the
// request.
func (e *Engine) RecordGuardPass(elapsed time.Duration) {
	if e == nil {
		return
	}
	e.metricInc(MetricGuardPass)
	if e.metrics != nil {
		e.metrics.Observe(MetricGuardLatency, elapsed)
	}
}

// RecordGuardRedirect counts an edge guard evaluation that redirected
// the request to the login page.
func (e *Engine) RecordGuardRedirect(ctx context.Context, path string, elapsed time.Duration) {
	if e == nil {
		return
	}
	e.metricInc(MetricGuardRedirect)
	if e.metrics != nil {
		e.metrics.Observe(MetricGuardLatency, elapsed)
	}
	e.emitAudit(ctx, auditEventGuardRedirect, false, "", "", nil, func() map[string]string {
		return map[string]string{
			"path": path,
		}
	})
}

// MaterializeSession writes rec to the durable store and sets the
// cookie pair on w. ExpiresAt is derived from the record's duration
// class when unset.
func (e *Engine) MaterializeSession(ctx context.Context, w http.ResponseWriter, rec *SessionRecord) error {
	if e == nil || e.materializer == nil {
		return ErrEngineNotReady
	}

	if err := e.materializer.Materialize(ctx, w, rec); err != nil {
		e.emitAudit(ctx, auditEventSessionMaterialized, false, rec.Subject, rec.Role, ErrSessionMaterialization, nil)
		return ErrSessionMaterialization
	}

	e.metricInc(MetricSessionMaterialized)
	e.emitAudit(ctx, auditEventSessionMaterialized, true, rec.Subject, rec.Role, nil, func() map[string]string {
		return map[string]string{
			"class": string(rec.Class),
		}
	})
	return nil
}

// SessionByToken returns the durable record for token.
func (e *Engine) SessionByToken(ctx context.Context, token string) (*SessionRecord, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	rec, err := e.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Logout removes the session from both stores. The cookies are expired
// even when no durable record exists.
func (e *Engine) Logout(ctx context.Context, w http.ResponseWriter, token string) error {
	if e == nil || e.materializer == nil {
		return ErrEngineNotReady
	}

	err := e.materializer.Clear(ctx, w, token)
	if err == nil {
		e.metricInc(MetricSessionCleared)
	}
	e.emitAudit(ctx, auditEventSessionCleared, err == nil, "", "", err, nil)
	return err
}
