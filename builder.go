package authgate

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/recluta/authgate/internal/audit"
	"github.com/recluta/authgate/session"
	"github.com/recluta/authgate/upstream"
)

// Builder assembles an [Engine]. A Builder is single-use: Build returns
// an error on the second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	upstreamClient *upstream.Client
	auditSink      AuditSink

	built bool
}

// New creates a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the session, pending, and
// rate-limit stores.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUpstream overrides the upstream client built from
// [UpstreamConfig]. Intended for wiring a preconfigured client.
func (b *Builder) WithUpstream(client *upstream.Client) *Builder {
	b.upstreamClient = client
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the guard latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	trust, err := NewTrustGate(cfg.SSO)
	if err != nil {
		return nil, err
	}

	upstreamClient := b.upstreamClient
	if upstreamClient == nil {
		upstreamClient, err = upstream.New(upstream.Config{
			IdentityBaseURL: cfg.Upstream.IdentityBaseURL,
			OTCBaseURL:      cfg.Upstream.OTCBaseURL,
			Credential:      cfg.Upstream.Credential,
			Timeout:         cfg.Upstream.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}

	durations := session.Durations{
		Short:    time.Duration(cfg.Session.ShortHours) * time.Hour,
		Extended: time.Duration(cfg.Session.ExtendedHours) * time.Hour,
		SSO:      time.Duration(cfg.SSO.DurationHours) * time.Hour,
	}
	store := session.NewStore(b.redis, cfg.Session.RedisPrefix)

	engine := &Engine{
		config:   cfg,
		trust:    trust,
		upstream: upstreamClient,
		sessions: store,
		materializer: session.NewMaterializer(store, session.CookieConfig{
			TokenName:       cfg.Cookies.TokenName,
			PermissionsName: cfg.Cookies.PermissionsName,
			Path:            cfg.Cookies.Path,
			Domain:          cfg.Cookies.Domain,
			Secure:          cfg.Cookies.Secure,
		}, durations),
		pending: newPendingStore(b.redis),
		limiter: newDispatchLimiter(b.redis, cfg.Dispatch),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
