package authgate

import (
	"errors"
	"strings"
	"time"
)

// Config is the full configuration surface of the subsystem. Instances
// are intended to be set up once, validated through [Config.Validate],
// and treated as immutable afterwards.
type Config struct {
	SSO      SSOConfig
	Session  SessionConfig
	Cookies  CookieConfig
	Upstream UpstreamConfig
	Guard    GuardConfig
	Dispatch DispatchConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
SSO CONFIG
====================================
*/

// SSOConfig describes the trusted partner-portal handoff.
type SSOConfig struct {
	// DurationHours is the lifetime of SSO sessions.
	DurationHours int

	// Origin is the exact (case-insensitive) referrer hostname that may
	// trigger auto-login.
	Origin string

	// PathPrefix is the referrer path that must equal or be an ancestor
	// of the inbound request's referrer path, e.g. "/CONECTA".
	PathPrefix string

	// IdentifierParam is the query parameter carrying the numeric
	// identifier on SSO requests.
	IdentifierParam string

	// MinIdentifierDigits is the minimum digit count for a well-formed
	// identifier.
	MinIdentifierDigits int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetimes and the pending-verification
// window.
type SessionConfig struct {
	// ShortHours is the lifetime of the "short" duration class.
	ShortHours int

	// ExtendedHours is the lifetime of the "extended" duration class.
	ExtendedHours int

	// RedisPrefix namespaces the durable session records.
	RedisPrefix string

	// PendingTTL bounds a pending verification. It should track the
	// upstream code validity window, which the OTC service owns.
	PendingTTL time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the cookie pair read by the edge guard and the
// client application.
type CookieConfig struct {
	TokenName       string
	PermissionsName string
	Path            string
	Domain          string

	// Secure marks the cookies Secure; enable in production.
	Secure bool
}

/*
====================================
UPSTREAM CONFIG
====================================
*/

// UpstreamConfig holds connection settings for the identity and OTC
// services.
type UpstreamConfig struct {
	IdentityBaseURL string
	OTCBaseURL      string
	Credential      string
	Timeout         time.Duration
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardConfig controls the edge session guard.
type GuardConfig struct {
	// LoginPath is where unauthenticated protected-path requests are
	// redirected.
	LoginPath string

	// LandingPath is where successful SSO logins are redirected.
	LandingPath string

	// PublicPrefixes declares path prefixes that never require a
	// session. Everything else is protected.
	PublicPrefixes []string
}

/*
====================================
DISPATCH CONFIG
====================================
*/

// DispatchConfig throttles one-time-code dispatch per identifier.
type DispatchConfig struct {
	// MaxAttempts is the dispatch budget inside one cooldown window.
	// Zero disables throttling.
	MaxAttempts int

	// Cooldown is the window length.
	Cooldown time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls audit event dispatching.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration: 6h/12h manual
// tiers, 8h SSO sessions, 5-digit identifiers, 10-minute pending
// window, and auditing/metrics enabled.
func DefaultConfig() Config {
	return Config{
		SSO: SSOConfig{
			DurationHours:       8,
			IdentifierParam:     "identification",
			MinIdentifierDigits: 5,
		},
		Session: SessionConfig{
			ShortHours:    6,
			ExtendedHours: 12,
			RedisPrefix:   "ses",
			PendingTTL:    10 * time.Minute,
		},
		Cookies: CookieConfig{
			TokenName:       "authToken",
			PermissionsName: "appPermissions",
			Path:            "/",
		},
		Upstream: UpstreamConfig{
			Timeout: 10 * time.Second,
		},
		Guard: GuardConfig{
			LoginPath:      "/login",
			LandingPath:    "/home",
			PublicPrefixes: []string{"/login", "/assets", "/health"},
		},
		Dispatch: DispatchConfig{
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for internally inconsistent or
// unusable values. It does not reach the network.
func (c Config) Validate() error {
	if c.SSO.DurationHours <= 0 {
		return errors.New("SSO.DurationHours must be positive")
	}
	if strings.TrimSpace(c.SSO.Origin) == "" {
		return errors.New("SSO.Origin must be set")
	}
	if !strings.HasPrefix(c.SSO.PathPrefix, "/") {
		return errors.New("SSO.PathPrefix must start with '/'")
	}
	if strings.TrimSpace(c.SSO.IdentifierParam) == "" {
		return errors.New("SSO.IdentifierParam must be set")
	}
	if c.SSO.MinIdentifierDigits <= 0 {
		return errors.New("SSO.MinIdentifierDigits must be positive")
	}
	if c.Session.ShortHours <= 0 || c.Session.ExtendedHours <= 0 {
		return errors.New("session duration hours must be positive")
	}
	if c.Session.ExtendedHours < c.Session.ShortHours {
		return errors.New("Session.ExtendedHours must not undercut ShortHours")
	}
	if c.Session.PendingTTL <= 0 {
		return errors.New("Session.PendingTTL must be positive")
	}
	if strings.TrimSpace(c.Upstream.IdentityBaseURL) == "" {
		return errors.New("Upstream.IdentityBaseURL must be set")
	}
	if c.Upstream.Timeout <= 0 {
		return errors.New("Upstream.Timeout must be positive")
	}
	if !strings.HasPrefix(c.Guard.LoginPath, "/") {
		return errors.New("Guard.LoginPath must start with '/'")
	}
	if !strings.HasPrefix(c.Guard.LandingPath, "/") {
		return errors.New("Guard.LandingPath must start with '/'")
	}
	for _, p := range c.Guard.PublicPrefixes {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Guard.PublicPrefixes entries must start with '/'")
		}
	}
	if c.Dispatch.MaxAttempts > 0 && c.Dispatch.Cooldown <= 0 {
		return errors.New("Dispatch.Cooldown must be positive when throttling is enabled")
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.Guard.PublicPrefixes = append([]string(nil), c.Guard.PublicPrefixes...)
	return out
}
