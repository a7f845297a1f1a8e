package authgate

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envConfig is the flat environment shape LoadConfig reads before
// folding it into [Config]. Durations are Go duration strings.
type envConfig struct {
	SSODurationHours    int    `mapstructure:"SSO_DURATION_HOURS"`
	SSOOrigin           string `mapstructure:"SSO_ORIGIN"`
	SSOPathPrefix       string `mapstructure:"SSO_PATH_PREFIX"`
	SSOIdentifierParam  string `mapstructure:"SSO_IDENTIFIER_PARAM"`
	SSOMinDigits        int    `mapstructure:"SSO_MIN_IDENTIFIER_DIGITS"`
	SessionShortHours   int    `mapstructure:"SESSION_SHORT_HOURS"`
	SessionExtHours     int    `mapstructure:"SESSION_EXTENDED_HOURS"`
	SessionRedisPrefix  string `mapstructure:"SESSION_REDIS_PREFIX"`
	SessionPendingTTL   string `mapstructure:"SESSION_PENDING_TTL"`
	CookieTokenName     string `mapstructure:"COOKIE_TOKEN_NAME"`
	CookiePermsName     string `mapstructure:"COOKIE_PERMISSIONS_NAME"`
	CookiePath          string `mapstructure:"COOKIE_PATH"`
	CookieDomain        string `mapstructure:"COOKIE_DOMAIN"`
	CookieSecure        bool   `mapstructure:"COOKIE_SECURE"`
	IdentityBaseURL     string `mapstructure:"IDENTITY_BASE_URL"`
	OTCBaseURL          string `mapstructure:"OTC_BASE_URL"`
	UpstreamCredential  string `mapstructure:"UPSTREAM_CREDENTIAL"`
	UpstreamTimeout     string `mapstructure:"UPSTREAM_TIMEOUT"`
	GuardLoginPath      string `mapstructure:"GUARD_LOGIN_PATH"`
	GuardLandingPath    string `mapstructure:"GUARD_LANDING_PATH"`
	GuardPublicPrefixes string `mapstructure:"GUARD_PUBLIC_PREFIXES"`
	DispatchMaxAttempts int    `mapstructure:"DISPATCH_MAX_ATTEMPTS"`
	DispatchCooldown    string `mapstructure:"DISPATCH_COOLDOWN"`
	AuditEnabled        bool   `mapstructure:"AUDIT_ENABLED"`
	MetricsEnabled      bool   `mapstructure:"METRICS_ENABLED"`
}

// LoadConfig builds a validated [Config] from the environment, reading
// an optional .env file first (missing .env is ignored, e.g. in CI;
// real env vars override it).
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("SSO_DURATION_HOURS", defaults.SSO.DurationHours)
	v.SetDefault("SSO_ORIGIN", "")
	v.SetDefault("SSO_PATH_PREFIX", "/")
	v.SetDefault("SSO_IDENTIFIER_PARAM", defaults.SSO.IdentifierParam)
	v.SetDefault("SSO_MIN_IDENTIFIER_DIGITS", defaults.SSO.MinIdentifierDigits)
	v.SetDefault("SESSION_SHORT_HOURS", defaults.Session.ShortHours)
	v.SetDefault("SESSION_EXTENDED_HOURS", defaults.Session.ExtendedHours)
	v.SetDefault("SESSION_REDIS_PREFIX", defaults.Session.RedisPrefix)
	v.SetDefault("SESSION_PENDING_TTL", defaults.Session.PendingTTL.String())
	v.SetDefault("COOKIE_TOKEN_NAME", defaults.Cookies.TokenName)
	v.SetDefault("COOKIE_PERMISSIONS_NAME", defaults.Cookies.PermissionsName)
	v.SetDefault("COOKIE_PATH", defaults.Cookies.Path)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("IDENTITY_BASE_URL", "")
	v.SetDefault("OTC_BASE_URL", "")
	v.SetDefault("UPSTREAM_CREDENTIAL", "")
	v.SetDefault("UPSTREAM_TIMEOUT", defaults.Upstream.Timeout.String())
	v.SetDefault("GUARD_LOGIN_PATH", defaults.Guard.LoginPath)
	v.SetDefault("GUARD_LANDING_PATH", defaults.Guard.LandingPath)
	v.SetDefault("GUARD_PUBLIC_PREFIXES", strings.Join(defaults.Guard.PublicPrefixes, ","))
	v.SetDefault("DISPATCH_MAX_ATTEMPTS", defaults.Dispatch.MaxAttempts)
	v.SetDefault("DISPATCH_COOLDOWN", defaults.Dispatch.Cooldown.String())
	v.SetDefault("AUDIT_ENABLED", defaults.Audit.Enabled)
	v.SetDefault("METRICS_ENABLED", defaults.Metrics.Enabled)

	var env envConfig
	if err := v.Unmarshal(&env); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg := defaults
	cfg.SSO.DurationHours = env.SSODurationHours
	cfg.SSO.Origin = env.SSOOrigin
	cfg.SSO.PathPrefix = env.SSOPathPrefix
	cfg.SSO.IdentifierParam = env.SSOIdentifierParam
	cfg.SSO.MinIdentifierDigits = env.SSOMinDigits
	cfg.Session.ShortHours = env.SessionShortHours
	cfg.Session.ExtendedHours = env.SessionExtHours
	cfg.Session.RedisPrefix = env.SessionRedisPrefix
	cfg.Cookies.TokenName = env.CookieTokenName
	cfg.Cookies.PermissionsName = env.CookiePermsName
	cfg.Cookies.Path = env.CookiePath
	cfg.Cookies.Domain = env.CookieDomain
	cfg.Cookies.Secure = env.CookieSecure
	cfg.Upstream.IdentityBaseURL = env.IdentityBaseURL
	cfg.Upstream.OTCBaseURL = env.OTCBaseURL
	cfg.Upstream.Credential = env.UpstreamCredential
	cfg.Guard.LoginPath = env.GuardLoginPath
	cfg.Guard.LandingPath = env.GuardLandingPath
	cfg.Dispatch.MaxAttempts = env.DispatchMaxAttempts
	cfg.Audit.Enabled = env.AuditEnabled
	cfg.Metrics.Enabled = env.MetricsEnabled

	var err error
	if cfg.Session.PendingTTL, err = parseEnvDuration("SESSION_PENDING_TTL", env.SessionPendingTTL); err != nil {
		return Config{}, err
	}
	if cfg.Upstream.Timeout, err = parseEnvDuration("UPSTREAM_TIMEOUT", env.UpstreamTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Dispatch.Cooldown, err = parseEnvDuration("DISPATCH_COOLDOWN", env.DispatchCooldown); err != nil {
		return Config{}, err
	}

	cfg.Guard.PublicPrefixes = splitPrefixes(env.GuardPublicPrefixes)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func parseEnvDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitPrefixes(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
