package authgate

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// TrustGate evaluates whether an inbound request may take the SSO
// auto-login path. Trust is origin+path based over the client-supplied
// Referer header — NOT cryptographic. The check only holds when the
// partner portal and this system are reachable exclusively through a
// controlled network path; it is a routing decision, not an identity
// proof. Every parse failure resolves to "not trusted".
type TrustGate struct {
	origin     string
	pathPrefix string
	identifier *regexp.Regexp
}

// NewTrustGate builds a gate from the SSO configuration.
func NewTrustGate(cfg SSOConfig) (*TrustGate, error) {
	origin := strings.ToLower(strings.TrimSpace(cfg.Origin))
	if origin == "" {
		return nil, fmt.Errorf("trust gate: empty origin")
	}
	prefix := path.Clean(cfg.PathPrefix)
	if !strings.HasPrefix(prefix, "/") {
		return nil, fmt.Errorf("trust gate: path prefix must start with '/'")
	}
	min := cfg.MinIdentifierDigits
	if min <= 0 {
		min = 5
	}

	return &TrustGate{
		origin:     origin,
		pathPrefix: prefix,
		identifier: regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d,}$`, min)),
	}, nil
}

// ValidIdentifier reports whether s is a well-formed identifier:
// all digits, at least the configured minimum count.
func (g *TrustGate) ValidIdentifier(s string) bool {
	return g != nil && g.identifier.MatchString(s)
}

// TrustedReferrer reports whether ref names the allow-listed origin and
// a path at or below the configured prefix. The hostname comparison is
// case-insensitive; the path must equal the prefix or be a descendant
// of it ("/CONECTA/sub" is trusted under "/CONECTA", "/CONECTAX" is
// not).
func (g *TrustGate) TrustedReferrer(ref string) bool {
	if g == nil || strings.TrimSpace(ref) == "" {
		return false
	}

	u, err := url.Parse(ref)
	if err != nil || u.Hostname() == "" {
		return false
	}
	if !strings.EqualFold(u.Hostname(), g.origin) {
		return false
	}

	p := path.Clean(u.EscapedPath())
	if p == "" || p == "." {
		p = "/"
	}
	if g.pathPrefix == "/" {
		return true
	}
	return p == g.pathPrefix || strings.HasPrefix(p, g.pathPrefix+"/")
}
