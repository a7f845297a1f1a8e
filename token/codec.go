// Package token decodes session tokens issued by the upstream identity
// service and answers expiry questions about them.
//
// The codec deliberately does NOT verify signatures. Tokens are minted by
// an identity service that this system reaches only over a controlled
// private network path; the trust boundary is the network, not the token.
// Deploying this module anywhere that boundary does not hold requires
// adding signature verification first — do not assume it silently.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimSet is the decoded payload of a session token. A ClaimSet is only
// ever produced by [Decode]; callers never construct one by hand.
type ClaimSet struct {
	// Subject is the identifier the token was issued for.
	Subject string

	// Role is the application role code carried by the token.
	Role string

	// Roles optionally lists role names granted to the subject.
	Roles []string

	// ExpiresAt is the expiry instant, nil when the token carried no
	// parseable exp claim.
	ExpiresAt *time.Time
}

type wireClaims struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Decode extracts the claim set from raw without verifying its signature.
// Any malformed input — wrong segment count, bad base64, invalid JSON,
// mistyped claims — yields nil. Decode never returns an error and never
// panics; callers treat nil as "expired/unauthenticated".
func Decode(raw string) *ClaimSet {
	if raw == "" {
		return nil
	}

	claims := &wireClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil
	}

	out := &ClaimSet{
		Subject: claims.Subject,
		Role:    claims.Role,
		Roles:   claims.Roles,
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		out.ExpiresAt = &t
	}
	return out
}

// Expired reports whether raw should be treated as expired at now.
// True when the token cannot be decoded, carries no exp claim, or its
// expiry is at or behind now.
func Expired(raw string, now time.Time) bool {
	claims := Decode(raw)
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.After(now)
}
