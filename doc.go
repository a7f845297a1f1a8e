// Package authgate is the authentication and session-verification
// subsystem of a recruitment-management platform. It turns an
// unauthenticated visitor into the holder of a valid, time-bounded
// session through one of two paths: a trusted single-sign-on handoff
// from a partner portal, or manual credential entry followed by a
// multi-channel one-time-code challenge.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder],
// [Config], and value types. The token codec, session materializer,
// upstream clients, and HTTP guard live in sub-packages; audit
// dispatch internals live under internal/ and are never exported
// directly.
//
// # Trust boundary
//
// Session tokens are decoded, never signature-verified, and SSO trust
// is an origin+path check over a client-suppliable Referer header. Both
// are intentional trade-offs that hold only when the partner portal,
// the identity service, and this system are reachable exclusively
// through a controlled network path. Neither is a substitute for
// signature verification; deployments outside that boundary must add
// it deliberately.
//
// # What this package must NOT do
//
//   - Implement the identity store, permission catalog, or code
//     delivery — those are external services it calls.
//   - Mint or validate token signatures.
//   - Keep per-request state across guard evaluations.
package authgate
