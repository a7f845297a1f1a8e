// Package middleware exposes the edge session guard built on top of
// authgate.Engine.
//
// # Guards
//
//   - [SessionGuard] — full edge state machine: SSO handoff, cookie
//     check, public-path pass, login redirect.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — trust, SSO, and session
// decisions are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Call the identity or OTC services directly (delegates to Engine).
//   - Access Redis (the Engine and its stores handle I/O).
//   - Verify token signatures (tokens are opaque bearer handles here).
package middleware
