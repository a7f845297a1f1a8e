package authgate

import "errors"

var (
	// ErrIdentifierMalformed is returned when an identifier fails format
	// validation. No remote call is made for malformed input.
	ErrIdentifierMalformed = errors.New("malformed identifier")
	// ErrIdentifierNotFound is returned when the identity service does not
	// know the identifier or reports it inactive. No pending verification
	// is created.
	ErrIdentifierNotFound = errors.New("identifier not found or inactive")
	// ErrIdentityUnavailable is returned when the identity service cannot
	// be reached or times out. The operation is retryable.
	ErrIdentityUnavailable = errors.New("identity service unavailable")
	// ErrPendingNotFound is returned when no pending verification exists
	// for the identifier; the user must re-enter their credentials.
	ErrPendingNotFound = errors.New("pending verification not found")
	// ErrChannelUnknown is returned when a dispatch targets a channel that
	// is not part of the pending verification's channel set.
	ErrChannelUnknown = errors.New("unknown verification channel")
	// ErrDispatchFailed is returned when the code could not be delivered.
	// The pending verification survives so another channel can be tried.
	ErrDispatchFailed = errors.New("could not send verification code")
	// ErrDispatchRateLimited is returned when code dispatch attempts for
	// an identifier exceed the configured budget.
	ErrDispatchRateLimited = errors.New("code dispatch rate limited")
	// ErrCodeInvalid is returned for a wrong or expired one-time code. The
	// pending verification survives; the verification session does not.
	ErrCodeInvalid = errors.New("invalid or expired verification code")
	// ErrVerificationUnavailable is returned when the OTC service cannot
	// be reached during verification. Both pending verification and
	// verification session survive for a retry.
	ErrVerificationUnavailable = errors.New("verification service unavailable")
	// ErrSSORejected is the single outcome of every SSO failure: untrusted
	// origin, unknown identifier, upstream failure, or a role with no
	// permission set. Callers fall back to manual login and never surface
	// the underlying cause to the user.
	ErrSSORejected = errors.New("sso authorization rejected")
	// ErrSessionNotFound is returned when no durable session record exists
	// for a token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionMaterialization is returned when the dual-store session
	// write could not complete. Treated as a failed login.
	ErrSessionMaterialization = errors.New("session materialization failed")
	// ErrPendingBackendUnavailable wraps Redis failures of the pending
	// verification store.
	ErrPendingBackendUnavailable = errors.New("pending verification backend unavailable")
	// ErrEngineNotReady is returned when an Engine method is called before
	// the engine was built.
	ErrEngineNotReady = errors.New("engine not initialized")
)
