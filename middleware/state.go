package middleware

// State is the outcome of one guard evaluation.
type State uint8

const (
	// StateUnauthenticated admits the request without a session, which
	// only happens on public paths.
	StateUnauthenticated State = iota
	// StateSSOCandidate marks a request that qualified for the
	// trusted-referrer exchange, whatever its outcome.
	StateSSOCandidate
	// StateAuthenticated admits the request with a live session cookie.
	StateAuthenticated
	// StateRedirectLogin sends the request to the login page.
	StateRedirectLogin
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateSSOCandidate:
		return "sso_candidate"
	case StateAuthenticated:
		return "authenticated"
	case StateRedirectLogin:
		return "redirect_login"
	default:
		return "unknown"
	}
}
