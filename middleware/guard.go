package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/recluta/authgate"
	authtoken "github.com/recluta/authgate/token"
)

type sessionTokenContextKey struct{}

// SessionTokenFromContext returns the session token the guard admitted
// the request with. Absent on public-path requests.
func SessionTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionTokenContextKey{}).(string)
	return token, ok
}

// SessionGuard returns middleware that runs the edge session state
// machine on every request:
//
//  1. A request carrying a trusted referrer and a well-formed
//     identifier attempts the SSO exchange. Success materializes the
//     session and redirects to the landing page; failure falls through
//     to the ordinary checks.
//  2. A request with an unexpired session token cookie passes.
//  3. A request for a public path passes without a session.
//  4. Everything else is redirected to the login page, with any stale
//     cookies expired on the way out.
//
// Expiry is judged from the token's own exp claim; the durable store is
// not consulted here, so the guard stays off the Redis hot path.
func SessionGuard(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			start := time.Now()
			cfg := engine.Config()

			state, token := evaluate(engine, cfg, w, r)
			switch state {
			case StateSSOCandidate:
				// Evaluate already wrote the redirect for a successful
				// exchange; a failed one lands here as another state.
				return
			case StateAuthenticated:
				engine.RecordGuardPass(time.Since(start))
				ctx := context.WithValue(r.Context(), sessionTokenContextKey{}, token)
				next.ServeHTTP(w, r.WithContext(ctx))
			case StateUnauthenticated:
				engine.RecordGuardPass(time.Since(start))
				next.ServeHTTP(w, r)
			default:
				engine.RecordGuardRedirect(r.Context(), r.URL.Path, time.Since(start))
				http.Redirect(w, r, cfg.Guard.LoginPath, http.StatusFound)
			}
		})
	}
}

func evaluate(engine *authgate.Engine, cfg authgate.Config, w http.ResponseWriter, r *http.Request) (State, string) {
	trust := engine.Trust()

	identifier := r.URL.Query().Get(cfg.SSO.IdentifierParam)
	if identifier != "" && trust.TrustedReferrer(r.Referer()) && trust.ValidIdentifier(identifier) {
		record, err := engine.AuthorizeSSO(r.Context(), r.Referer(), identifier)
		if err == nil {
			if err := engine.MaterializeSession(r.Context(), w, record); err == nil {
				http.Redirect(w, r, cfg.Guard.LandingPath, http.StatusFound)
				return StateSSOCandidate, ""
			}
		}
		// Rejected exchange: continue as an ordinary request.
	}

	if token, ok := engine.Materializer().ReadToken(r); ok {
		if !authtoken.Expired(token, time.Now()) {
			return StateAuthenticated, token
		}
		// Expired cookie pair is cleared before the login redirect.
		_ = engine.Materializer().Clear(r.Context(), w, "")
	}

	if publicPath(cfg.Guard.PublicPrefixes, r.URL.Path) {
		return StateUnauthenticated, ""
	}

	return StateRedirectLogin, ""
}

func publicPath(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
