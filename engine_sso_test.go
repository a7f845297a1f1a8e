package authgate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

const trustedReferrer = "https://portal.example.com/CONECTA/vacancies?id=9"

// ssoHandler extends the identity stub with the token mint endpoint.
func ssoHandler(t *testing.T, identifier string, permissions []map[string]string) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/identifiers/validate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Identifier string `json:"identifier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier != identifier {
			http.NotFound(w, r)
			return
		}
		writeTestJSON(t, w, map[string]any{
			"active":   true,
			"roleId":   "conecta_user",
			"channels": []map[string]string{},
		})
	})
	mux.HandleFunc("/api/roles/", func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(t, w, permissions)
	})
	mux.HandleFunc("/api/tokens", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Identifier    string `json:"identifier"`
			DurationHours int    `json:"durationHours"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		token := mintTestToken(t, req.Identifier, "conecta_user",
			time.Now().Add(time.Duration(req.DurationHours)*time.Hour))
		writeTestJSON(t, w, map[string]string{"token": token})
	})
	return mux
}

func defaultSSOPermissions() []map[string]string {
	return []map[string]string{
		{"id": "p-1", "name": "vacancies.browse", "role": "conecta_user"},
	}
}

func TestAuthorizeSSOSuccess(t *testing.T) {
	engine, _, done := newTestEngine(t, ssoHandler(t, testIdentifier, defaultSSOPermissions()), nil)
	defer done()

	record, err := engine.AuthorizeSSO(context.Background(), trustedReferrer, testIdentifier)
	if err != nil {
		t.Fatalf("AuthorizeSSO failed: %v", err)
	}
	if record.Class != ClassSSO {
		t.Fatalf("unexpected class %q", record.Class)
	}
	if record.Role != "conecta_user" {
		t.Fatalf("unexpected role %q", record.Role)
	}
	if !record.Permissions.HasPermission("vacancies.browse") {
		t.Fatalf("unexpected permissions %+v", record.Permissions)
	}

	// 8-hour default SSO lifetime, read back from the minted token.
	wantExpiry := time.Now().Add(8 * time.Hour).Unix()
	if diff := record.ExpiresAt - wantExpiry; diff < -5 || diff > 5 {
		t.Fatalf("expiry %d not within 5s of %d", record.ExpiresAt, wantExpiry)
	}

	if got := engine.MetricsSnapshot().Counters[MetricSSOSuccess]; got != 1 {
		t.Fatalf("expected 1 sso success, got %d", got)
	}
}

func TestAuthorizeSSOUntrustedReferrer(t *testing.T) {
	engine, _, done := newTestEngine(t, ssoHandler(t, testIdentifier, defaultSSOPermissions()), nil)
	defer done()

	for _, ref := range []string{
		"https://evil.example.net/CONECTA/vacancies",
		"https://portal.example.com/other/path",
		"https://portal.example.com/CONECTAX/vacancies",
		"",
		"::bad::url::",
	} {
		if _, err := engine.AuthorizeSSO(context.Background(), ref, testIdentifier); !errors.Is(err, ErrSSORejected) {
			t.Fatalf("referrer %q: expected ErrSSORejected, got %v", ref, err)
		}
	}

	snapshot := engine.MetricsSnapshot()
	if got := snapshot.Counters[MetricTrustRejected]; got != 5 {
		t.Fatalf("expected 5 trust rejections, got %d", got)
	}
	if got := snapshot.Counters[MetricSSOFailure]; got != 5 {
		t.Fatalf("expected 5 sso failures, got %d", got)
	}
}

func TestAuthorizeSSOMalformedIdentifier(t *testing.T) {
	engine, _, done := newTestEngine(t, ssoHandler(t, testIdentifier, defaultSSOPermissions()), nil)
	defer done()

	if _, err := engine.AuthorizeSSO(context.Background(), trustedReferrer, "12ab"); !errors.Is(err, ErrSSORejected) {
		t.Fatalf("expected ErrSSORejected, got %v", err)
	}
}

func TestAuthorizeSSOUnknownIdentifier(t *testing.T) {
	engine, _, done := newTestEngine(t, ssoHandler(t, testIdentifier, defaultSSOPermissions()), nil)
	defer done()

	if _, err := engine.AuthorizeSSO(context.Background(), trustedReferrer, "99999999"); !errors.Is(err, ErrSSORejected) {
		t.Fatalf("expected ErrSSORejected, got %v", err)
	}
}

func TestAuthorizeSSOEmptyPermissionSet(t *testing.T) {
	engine, _, done := newTestEngine(t, ssoHandler(t, testIdentifier, []map[string]string{}), nil)
	defer done()

	if _, err := engine.AuthorizeSSO(context.Background(), trustedReferrer, testIdentifier); !errors.Is(err, ErrSSORejected) {
		t.Fatalf("expected ErrSSORejected for empty permission set, got %v", err)
	}
}

func TestAuthorizeSSOUpstreamDown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})
	engine, _, done := newTestEngine(t, handler, nil)
	defer done()

	if _, err := engine.AuthorizeSSO(context.Background(), trustedReferrer, testIdentifier); !errors.Is(err, ErrSSORejected) {
		t.Fatalf("expected ErrSSORejected, got %v", err)
	}
}
