package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/recluta/authgate"
)

const guardTestIdentifier = "1056121362"

func mintToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{
		"sub":  subject,
		"role": "conecta_user",
		"exp":  expiresAt.Unix(),
	})
	if err != nil {
		t.Fatalf("marshal claims failed: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func upstreamHandler(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/identifiers/validate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Identifier string `json:"identifier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier != guardTestIdentifier {
			http.NotFound(w, r)
			return
		}
		writeJSON(t, w, map[string]any{"active": true, "roleId": "conecta_user"})
	})
	mux.HandleFunc("/api/roles/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, []map[string]string{
			{"id": "p-1", "name": "vacancies.browse", "role": "conecta_user"},
		})
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
		token := mintToken(t, req.Identifier, time.Now().Add(time.Duration(req.DurationHours)*time.Hour))
		writeJSON(t, w, map[string]string{"token": token})
	})
	return mux
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response failed: %v", err)
	}
}

func newGuardedServer(t *testing.T) (*authgate.Engine, http.Handler, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	upstream := httptest.NewServer(upstreamHandler(t))

	cfg := authgate.DefaultConfig()
	cfg.SSO.Origin = "portal.example.com"
	cfg.SSO.PathPrefix = "/CONECTA"
	cfg.Upstream.IdentityBaseURL = upstream.URL
	cfg.Upstream.Credential = "test-credential"

	engine, err := authgate.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		upstream.Close()
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		token, ok := SessionTokenFromContext(r.Context())
		if !ok || token == "" {
			http.Error(w, "no session in context", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/assets/app.js", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := SessionGuard(engine)(mux)

	return engine, handler, func() {
		engine.Close()
		upstream.Close()
		mr.Close()
	}
}

func TestGuardSSOHandoffMaterializesAndRedirects(t *testing.T) {
	_, handler, done := newGuardedServer(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/home?identification="+guardTestIdentifier, nil)
	req.Header.Set("Referer", "https://portal.example.com/CONECTA/vacancies?id=7")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/home" {
		t.Fatalf("redirect location %q, want /home", loc)
	}

	var sawToken, sawPerms bool
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case "authToken":
			sawToken = c.Value != "" && c.MaxAge == 8*3600
		case "appPermissions":
			sawPerms = c.Value != "" && c.MaxAge == 8*3600
		}
	}
	if !sawToken || !sawPerms {
		t.Fatal("expected both session cookies with the 8h SSO lifetime")
	}
}

func TestGuardRejectsEvilOriginAndRedirectsToLogin(t *testing.T) {
	_, handler, done := newGuardedServer(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/home?identification="+guardTestIdentifier, nil)
	req.Header.Set("Referer", "https://evil.example.net/CONECTA/vacancies")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("redirect location %q, want /login", loc)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "authToken" && c.Value != "" {
			t.Fatal("expected no session cookie from an untrusted referrer")
		}
	}
}

func TestGuardFailedSSOFallsBackToPublicPath(t *testing.T) {
	_, handler, done := newGuardedServer(t)
	defer done()

	// Unknown identifier through a trusted referrer: the exchange is
	// rejected but the public target still loads.
	req := httptest.NewRequest(http.MethodGet, "/login?identification=99999999", nil)
	req.Header.Set("Referer", "https://portal.example.com/CONECTA/start")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestGuardAdmitsLiveSessionCookie(t *testing.T) {
	_, handler, done := newGuardedServer(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{
		Name:  "authToken",
		Value: mintToken(t, guardTestIdentifier, time.Now().Add(time.Hour)),
	})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestGuardExpiredCookieRedirectsAndClears(t *testing.T) {
	engine, handler, done := newGuardedServer(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{
		Name:  "authToken",
		Value: mintToken(t, guardTestIdentifier, time.Now().Add(-time.Minute)),
	})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("redirect location %q, want /login", loc)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "authToken" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected the stale cookie to be expired on redirect")
	}

	if got := engine.MetricsSnapshot().Counters[authgate.MetricGuardRedirect]; got != 1 {
		t.Fatalf("expected 1 guard redirect, got %d", got)
	}
}

func TestGuardPassesPublicPathWithoutSession(t *testing.T) {
	engine, handler, done := newGuardedServer(t)
	defer done()

	for _, path := range []string{"/login", "/assets/app.js"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("path %q: status %d, want %d", path, rec.Code, http.StatusOK)
		}
	}

	if got := engine.MetricsSnapshot().Counters[authgate.MetricGuardPass]; got != 2 {
		t.Fatalf("expected 2 guard passes, got %d", got)
	}
}

func TestGuardRedirectsProtectedPathWithoutSession(t *testing.T) {
	_, handler, done := newGuardedServer(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("redirect location %q, want /login", loc)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateUnauthenticated: "unauthenticated",
		StateSSOCandidate:    "sso_candidate",
		StateAuthenticated:   "authenticated",
		StateRedirectLogin:   "redirect_login",
		State(99):            "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
