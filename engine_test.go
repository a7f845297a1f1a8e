package authgate

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testConfig(identityURL string) Config {
	cfg := DefaultConfig()
	cfg.SSO.Origin = "portal.example.com"
	cfg.SSO.PathPrefix = "/CONECTA"
	cfg.Upstream.IdentityBaseURL = identityURL
	cfg.Upstream.Credential = "test-credential"
	cfg.Upstream.Timeout = 2 * time.Second
	return cfg
}

func newTestEngine(t *testing.T, upstream http.Handler, mutate func(*Config)) (*Engine, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	server := httptest.NewServer(upstream)

	cfg := testConfig(server.URL)
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	if err != nil {
		server.Close()
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, mr, func() {
		engine.Close()
		server.Close()
		mr.Close()
	}
}

// mintTestToken builds an unsigned JWT with the claim shape the
// identity service emits.
func mintTestToken(t *testing.T, subject, role string, expiresAt time.Time) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{
		"sub":  subject,
		"role": role,
		"exp":  expiresAt.Unix(),
	})
	if err != nil {
		t.Fatalf("marshal claims failed: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

// identityHandler answers the identity endpoints the way the upstream
// service does for a known active identifier.
func identityHandler(t *testing.T, identifier string) http.Handler {
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
			"active": true,
			"roleId": "candidate",
			"channels": []map[string]string{
				{"id": "ch-mail", "kind": "personal_email", "masked": "a****@example.com"},
				{"id": "ch-phone", "kind": "phone", "masked": "***4321"},
			},
		})
	})
	mux.HandleFunc("/api/roles/", func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(t, w, []map[string]string{
			{"id": "p-1", "name": "profile.read", "role": "candidate"},
			{"id": "p-2", "name": "applications.manage", "role": "candidate"},
		})
	})
	return mux
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response failed: %v", err)
	}
}

func TestBuilderRequiresRedis(t *testing.T) {
	_, err := New().WithConfig(testConfig("http://identity.local")).Build()
	if err == nil {
		t.Fatal("expected error without redis client")
	}
}

func TestBuilderRejectsSecondBuild(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	builder := New().WithConfig(testConfig("http://identity.local")).WithRedis(rdb)
	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig("http://identity.local")
	cfg.SSO.Origin = ""

	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error for missing SSO origin")
	}
}
