package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/recluta/authgate/permission"
)

// ErrMaterialization is returned when one of the two session writes
// fails. Callers must treat it as a failed login: a half-materialized
// session lets the edge guard and the application disagree about who is
// authenticated.
var ErrMaterialization = errors.New("session materialization failed")

// CookieConfig controls the cookie pair written next to the durable
// record. The cookies are intentionally NOT HttpOnly: the application
// layer reads them client-side to mirror session state into its own
// store.
type CookieConfig struct {
	TokenName       string
	PermissionsName string
	Path            string
	Domain          string
	Secure          bool
}

// Materializer performs the dual-store session write: Redis record plus
// cookie pair, both with the same lifetime.
type Materializer struct {
	store     *Store
	cookies   CookieConfig
	durations Durations
}

// NewMaterializer wires a Materializer over the given store. Empty
// cookie names fall back to "authToken" / "appPermissions".
func NewMaterializer(store *Store, cookies CookieConfig, durations Durations) *Materializer {
	if cookies.TokenName == "" {
		cookies.TokenName = "authToken"
	}
	if cookies.PermissionsName == "" {
		cookies.PermissionsName = "appPermissions"
	}
	if cookies.Path == "" {
		cookies.Path = "/"
	}
	return &Materializer{store: store, cookies: cookies, durations: durations}
}

// Durations exposes the configured class lifetimes.
func (m *Materializer) Durations() Durations {
	return m.durations
}

// Materialize writes rec to both stores. The Redis write happens first;
// if cookie construction fails afterwards the record is rolled back so
// neither store keeps a partial session.
func (m *Materializer) Materialize(ctx context.Context, w http.ResponseWriter, rec *Record) error {
	if w == nil || rec == nil {
		return fmt.Errorf("%w: nil writer or record", ErrMaterialization)
	}

	ttl, err := m.durations.For(rec.Class)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}
	if rec.ExpiresAt == 0 {
		rec.ExpiresAt = time.Now().Add(ttl).Unix()
	}

	if err := m.store.Save(ctx, rec, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}

	maxAge := int(ttl / time.Second)
	encodedPerms, err := permission.Encode(rec.Permissions)
	if err != nil {
		_, _ = m.store.Delete(ctx, rec.Token)
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}

	tokenCookie := m.cookie(m.cookies.TokenName, rec.Token, maxAge)
	permsCookie := m.cookie(m.cookies.PermissionsName, encodedPerms, maxAge)
	if err := tokenCookie.Valid(); err != nil {
		_, _ = m.store.Delete(ctx, rec.Token)
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}
	if err := permsCookie.Valid(); err != nil {
		_, _ = m.store.Delete(ctx, rec.Token)
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}

	http.SetCookie(w, tokenCookie)
	http.SetCookie(w, permsCookie)
	return nil
}

// Clear removes the session from both stores together. A missing Redis
// record is not an error; the cookies are expired regardless.
func (m *Materializer) Clear(ctx context.Context, w http.ResponseWriter, token string) error {
	var storeErr error
	if token != "" {
		if _, err := m.store.Delete(ctx, token); err != nil {
			storeErr = err
		}
	}

	if w != nil {
		http.SetCookie(w, m.cookie(m.cookies.TokenName, "", -1))
		http.SetCookie(w, m.cookie(m.cookies.PermissionsName, "", -1))
	}
	return storeErr
}

// ReadToken extracts the session token cookie from r.
func (m *Materializer) ReadToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cookies.TokenName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Lookup returns the durable record for token.
func (m *Materializer) Lookup(ctx context.Context, token string) (*Record, error) {
	return m.store.Get(ctx, token)
}

func (m *Materializer) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.cookies.Path,
		Domain:   m.cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: false,
		Secure:   m.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
