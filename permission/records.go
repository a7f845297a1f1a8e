// Package permission models the authorization scopes attached to a
// session. Permissions are opaque records issued by the upstream
// permission service; this package only carries, serializes, and
// queries them — it never decides what a permission means.
package permission

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// ErrCorruptEncoding is returned by [Decode] when the cookie value cannot
// be reversed into a record list.
var ErrCorruptEncoding = errors.New("corrupt permission encoding")

// Record is a single authorization scope granted to a session.
type Record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Records is the ordered scope list attached to a session.
type Records []Record

// HasPermission reports whether the list contains a scope with the given
// name. Comparison is case-insensitive; upstream services have been
// observed to vary casing between environments.
func (rs Records) HasPermission(name string) bool {
	for _, r := range rs {
		if strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// HasRole reports whether any scope in the list was granted through the
// given role code. Used to gate role-restricted areas (e.g. the admin
// panel) without consulting the upstream service again.
func (rs Records) HasRole(code string) bool {
	for _, r := range rs {
		if strings.EqualFold(r.Role, code) {
			return true
		}
	}
	return false
}

// Encode serializes the records into a cookie-safe string
// (base64url over JSON, no padding).
func Encode(rs Records) (string, error) {
	data, err := json.Marshal(rs)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode reverses [Encode]. An empty value decodes to an empty list.
func Decode(encoded string) (Records, error) {
	if encoded == "" {
		return Records{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrCorruptEncoding
	}
	var rs Records
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, ErrCorruptEncoding
	}
	return rs, nil
}
