// Package session materializes authenticated sessions into the two
// stores the rest of the system relies on: a durable Redis record used
// by application-level authorization checks, and a cookie pair read by
// the edge guard before the application loads.
//
// Both stores always carry the same token, the same scope list, and the
// same expiry. A session that exists in only one of them is a failed
// login, not a degraded one.
package session

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recluta/authgate/permission"
)

const recordVersionV1 = 1

var (
	// ErrNotFound is returned when no record exists for a token.
	ErrNotFound = errors.New("session not found")

	// ErrBackend wraps Redis transport failures.
	ErrBackend = errors.New("session backend unavailable")
)

// DurationClass names a session lifetime tier.
type DurationClass string

const (
	// ClassShort is the 6-hour manual-login tier.
	ClassShort DurationClass = "short"
	// ClassExtended is the 12-hour manual-login tier.
	ClassExtended DurationClass = "extended"
	// ClassSSO is the configured single-sign-on tier (8h by default).
	ClassSSO DurationClass = "sso"
)

// Durations resolves a [DurationClass] to a concrete lifetime.
type Durations struct {
	Short    time.Duration
	Extended time.Duration
	SSO      time.Duration
}

// For returns the lifetime of class, or an error for an unknown class.
func (d Durations) For(class DurationClass) (time.Duration, error) {
	switch class {
	case ClassShort:
		return d.Short, nil
	case ClassExtended:
		return d.Extended, nil
	case ClassSSO:
		return d.SSO, nil
	default:
		return 0, fmt.Errorf("unknown duration class %q", class)
	}
}

// Record is a materialized session. Created only by successful
// verification or SSO authorization, never assembled from user input.
type Record struct {
	Token       string
	Permissions permission.Records
	Class       DurationClass
	Subject     string
	Role        string
	ExpiresAt   int64
}

// Store persists session records in Redis, keyed by a digest of the
// token so the token itself is never a Redis key.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store with the given key prefix ("ses" when empty).
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ses"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + ":" + hex.EncodeToString(sum[:])
}

// Save writes the record with the given TTL.
func (s *Store) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}
	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(rec.Token), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Get returns the record stored for token. Expired records are removed
// and reported as [ErrNotFound].
func (s *Store) Get(ctx context.Context, token string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() >= rec.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(token)).Result()
		return nil, ErrNotFound
	}
	rec.Token = token
	return rec, nil
}

// Delete removes the record for token, reporting whether one existed.
func (s *Store) Delete(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n > 0, nil
}

// The record blob layout is versioned: a leading version byte, then
// fixed-width fields, then length-prefixed strings. The token is not
// part of the blob; it is recovered from the lookup key's input.
func encodeRecord(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}
	if err := writeString(&buf, string(rec.Class)); err != nil {
		return nil, err
	}
	if err := writeString(&buf, rec.Subject); err != nil {
		return nil, err
	}
	if err := writeString(&buf, rec.Role); err != nil {
		return nil, err
	}

	perms, err := permission.Encode(rec.Permissions)
	if err != nil {
		return nil, err
	}
	if err := writeString(&buf, perms); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid session record version")
	}

	rec := &Record{}
	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return nil, err
	}

	class, err := readString(reader)
	if err != nil {
		return nil, err
	}
	rec.Class = DurationClass(class)

	if rec.Subject, err = readString(reader); err != nil {
		return nil, err
	}
	if rec.Role, err = readString(reader); err != nil {
		return nil, err
	}

	encoded, err := readString(reader)
	if err != nil {
		return nil, err
	}
	if rec.Permissions, err = permission.Decode(encoded); err != nil {
		return nil, err
	}
	return rec, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("session record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}
