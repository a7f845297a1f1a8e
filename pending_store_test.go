package authgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recluta/authgate/upstream"
)

func samplePendingRecord(expiresAt time.Time) *PendingVerification {
	return &PendingVerification{
		Subject: testIdentifier,
		Channels: []VerificationChannel{
			{ID: "ch-mail", Kind: upstream.ChannelPersonalEmail, Masked: "a****@example.com"},
			{ID: "ch-phone", Kind: upstream.ChannelPhone, Masked: "***1234"},
		},
		Scopes: PermissionRecords{
			{ID: "p-1", Name: "profile.read", Role: "candidate"},
		},
		RoleID:    "candidate",
		ExpiresAt: expiresAt.Unix(),
	}
}

func TestPendingStoreSaveGetRoundTrip(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newPendingStore(rdb)
	rec := samplePendingRecord(time.Now().Add(10 * time.Minute))

	if err := store.Save(context.Background(), rec, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(context.Background(), testIdentifier)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Subject != rec.Subject || got.RoleID != rec.RoleID {
		t.Errorf("record %+v, want %+v", got, rec)
	}
	if got.VerificationSessionID != "" {
		t.Errorf("fresh record carries session %q", got.VerificationSessionID)
	}
	if len(got.Channels) != 2 {
		t.Fatalf("channels %+v, want 2", got.Channels)
	}
	if got.Channels[0] != rec.Channels[0] || got.Channels[1] != rec.Channels[1] {
		t.Errorf("channels %+v, want %+v", got.Channels, rec.Channels)
	}
	if !got.Scopes.HasPermission("profile.read") {
		t.Errorf("scopes %+v missing profile.read", got.Scopes)
	}
}

func TestPendingStoreGetMissing(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newPendingStore(rdb)

	if _, err := store.Get(context.Background(), testIdentifier); !errors.Is(err, errPendingNotFound) {
		t.Fatalf("expected errPendingNotFound, got %v", err)
	}
}

func TestPendingStoreGetExpiredDeletes(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newPendingStore(rdb)
	rec := samplePendingRecord(time.Now().Add(-time.Minute))

	// The Redis TTL outlives the embedded expiry; the store must trust
	// the expiry and discard the record.
	if err := store.Save(context.Background(), rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Get(context.Background(), testIdentifier); !errors.Is(err, errPendingExpired) {
		t.Fatalf("expected errPendingExpired, got %v", err)
	}
	if _, err := store.Get(context.Background(), testIdentifier); !errors.Is(err, errPendingNotFound) {
		t.Fatalf("expected record deleted after expiry, got %v", err)
	}
}

func TestPendingStoreSetVerificationSession(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newPendingStore(rdb)
	rec := samplePendingRecord(time.Now().Add(10 * time.Minute))

	if err := store.Save(context.Background(), rec, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.SetVerificationSession(context.Background(), testIdentifier, "vs-1"); err != nil {
		t.Fatalf("SetVerificationSession failed: %v", err)
	}
	got, err := store.Get(context.Background(), testIdentifier)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.VerificationSessionID != "vs-1" {
		t.Fatalf("session %q, want vs-1", got.VerificationSessionID)
	}

	// A second dispatch replaces the outstanding session outright.
	if err := store.SetVerificationSession(context.Background(), testIdentifier, "vs-2"); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if got, _ = store.Get(context.Background(), testIdentifier); got.VerificationSessionID != "vs-2" {
		t.Fatalf("session %q, want vs-2", got.VerificationSessionID)
	}

	if err := store.ClearVerificationSession(context.Background(), testIdentifier); err != nil {
		t.Fatalf("ClearVerificationSession failed: %v", err)
	}
	if got, _ = store.Get(context.Background(), testIdentifier); got.VerificationSessionID != "" {
		t.Fatalf("session %q, want empty after clear", got.VerificationSessionID)
	}
}

func TestPendingStoreSetVerificationSessionMissing(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newPendingStore(rdb)

	err := store.SetVerificationSession(context.Background(), testIdentifier, "vs-1")
	if !errors.Is(err, errPendingNotFound) {
		t.Fatalf("expected errPendingNotFound, got %v", err)
	}
}

func TestPendingStoreDelete(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newPendingStore(rdb)
	rec := samplePendingRecord(time.Now().Add(10 * time.Minute))

	if err := store.Save(context.Background(), rec, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	existed, err := store.Delete(context.Background(), testIdentifier)
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v; want true, nil", existed, err)
	}
	existed, err = store.Delete(context.Background(), testIdentifier)
	if err != nil || existed {
		t.Fatalf("second Delete = %v, %v; want false, nil", existed, err)
	}
}
