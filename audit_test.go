package authgate

import (
	"context"
	"testing"
)

func collectAuditEvents(sink *ChannelSink) []AuditEvent {
	var events []AuditEvent
	for {
		select {
		case event := <-sink.Events():
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestAuditTrailForCredentialFlow(t *testing.T) {
	sink := NewChannelSink(32)
	engine, _, done := newTestEngine(t, identityHandler(t, testIdentifier), nil)
	defer done()

	// Rebuild with the sink attached; newTestEngine wires no sink.
	engine.Close()
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine, err := New().
		WithConfig(engine.Config()).
		WithRedis(rdb).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := WithClientIP(WithUserAgent(context.Background(), "test-agent/1.0"), "203.0.113.7")
	if _, err := engine.ValidateCredentials(ctx, testIdentifier); err != nil {
		t.Fatalf("ValidateCredentials failed: %v", err)
	}
	if _, err := engine.ValidateCredentials(ctx, "123"); err == nil {
		t.Fatal("expected malformed identifier to fail")
	}

	engine.Close() // drains the dispatcher
	events := collectAuditEvents(sink)
	if len(events) != 2 {
		t.Fatalf("captured %d events, want 2: %+v", len(events), events)
	}

	accepted := events[0]
	if accepted.EventType != "credential_validated" || !accepted.Success {
		t.Errorf("first event %+v", accepted)
	}
	if accepted.Subject != testIdentifier {
		t.Errorf("subject %q, want %q", accepted.Subject, testIdentifier)
	}
	if accepted.IP != "203.0.113.7" {
		t.Errorf("ip %q, want 203.0.113.7", accepted.IP)
	}
	if accepted.Metadata["user_agent"] != "test-agent/1.0" {
		t.Errorf("metadata %+v missing user agent", accepted.Metadata)
	}
	if accepted.EventID == "" {
		t.Error("missing event id")
	}

	rejected := events[1]
	if rejected.EventType != "credential_rejected" || rejected.Success {
		t.Errorf("second event %+v", rejected)
	}
	if rejected.Error == "" {
		t.Error("rejected event carries no error code")
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	engine, _, done := newTestEngine(t, identityHandler(t, testIdentifier), func(cfg *Config) {
		cfg.Audit.Enabled = false
	})
	defer done()

	if _, err := engine.ValidateCredentials(context.Background(), testIdentifier); err != nil {
		t.Fatalf("ValidateCredentials failed: %v", err)
	}
	if got := engine.AuditDropped(); got != 0 {
		t.Fatalf("dropped %d, want 0 with auditing disabled", got)
	}
}
