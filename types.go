package authgate

import (
	"io"

	internalaudit "github.com/recluta/authgate/internal/audit"
	"github.com/recluta/authgate/permission"
	"github.com/recluta/authgate/session"
	"github.com/recluta/authgate/upstream"
)

// ChannelKind classifies a verification channel destination.
type ChannelKind = upstream.ChannelKind

const (
	// ChannelPersonalEmail is a personal email address.
	ChannelPersonalEmail = upstream.ChannelPersonalEmail
	// ChannelOrganizationalEmail is an organization-issued email address.
	ChannelOrganizationalEmail = upstream.ChannelOrganizationalEmail
	// ChannelPhone is a phone number reachable by SMS.
	ChannelPhone = upstream.ChannelPhone
)

// VerificationChannel is one reachable out-of-band destination with its
// masked display value. The unmasked destination never reaches this
// subsystem.
type VerificationChannel = upstream.Channel

// PendingVerification is the transient record between a successful
// credential validation and a confirmed one-time code. It lives in the
// pending store under a TTL tied to the code validity window; losing it
// mid-flow sends the user back to credential entry.
type PendingVerification struct {
	// Subject is the validated identifier.
	Subject string

	// Channels is the ordered channel set offered for code delivery.
	Channels []VerificationChannel

	// Scopes is the permission set planned for grant on success.
	Scopes permission.Records

	// RoleID is the application role reported by the identity service.
	RoleID string

	// VerificationSessionID is the currently outstanding verification
	// session, empty until a code has been dispatched. Dispatching again
	// replaces it; at most one is ever live.
	VerificationSessionID string

	// ExpiresAt bounds the record's lifetime (epoch seconds).
	ExpiresAt int64
}

// DurationClass names a session lifetime tier.
type DurationClass = session.DurationClass

const (
	// ClassShort is the 6-hour manual-login tier.
	ClassShort = session.ClassShort
	// ClassExtended is the 12-hour manual-login tier.
	ClassExtended = session.ClassExtended
	// ClassSSO is the configured single-sign-on tier.
	ClassSSO = session.ClassSSO
)

// SessionRecord is a materialized session: token, scopes, and lifetime
// tier. Created only by the session materializer.
type SessionRecord = session.Record

// PermissionRecord is a single authorization scope.
type PermissionRecord = permission.Record

// PermissionRecords is the ordered scope list attached to a session.
type PermissionRecords = permission.Records

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit
// dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
