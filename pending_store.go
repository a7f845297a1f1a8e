package authgate

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recluta/authgate/permission"
	"github.com/recluta/authgate/upstream"
)

const (
	pendingKeyPrefix      = "pnd"
	pendingRecordVersion1 = 1
)

var (
	errPendingNotFound = errors.New("pending verification not found")
	errPendingExpired  = errors.New("pending verification expired")
	errPendingBackend  = errors.New("pending verification backend unavailable")
)

// pendingStore holds the transient state between credential validation
// and code confirmation, keyed by identifier so a repeated credential
// submission replaces the previous flow.
type pendingStore struct {
	redis redis.UniversalClient
}

func newPendingStore(redisClient redis.UniversalClient) *pendingStore {
	return &pendingStore{redis: redisClient}
}

func (s *pendingStore) key(identifier string) string {
	return pendingKeyPrefix + ":" + identifier
}

func (s *pendingStore) Save(ctx context.Context, record *PendingVerification, ttl time.Duration) error {
	encoded, err := encodePendingVerification(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(record.Subject), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPendingBackend, err)
	}
	return nil
}

func (s *pendingStore) Get(ctx context.Context, identifier string) (*PendingVerification, error) {
	data, err := s.redis.Get(ctx, s.key(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errPendingNotFound
		}
		return nil, fmt.Errorf("%w: %v", errPendingBackend, err)
	}

	record, err := decodePendingVerification(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(identifier)).Result()
		return nil, errPendingExpired
	}
	return record, nil
}

func (s *pendingStore) Delete(ctx context.Context, identifier string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errPendingBackend, err)
	}
	return n > 0, nil
}

// SetVerificationSession swaps the outstanding verification session on
// the pending record. A concurrent dispatch on the same identifier
// loses the race and retries; the last write wins, matching the
// at-most-one-live-session rule.
func (s *pendingStore) SetVerificationSession(ctx context.Context, identifier, verificationSessionID string) error {
	const maxRetries = 4
	key := s.key(identifier)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePendingVerification(data)
			if err != nil {
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errPendingExpired
			}

			record.VerificationSessionID = verificationSessionID
			updated, err := encodePendingVerification(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return errPendingNotFound
			}
			if errors.Is(err, errPendingExpired) {
				return err
			}
			return fmt.Errorf("%w: %v", errPendingBackend, err)
		}
		return nil
	}

	return errPendingNotFound
}

// ClearVerificationSession detaches the outstanding verification
// session without discarding the pending record, so a rejected code
// leaves the user free to request a fresh dispatch.
func (s *pendingStore) ClearVerificationSession(ctx context.Context, identifier string) error {
	return s.SetVerificationSession(ctx, identifier, "")
}

func encodePendingVerification(record *PendingVerification) ([]byte, error) {
	scopes, err := permission.Encode(record.Scopes)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(pendingRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := writePendingString(&buf, record.Subject); err != nil {
		return nil, err
	}
	if err := writePendingString(&buf, record.RoleID); err != nil {
		return nil, err
	}
	if err := writePendingString(&buf, record.VerificationSessionID); err != nil {
		return nil, err
	}
	if err := writePendingString(&buf, scopes); err != nil {
		return nil, err
	}

	if len(record.Channels) > 65535 {
		return nil, errors.New("pending verification channel count exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Channels))); err != nil {
		return nil, err
	}
	for _, ch := range record.Channels {
		if err := writePendingString(&buf, ch.ID); err != nil {
			return nil, err
		}
		if err := writePendingString(&buf, string(ch.Kind)); err != nil {
			return nil, err
		}
		if err := writePendingString(&buf, ch.Masked); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodePendingVerification(data []byte) (*PendingVerification, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != pendingRecordVersion1 {
		return nil, errors.New("invalid pending verification version")
	}

	record := &PendingVerification{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	if record.Subject, err = readPendingString(reader); err != nil {
		return nil, err
	}
	if record.RoleID, err = readPendingString(reader); err != nil {
		return nil, err
	}
	if record.VerificationSessionID, err = readPendingString(reader); err != nil {
		return nil, err
	}

	scopes, err := readPendingString(reader)
	if err != nil {
		return nil, err
	}
	if record.Scopes, err = permission.Decode(scopes); err != nil {
		return nil, err
	}

	var channelCount uint16
	if err := binary.Read(reader, binary.BigEndian, &channelCount); err != nil {
		return nil, err
	}
	record.Channels = make([]VerificationChannel, 0, channelCount)
	for i := uint16(0); i < channelCount; i++ {
		var ch VerificationChannel
		if ch.ID, err = readPendingString(reader); err != nil {
			return nil, err
		}
		kind, err := readPendingString(reader)
		if err != nil {
			return nil, err
		}
		ch.Kind = upstream.ChannelKind(kind)
		if ch.Masked, err = readPendingString(reader); err != nil {
			return nil, err
		}
		record.Channels = append(record.Channels, ch)
	}

	return record, nil
}

func writePendingString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("pending verification field length exceeded")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readPendingString(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
