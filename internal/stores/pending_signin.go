package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSocialAuth/identity"
)

const (
	pendingSignInRecordVersion1 = 1
)

var (
	ErrPendingSignInNotFound = errors.New("pending sign-in not found")
	ErrPendingSignInExpired  = errors.New("pending sign-in expired")
	ErrPendingSignInBackend  = errors.New("pending sign-in backend unavailable")
	ErrPendingSignInCorrupt  = errors.New("pending sign-in record corrupt")
)

// PendingSignIn is an external profile waiting for its owner to confirm the
// mailed code.
type PendingSignIn struct {
	Profile   identity.Profile
	CreatedAt int64
	ExpiresAt int64
}

// PendingSignInStore keeps pending sign-ins in Redis under <prefix>:<sessionID>.
type PendingSignInStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewPendingSignInStore(redisClient redis.UniversalClient, prefix string) *PendingSignInStore {
	if prefix == "" {
		prefix = "psi"
	}
	return &PendingSignInStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *PendingSignInStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save stores profile under sessionID for ttl.
func (s *PendingSignInStore) Save(ctx context.Context, sessionID string, profile identity.Profile, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrPendingSignInBackend)
	}
	now := s.now()
	encoded, err := encodePendingSignIn(&PendingSignIn{
		Profile:   profile,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(sessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPendingSignInBackend, err)
	}
	return nil
}

// Get returns the pending sign-in for sessionID.
func (s *PendingSignInStore) Get(ctx context.Context, sessionID string) (*PendingSignIn, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPendingSignInNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPendingSignInBackend, err)
	}

	record, err := decodePendingSignIn(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPendingSignInCorrupt, err)
	}
	if s.now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(sessionID)).Result()
		return nil, ErrPendingSignInExpired
	}
	return record, nil
}

// Delete removes the pending sign-in and reports whether it existed.
func (s *PendingSignInStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPendingSignInBackend, err)
	}
	return n > 0, nil
}

func encodePendingSignIn(record *PendingSignIn) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(pendingSignInRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	p := record.Profile
	for _, field := range []string{p.Provider, p.ExternalID, p.Email, p.Name, p.Avatar, p.AccessToken} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodePendingSignIn(data []byte) (*PendingSignIn, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != pendingSignInRecordVersion1 {
		return nil, fmt.Errorf("unsupported record version %d", version)
	}

	record := &PendingSignIn{}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	p := &record.Profile
	for _, field := range []*string{&p.Provider, &p.ExternalID, &p.Email, &p.Name, &p.Avatar, &p.AccessToken} {
		if *field, err = readString(reader); err != nil {
			return nil, err
		}
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in record")
	}
	return record, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("record field length exceeded")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
