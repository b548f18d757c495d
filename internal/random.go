package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID identifies a pending sign-in. It is handed to the browser, so it
// carries 128 bits of randomness and nothing else.
type SessionID [16]byte

var ErrInvalidSessionID = errors.New("invalid session id")

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, ErrInvalidSessionID
	}
	if len(raw) != len(sid) {
		return sid, ErrInvalidSessionID
	}

	copy(sid[:], raw)
	return sid, nil
}
