// Package confirmcode derives the short numeric codes mailed to users who
// sign in with a provider account that is not linked yet.
//
// Codes are not stored. Each code is an HOTP value over the current time
// window, keyed by HKDF(secret, "gosocialauth/confirm/<provider>:<externalID>"),
// so any instance holding the secret can verify it.
package confirmcode

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	defaultDigits = 6
	defaultPeriod = 5 * time.Minute
	defaultSkew   = 1
	minSecretSize = 32
)

var (
	// ErrWeakSecret is returned by New for secrets shorter than 32 bytes.
	ErrWeakSecret = errors.New("confirmcode: secret must be at least 32 bytes")
	// ErrInvalidDigits is returned by New for a digit count outside [6, 10].
	ErrInvalidDigits = errors.New("confirmcode: digits must be between 6 and 10")
	// ErrInvalidPeriod is returned by New for a period shorter than one second.
	ErrInvalidPeriod = errors.New("confirmcode: period must be at least one second")
	// ErrEmptySubject is returned when no external login is given.
	ErrEmptySubject = errors.New("confirmcode: empty subject")
)

// Config tunes code generation. Zero values use 6 digits, a 5 minute period
// and one window of skew.
type Config struct {
	Secret []byte
	Digits int
	Period time.Duration
	Skew   int
}

// Generator computes and verifies confirmation codes. It is safe for
// concurrent use.
type Generator struct {
	secret []byte
	digits int
	period time.Duration
	skew   int
	now    func() time.Time
}

// New validates cfg and returns a Generator.
func New(cfg Config) (*Generator, error) {
	if len(cfg.Secret) < minSecretSize {
		return nil, ErrWeakSecret
	}
	if cfg.Digits == 0 {
		cfg.Digits = defaultDigits
	}
	if cfg.Digits < 6 || cfg.Digits > 10 {
		return nil, ErrInvalidDigits
	}
	if cfg.Period <= 0 {
		cfg.Period = defaultPeriod
	}
	if cfg.Period < time.Second {
		return nil, ErrInvalidPeriod
	}
	if cfg.Skew < 0 {
		cfg.Skew = 0
	} else if cfg.Skew == 0 {
		cfg.Skew = defaultSkew
	}
	return &Generator{
		secret: append([]byte(nil), cfg.Secret...),
		digits: cfg.Digits,
		period: cfg.Period,
		skew:   cfg.Skew,
		now:    time.Now,
	}, nil
}

// Generate returns the code for the external login provider:externalID in
// the current window.
func (g *Generator) Generate(provider, externalID string) (string, error) {
	key, err := g.key(provider, externalID)
	if err != nil {
		return "", err
	}
	return hotpCode(key, g.counter(g.now()), g.digits), nil
}

// Verify reports whether code matches the external login in the current
// window or within the configured skew.
func (g *Generator) Verify(provider, externalID, code string) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != g.digits || !isNumeric(trimmed) {
		return false, nil
	}
	key, err := g.key(provider, externalID)
	if err != nil {
		return false, err
	}

	base := g.counter(g.now())
	for step := -g.skew; step <= g.skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotpCode(key, counter, g.digits)), []byte(trimmed)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

func (g *Generator) counter(t time.Time) int64 {
	return t.Unix() / int64(g.period/time.Second)
}

func (g *Generator) key(provider, externalID string) ([]byte, error) {
	if strings.TrimSpace(provider) == "" || strings.TrimSpace(externalID) == "" {
		return nil, ErrEmptySubject
	}
	info := "gosocialauth/confirm/" + strings.ToLower(provider) + ":" + externalID
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, g.secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("confirmcode: derive key: %w", err)
	}
	return key, nil
}

func hotpCode(key []byte, counter int64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int64(sum[offset])&0x7f)<<24 |
		(int64(sum[offset+1])&0xff)<<16 |
		(int64(sum[offset+2])&0xff)<<8 |
		(int64(sum[offset+3]) & 0xff)

	mod := int64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
