package confirmcode

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

var testSecret = bytes.Repeat([]byte("k"), 32)

func newTestGenerator(t *testing.T, now time.Time) *Generator {
	t.Helper()
	g, err := New(Config{Secret: testSecret, Period: time.Minute, Skew: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	g.now = func() time.Time { return now }
	return g
}

func TestGenerateAndVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := newTestGenerator(t, now)

	code, err := g.Generate("facebook", "1001")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(code) != 6 || !isNumeric(code) {
		t.Fatalf("unexpected code %q", code)
	}

	ok, err := g.Verify("facebook", "1001", " "+code+" ")
	if err != nil || !ok {
		t.Fatalf("expected code to verify, got %v, %v", ok, err)
	}
	if ok, _ := g.Verify("facebook", "1002", code); ok {
		t.Fatal("code must be bound to the external id")
	}
	if ok, _ := g.Verify("vkontakte", "1001", code); ok {
		t.Fatal("code must be bound to the provider")
	}
}

func TestVerifyWindowSkew(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := newTestGenerator(t, now)
	code, _ := g.Generate("linkedin", "abc")

	g.now = func() time.Time { return now.Add(time.Minute) }
	if ok, _ := g.Verify("linkedin", "abc", code); !ok {
		t.Fatal("code from previous window must verify within skew")
	}
	g.now = func() time.Time { return now.Add(3 * time.Minute) }
	if ok, _ := g.Verify("linkedin", "abc", code); ok {
		t.Fatal("code must expire outside the skew window")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	g := newTestGenerator(t, time.Now())
	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		if ok, err := g.Verify("facebook", "1", code); ok || err != nil {
			t.Fatalf("code %q: expected false, nil; got %v, %v", code, ok, err)
		}
	}
	if _, err := g.Generate("", "1"); !errors.Is(err, ErrEmptySubject) {
		t.Fatalf("expected ErrEmptySubject, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Secret: []byte("short")}); !errors.Is(err, ErrWeakSecret) {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}
	if _, err := New(Config{Secret: testSecret, Digits: 4}); !errors.Is(err, ErrInvalidDigits) {
		t.Fatalf("expected ErrInvalidDigits, got %v", err)
	}
	if _, err := New(Config{Secret: testSecret, Period: time.Millisecond}); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestHOTPKnownVector(t *testing.T) {
	// RFC 6238 appendix B, SHA-256, T = 59s.
	if got := hotpCode([]byte("12345678901234567890123456789012"), 1, 8); got != "46119246" {
		t.Fatalf("unexpected hotp %q", got)
	}
}
