package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSocialAuth/identity"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func sampleProfile() identity.Profile {
	return identity.Profile{
		Provider:    "vkontakte",
		ExternalID:  "42",
		Email:       "ivan@example.com",
		Name:        "Иван Петров",
		Avatar:      "https://vk/p.jpg",
		AccessToken: "provider-token",
	}
}

func TestPendingSignInSaveGetDelete(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewPendingSignInStore(rdb, "")
	ctx := context.Background()

	if err := s.Save(ctx, "sid1", sampleProfile(), time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	rec, err := s.Get(ctx, "sid1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Profile != sampleProfile() {
		t.Fatalf("profile changed in storage: %#v", rec.Profile)
	}
	if rec.ExpiresAt <= rec.CreatedAt {
		t.Fatalf("unexpected timestamps %d/%d", rec.CreatedAt, rec.ExpiresAt)
	}

	existed, err := s.Delete(ctx, "sid1")
	if err != nil || !existed {
		t.Fatalf("Delete returned %v, %v", existed, err)
	}
	if _, err := s.Get(ctx, "sid1"); !errors.Is(err, ErrPendingSignInNotFound) {
		t.Fatalf("expected ErrPendingSignInNotFound, got %v", err)
	}
	existed, err = s.Delete(ctx, "sid1")
	if err != nil || existed {
		t.Fatalf("second Delete returned %v, %v", existed, err)
	}
}

func TestPendingSignInTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewPendingSignInStore(rdb, "test")
	ctx := context.Background()

	if err := s.Save(ctx, "sid", sampleProfile(), time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ttl := mr.TTL("test:sid"); ttl != time.Minute {
		t.Fatalf("unexpected redis ttl %v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.Get(ctx, "sid"); !errors.Is(err, ErrPendingSignInNotFound) {
		t.Fatalf("expected evicted record, got %v", err)
	}
}

func TestPendingSignInExpiredRecord(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewPendingSignInStore(rdb, "")
	ctx := context.Background()

	if err := s.Save(ctx, "sid", sampleProfile(), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Get(ctx, "sid"); !errors.Is(err, ErrPendingSignInExpired) {
		t.Fatalf("expected ErrPendingSignInExpired, got %v", err)
	}
}

func TestPendingSignInCorruptRecord(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewPendingSignInStore(rdb, "")
	if err := mr.Set("psi:bad", "\x09garbage"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := s.Get(context.Background(), "bad"); !errors.Is(err, ErrPendingSignInCorrupt) {
		t.Fatalf("expected ErrPendingSignInCorrupt, got %v", err)
	}
}

func TestPendingSignInBackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	s := NewPendingSignInStore(rdb, "")
	if err := s.Save(context.Background(), "sid", sampleProfile(), time.Minute); !errors.Is(err, ErrPendingSignInBackend) {
		t.Fatalf("expected ErrPendingSignInBackend, got %v", err)
	}
}
