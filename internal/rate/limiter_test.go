package rate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
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
	return mr, New(rdb, cfg)
}

func TestReserveConfirmBudget(t *testing.T) {
	mr, l := newLimiter(t, Config{MaxConfirmAttempts: 3, ConfirmWindow: time.Minute})
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		left, err := l.ReserveConfirm(ctx, "facebook:1001")
		if err != nil {
			t.Fatalf("reservation with %d left: unexpected error %v", want, err)
		}
		if left != want {
			t.Fatalf("expected %d attempts left, got %d", want, left)
		}
	}
	if _, err := l.ReserveConfirm(ctx, "facebook:1001"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected budget to be spent, got %v", err)
	}
	if ttl := mr.TTL("rc:facebook:1001"); ttl != time.Minute {
		t.Fatalf("unexpected window ttl %v", ttl)
	}
	if _, err := l.ReserveConfirm(ctx, "facebook:2002"); err != nil {
		t.Fatalf("other login must have its own budget: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := l.ReserveConfirm(ctx, "facebook:1001"); err != nil {
		t.Fatalf("expected new window, got %v", err)
	}
}

func TestReserveConfirmConcurrent(t *testing.T) {
	const maxAttempts = 5
	_, l := newLimiter(t, Config{MaxConfirmAttempts: maxAttempts, ConfirmWindow: time.Minute})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.ReserveConfirm(ctx, "vkontakte:42"); err == nil {
				granted.Add(1)
			} else if !errors.Is(err, ErrRateLimited) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if got := granted.Load(); got != maxAttempts {
		t.Fatalf("expected exactly %d reservations, got %d", maxAttempts, got)
	}
}

func TestResetConfirm(t *testing.T) {
	_, l := newLimiter(t, Config{MaxConfirmAttempts: 1})
	ctx := context.Background()
	if _, err := l.ReserveConfirm(ctx, "linkedin:7"); err != nil {
		t.Fatalf("ReserveConfirm failed: %v", err)
	}
	if err := l.ResetConfirm(ctx, "linkedin:7"); err != nil {
		t.Fatalf("ResetConfirm failed: %v", err)
	}
	if _, err := l.ReserveConfirm(ctx, "linkedin:7"); err != nil {
		t.Fatalf("expected reset counter, got %v", err)
	}
}

func TestAllowSignInPerIP(t *testing.T) {
	_, l := newLimiter(t, Config{EnableIPThrottle: true, MaxSignInPerIP: 2})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := l.AllowSignIn(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("call %d limited: %v", i, err)
		}
	}
	if err := l.AllowSignIn(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.AllowSignIn(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("other ip must not be limited: %v", err)
	}

	_, off := newLimiter(t, Config{MaxSignInPerIP: 1})
	for i := 0; i < 3; i++ {
		if err := off.AllowSignIn(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("disabled throttle limited: %v", err)
		}
	}
}
