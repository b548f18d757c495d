package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxConfirmAttempts = 5
	defaultConfirmWindow      = 15 * time.Minute
	defaultMaxSignInPerIP     = 30
	defaultSignInWindow       = time.Minute
)

// Config holds limiter tuning parameters. Zero values fall back to defaults.
type Config struct {
	MaxConfirmAttempts int
	ConfirmWindow      time.Duration
	EnableIPThrottle   bool
	MaxSignInPerIP     int
	SignInWindow       time.Duration
}

// Limiter counts confirmation attempts per external login and sign-in
// callbacks per client IP.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxConfirmAttempts <= 0 {
		cfg.MaxConfirmAttempts = defaultMaxConfirmAttempts
	}
	if cfg.ConfirmWindow <= 0 {
		cfg.ConfirmWindow = defaultConfirmWindow
	}
	if cfg.MaxSignInPerIP <= 0 {
		cfg.MaxSignInPerIP = defaultMaxSignInPerIP
	}
	if cfg.SignInWindow <= 0 {
		cfg.SignInWindow = defaultSignInWindow
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// ReserveConfirm spends one confirmation attempt for subject before the
// code is checked, and returns how many attempts remain in the window. It
// returns ErrRateLimited without a reservation once the budget is spent.
// The counter is a single atomic increment, so concurrent callers can never
// reserve more than MaxConfirmAttempts between them.
func (l *Limiter) ReserveConfirm(ctx context.Context, subject string) (int, error) {
	count, err := l.incrementWithTTL(ctx, confirmKey(subject), l.config.ConfirmWindow)
	if err != nil {
		return 0, err
	}
	if count > int64(l.config.MaxConfirmAttempts) {
		return 0, ErrRateLimited
	}
	return l.config.MaxConfirmAttempts - int(count), nil
}

// ResetConfirm clears the attempt counter after a successful confirmation.
func (l *Limiter) ResetConfirm(ctx context.Context, subject string) error {
	if err := l.redis.Del(ctx, confirmKey(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// AllowSignIn counts one sign-in callback from ip and reports ErrRateLimited
// once the per-IP budget of the window is exceeded.
func (l *Limiter) AllowSignIn(ctx context.Context, ip string) error {
	if !l.config.EnableIPThrottle || ip == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, signInIPKey(ip), l.config.SignInWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxSignInPerIP) {
		return ErrRateLimited
	}
	return nil
}

// incrWithTTL increments a fixed-window counter; the first hit of a window
// sets its expiry in the same script so a counter never outlives its window.
var incrWithTTL = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrWithTTL.Run(ctx, l.redis, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

func confirmKey(subject string) string {
	return "rc:" + subject
}

func signInIPKey(ip string) string {
	return "rsi:" + ip
}
