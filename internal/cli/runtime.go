package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	goSocialAuth "github.com/MrEthical07/goSocialAuth"
	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/mail"
	"github.com/MrEthical07/goSocialAuth/storage/postgres"
	"github.com/MrEthical07/goSocialAuth/storage/sqlite"
)

const tracerName = "github.com/MrEthical07/goSocialAuth"

// runtime owns the external resources a command opens. Close releases them
// in reverse order.
type runtime struct {
	logger *slog.Logger
	redis  redis.UniversalClient
	users  identity.Store
	mailer mail.Sender

	closers []func() error
}

func (rt *runtime) onClose(fn func() error) {
	rt.closers = append(rt.closers, fn)
}

func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// openRuntime connects Redis, the identity store and the mail transport.
// mailOut receives confirmation mail when the writer transport is selected.
func openRuntime(ctx context.Context, cfg ServerConfig, logger *slog.Logger, mailOut io.Writer) (*runtime, error) {
	rt := &runtime{logger: logger}

	rdb, err := openRedis(ctx, rt, cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.redis = rdb

	users, err := openStore(ctx, rt, cfg, cfg.AutoMigrate)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.users = users

	mailer, err := openMailer(rt, cfg, logger, mailOut)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.mailer = mailer
	return rt, nil
}

func openRedis(ctx context.Context, rt *runtime, cfg ServerConfig) (redis.UniversalClient, error) {
	addr := cfg.RedisAddr
	if addr == RedisInMemory {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		rt.onClose(func() error { mr.Close(); return nil })
		rt.logger.Warn("using embedded redis; pending sign-ins are lost on exit")
		addr = mr.Addr()
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rt.onClose(rdb.Close)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

func openStore(ctx context.Context, rt *runtime, cfg ServerConfig, migrate bool) (identity.Store, error) {
	switch cfg.Store {
	case StoreMemory:
		return identity.NewMemoryStore(), nil
	case StoreSQLite:
		// Open applies the bundled migrations itself.
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.onClose(s.Close)
		return s, nil
	case StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, err
		}
		s := postgres.New(pool)
		rt.onClose(func() error { s.Close(); return nil })
		if migrate {
			if err := s.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func openMailer(rt *runtime, cfg ServerConfig, logger *slog.Logger, out io.Writer) (mail.Sender, error) {
	switch cfg.Mail {
	case MailWriter:
		return mail.NewWriterSender(out), nil
	case MailAMQP:
		s, err := mail.DialAMQP(mail.AMQPConfig{URL: cfg.AMQPURL, Queue: cfg.AMQPQueue}, logger)
		if err != nil {
			return nil, err
		}
		rt.onClose(s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Mail)
	}
}

// buildEngine assembles the Engine over rt. A nil reg leaves metrics to the
// engine configuration.
func buildEngine(rt *runtime, cfg goSocialAuth.Config, reg prometheus.Registerer) (*goSocialAuth.Engine, error) {
	b := goSocialAuth.New().
		WithConfig(cfg).
		WithRedis(rt.redis).
		WithIdentityStore(rt.users).
		WithMailer(rt.mailer).
		WithLogger(rt.logger).
		WithTracer(otel.Tracer(tracerName))
	if reg != nil && cfg.Metrics.Enabled {
		b.WithMetricsRegisterer(reg)
	}
	if cfg.Audit.Enabled {
		b.WithAuditSink(goSocialAuth.NewSlogSink(rt.logger.With("component", "audit")))
	}

	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, nil
}
