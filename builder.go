package goSocialAuth

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/internal"
	"github.com/MrEthical07/goSocialAuth/internal/audit"
	"github.com/MrEthical07/goSocialAuth/internal/confirmcode"
	"github.com/MrEthical07/goSocialAuth/internal/flows"
	"github.com/MrEthical07/goSocialAuth/internal/rate"
	"github.com/MrEthical07/goSocialAuth/internal/stores"
	"github.com/MrEthical07/goSocialAuth/jwt"
	"github.com/MrEthical07/goSocialAuth/mail"
	"github.com/MrEthical07/goSocialAuth/pipeline"
	"github.com/MrEthical07/goSocialAuth/provider"
)

// Builder collects configuration and collaborators and assembles an Engine.
// A Builder builds at most one Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	users  identity.Store
	mailer mail.Sender

	httpClient *http.Client
	services   []provider.Service
	logger     *slog.Logger
	tracer     trace.Tracer
	registerer prometheus.Registerer
	auditSink  AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing pending sign-ins and rate limits.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the store of local users.
func (b *Builder) WithIdentityStore(store identity.Store) *Builder {
	b.users = store
	return b
}

// WithMailer sets the sender of confirmation codes.
func (b *Builder) WithMailer(sender mail.Sender) *Builder {
	b.mailer = sender
	return b
}

// WithHTTPClient sets the client used to call providers. By default a client
// with Config.ProviderTimeout is used.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithProviderServices registers services in addition to the configured
// providers.
func (b *Builder) WithProviderServices(services ...provider.Service) *Builder {
	b.services = append(b.services, services...)
	return b
}

// WithLogger sets the logger of the flows.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTracer sets the tracer that records one span per step.
func (b *Builder) WithTracer(tracer trace.Tracer) *Builder {
	b.tracer = tracer
	return b
}

// WithMetricsRegisterer enables metrics and registers the collectors with reg.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	b.config.Metrics.Enabled = true
	return b
}

// WithAuditSink enables auditing and delivers events to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// Build validates the configuration, wires the flows and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch {
	case b.redis == nil:
		return nil, ErrRedisRequired
	case b.users == nil:
		return nil, ErrIdentityStoreRequired
	case b.mailer == nil:
		return nil, ErrMailerRequired
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.ProviderTimeout}
	}

	services := make([]provider.Service, 0, len(cfg.Providers)+len(b.services))
	for _, pc := range cfg.EnabledProviders() {
		s, err := provider.NewOAuth2Service(pc, httpClient)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	services = append(services, b.services...)
	if len(services) == 0 {
		return nil, ErrNoProviders
	}
	registry, err := provider.NewRegistry(services...)
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    true,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}

	codes, err := confirmcode.New(confirmcode.Config{
		Secret: cfg.SignIn.ConfirmSecret,
		Digits: cfg.SignIn.CodeDigits,
		Period: cfg.SignIn.CodePeriod,
	})
	if err != nil {
		return nil, err
	}

	limiter := rate.New(b.redis, rate.Config{
		MaxConfirmAttempts: cfg.RateLimit.MaxConfirmAttempts,
		ConfirmWindow:      cfg.RateLimit.ConfirmWindow,
		EnableIPThrottle:   cfg.RateLimit.EnableIPThrottle,
		MaxSignInPerIP:     cfg.RateLimit.MaxSignInPerIP,
		SignInWindow:       cfg.RateLimit.SignInWindow,
	})
	pending := stores.NewPendingSignInStore(b.redis, cfg.SignIn.RedisPrefix)
	callbacks := provider.CallbackURIs{BaseURL: cfg.BaseURL}

	var metrics *Metrics
	if cfg.Metrics.Enabled {
		metrics, err = NewMetrics(b.registerer, cfg.Metrics.Namespace, cfg.Metrics.EnableLatencyHistograms)
		if err != nil {
			return nil, err
		}
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithTracer(b.tracer)}
	if metrics != nil {
		opts = append(opts, pipeline.WithObserver(metrics))
	}

	authenticate, err := flows.NewAuthenticate(flows.AuthenticateDeps{
		Users:     b.users,
		Providers: registry,
	}, opts...)
	if err != nil {
		return nil, err
	}
	signIn, err := flows.NewSignIn(flows.SignInDeps{
		Users:        b.users,
		Providers:    registry,
		Callbacks:    callbacks,
		Pending:      pending,
		PendingTTL:   cfg.SignIn.PendingTTL,
		Codes:        codes,
		Mailer:       b.mailer,
		Tokens:       tokens,
		NewSessionID: newSessionID,
	}, opts...)
	if err != nil {
		return nil, err
	}
	confirm, err := flows.NewConfirmSignIn(flows.ConfirmDeps{
		Users:     b.users,
		Providers: registry,
		Pending:   pending,
		Codes:     codes,
		Limiter:   limiter,
		Tokens:    tokens,
	}, opts...)
	if err != nil {
		return nil, err
	}

	auditCfg := audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop:     func(audit.Event) { metrics.incAuditDropped() },
	}

	b.built = true
	return &Engine{
		config:       cfg,
		logger:       logger,
		users:        b.users,
		providers:    registry,
		callbacks:    callbacks,
		tokens:       tokens,
		limiter:      limiter,
		metrics:      metrics,
		audit:        audit.NewDispatcher(auditCfg, b.auditSink),
		authenticate: authenticate,
		signIn:       signIn,
		confirm:      confirm,
	}, nil
}

func newSessionID() (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}
