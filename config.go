package goSocialAuth

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MrEthical07/goSocialAuth/provider"
)

// Config holds the engine settings. It is copied by the Builder and treated
// as immutable afterwards.
type Config struct {
	// BaseURL is the public origin callbacks are served under.
	BaseURL         string
	JWT             JWTConfig
	SignIn          SignInConfig
	RateLimit       RateLimitConfig
	Audit           AuditConfig
	Metrics         MetricsConfig
	Providers       map[string]provider.Config
	ProviderTimeout time.Duration
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the issued access tokens.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SIGN-IN CONFIG
====================================
*/

// SignInConfig configures pending sign-ins and their confirmation codes.
type SignInConfig struct {
	PendingTTL    time.Duration
	RedisPrefix   string
	ConfirmSecret []byte
	CodeDigits    int
	CodePeriod    time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig bounds confirmation attempts and callbacks per client IP.
type RateLimitConfig struct {
	MaxConfirmAttempts int
	ConfirmWindow      time.Duration
	EnableIPThrottle   bool
	MaxSignInPerIP     int
	SignInWindow       time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls asynchronous audit delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the Prometheus collectors registered by Build.
type MetricsConfig struct {
	Enabled                 bool
	Namespace               string
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config with the built-in providers and no secrets.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080",
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			SigningMethod: "hs256",
			Issuer:        "gosocialauth",
			Leeway:        30 * time.Second,
		},
		SignIn: SignInConfig{
			PendingTTL:  15 * time.Minute,
			RedisPrefix: "psi",
			CodeDigits:  6,
			CodePeriod:  5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			MaxConfirmAttempts: 5,
			ConfirmWindow:      15 * time.Minute,
			EnableIPThrottle:   false,
			MaxSignInPerIP:     30,
			SignInWindow:       time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "gosocialauth",
		},
		Providers:       provider.Defaults(),
		ProviderTimeout: 10 * time.Second,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.SignIn.ConfirmSecret = cloneBytes(cfg.SignIn.ConfirmSecret)
	if cfg.Providers != nil {
		out.Providers = make(map[string]provider.Config, len(cfg.Providers))
		for name, p := range cfg.Providers {
			out.Providers[name] = p
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// EnabledProviders returns the providers that carry client credentials,
// sorted by name.
func (c *Config) EnabledProviders() []provider.Config {
	names := make([]string, 0, len(c.Providers))
	for name, p := range c.Providers {
		if p.ClientID != "" && p.ClientSecret != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]provider.Config, 0, len(names))
	for _, name := range names {
		p := c.Providers[name]
		if p.Name == "" {
			p.Name = name
		}
		out = append(out, p)
	}
	return out
}

// Validate checks the configuration for values Build cannot work with.
func (c *Config) Validate() error {
	base, err := url.Parse(c.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("%w: BaseURL must be an absolute url", ErrInvalidConfig)
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("%w: JWT AccessTTL must be > 0", ErrInvalidConfig)
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return fmt.Errorf("%w: hs256 requires a PrivateKey of at least 32 bytes", ErrInvalidConfig)
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return fmt.Errorf("%w: ed25519 requires PrivateKey", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported JWT signing method %q", ErrInvalidConfig, c.JWT.SigningMethod)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return fmt.Errorf("%w: JWT Leeway must be within [0, 2m]", ErrInvalidConfig)
	}

	// Sign-in
	if c.SignIn.PendingTTL <= 0 {
		return fmt.Errorf("%w: SignIn PendingTTL must be > 0", ErrInvalidConfig)
	}
	if len(c.SignIn.ConfirmSecret) < 32 {
		return fmt.Errorf("%w: SignIn ConfirmSecret must be at least 32 bytes", ErrInvalidConfig)
	}
	if c.SignIn.CodeDigits < 6 || c.SignIn.CodeDigits > 10 {
		return fmt.Errorf("%w: SignIn CodeDigits must be between 6 and 10", ErrInvalidConfig)
	}
	if c.SignIn.CodePeriod < time.Second {
		return fmt.Errorf("%w: SignIn CodePeriod must be >= 1s", ErrInvalidConfig)
	}

	// Rate limits
	if c.RateLimit.MaxConfirmAttempts <= 0 {
		return fmt.Errorf("%w: RateLimit MaxConfirmAttempts must be > 0", ErrInvalidConfig)
	}
	if c.RateLimit.ConfirmWindow <= 0 {
		return fmt.Errorf("%w: RateLimit ConfirmWindow must be > 0", ErrInvalidConfig)
	}
	if c.RateLimit.EnableIPThrottle && (c.RateLimit.MaxSignInPerIP <= 0 || c.RateLimit.SignInWindow <= 0) {
		return fmt.Errorf("%w: RateLimit MaxSignInPerIP and SignInWindow must be > 0 when EnableIPThrottle is true", ErrInvalidConfig)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: Audit BufferSize must be > 0", ErrInvalidConfig)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("%w: ProviderTimeout must be > 0", ErrInvalidConfig)
	}

	for _, p := range c.EnabledProviders() {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

/*
====================================
ENVIRONMENT
====================================
*/

type configEnv struct {
	BaseURL            string        `env:"GOSOCIALAUTH_BASE_URL"               envDefault:"http://localhost:8080"`
	JWTSecret          string        `env:"GOSOCIALAUTH_JWT_SECRET"`
	JWTMethod          string        `env:"GOSOCIALAUTH_JWT_METHOD"             envDefault:"hs256"`
	JWTPrivateKeyFile  string        `env:"GOSOCIALAUTH_JWT_PRIVATE_KEY_FILE"`
	JWTTTL             time.Duration `env:"GOSOCIALAUTH_JWT_TTL"                envDefault:"1h"`
	JWTIssuer          string        `env:"GOSOCIALAUTH_JWT_ISSUER"             envDefault:"gosocialauth"`
	JWTAudience        string        `env:"GOSOCIALAUTH_JWT_AUDIENCE"`
	JWTKeyID           string        `env:"GOSOCIALAUTH_JWT_KEY_ID"`
	ConfirmSecret      string        `env:"GOSOCIALAUTH_CONFIRM_SECRET"`
	PendingTTL         time.Duration `env:"GOSOCIALAUTH_PENDING_TTL"            envDefault:"15m"`
	CodeDigits         int           `env:"GOSOCIALAUTH_CODE_DIGITS"            envDefault:"6"`
	CodePeriod         time.Duration `env:"GOSOCIALAUTH_CODE_PERIOD"            envDefault:"5m"`
	MaxConfirmAttempts int           `env:"GOSOCIALAUTH_MAX_CONFIRM_ATTEMPTS"   envDefault:"5"`
	ConfirmWindow      time.Duration `env:"GOSOCIALAUTH_CONFIRM_WINDOW"         envDefault:"15m"`
	IPThrottle         bool          `env:"GOSOCIALAUTH_IP_THROTTLE"`
	MaxSignInPerIP     int           `env:"GOSOCIALAUTH_MAX_SIGNIN_PER_IP"      envDefault:"30"`
	AuditEnabled       bool          `env:"GOSOCIALAUTH_AUDIT"`
	MetricsEnabled     bool          `env:"GOSOCIALAUTH_METRICS"                envDefault:"true"`
	LatencyHistograms  bool          `env:"GOSOCIALAUTH_LATENCY_HISTOGRAMS"`
	ProvidersFile      string        `env:"GOSOCIALAUTH_PROVIDERS_FILE"`
	ProviderTimeout    time.Duration `env:"GOSOCIALAUTH_PROVIDER_TIMEOUT"       envDefault:"10s"`

	FacebookClientID          string `env:"GOSOCIALAUTH_FACEBOOK_CLIENT_ID"`
	FacebookClientSecret      string `env:"GOSOCIALAUTH_FACEBOOK_CLIENT_SECRET"`
	VKontakteClientID         string `env:"GOSOCIALAUTH_VKONTAKTE_CLIENT_ID"`
	VKontakteClientSecret     string `env:"GOSOCIALAUTH_VKONTAKTE_CLIENT_SECRET"`
	OdnoklassnikiClientID     string `env:"GOSOCIALAUTH_ODNOKLASSNIKI_CLIENT_ID"`
	OdnoklassnikiClientSecret string `env:"GOSOCIALAUTH_ODNOKLASSNIKI_CLIENT_SECRET"`
	LinkedInClientID          string `env:"GOSOCIALAUTH_LINKEDIN_CLIENT_ID"`
	LinkedInClientSecret      string `env:"GOSOCIALAUTH_LINKEDIN_CLIENT_SECRET"`
}

// LoadConfigFromEnv builds a Config from GOSOCIALAUTH_* variables. Provider
// endpoints start from the built-in defaults, are overridden by the YAML file
// named in GOSOCIALAUTH_PROVIDERS_FILE and receive their credentials from the
// environment. The result is not validated.
func LoadConfigFromEnv() (Config, error) {
	var raw configEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := defaultConfig()
	cfg.BaseURL = raw.BaseURL
	cfg.JWT.AccessTTL = raw.JWTTTL
	cfg.JWT.SigningMethod = strings.ToLower(strings.TrimSpace(raw.JWTMethod))
	cfg.JWT.Issuer = raw.JWTIssuer
	cfg.JWT.Audience = raw.JWTAudience
	cfg.JWT.KeyID = raw.JWTKeyID
	if raw.JWTSecret != "" {
		cfg.JWT.PrivateKey = []byte(raw.JWTSecret)
	}
	if raw.JWTPrivateKeyFile != "" {
		key, err := os.ReadFile(raw.JWTPrivateKeyFile)
		if err != nil {
			return Config{}, fmt.Errorf("read jwt private key: %w", err)
		}
		cfg.JWT.PrivateKey = key
	}

	cfg.SignIn.ConfirmSecret = []byte(raw.ConfirmSecret)
	cfg.SignIn.PendingTTL = raw.PendingTTL
	cfg.SignIn.CodeDigits = raw.CodeDigits
	cfg.SignIn.CodePeriod = raw.CodePeriod

	cfg.RateLimit.MaxConfirmAttempts = raw.MaxConfirmAttempts
	cfg.RateLimit.ConfirmWindow = raw.ConfirmWindow
	cfg.RateLimit.EnableIPThrottle = raw.IPThrottle
	cfg.RateLimit.MaxSignInPerIP = raw.MaxSignInPerIP

	cfg.Audit.Enabled = raw.AuditEnabled
	cfg.Metrics.Enabled = raw.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = raw.LatencyHistograms
	cfg.ProviderTimeout = raw.ProviderTimeout

	if raw.ProvidersFile != "" {
		overrides, err := provider.LoadFile(raw.ProvidersFile)
		if err != nil {
			return Config{}, err
		}
		applyProviderOverrides(cfg.Providers, overrides)
	}
	applyProviderOverrides(cfg.Providers, map[string]provider.Config{
		provider.Facebook:      {ClientID: raw.FacebookClientID, ClientSecret: raw.FacebookClientSecret},
		provider.VKontakte:     {ClientID: raw.VKontakteClientID, ClientSecret: raw.VKontakteClientSecret},
		provider.Odnoklassniki: {ClientID: raw.OdnoklassnikiClientID, ClientSecret: raw.OdnoklassnikiClientSecret},
		provider.LinkedIn:      {ClientID: raw.LinkedInClientID, ClientSecret: raw.LinkedInClientSecret},
	})
	return cfg, nil
}

func applyProviderOverrides(dst map[string]provider.Config, overrides map[string]provider.Config) {
	for name, override := range overrides {
		name = strings.ToLower(strings.TrimSpace(name))
		base, ok := dst[name]
		if !ok {
			base = provider.Config{Name: name}
		}
		dst[name] = provider.Merge(base, override)
	}
}
