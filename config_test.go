package goSocialAuth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/goSocialAuth/provider"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testJWTSecret)
	cfg.SignIn.ConfirmSecret = []byte(testConfirmSecret)
	return cfg
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with secrets must be valid: %v", err)
	}

	cases := map[string]func(*Config){
		"relative base url": func(c *Config) { c.BaseURL = "/app" },
		"zero access ttl":   func(c *Config) { c.JWT.AccessTTL = 0 },
		"short hs256 key":   func(c *Config) { c.JWT.PrivateKey = []byte("short") },
		"unknown method":    func(c *Config) { c.JWT.SigningMethod = "rs256" },
		"ed25519 no key":    func(c *Config) { c.JWT.SigningMethod = "ed25519"; c.JWT.PrivateKey = nil },
		"large leeway":      func(c *Config) { c.JWT.Leeway = time.Hour },
		"zero pending ttl":  func(c *Config) { c.SignIn.PendingTTL = 0 },
		"short secret":      func(c *Config) { c.SignIn.ConfirmSecret = []byte("x") },
		"five digits":       func(c *Config) { c.SignIn.CodeDigits = 5 },
		"tiny period":       func(c *Config) { c.SignIn.CodePeriod = time.Millisecond },
		"no attempts":       func(c *Config) { c.RateLimit.MaxConfirmAttempts = 0 },
		"ip throttle":       func(c *Config) { c.RateLimit.EnableIPThrottle = true; c.RateLimit.MaxSignInPerIP = 0 },
		"audit buffer":      func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
		"provider timeout":  func(c *Config) { c.ProviderTimeout = 0 },
		"broken provider": func(c *Config) {
			c.Providers["custom"] = provider.Config{Name: "custom", ClientID: "id", ClientSecret: "secret"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestEnabledProviders(t *testing.T) {
	cfg := validConfig()
	if got := cfg.EnabledProviders(); len(got) != 0 {
		t.Fatalf("providers without credentials must be disabled, got %d", len(got))
	}
	vk := cfg.Providers[provider.VKontakte]
	vk.ClientID, vk.ClientSecret = "id", "secret"
	cfg.Providers[provider.VKontakte] = vk
	fb := cfg.Providers[provider.Facebook]
	fb.ClientID = "id-only"
	cfg.Providers[provider.Facebook] = fb

	got := cfg.EnabledProviders()
	if len(got) != 1 || got[0].Name != provider.VKontakte {
		t.Fatalf("unexpected enabled providers %#v", got)
	}
}

func TestCloneConfigIsolatesProviders(t *testing.T) {
	cfg := validConfig()
	clone := cloneConfig(cfg)
	clone.Providers["facebook"] = provider.Config{Name: "changed"}
	clone.JWT.PrivateKey[0] = 'X'
	if cfg.Providers["facebook"].Name != provider.Facebook {
		t.Fatal("clone shares the providers map")
	}
	if cfg.JWT.PrivateKey[0] == 'X' {
		t.Fatal("clone shares the private key")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	providersFile := filepath.Join(dir, "providers.yaml")
	doc := []byte(`providers:
  facebook:
    userinfo_url: https://graph.example.test/me
  gitlab:
    auth_url: https://gitlab.example.test/oauth/authorize
    token_url: https://gitlab.example.test/oauth/token
    userinfo_url: https://gitlab.example.test/api/v4/user
    scopes: [read_user]
    fields:
      id: id
      email: email
      name: name
      avatar: avatar_url
`)
	if err := os.WriteFile(providersFile, doc, 0o600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}

	t.Setenv("GOSOCIALAUTH_BASE_URL", "https://auth.example.com")
	t.Setenv("GOSOCIALAUTH_JWT_SECRET", testJWTSecret)
	t.Setenv("GOSOCIALAUTH_JWT_TTL", "30m")
	t.Setenv("GOSOCIALAUTH_CONFIRM_SECRET", testConfirmSecret)
	t.Setenv("GOSOCIALAUTH_PENDING_TTL", "10m")
	t.Setenv("GOSOCIALAUTH_MAX_CONFIRM_ATTEMPTS", "3")
	t.Setenv("GOSOCIALAUTH_IP_THROTTLE", "true")
	t.Setenv("GOSOCIALAUTH_PROVIDERS_FILE", providersFile)
	t.Setenv("GOSOCIALAUTH_FACEBOOK_CLIENT_ID", "fb-id")
	t.Setenv("GOSOCIALAUTH_FACEBOOK_CLIENT_SECRET", "fb-secret")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
	if cfg.BaseURL != "https://auth.example.com" || cfg.JWT.AccessTTL != 30*time.Minute {
		t.Fatalf("unexpected base settings %q %v", cfg.BaseURL, cfg.JWT.AccessTTL)
	}
	if cfg.SignIn.PendingTTL != 10*time.Minute || cfg.RateLimit.MaxConfirmAttempts != 3 || !cfg.RateLimit.EnableIPThrottle {
		t.Fatalf("unexpected sign-in settings %#v %#v", cfg.SignIn, cfg.RateLimit)
	}

	fb := cfg.Providers[provider.Facebook]
	if fb.UserInfoURL != "https://graph.example.test/me" {
		t.Fatalf("file override not applied: %q", fb.UserInfoURL)
	}
	if fb.TokenURL != provider.Defaults()[provider.Facebook].TokenURL {
		t.Fatalf("defaults lost: %q", fb.TokenURL)
	}
	if fb.ClientID != "fb-id" || fb.ClientSecret != "fb-secret" {
		t.Fatalf("credentials not applied: %#v", fb)
	}
	if gl, ok := cfg.Providers["gitlab"]; !ok || gl.Name != "gitlab" || gl.Fields.Avatar != "avatar_url" {
		t.Fatalf("custom provider not loaded: %#v", gl)
	}

	enabled := cfg.EnabledProviders()
	if len(enabled) != 1 || enabled[0].Name != provider.Facebook {
		t.Fatalf("unexpected enabled providers %#v", enabled)
	}
}

func TestLoadConfigFromEnvBadDuration(t *testing.T) {
	t.Setenv("GOSOCIALAUTH_JWT_TTL", "soon")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}
