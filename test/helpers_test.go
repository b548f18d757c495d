//go:build integration
// +build integration

package test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	goSocialAuth "github.com/MrEthical07/goSocialAuth"
	"github.com/MrEthical07/goSocialAuth/httpapi"
	"github.com/MrEthical07/goSocialAuth/mail"
	"github.com/MrEthical07/goSocialAuth/provider"
	"github.com/MrEthical07/goSocialAuth/storage/sqlite"
)

const (
	jwtSecret     = "integration-jwt-secret-0123456789"
	confirmSecret = "integration-confirm-secret-987654"
)

type mailbox struct {
	mu   sync.Mutex
	sent []mail.Confirmation
}

func (m *mailbox) SendConfirmation(_ context.Context, msg mail.Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mailbox) last(t *testing.T) mail.Confirmation {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no confirmation mail was sent")
	}
	return m.sent[len(m.sent)-1]
}

// newFacebook serves a token endpoint accepting code "good" and a profile
// endpoint for a single user.
func newFacebook(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "fb-token", "token_type": "bearer", "expires_in": 3600})
	})
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"2002","name":"Bob Stone","email":"bob@example.com","picture":{"data":{"url":"https://cdn/bob.png"}}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type stack struct {
	api    *httptest.Server
	mail   *mailbox
	reg    *prometheus.Registry
	engine *goSocialAuth.Engine
}

func newStack(t *testing.T) *stack {
	t.Helper()
	fb := newFacebook(t)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	users, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("sqlite open failed: %v", err)
	}
	t.Cleanup(func() { _ = users.Close() })

	cfg := goSocialAuth.DefaultConfig()
	cfg.BaseURL = "https://auth.example.com"
	cfg.JWT.PrivateKey = []byte(jwtSecret)
	cfg.SignIn.ConfirmSecret = []byte(confirmSecret)
	p := cfg.Providers[provider.Facebook]
	p.ClientID = "fb-id"
	p.ClientSecret = "fb-secret"
	p.AuthURL = fb.URL + "/authorize"
	p.TokenURL = fb.URL + "/token"
	p.UserInfoURL = fb.URL + "/me"
	cfg.Providers[provider.Facebook] = p

	s := &stack{mail: &mailbox{}, reg: prometheus.NewRegistry()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.engine, err = goSocialAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(users).
		WithMailer(s.mail).
		WithHTTPClient(fb.Client()).
		WithLogger(logger).
		WithMetricsRegisterer(s.reg).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(s.engine.Close)

	mux := http.NewServeMux()
	httpapi.NewHandler(httpapi.Config{
		Engine:   s.engine,
		Logger:   logger,
		Gatherer: s.reg,
	}).RegisterRoutes(mux)
	s.api = httptest.NewServer(mux)
	t.Cleanup(s.api.Close)
	return s
}

var popupResult = regexp.MustCompile(`var result = (\{.*?\});`)

// callback drives the provider callback and decodes the popup's result.
func (s *stack) callback(t *testing.T, code string) map[string]any {
	t.Helper()
	resp, err := s.api.Client().Get(s.api.URL + "/signin/facebook/callback?state=facebook&code=" + code)
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	m := popupResult.FindSubmatch(body)
	if m == nil {
		t.Fatalf("popup carries no result: %s", body)
	}
	var out map[string]any
	if err := json.Unmarshal(m[1], &out); err != nil {
		t.Fatalf("decode popup result %s: %v", m[1], err)
	}
	return out
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}
