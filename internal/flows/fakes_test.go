package flows

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/internal/confirmcode"
	"github.com/MrEthical07/goSocialAuth/internal/rate"
	"github.com/MrEthical07/goSocialAuth/internal/stores"
	"github.com/MrEthical07/goSocialAuth/jwt"
	"github.com/MrEthical07/goSocialAuth/mail"
	"github.com/MrEthical07/goSocialAuth/pipeline"
	"github.com/MrEthical07/goSocialAuth/provider"
)

const (
	testBaseURL = "https://chat.example"
	testSecret  = "0123456789abcdef0123456789abcdef"
)

// fakeService is an in-memory provider: codes map to access tokens and
// access tokens map to profiles.
type fakeService struct {
	name string

	mu           sync.Mutex
	codes        map[string]string
	profiles     map[string]identity.Profile
	lastRedirect string
}

func newFakeService(name string) *fakeService {
	return &fakeService{
		name:     name,
		codes:    make(map[string]string),
		profiles: make(map[string]identity.Profile),
	}
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) ClaimTypes() identity.ClaimTypes { return identity.ClaimTypesFor(s.name) }

func (s *fakeService) AuthCodeURL(state, redirectURI string) string {
	return "https://" + s.name + ".example/authorize?state=" + state + "&redirect_uri=" + redirectURI
}

func (s *fakeService) Exchange(ctx context.Context, code, redirectURI string) (provider.Token, error) {
	if err := ctx.Err(); err != nil {
		return provider.Token{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRedirect = redirectURI
	token, ok := s.codes[code]
	if !ok {
		return provider.Token{}, &provider.Error{Provider: s.name, Op: "exchange", Code: "invalid_grant", Description: "code expired"}
	}
	return provider.Token{AccessToken: token}, nil
}

func (s *fakeService) FetchProfile(ctx context.Context, token provider.Token) (identity.Profile, error) {
	if err := ctx.Err(); err != nil {
		return identity.Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[token.AccessToken]
	if !ok {
		return identity.Profile{}, &provider.Error{Provider: s.name, Op: "profile", Code: "401"}
	}
	p.Provider = s.name
	p.AccessToken = token.AccessToken
	return p, nil
}

func (s *fakeService) grant(code, token string, p identity.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = token
	s.profiles[token] = p
}

func (s *fakeService) redirect() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRedirect
}

type fakePending struct {
	mu      sync.Mutex
	records map[string]stores.PendingSignIn
	saveErr error
}

func newFakePending() *fakePending {
	return &fakePending{records: make(map[string]stores.PendingSignIn)}
}

func (f *fakePending) Save(_ context.Context, sessionID string, profile identity.Profile, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	now := time.Now()
	f.records[sessionID] = stores.PendingSignIn{Profile: profile, CreatedAt: now.Unix(), ExpiresAt: now.Add(ttl).Unix()}
	return nil
}

func (f *fakePending) Get(_ context.Context, sessionID string) (*stores.PendingSignIn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[sessionID]
	if !ok {
		return nil, stores.ErrPendingSignInNotFound
	}
	return &rec, nil
}

func (f *fakePending) Delete(_ context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[sessionID]
	delete(f.records, sessionID)
	return ok, nil
}

func (f *fakePending) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeLimiter struct {
	mu       sync.Mutex
	max      int
	attempts map[string]int
}

func newFakeLimiter(limit int) *fakeLimiter {
	return &fakeLimiter{max: limit, attempts: make(map[string]int)}
}

func (l *fakeLimiter) ReserveConfirm(_ context.Context, subject string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts[subject]++
	if l.attempts[subject] > l.max {
		return 0, rate.ErrRateLimited
	}
	return l.max - l.attempts[subject], nil
}

func (l *fakeLimiter) ResetConfirm(_ context.Context, subject string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, subject)
	return nil
}

func (l *fakeLimiter) used(subject string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts[subject]
}

// countingCodes records how many confirmation codes were actually judged.
type countingCodes struct {
	ConfirmationCodes
	verified atomic.Int64
}

func (c *countingCodes) Verify(provider, externalID, code string) (bool, error) {
	c.verified.Add(1)
	return c.ConfirmationCodes.Verify(provider, externalID, code)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Confirmation
}

func (m *fakeMailer) SendConfirmation(_ context.Context, msg mail.Confirmation) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last(t *testing.T) mail.Confirmation {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("no confirmation mail was sent")
	}
	return m.sent[len(m.sent)-1]
}

type harness struct {
	users    *identity.MemoryStore
	facebook *fakeService
	pending  *fakePending
	limiter  *fakeLimiter
	mailer   *fakeMailer
	codes    *countingCodes
	tokens   *jwt.Manager

	authenticate *pipeline.Pipeline
	signIn       *pipeline.Pipeline
	confirm      *pipeline.Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithLimiter(t, nil)
}

// newHarnessWithLimiter builds the flows over attempts, or over the
// in-memory fakeLimiter when attempts is nil.
func newHarnessWithLimiter(t *testing.T, attempts AttemptLimiter) *harness {
	t.Helper()
	h := &harness{
		users:    identity.NewMemoryStore(),
		facebook: newFakeService(provider.Facebook),
		pending:  newFakePending(),
		limiter:  newFakeLimiter(3),
		mailer:   &fakeMailer{},
	}
	registry, err := provider.NewRegistry(h.facebook, newFakeService(provider.VKontakte))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	h.tokens, err = jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(testSecret),
		Issuer:        "gosocialauth-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	codes, err := confirmcode.New(confirmcode.Config{Secret: []byte(testSecret), Skew: -1})
	if err != nil {
		t.Fatalf("confirmcode.New failed: %v", err)
	}
	h.codes = &countingCodes{ConfirmationCodes: codes}
	if attempts == nil {
		attempts = h.limiter
	}

	opts := []pipeline.Option{pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	var seq int
	var seqMu sync.Mutex

	h.authenticate, err = NewAuthenticate(AuthenticateDeps{Users: h.users, Providers: registry}, opts...)
	if err != nil {
		t.Fatalf("NewAuthenticate failed: %v", err)
	}
	h.signIn, err = NewSignIn(SignInDeps{
		Users:     h.users,
		Providers: registry,
		Callbacks: provider.CallbackURIs{BaseURL: testBaseURL},
		Pending:   h.pending,
		Codes:     codes,
		Mailer:    h.mailer,
		Tokens:    h.tokens,
		NewSessionID: func() (string, error) {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return "session-" + strings.Repeat("x", seq), nil
		},
	}, opts...)
	if err != nil {
		t.Fatalf("NewSignIn failed: %v", err)
	}
	h.confirm, err = NewConfirmSignIn(ConfirmDeps{
		Users:     h.users,
		Providers: registry,
		Pending:   h.pending,
		Codes:     h.codes,
		Limiter:   attempts,
		Tokens:    h.tokens,
	}, opts...)
	if err != nil {
		t.Fatalf("NewConfirmSignIn failed: %v", err)
	}
	return h
}

func run(t *testing.T, p *pipeline.Pipeline, pc *pipeline.Context) pipeline.Result {
	t.Helper()
	res, err := p.Run(context.Background(), pc)
	if err != nil {
		t.Fatalf("%s: unexpected run error %v", p.Name(), err)
	}
	return res
}

func callback(providerName, code, state string) *pipeline.Context {
	return NewContextBuilder().
		WithProviderName(providerName).
		WithAuthorizationCode(code).
		WithState(state).
		Build()
}

func expectError(t *testing.T, res pipeline.Result, message string) pipeline.Error {
	t.Helper()
	e, ok := res.(pipeline.Error)
	if !ok {
		t.Fatalf("expected Error result, got %#v", res)
	}
	if message != "" && e.Message != message {
		t.Fatalf("expected message %q, got %q", message, e.Message)
	}
	return e
}
