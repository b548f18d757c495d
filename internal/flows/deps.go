package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/internal/stores"
	"github.com/MrEthical07/goSocialAuth/jwt"
	"github.com/MrEthical07/goSocialAuth/mail"
	"github.com/MrEthical07/goSocialAuth/provider"
)

// Providers resolves registered provider services by name.
type Providers interface {
	Lookup(name string) (provider.Service, bool)
}

// PendingStore parks external profiles until their sign-in is confirmed.
// Get reports stores.ErrPendingSignInNotFound or stores.ErrPendingSignInExpired
// for sessions that cannot be confirmed anymore.
type PendingStore interface {
	Save(ctx context.Context, sessionID string, profile identity.Profile, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*stores.PendingSignIn, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// TokenIssuer signs first-party access tokens.
type TokenIssuer interface {
	Issue(id jwt.Identity) (string, error)
}

// CallbackURIs computes the OAuth2 redirect URI of a provider.
type CallbackURIs interface {
	CallbackURI(provider string) string
}

// ConfirmationCodes derives time-bound confirmation codes from an external login.
type ConfirmationCodes interface {
	Generate(provider, externalID string) (string, error)
	Verify(provider, externalID, code string) (bool, error)
}

// AttemptLimiter bounds confirmation attempts per external login, across
// every pending session opened for it. ReserveConfirm spends an attempt
// before the code is checked and reports rate.ErrRateLimited once the budget
// is spent.
type AttemptLimiter interface {
	ReserveConfirm(ctx context.Context, subject string) (int, error)
	ResetConfirm(ctx context.Context, subject string) error
}

// AuthenticateDeps are the collaborators of the Authenticate flow.
type AuthenticateDeps struct {
	Users     identity.Store
	Providers Providers
}

// SignInDeps are the collaborators of the Sign-in flow.
type SignInDeps struct {
	Users        identity.Store
	Providers    Providers
	Callbacks    CallbackURIs
	Pending      PendingStore
	PendingTTL   time.Duration
	Codes        ConfirmationCodes
	Mailer       mail.Sender
	Tokens       TokenIssuer
	NewSessionID func() (string, error)
}

// ConfirmDeps are the collaborators of the Confirm sign-in flow.
type ConfirmDeps struct {
	Users     identity.Store
	Providers Providers
	Pending   PendingStore
	Codes     ConfirmationCodes
	Limiter   AttemptLimiter
	Tokens    TokenIssuer
}
