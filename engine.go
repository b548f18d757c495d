package goSocialAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/internal"
	"github.com/MrEthical07/goSocialAuth/internal/audit"
	"github.com/MrEthical07/goSocialAuth/internal/flows"
	"github.com/MrEthical07/goSocialAuth/internal/rate"
	"github.com/MrEthical07/goSocialAuth/jwt"
	"github.com/MrEthical07/goSocialAuth/pipeline"
	"github.com/MrEthical07/goSocialAuth/provider"
)

// MsgTooManySignIns is the Error message of a callback rejected by the per-IP budget.
const MsgTooManySignIns = "too many sign-in attempts, try again later"

// Engine runs the sign-in flows. It is safe for concurrent use and immutable
// after Build apart from its audit dispatcher.
type Engine struct {
	config    Config
	logger    *slog.Logger
	users     identity.Store
	providers *provider.Registry
	callbacks provider.CallbackURIs
	tokens    *jwt.Manager
	limiter   *rate.Limiter
	metrics   *Metrics
	audit     *audit.Dispatcher

	authenticate *pipeline.Pipeline
	signIn       *pipeline.Pipeline
	confirm      *pipeline.Pipeline
}

// SignInRequest carries the query parameters of a provider callback.
type SignInRequest struct {
	Provider         string
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Authenticate reports whether principal is still signed in with its
// provider. A nil principal yields NotAuthenticated.
func (e *Engine) Authenticate(ctx context.Context, principal *identity.Principal) (pipeline.Result, error) {
	pc := flows.NewContextBuilder().WithPrincipal(principal).Build()
	return e.run(ctx, e.authenticate, pc)
}

// SignIn completes a provider callback. It returns SignInSuccess for a login
// that is already linked and ConfirmSignIn after mailing a confirmation code
// otherwise.
func (e *Engine) SignIn(ctx context.Context, req SignInRequest) (pipeline.Result, error) {
	if err := e.limiter.AllowSignIn(ctx, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metrics.incRateLimited("signin_ip")
			return pipeline.NewError(MsgTooManySignIns), nil
		}
		e.logger.ErrorContext(ctx, "sign-in throttle unavailable", "error", err)
		return pipeline.InternalError(), nil
	}

	pc := flows.NewContextBuilder().
		WithProviderName(req.Provider).
		WithAuthorizationCode(req.Code).
		WithState(req.State).
		WithProviderError(req.Error, req.ErrorDescription).
		Build()
	return e.run(ctx, e.signIn, pc)
}

// ConfirmSignIn redeems the code mailed for the pending sign-in sessionID.
func (e *Engine) ConfirmSignIn(ctx context.Context, sessionID, code string) (pipeline.Result, error) {
	if sessionID != "" {
		if _, err := internal.ParseSessionID(sessionID); err != nil {
			return pipeline.NewError(flows.MsgSignInSessionExpired), nil
		}
	}
	pc := flows.NewContextBuilder().
		WithSessionID(sessionID).
		WithConfirmationCode(code).
		Build()
	res, err := e.run(ctx, e.confirm, pc)
	if attemptsExhausted(res) {
		e.metrics.incRateLimited("confirm_attempts")
	}
	return res, err
}

func attemptsExhausted(res pipeline.Result) bool {
	r, ok := res.(pipeline.Error)
	if !ok {
		return false
	}
	if r.Message == flows.MsgTooManyAttempts {
		return true
	}
	return slices.Contains(r.Errors, flows.MsgNoAttemptsLeft)
}

func (e *Engine) run(ctx context.Context, p *pipeline.Pipeline, pc *pipeline.Context) (pipeline.Result, error) {
	res, err := p.Run(ctx, pc)
	e.emitRun(ctx, p.Name(), pc, res, err)
	return res, err
}

// AuthorizeURL returns the provider's authorization endpoint for a new
// sign-in. The state parameter carries the provider name, which the callback
// compares against the provider it arrives for.
func (e *Engine) AuthorizeURL(providerName string) (string, error) {
	s, ok := e.providers.Lookup(providerName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
	return s.AuthCodeURL(s.Name(), e.callbacks.CallbackURI(s.Name())), nil
}

// Providers returns the names of the registered providers.
func (e *Engine) Providers() []string {
	return e.providers.Names()
}

// ParsePrincipal verifies a first-party access token and returns its
// principal. It satisfies middleware.PrincipalParser.
func (e *Engine) ParsePrincipal(token string) (*identity.Principal, error) {
	claims, err := e.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	values := map[string]string{
		identity.ClaimSubject: claims.Subject,
	}
	for typ, v := range map[string]string{
		identity.ClaimUserID:   claims.UID,
		identity.ClaimName:     claims.Name,
		identity.ClaimAvatar:   claims.Avatar,
		identity.ClaimProvider: claims.Provider,
	} {
		if v != "" {
			values[typ] = v
		}
	}
	return &identity.Principal{Subject: claims.Subject, Claims: values}, nil
}

// ValidationParams returns how issued tokens are validated, for services
// that verify them on their own.
func (e *Engine) ValidationParams() jwt.ValidationParams {
	return e.tokens.ValidationParams()
}

// IssueToken signs a token for an existing user as if they had signed in
// with providerName. It serves local tooling and skips the provider.
func (e *Engine) IssueToken(ctx context.Context, username, providerName string) (string, error) {
	s, ok := e.providers.Lookup(providerName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
	user, err := e.users.FindByUsername(ctx, username)
	if errors.Is(err, identity.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	claims, err := e.users.Claims(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("load claims: %w", err)
	}

	types := s.ClaimTypes()
	name, _ := identity.FindClaim(claims, types.Name)
	avatar, _ := identity.FindClaim(claims, types.Avatar)
	return e.tokens.Issue(jwt.Identity{
		Subject:  user.Username,
		UserID:   user.ID,
		Name:     name,
		Avatar:   avatar,
		Provider: s.Name(),
	})
}

// Close flushes buffered audit events. It does not close the collaborators
// handed to the Builder.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}
