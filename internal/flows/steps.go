package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/jwt"
	"github.com/MrEthical07/goSocialAuth/pipeline"
	"github.com/MrEthical07/goSocialAuth/provider"
)

// Step names shared by more than one flow.
const (
	StepValidateProviderName = "validate-provider-name"
	StepResolveProvider      = "resolve-provider"
	StepFetchProfile         = "fetch-profile"
	StepRefreshProfileClaims = "refresh-profile-claims"
	StepLoadClaims           = "load-claims"
	StepIssueToken           = "issue-token"
)

var (
	hasClient     = pipeline.TypeOf[*provider.Client](KeyProviderClient)
	hasClaimTypes = pipeline.TypeOf[identity.ClaimTypes](KeyClaimTypes)
	hasProfile    = pipeline.TypeOf[*identity.Profile](KeyProfile)
	hasUser       = pipeline.TypeOf[*identity.User](KeyUser)
	hasClaims     = pipeline.TypeOf[[]identity.Claim](KeyClaims)
)

// Accessors for values whose presence the step's validators guarantee.

func clientOf(pc *pipeline.Context) *provider.Client {
	c, _ := pipeline.Value[*provider.Client](pc, KeyProviderClient)
	return c
}

func profileOf(pc *pipeline.Context) *identity.Profile {
	p, _ := pipeline.Value[*identity.Profile](pc, KeyProfile)
	return p
}

func userOf(pc *pipeline.Context) *identity.User {
	u, _ := pipeline.Value[*identity.User](pc, KeyUser)
	return u
}

// requireRequest rejects a run whose request values fail validators. Unlike
// a step gate, the failure is the caller's and is answered with an Error.
func requireRequest(name, message string, validators ...pipeline.Validator) *pipeline.Step {
	return pipeline.Validation(name, func(pc *pipeline.Context) pipeline.Result {
		var problems []string
		if !pipeline.Check(pc, &problems, validators...) {
			return pipeline.NewError(message, problems...)
		}
		return nil
	})
}

func validateProviderName(providers Providers) *pipeline.Step {
	return pipeline.Validation(StepValidateProviderName, func(pc *pipeline.Context) pipeline.Result {
		name := pipeline.StringValue(pc, KeyProviderName)
		if _, ok := providers.Lookup(name); !ok {
			return pipeline.NewError(fmt.Sprintf(MsgUnknownProvider, name))
		}
		return nil
	}, pipeline.String(KeyProviderName))
}

// resolveProvider writes a fresh per-run client and the provider's claim
// type names into the context.
func resolveProvider(providers Providers) *pipeline.Step {
	return pipeline.Effect(StepResolveProvider, func(_ context.Context, pc *pipeline.Context) error {
		name := pipeline.StringValue(pc, KeyProviderName)
		svc, ok := providers.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %s", provider.ErrUnknownProvider, name)
		}
		pc.Set(KeyProviderClient, provider.NewClient(svc))
		pc.Set(KeyClaimTypes, svc.ClaimTypes())
		return nil
	}, pipeline.String(KeyProviderName))
}

func fetchProfile(translate pipeline.Translator) *pipeline.Step {
	return pipeline.External(StepFetchProfile, func(ctx context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		p, err := clientOf(pc).FetchProfile(ctx)
		if err != nil {
			return nil, err
		}
		pc.Set(KeyProfile, &p)
		return nil, nil
	}, translate, hasClient)
}

func refreshProfileClaims(users identity.Store) *pipeline.Step {
	return pipeline.Effect(StepRefreshProfileClaims, func(ctx context.Context, pc *pipeline.Context) error {
		types, _ := pipeline.Value[identity.ClaimTypes](pc, KeyClaimTypes)
		claims := identity.ProfileClaims(types, *profileOf(pc))
		if err := users.ReplaceClaims(ctx, userOf(pc).ID, claims); err != nil {
			return fmt.Errorf("replace claims: %w", err)
		}
		return nil
	}, hasUser, hasProfile, hasClaimTypes)
}

func loadClaims(users identity.Store) *pipeline.Step {
	return pipeline.NewStep(StepLoadClaims, func(ctx context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		claims, err := users.Claims(ctx, userOf(pc).ID)
		if err != nil {
			return nil, fmt.Errorf("load claims: %w", err)
		}
		if len(claims) == 0 {
			return pipeline.NewError(MsgNoClaims), nil
		}
		pc.Set(KeyClaims, claims)
		return nil, nil
	}, hasUser)
}

func issueToken(tokens TokenIssuer) *pipeline.Step {
	return pipeline.Terminal(StepIssueToken, func(_ context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		user := userOf(pc)
		claims, _ := pipeline.Value[[]identity.Claim](pc, KeyClaims)
		types, _ := pipeline.Value[identity.ClaimTypes](pc, KeyClaimTypes)
		name, _ := identity.FindClaim(claims, types.Name)
		avatar, _ := identity.FindClaim(claims, types.Avatar)

		token, err := tokens.Issue(jwt.Identity{
			Subject:  user.Username,
			UserID:   user.ID,
			Name:     name,
			Avatar:   avatar,
			Provider: clientOf(pc).Provider(),
		})
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		return pipeline.SignInSuccess{AccessToken: token}, nil
	}, hasUser, hasClaims, hasClaimTypes, hasClient)
}

// externalLoginError turns provider-reported failures into ExternalLoginError.
func externalLoginError(err error) (pipeline.Result, bool) {
	pe, ok := provider.AsError(err)
	if !ok {
		return nil, false
	}
	return pipeline.NewExternalLoginError(fmt.Sprintf(MsgProviderSignInFailed, pe.Provider), pe.Details()...), true
}

// notAuthenticated treats any provider refusal of a stored token as a lost
// session.
func notAuthenticated(err error) (pipeline.Result, bool) {
	if _, ok := provider.AsError(err); ok || errors.Is(err, provider.ErrNoAccessToken) {
		return pipeline.NotAuthenticated{}, true
	}
	return nil, false
}
