package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/pipeline"
)

// Flow names, used as pipeline names in logs, traces and metrics.
const (
	FlowAuthenticate  = "authenticate"
	FlowSignIn        = "signin"
	FlowConfirmSignIn = "confirm_signin"
)

// ErrMissingDependency is returned when a flow is built without a required collaborator.
var ErrMissingDependency = errors.New("flows: missing dependency")

func missing(flow, dep string) error {
	return fmt.Errorf("%w: %s needs %s", ErrMissingDependency, flow, dep)
}

// NewAuthenticate builds the bearer-token liveness check: the principal's
// stored provider token is used to re-fetch the profile, whose name and
// avatar are written back before the user is reported as authenticated.
func NewAuthenticate(deps AuthenticateDeps, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	switch {
	case deps.Users == nil:
		return nil, missing(FlowAuthenticate, "Users")
	case deps.Providers == nil:
		return nil, missing(FlowAuthenticate, "Providers")
	}

	p := pipeline.New(FlowAuthenticate, opts...)
	p.AddStep(requirePrincipal()).
		AddStep(readPrincipal()).
		AddStep(validateProviderName(deps.Providers)).
		AddStep(findUser(deps.Users)).
		AddStep(loadClaims(deps.Users)).
		AddStep(resolveProvider(deps.Providers)).
		AddStep(useStoredAccessToken()).
		AddStep(fetchProfile(notAuthenticated)).
		AddStep(refreshProfileClaims(deps.Users)).
		AddStep(authenticated())
	return p, nil
}

func requirePrincipal() *pipeline.Step {
	return pipeline.Validation("require-principal", func(pc *pipeline.Context) pipeline.Result {
		if p, ok := pipeline.Value[*identity.Principal](pc, KeyPrincipal); !ok || p == nil {
			return pipeline.NotAuthenticated{}
		}
		return nil
	})
}

func readPrincipal() *pipeline.Step {
	return pipeline.NewStep("read-principal", func(_ context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		p, _ := pipeline.Value[*identity.Principal](pc, KeyPrincipal)
		providerName, ok := p.Claim(identity.ClaimProvider)
		if !ok {
			return pipeline.NewError(MsgPrincipalNoProvider), nil
		}
		if strings.TrimSpace(p.Subject) == "" {
			return pipeline.NewError(MsgPrincipalNoSubject), nil
		}
		pc.Set(KeyUsername, p.Subject)
		pc.Set(KeyProviderName, providerName)
		return nil, nil
	}, pipeline.TypeOf[*identity.Principal](KeyPrincipal))
}

func findUser(users identity.Store) *pipeline.Step {
	return pipeline.NewStep("find-user", func(ctx context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		u, err := users.FindByUsername(ctx, pipeline.StringValue(pc, KeyUsername))
		if errors.Is(err, identity.ErrNotFound) {
			return pipeline.NotAuthenticated{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
		pc.Set(KeyUser, &u)
		return nil, nil
	}, pipeline.String(KeyUsername))
}

func useStoredAccessToken() *pipeline.Step {
	return pipeline.NewStep("use-stored-access-token", func(_ context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		claims, _ := pipeline.Value[[]identity.Claim](pc, KeyClaims)
		types, _ := pipeline.Value[identity.ClaimTypes](pc, KeyClaimTypes)
		token, ok := identity.FindClaim(claims, types.AccessToken)
		if !ok || token == "" {
			return pipeline.NotAuthenticated{}, nil
		}
		clientOf(pc).SetAccessToken(token)
		return nil, nil
	}, hasClaims, hasClaimTypes, hasClient)
}

func authenticated() *pipeline.Step {
	return pipeline.Terminal("authenticated", func(_ context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		user, profile := userOf(pc), profileOf(pc)
		return pipeline.Authenticated{User: pipeline.UserInfo{
			ID:       user.ID,
			Name:     profile.Name,
			Avatar:   profile.Avatar,
			Provider: clientOf(pc).Provider(),
		}}, nil
	}, hasUser, hasProfile, hasClient)
}
