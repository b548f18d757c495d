package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/mail"
	"github.com/MrEthical07/goSocialAuth/pipeline"
)

// DefaultPendingTTL is how long an unconfirmed sign-in waits for its code.
const DefaultPendingTTL = 15 * time.Minute

// NewSignIn builds the OAuth2 callback flow. A profile already linked to a
// local user ends in SignInSuccess; any other profile is parked and the
// flow halts with ConfirmSignIn until the mailed code is confirmed.
func NewSignIn(deps SignInDeps, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	switch {
	case deps.Users == nil:
		return nil, missing(FlowSignIn, "Users")
	case deps.Providers == nil:
		return nil, missing(FlowSignIn, "Providers")
	case deps.Callbacks == nil:
		return nil, missing(FlowSignIn, "Callbacks")
	case deps.Pending == nil:
		return nil, missing(FlowSignIn, "Pending")
	case deps.Codes == nil:
		return nil, missing(FlowSignIn, "Codes")
	case deps.Mailer == nil:
		return nil, missing(FlowSignIn, "Mailer")
	case deps.Tokens == nil:
		return nil, missing(FlowSignIn, "Tokens")
	case deps.NewSessionID == nil:
		return nil, missing(FlowSignIn, "NewSessionID")
	}
	if deps.PendingTTL <= 0 {
		deps.PendingTTL = DefaultPendingTTL
	}

	p := pipeline.New(FlowSignIn, opts...)
	p.AddStep(providerError()).
		AddStep(requireRequest("require-sign-in-params", MsgInvalidSignInRequest,
			pipeline.String(KeyAuthorizationCode), pipeline.String(KeyProviderName))).
		AddStep(validateProviderName(deps.Providers)).
		AddStep(resolveProvider(deps.Providers)).
		AddStep(verifyState()).
		AddStep(configureCallback(deps.Callbacks)).
		AddStep(exchangeCode()).
		AddStep(fetchProfile(externalLoginError)).
		AddStep(requireEmail()).
		AddStep(findExternalLogin(deps.Users)).
		AddStep(beginConfirmation(deps)).
		AddStep(refreshProfileClaims(deps.Users)).
		AddStep(loadClaims(deps.Users)).
		AddStep(issueToken(deps.Tokens))
	return p, nil
}

// providerError answers a redirect that carries the provider's error
// parameter instead of a code.
func providerError() *pipeline.Step {
	return pipeline.Validation("provider-error", func(pc *pipeline.Context) pipeline.Result {
		code := pipeline.StringValue(pc, KeyProviderError)
		if code == "" {
			return nil
		}
		details := []string{code}
		if desc := pipeline.StringValue(pc, KeyProviderErrorDescription); desc != "" {
			details = append(details, desc)
		}
		name := pipeline.StringValue(pc, KeyProviderName)
		if name == "" {
			name = "provider"
		}
		return pipeline.NewExternalLoginError(fmt.Sprintf(MsgProviderSignInDenied, name), details...)
	})
}

// verifyState compares the echoed state with the resolved provider name. It
// must run after resolve-provider.
func verifyState() *pipeline.Step {
	return pipeline.Validation("verify-state", func(pc *pipeline.Context) pipeline.Result {
		name := clientOf(pc).Provider()
		if !strings.EqualFold(pipeline.StringValue(pc, KeyState), name) {
			return pipeline.NewError(fmt.Sprintf(MsgStateMismatch, name))
		}
		return nil
	}, hasClient)
}

func configureCallback(callbacks CallbackURIs) *pipeline.Step {
	return pipeline.Effect("configure-callback", func(_ context.Context, pc *pipeline.Context) error {
		client := clientOf(pc)
		client.SetRedirectURI(callbacks.CallbackURI(client.Provider()))
		return nil
	}, hasClient)
}

func exchangeCode() *pipeline.Step {
	return pipeline.External("exchange-code", func(ctx context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		return nil, clientOf(pc).Exchange(ctx, pipeline.StringValue(pc, KeyAuthorizationCode))
	}, externalLoginError, hasClient, pipeline.String(KeyAuthorizationCode))
}

func requireEmail() *pipeline.Step {
	return pipeline.Validation("require-email", func(pc *pipeline.Context) pipeline.Result {
		if strings.TrimSpace(profileOf(pc).Email) == "" {
			return pipeline.EmailRequired{Message: fmt.Sprintf(MsgEmailRequired, clientOf(pc).Provider())}
		}
		return nil
	}, hasProfile, hasClient)
}

// findExternalLogin stores the linked local user, or nil when the external
// account is not linked yet.
func findExternalLogin(users identity.Store) *pipeline.Step {
	return pipeline.NewStep("find-external-login", func(ctx context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		u, err := users.FindByLogin(ctx, profileOf(pc).Login())
		switch {
		case errors.Is(err, identity.ErrNotFound):
			pc.Set(KeyUser, nil)
		case err != nil:
			return nil, fmt.Errorf("find external login: %w", err)
		default:
			pc.Set(KeyUser, &u)
		}
		return nil, nil
	}, hasProfile)
}

// beginConfirmation parks an unlinked profile under a new session id and
// mails the confirmation code. Linked profiles pass through.
func beginConfirmation(deps SignInDeps) *pipeline.Step {
	return pipeline.External("begin-confirmation", func(ctx context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		if u := userOf(pc); u != nil {
			return nil, nil
		}
		profile := profileOf(pc)

		sessionID, err := deps.NewSessionID()
		if err != nil {
			return nil, fmt.Errorf("new session id: %w", err)
		}
		if err := deps.Pending.Save(ctx, sessionID, *profile, deps.PendingTTL); err != nil {
			return nil, fmt.Errorf("save pending sign-in: %w", err)
		}
		code, err := deps.Codes.Generate(profile.Provider, profile.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("generate confirmation code: %w", err)
		}
		err = deps.Mailer.SendConfirmation(ctx, mail.Confirmation{
			To:        profile.Email,
			Name:      profile.Name,
			Provider:  profile.Provider,
			Code:      code,
			ExpiresIn: deps.PendingTTL,
		})
		if err != nil {
			_, _ = deps.Pending.Delete(context.WithoutCancel(ctx), sessionID)
			return nil, fmt.Errorf("send confirmation: %w", err)
		}

		return pipeline.ConfirmSignIn{
			SessionID: sessionID,
			Email:     profile.Email,
			Provider:  profile.Provider,
		}, nil
	}, func(err error) (pipeline.Result, bool) {
		if errors.Is(err, mail.ErrInvalidRecipient) {
			return pipeline.NewError(MsgInvalidEmail), true
		}
		return nil, false
	}, pipeline.NullableTypeOf[*identity.User](KeyUser), hasProfile)
}
