package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/internal/rate"
	"github.com/MrEthical07/goSocialAuth/internal/stores"
	"github.com/MrEthical07/goSocialAuth/pipeline"
)

// NewConfirmSignIn builds the flow that turns a parked profile into a linked
// local user once the mailed code is confirmed. Replaying a confirmation
// reuses the local user created by the first one.
func NewConfirmSignIn(deps ConfirmDeps, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	switch {
	case deps.Users == nil:
		return nil, missing(FlowConfirmSignIn, "Users")
	case deps.Providers == nil:
		return nil, missing(FlowConfirmSignIn, "Providers")
	case deps.Pending == nil:
		return nil, missing(FlowConfirmSignIn, "Pending")
	case deps.Codes == nil:
		return nil, missing(FlowConfirmSignIn, "Codes")
	case deps.Limiter == nil:
		return nil, missing(FlowConfirmSignIn, "Limiter")
	case deps.Tokens == nil:
		return nil, missing(FlowConfirmSignIn, "Tokens")
	}

	p := pipeline.New(FlowConfirmSignIn, opts...)
	p.AddStep(requireRequest("require-confirmation-params", MsgInvalidConfirmRequest,
		pipeline.String(KeySessionID), pipeline.String(KeyConfirmationCode))).
		AddStep(loadPendingSignIn(deps.Pending)).
		AddStep(validateProviderName(deps.Providers)).
		AddStep(resolveProvider(deps.Providers)).
		AddStep(reserveConfirmationAttempt(deps.Limiter)).
		AddStep(verifyConfirmationCode(deps.Codes)).
		AddStep(ensureLocalUser(deps.Users)).
		AddStep(linkExternalLogin(deps.Users)).
		AddStep(refreshProfileClaims(deps.Users)).
		AddStep(clearPendingSignIn(deps.Pending, deps.Limiter)).
		AddStep(loadClaims(deps.Users)).
		AddStep(issueToken(deps.Tokens))
	return p, nil
}

func loadPendingSignIn(pending PendingStore) *pipeline.Step {
	return pipeline.NewStep("load-pending-sign-in", func(ctx context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		rec, err := pending.Get(ctx, pipeline.StringValue(pc, KeySessionID))
		if errors.Is(err, stores.ErrPendingSignInNotFound) || errors.Is(err, stores.ErrPendingSignInExpired) {
			return pipeline.NewError(MsgSignInSessionExpired), nil
		}
		if err != nil {
			return nil, fmt.Errorf("load pending sign-in: %w", err)
		}
		profile := rec.Profile
		pc.Set(KeyProfile, &profile)
		pc.Set(KeyProviderName, profile.Provider)
		return nil, nil
	}, pipeline.String(KeySessionID))
}

// attemptSubject names the budget a confirmation draws from: the external
// login, so opening new sign-in sessions never buys more guesses at its code.
func attemptSubject(p *identity.Profile) string {
	return p.Provider + ":" + p.ExternalID
}

// reserveConfirmationAttempt spends one attempt before the code is checked.
func reserveConfirmationAttempt(limiter AttemptLimiter) *pipeline.Step {
	return pipeline.External("reserve-confirmation-attempt", func(ctx context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		left, err := limiter.ReserveConfirm(ctx, attemptSubject(profileOf(pc)))
		if err != nil {
			return nil, err
		}
		pc.Set(KeyAttemptsLeft, left)
		return nil, nil
	}, func(err error) (pipeline.Result, bool) {
		if errors.Is(err, rate.ErrRateLimited) {
			return pipeline.NewError(MsgTooManyAttempts), true
		}
		return nil, false
	}, hasProfile)
}

// verifyConfirmationCode compares the supplied code with the one derived
// from the parked profile. The attempt was already reserved.
func verifyConfirmationCode(codes ConfirmationCodes) *pipeline.Step {
	return pipeline.NewStep("verify-confirmation-code", func(_ context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		profile := profileOf(pc)
		ok, err := codes.Verify(profile.Provider, profile.ExternalID, pipeline.StringValue(pc, KeyConfirmationCode))
		if err != nil {
			return nil, fmt.Errorf("verify confirmation code: %w", err)
		}
		if ok {
			return nil, nil
		}
		if left, _ := pipeline.Value[int](pc, KeyAttemptsLeft); left <= 0 {
			return pipeline.NewError(MsgInvalidConfirmCode, MsgNoAttemptsLeft), nil
		}
		return pipeline.NewError(MsgInvalidConfirmCode), nil
	}, hasProfile, pipeline.String(KeyConfirmationCode), pipeline.TypeOf[int](KeyAttemptsLeft))
}

// ensureLocalUser finds or creates the local user named after the confirmed
// email. A concurrent create of the same username is resolved by re-reading.
func ensureLocalUser(users identity.Store) *pipeline.Step {
	return pipeline.Effect("ensure-local-user", func(ctx context.Context, pc *pipeline.Context) error {
		username := profileOf(pc).Email
		u, err := users.FindByUsername(ctx, username)
		if errors.Is(err, identity.ErrNotFound) {
			u, err = users.Create(ctx, username)
			if errors.Is(err, identity.ErrAlreadyExists) {
				u, err = users.FindByUsername(ctx, username)
			}
		}
		if err != nil {
			return fmt.Errorf("ensure local user: %w", err)
		}
		pc.Set(KeyUser, &u)
		return nil
	}, hasProfile)
}

func linkExternalLogin(users identity.Store) *pipeline.Step {
	return pipeline.NewStep("link-external-login", func(ctx context.Context, pc *pipeline.Context) (pipeline.Result, error) {
		err := users.AddLogin(ctx, userOf(pc).ID, profileOf(pc).Login())
		if errors.Is(err, identity.ErrLoginTaken) {
			return pipeline.NewError(MsgLoginLinkedToOtherUser), nil
		}
		if err != nil {
			return nil, fmt.Errorf("link external login: %w", err)
		}
		return nil, nil
	}, hasUser, hasProfile)
}

func clearPendingSignIn(pending PendingStore, limiter AttemptLimiter) *pipeline.Step {
	return pipeline.Effect("clear-pending-sign-in", func(ctx context.Context, pc *pipeline.Context) error {
		if _, err := pending.Delete(ctx, pipeline.StringValue(pc, KeySessionID)); err != nil {
			return fmt.Errorf("clear pending sign-in: %w", err)
		}
		if err := limiter.ResetConfirm(ctx, attemptSubject(profileOf(pc))); err != nil {
			return fmt.Errorf("reset confirmation attempts: %w", err)
		}
		return nil
	}, pipeline.String(KeySessionID), hasProfile)
}
