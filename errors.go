package goSocialAuth

import "errors"

var (
	// ErrBuilderUsed is returned by Build on a Builder that already built an Engine.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrRedisRequired is returned by Build without a Redis client.
	ErrRedisRequired = errors.New("redis client required")
	// ErrIdentityStoreRequired is returned by Build without an identity store.
	ErrIdentityStoreRequired = errors.New("identity store required")
	// ErrMailerRequired is returned by Build without a mail sender.
	ErrMailerRequired = errors.New("mail sender required")
	// ErrNoProviders is returned by Build when no provider has credentials.
	ErrNoProviders = errors.New("no sign-in providers configured")
	// ErrUnknownProvider is returned for a provider name that is not registered.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrUserNotFound is returned by IssueToken for an unknown username.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidToken is returned by ParsePrincipal for a token that fails validation.
	ErrInvalidToken = errors.New("invalid access token")
)
