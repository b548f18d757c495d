package flows

import (
	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/pipeline"
)

// Request keys, set by the caller through ContextBuilder.
const (
	KeyPrincipal                pipeline.Key = "principal"
	KeyProviderName             pipeline.Key = "provider_name"
	KeyAuthorizationCode        pipeline.Key = "authorization_code"
	KeyState                    pipeline.Key = "state"
	KeyProviderError            pipeline.Key = "provider_error"
	KeyProviderErrorDescription pipeline.Key = "provider_error_description"
	KeySessionID                pipeline.Key = "session_id"
	KeyConfirmationCode         pipeline.Key = "confirmation_code"
)

// Keys written by steps during a run.
const (
	KeyUsername       pipeline.Key = "username"
	KeyUser           pipeline.Key = "user"            // *identity.User, nil when no local account is linked
	KeyClaims         pipeline.Key = "claims"          // []identity.Claim
	KeyProviderClient pipeline.Key = "provider_client" // *provider.Client
	KeyClaimTypes     pipeline.Key = "claim_types"     // identity.ClaimTypes
	KeyProfile        pipeline.Key = "profile"         // *identity.Profile
	KeyAttemptsLeft   pipeline.Key = "attempts_left"   // int, confirmation attempts after this one
)

// ContextBuilder assembles the Context of one flow run from request data.
type ContextBuilder struct {
	b *pipeline.Builder
}

func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{b: pipeline.NewBuilder()}
}

// WithPrincipal sets the caller identity. A nil principal is stored as an
// explicit nil so the Authenticate flow answers NotAuthenticated.
func (c *ContextBuilder) WithPrincipal(p *identity.Principal) *ContextBuilder {
	c.b.With(KeyPrincipal, p)
	return c
}

func (c *ContextBuilder) WithProviderName(name string) *ContextBuilder {
	c.b.With(KeyProviderName, name)
	return c
}

func (c *ContextBuilder) WithAuthorizationCode(code string) *ContextBuilder {
	c.b.With(KeyAuthorizationCode, code)
	return c
}

func (c *ContextBuilder) WithState(state string) *ContextBuilder {
	c.b.With(KeyState, state)
	return c
}

// WithProviderError records the error parameters of a failed provider
// redirect. Empty values are not stored.
func (c *ContextBuilder) WithProviderError(code, description string) *ContextBuilder {
	if code != "" {
		c.b.With(KeyProviderError, code)
	}
	if description != "" {
		c.b.With(KeyProviderErrorDescription, description)
	}
	return c
}

func (c *ContextBuilder) WithSessionID(id string) *ContextBuilder {
	c.b.With(KeySessionID, id)
	return c
}

func (c *ContextBuilder) WithConfirmationCode(code string) *ContextBuilder {
	c.b.With(KeyConfirmationCode, code)
	return c
}

// Build returns the assembled Context.
func (c *ContextBuilder) Build() *pipeline.Context {
	return c.b.Build()
}
