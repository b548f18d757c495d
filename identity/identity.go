// Package identity defines the local account model shared by the sign-in
// flows and the storage backends.
//
// # Architecture boundaries
//
// The flows depend only on [Store]. Concrete persistence lives in
// storage/sqlite, storage/postgres and [MemoryStore].
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user or login matches the lookup.
	ErrNotFound = errors.New("identity: not found")
	// ErrAlreadyExists is returned by Create when the username is taken.
	ErrAlreadyExists = errors.New("identity: user already exists")
	// ErrLoginTaken is returned by AddLogin when the external login is linked
	// to a different user.
	ErrLoginTaken = errors.New("identity: external login linked to another user")
)

// Well-known claim types carried by tokens and principals.
const (
	ClaimSubject  = "sub"
	ClaimUserID   = "uid"
	ClaimName     = "name"
	ClaimAvatar   = "avatar"
	ClaimProvider = "provider"
)

// User is a local account. Username is the verified email address.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// Claim is one typed value attached to a user.
type Claim struct {
	Type  string
	Value string
}

// Login links a user to an account at an OAuth2 provider.
type Login struct {
	Provider    string
	ProviderKey string
}

// Profile is what a provider disclosed about the signed-in account.
type Profile struct {
	Provider    string
	ExternalID  string
	Email       string
	Name        string
	Avatar      string
	AccessToken string
}

// Login returns the external login described by the profile.
func (p Profile) Login() Login {
	return Login{Provider: p.Provider, ProviderKey: p.ExternalID}
}

// ClaimTypes are the provider-specific claim type names under which profile
// data is stored for a user.
type ClaimTypes struct {
	Name        string
	Avatar      string
	AccessToken string
}

// ClaimTypesFor returns the claim type names used for provider.
func ClaimTypesFor(provider string) ClaimTypes {
	prefix := "urn:" + provider + ":"
	return ClaimTypes{
		Name:        prefix + "name",
		Avatar:      prefix + "avatar",
		AccessToken: prefix + "access_token",
	}
}

// ProfileClaims returns the claims that mirror p under types.
func ProfileClaims(types ClaimTypes, p Profile) []Claim {
	claims := []Claim{
		{Type: types.Name, Value: p.Name},
		{Type: types.Avatar, Value: p.Avatar},
	}
	if p.AccessToken != "" {
		claims = append(claims, Claim{Type: types.AccessToken, Value: p.AccessToken})
	}
	return claims
}

// FindClaim returns the value of the first claim of type typ.
func FindClaim(claims []Claim, typ string) (string, bool) {
	for _, c := range claims {
		if c.Type == typ {
			return c.Value, true
		}
	}
	return "", false
}

// Principal is the caller identity extracted from a first-party token.
type Principal struct {
	Subject string
	Claims  map[string]string
}

// Claim returns the principal's claim of type typ.
func (p *Principal) Claim(typ string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.Claims[typ]
	return v, ok && v != ""
}

// Store persists users, their claims and their external logins.
type Store interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByLogin(ctx context.Context, login Login) (User, error)
	// Create inserts a user. It returns ErrAlreadyExists when username is taken.
	Create(ctx context.Context, username string) (User, error)
	Claims(ctx context.Context, userID string) ([]Claim, error)
	// ReplaceClaims sets each given claim, replacing existing claims of the same type.
	ReplaceClaims(ctx context.Context, userID string, claims []Claim) error
	// AddLogin links login to userID. Linking an already linked pair is a no-op.
	AddLogin(ctx context.Context, userID string, login Login) error
}
