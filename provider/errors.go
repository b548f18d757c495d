package provider

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownProvider is returned when a provider name is not registered.
	ErrUnknownProvider = errors.New("provider: unknown provider")
	// ErrDuplicateProvider is returned when two services share a name.
	ErrDuplicateProvider = errors.New("provider: duplicate provider")
	// ErrInvalidConfig is returned for incomplete provider configuration.
	ErrInvalidConfig = errors.New("provider: invalid config")
	// ErrNoAccessToken is returned when a profile is requested before a token is known.
	ErrNoAccessToken = errors.New("provider: no access token")
)

// Error is a failure reported by the provider itself.
type Error struct {
	Provider    string
	Op          string
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("provider ")
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	if e.Err != nil && e.Code == "" && e.Description == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Details returns the user-safe detail lines of the failure.
func (e *Error) Details() []string {
	var out []string
	if e.Code != "" {
		out = append(out, e.Code)
	}
	if e.Description != "" {
		out = append(out, e.Description)
	}
	return out
}

// AsError reports whether err is, or wraps, a provider-reported failure.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
