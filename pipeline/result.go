package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Result type discriminators as they appear on the wire.
const (
	TypeAuthCheck          = "auth_check"
	TypeEmailRequired      = "email_required"
	TypeConfirmSignIn      = "confirm_sign_in"
	TypeExternalLoginError = "external_login_error"
	TypeError              = "error"
	TypeSuccess            = "success"
)

// InternalErrorMessage is the only text a caller sees for unexpected failures.
const InternalErrorMessage = "something went wrong, try again later"

// Result is the terminal outcome of a run. Exactly one Result ends a
// successful run.
type Result interface {
	ResultType() string
}

// UserInfo is the user payload of an Authenticated result.
type UserInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Provider string `json:"provider"`
}

// NotAuthenticated reports that the request carries no usable identity.
type NotAuthenticated struct{}

func (NotAuthenticated) ResultType() string { return TypeAuthCheck }

func (NotAuthenticated) MarshalJSON() ([]byte, error) {
	return json.Marshal(authCheckWire{Type: TypeAuthCheck, IsAuthenticated: false})
}

// Authenticated reports a live identity together with its refreshed profile.
type Authenticated struct {
	User UserInfo
}

func (Authenticated) ResultType() string { return TypeAuthCheck }

func (r Authenticated) MarshalJSON() ([]byte, error) {
	user := r.User
	return json.Marshal(authCheckWire{Type: TypeAuthCheck, IsAuthenticated: true, User: &user})
}

type authCheckWire struct {
	Type            string    `json:"type"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	User            *UserInfo `json:"user,omitempty"`
}

// EmailRequired reports that the provider did not disclose an email address.
type EmailRequired struct {
	Message string
}

func (EmailRequired) ResultType() string { return TypeEmailRequired }

func (r EmailRequired) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{TypeEmailRequired, r.Message})
}

// ConfirmSignIn halts a sign-in until the user confirms the mailed code.
type ConfirmSignIn struct {
	SessionID string
	Email     string
	Provider  string
}

func (ConfirmSignIn) ResultType() string { return TypeConfirmSignIn }

func (r ConfirmSignIn) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
		Email     string `json:"email"`
		Provider  string `json:"provider"`
	}{TypeConfirmSignIn, r.SessionID, r.Email, r.Provider})
}

// Error is a business failure with optional detail lines.
type Error struct {
	Message string
	Errors  []string
}

// NewError builds an Error result.
func NewError(message string, details ...string) Error {
	return Error{Message: message, Errors: details}
}

// InternalError is the result the pipeline boundary returns for unexpected failures.
func InternalError() Error {
	return Error{Message: InternalErrorMessage}
}

func (Error) ResultType() string { return TypeError }

func (r Error) MarshalJSON() ([]byte, error) {
	return marshalError(TypeError, r)
}

// ExternalLoginError is an Error raised by the OAuth2 provider side.
type ExternalLoginError struct {
	Error
}

// NewExternalLoginError builds an ExternalLoginError result.
func NewExternalLoginError(message string, details ...string) ExternalLoginError {
	return ExternalLoginError{Error: NewError(message, details...)}
}

func (ExternalLoginError) ResultType() string { return TypeExternalLoginError }

func (r ExternalLoginError) MarshalJSON() ([]byte, error) {
	return marshalError(TypeExternalLoginError, r.Error)
}

func marshalError(typ string, r Error) ([]byte, error) {
	details := r.Errors
	if details == nil {
		details = []string{}
	}
	return json.Marshal(struct {
		Type    string   `json:"type"`
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}{typ, r.Message, details})
}

// SignInSuccess carries the first-party access token.
type SignInSuccess struct {
	AccessToken string
}

func (SignInSuccess) ResultType() string { return TypeSuccess }

func (r SignInSuccess) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		AccessToken string `json:"accessToken"`
	}{TypeSuccess, r.AccessToken})
}

// DecodeResult parses a serialized Result back into its concrete type.
func DecodeResult(data []byte) (Result, error) {
	var wire struct {
		Type            string    `json:"type"`
		Message         string    `json:"message"`
		Errors          []string  `json:"errors"`
		AccessToken     string    `json:"accessToken"`
		SessionID       string    `json:"sessionId"`
		Email           string    `json:"email"`
		Provider        string    `json:"provider"`
		IsAuthenticated bool      `json:"isAuthenticated"`
		User            *UserInfo `json:"user"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	switch wire.Type {
	case TypeAuthCheck:
		if !wire.IsAuthenticated {
			return NotAuthenticated{}, nil
		}
		if wire.User == nil {
			return nil, errors.New("decode result: authenticated result without user")
		}
		return Authenticated{User: *wire.User}, nil
	case TypeEmailRequired:
		return EmailRequired{Message: wire.Message}, nil
	case TypeConfirmSignIn:
		return ConfirmSignIn{SessionID: wire.SessionID, Email: wire.Email, Provider: wire.Provider}, nil
	case TypeError:
		return Error{Message: wire.Message, Errors: wire.Errors}, nil
	case TypeExternalLoginError:
		return ExternalLoginError{Error: Error{Message: wire.Message, Errors: wire.Errors}}, nil
	case TypeSuccess:
		return SignInSuccess{AccessToken: wire.AccessToken}, nil
	default:
		return nil, fmt.Errorf("decode result: unknown type %q", wire.Type)
	}
}
