package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goSocialAuth/identity"
)

// PrincipalParser verifies a first-party access token.
type PrincipalParser interface {
	ParsePrincipal(token string) (*identity.Principal, error)
}

type principalContextKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored by Principal or Guard.
func PrincipalFromContext(ctx context.Context) (*identity.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*identity.Principal)
	return p, ok && p != nil
}

// Principal parses the bearer token when one is sent. Requests without a
// valid token continue without a principal.
func Principal(parser PrincipalParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := parse(parser, r); ok {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guard rejects requests without a valid bearer token with 401.
func Guard(parser PrincipalParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := parse(parser, r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="gosocialauth"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func parse(parser PrincipalParser, r *http.Request) (*identity.Principal, bool) {
	if parser == nil {
		return nil, false
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, false
	}
	p, err := parser.ParsePrincipal(token)
	if err != nil || p == nil {
		return nil, false
	}
	return p, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
