// Package provider talks to external OAuth2 providers.
//
// A [Service] is immutable and shared by every request for one provider. Per
// request state (callback URI, access token, profile) lives in a [Client]
// obtained from [NewClient], so concurrent sign-ins never observe each other.
//
// [OAuth2Service] is the stock implementation built on golang.org/x/oauth2
// with a configurable JSON field mapping for the profile endpoint. Defaults
// for facebook, vkontakte, odnoklassniki and linkedin are in [Defaults].
//
// # Errors
//
// Failures that the provider reported (rejected code, error status, missing
// profile fields) are returned as [*Error]. Transport failures and
// cancellation are returned unchanged.
package provider
