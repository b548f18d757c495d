// Package middleware holds the HTTP middleware of the sign-in service.
//
//   - [Principal] turns a first-party bearer token into an
//     [identity.Principal] on the request context, or leaves it empty.
//   - [Guard] rejects requests without a valid bearer token.
//   - [Throttle] applies a per-client-IP token bucket.
//
// # What this package must NOT do
//
//   - Sign or verify tokens itself; parsing is delegated to a [PrincipalParser].
//   - Run sign-in flows or decide authentication outcomes.
package middleware
