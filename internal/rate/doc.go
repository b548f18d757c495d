// Package rate provides Redis-backed fixed-window attempt counters.
//
// # Window semantics
//
// Fixed-window counters: one Lua script does INCR and sets the expiry on the
// first hit of a window. Key prefixes:
//   - rc:  confirmation code attempts per external login (provider:id)
//   - rsi: sign-in callbacks per client IP
//
// # What this package must NOT do
//
//   - Judge confirmation codes; every confirmation reserves an attempt first.
//   - Be imported outside the goSocialAuth module.
package rate
