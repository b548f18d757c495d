// Package goSocialAuth signs users in with OAuth2 social providers and issues
// first-party JWT access tokens.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Flows
//
// Three flows are exposed, each a chain of pipeline steps assembled once by
// the Builder:
//
//   - [Engine.Authenticate] checks a bearer-token principal against its
//     provider and refreshes the stored profile.
//   - [Engine.SignIn] handles the provider callback. A profile already linked
//     to a local user yields an access token; an unlinked profile is parked in
//     Redis and a confirmation code is mailed.
//   - [Engine.ConfirmSignIn] redeems that code, creates or reuses the local
//     user, links the external login and yields an access token.
//
// Every flow returns a [pipeline.Result]. Business outcomes (including
// failures the caller should show to the user) are Results; the error return
// is reserved for cancellation and mis-assembly.
//
// # Architecture boundaries
//
// goSocialAuth is the public surface. It exposes [Engine], [Builder],
// [Config] and the audit sink types. Flow composition, the pending sign-in
// store, attempt limiting and confirmation codes live under internal/ and are
// never exported.
//
// # What this package must NOT do
//
//   - Own the Redis client, identity store or mail sender. Callers create and
//     close them.
//   - Perform I/O outside of Engine methods.
//   - Import httpapi or any package that re-imports goSocialAuth.
package goSocialAuth
