// Package flows assembles the three social sign-in workflows out of
// [pipeline] steps.
//
// # Architecture boundaries
//
// Each flow is a statically ordered [pipeline.Pipeline] built once by
// NewAuthenticate, NewSignIn or NewConfirmSignIn with its collaborators bound
// through an explicit XxxDeps struct. Steps keep no per-request state: every
// intermediate value (resolved provider client, fetched profile, local user)
// lives in the run's [pipeline.Context] under a key declared in keys.go.
//
// # What this package must NOT do
//
//   - Import goSocialAuth.
//   - Hold mutable state between runs.
//   - Perform I/O other than through the injected collaborators.
//   - Return collaborator errors as Results unless the failure is recognized
//     (provider errors, attempt limits).
package flows
