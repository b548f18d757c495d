// Package internal contains helpers that are private to goSocialAuth,
// currently the opaque pending sign-in session identifier.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - cli: cobra commands behind cmd/gosocialauth
//   - confirmcode: time-windowed confirmation codes bound to an email
//   - flows: the Authenticate, SignIn and ConfirmSignIn pipelines and their steps
//   - rate: Redis-backed confirmation attempt and per-IP sign-in budgets
//   - stores: Redis store for pending sign-ins awaiting confirmation
//   - telemetry: slog setup with secret redaction
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSocialAuth API.
//   - Be imported by any package outside the goSocialAuth module.
package internal
