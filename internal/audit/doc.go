// Package audit records the outcome of every sign-in flow run.
//
// # Components
//
//   - [Sink]: event consumers (channel, JSON lines writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: one record per flow run with type, outcome, provider and subject.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the engine does that.
//   - Import goSocialAuth or any sibling internal package.
//   - Record provider access tokens or confirmation codes.
package audit
