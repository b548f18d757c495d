// Package pipeline implements the chain-of-responsibility engine that every
// sign-in workflow runs on.
//
// A [Pipeline] owns an ordered list of [Handler] steps. A run walks the steps
// top to bottom over one private [Context]; the first step that returns a
// non-nil [Result] ends the run and that Result becomes the run's output.
//
// # Gating
//
// Each [Step] declares [Validator] preconditions against context keys. A step
// whose preconditions fail is never executed: [Step.Handle] returns a
// [*PreconditionError] listing every failing validator, one message per line,
// in registration order. That error signals a mis-assembled chain, not a user
// mistake.
//
// # Error boundary
//
// [Pipeline.Run] is the single place that converts unexpected failures
// (step errors, recovered panics) into the generic [InternalError] result.
// Business outcomes travel as ordinary Results. Cancellation of the caller's
// context is returned as an error and is never folded into the generic
// result.
//
// # What this package must NOT do
//
//   - Know about providers, identities or tokens; keys and steps are supplied
//     by the flow packages.
//   - Retry a step or a run.
//   - Share a Context between runs.
package pipeline
