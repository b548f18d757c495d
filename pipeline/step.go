package pipeline

import (
	"context"
	"fmt"
)

// Handler is one link of a chain. Implementations hold no per-run state and
// are shared by concurrent runs.
type Handler interface {
	Name() string
	// CanHandle runs every precondition against pc and reports whether all passed.
	CanHandle(pc *Context) bool
	// Handle gates on the preconditions and then runs the step's logic. A
	// non-nil Result ends the chain.
	Handle(ctx context.Context, pc *Context) (Result, error)
}

// Logic is the domain work of a Step. It runs only after every validator passed.
type Logic func(ctx context.Context, pc *Context) (Result, error)

// Translator converts a recognized collaborator failure into a business
// Result. It reports false for errors it does not recognize.
type Translator func(err error) (Result, bool)

// Step is the standard Handler: a name, ordered validators and logic.
type Step struct {
	name       string
	validators []Validator
	logic      Logic
}

var _ Handler = (*Step)(nil)

// NewStep builds a Step. Validators run in the order given.
func NewStep(name string, logic Logic, validators ...Validator) *Step {
	if logic == nil {
		panic(fmt.Sprintf("pipeline: step %q has no logic", name))
	}
	return &Step{
		name:       name,
		validators: append([]Validator(nil), validators...),
		logic:      logic,
	}
}

// Name returns the step name used in logs, traces and metrics.
func (s *Step) Name() string {
	return s.name
}

// CanHandle implements Handler.
func (s *Step) CanHandle(pc *Context) bool {
	_, ok := s.gate(pc)
	return ok
}

// Handle implements Handler.
func (s *Step) Handle(ctx context.Context, pc *Context) (Result, error) {
	if pc == nil {
		return nil, ErrNilContext
	}
	if messages, ok := s.gate(pc); !ok {
		return nil, &PreconditionError{Step: s.name, Messages: messages}
	}
	return s.logic(ctx, pc)
}

func (s *Step) gate(pc *Context) ([]string, bool) {
	if pc == nil {
		return []string{ErrNilContext.Error()}, false
	}
	messages := make([]string, 0, len(s.validators))
	ok := Check(pc, &messages, s.validators...)
	return messages, ok
}

// Validation builds a step that inspects the context and may reject it with a
// Result. check must not write to the context.
func Validation(name string, check func(pc *Context) Result, validators ...Validator) *Step {
	return NewStep(name, func(_ context.Context, pc *Context) (Result, error) {
		return check(pc), nil
	}, validators...)
}

// Effect builds a step that derives values into the context and never ends
// the chain.
func Effect(name string, apply func(ctx context.Context, pc *Context) error, validators ...Validator) *Step {
	return NewStep(name, func(ctx context.Context, pc *Context) (Result, error) {
		return nil, apply(ctx, pc)
	}, validators...)
}

// Terminal builds a step that always concludes the chain. A nil Result from
// produce is reported as ErrNoTerminalResult.
func Terminal(name string, produce func(ctx context.Context, pc *Context) (Result, error), validators ...Validator) *Step {
	return NewStep(name, func(ctx context.Context, pc *Context) (Result, error) {
		res, err := produce(ctx, pc)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoTerminalResult, name)
		}
		return res, nil
	}, validators...)
}

// External builds a step that calls a collaborator. Failures recognized by
// translate become Results; everything else, including cancellation of ctx,
// propagates to the pipeline boundary.
func External(name string, call func(ctx context.Context, pc *Context) (Result, error), translate Translator, validators ...Validator) *Step {
	return NewStep(name, func(ctx context.Context, pc *Context) (Result, error) {
		res, err := call(ctx, pc)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil || translate == nil {
			return nil, err
		}
		if translated, ok := translate(err); ok {
			return translated, nil
		}
		return nil, err
	}, validators...)
}
