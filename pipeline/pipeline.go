package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/goSocialAuth/pipeline"

// Run outcomes reported to an Observer in addition to Result types.
const (
	OutcomeInternalError = "internal_error"
	OutcomeCanceled      = "canceled"
	OutcomeNoResult      = "no_result"
)

// ErrStepPanic wraps a value recovered from a panicking step.
var ErrStepPanic = errors.New("pipeline: step panicked")

// Observer receives timing for every step and run. Implementations must be
// safe for concurrent use.
type Observer interface {
	StepFinished(flow, step string, elapsed time.Duration, err error)
	RunFinished(flow, outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) StepFinished(string, string, time.Duration, error) {}
func (noopObserver) RunFinished(string, string, time.Duration)         {}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for step traces and boundary failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver installs a metrics hook.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithTracer sets the tracer that opens one span per step.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// Pipeline runs an ordered chain of handlers. It is assembled once and then
// shared by concurrent runs; AddStep must not be called after the first Run.
type Pipeline struct {
	name     string
	steps    []Handler
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// New returns an empty Pipeline named name.
func New(name string, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:     name,
		logger:   slog.Default(),
		observer: noopObserver{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the flow name.
func (p *Pipeline) Name() string {
	return p.name
}

// AddStep appends h to the chain.
func (p *Pipeline) AddStep(h Handler) *Pipeline {
	if h == nil {
		panic(fmt.Sprintf("pipeline: nil step added to %q", p.name))
	}
	p.steps = append(p.steps, h)
	return p
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, h := range p.steps {
		names[i] = h.Name()
	}
	return names
}

// Run executes the chain once over pc.
//
// Step errors and panics are logged and replaced by InternalError. Errors are
// returned only for a nil ctx or pc, an empty or exhausted chain, and
// cancellation of ctx, which wraps ctx.Err().
func (p *Pipeline) Run(ctx context.Context, pc *Context) (Result, error) {
	if ctx == nil {
		return nil, ErrNilRunContext
	}
	if pc == nil {
		return nil, ErrNilContext
	}
	if len(p.steps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPipeline, p.name)
	}

	started := time.Now()
	for _, h := range p.steps {
		if err := ctx.Err(); err != nil {
			p.observer.RunFinished(p.name, OutcomeCanceled, time.Since(started))
			return nil, fmt.Errorf("pipeline %s: before step %s: %w", p.name, h.Name(), err)
		}

		res, err := p.runStep(ctx, h, pc)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				p.observer.RunFinished(p.name, OutcomeCanceled, time.Since(started))
				return nil, fmt.Errorf("pipeline %s: step %s: %w", p.name, h.Name(), ctxErr)
			}
			p.logger.ErrorContext(ctx, "pipeline step failed",
				slog.String("flow", p.name),
				slog.String("step", h.Name()),
				slog.Any("error", err),
			)
			p.observer.RunFinished(p.name, OutcomeInternalError, time.Since(started))
			return InternalError(), nil
		}
		if res != nil {
			p.observer.RunFinished(p.name, res.ResultType(), time.Since(started))
			return res, nil
		}
	}

	p.logger.ErrorContext(ctx, "pipeline ended without a result", slog.String("flow", p.name))
	p.observer.RunFinished(p.name, OutcomeNoResult, time.Since(started))
	return nil, fmt.Errorf("%w: %s", ErrNoResult, p.name)
}

func (p *Pipeline) runStep(ctx context.Context, h Handler, pc *Context) (res Result, err error) {
	ctx, span := p.tracer.Start(ctx, p.name+"."+h.Name(),
		trace.WithAttributes(
			attribute.String("pipeline.flow", p.name),
			attribute.String("pipeline.step", h.Name()),
		),
	)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
			p.logger.DebugContext(ctx, "pipeline step panic", slog.String("stack", string(debug.Stack())))
		}
		elapsed := time.Since(started)
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, "step failed")
		case res != nil:
			span.SetAttributes(attribute.String("pipeline.result", res.ResultType()))
		}
		span.End()
		p.observer.StepFinished(p.name, h.Name(), elapsed, err)
		p.logger.DebugContext(ctx, "pipeline step finished",
			slog.String("flow", p.name),
			slog.String("step", h.Name()),
			slog.Duration("elapsed", elapsed),
			slog.Bool("terminal", res != nil),
		)
	}()

	return h.Handle(ctx, pc)
}

func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrStepPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrStepPanic, r)
}
