package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

const testKey Key = "name"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingStep struct {
	name   string
	result Result
	err    error
	calls  int
}

func (s *countingStep) Name() string { return s.name }

func (s *countingStep) CanHandle(*Context) bool { return true }

func (s *countingStep) Handle(context.Context, *Context) (Result, error) {
	s.calls++
	return s.result, s.err
}

type recordingObserver struct {
	mu       sync.Mutex
	steps    []string
	outcomes []string
}

func (o *recordingObserver) StepFinished(_, step string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.steps = append(o.steps, step)
}

func (o *recordingObserver) RunFinished(_, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestRunStopsAtFirstResult(t *testing.T) {
	first := &countingStep{name: "first"}
	second := &countingStep{name: "second", result: SignInSuccess{AccessToken: "t"}}
	third := &countingStep{name: "third", result: NotAuthenticated{}}

	obs := &recordingObserver{}
	p := New("test", WithLogger(quietLogger()), WithObserver(obs)).
		AddStep(first).
		AddStep(second).
		AddStep(third)

	res, err := p.Run(context.Background(), NewContext())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got, ok := res.(SignInSuccess); !ok || got.AccessToken != "t" {
		t.Fatalf("unexpected result %#v", res)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected first and second once, got %d and %d", first.calls, second.calls)
	}
	if third.calls != 0 {
		t.Fatalf("third step must not run, ran %d times", third.calls)
	}
	if strings.Join(obs.steps, ",") != "first,second" {
		t.Fatalf("unexpected observed steps %v", obs.steps)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != TypeSuccess {
		t.Fatalf("unexpected outcomes %v", obs.outcomes)
	}
}

func TestRunVisitsStepsInOrder(t *testing.T) {
	var order []string
	mk := func(name string, res Result) *Step {
		return NewStep(name, func(context.Context, *Context) (Result, error) {
			order = append(order, name)
			return res, nil
		})
	}

	p := New("order", WithLogger(quietLogger()))
	p.AddStep(mk("a", nil)).AddStep(mk("b", nil)).AddStep(mk("c", NotAuthenticated{}))

	if _, err := p.Run(context.Background(), NewContext()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.Join(order, "") != "abc" {
		t.Fatalf("expected abc, got %v", order)
	}
	if strings.Join(p.Steps(), ",") != "a,b,c" {
		t.Fatalf("unexpected Steps %v", p.Steps())
	}
}

func TestRunEmptyPipeline(t *testing.T) {
	p := New("empty", WithLogger(quietLogger()))
	res, err := p.Run(context.Background(), NewContext())
	if !errors.Is(err, ErrEmptyPipeline) {
		t.Fatalf("expected ErrEmptyPipeline, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result, got %#v", res)
	}
}

func TestRunNilContext(t *testing.T) {
	p := New("nil", WithLogger(quietLogger())).AddStep(&countingStep{name: "s", result: NotAuthenticated{}})
	if _, err := p.Run(context.Background(), nil); !errors.Is(err, ErrNilContext) {
		t.Fatalf("expected ErrNilContext, got %v", err)
	}
}

func TestRunNilRunContext(t *testing.T) {
	step := &countingStep{name: "s", result: NotAuthenticated{}}
	p := New("nil-ctx", WithLogger(quietLogger())).AddStep(step)
	var ctx context.Context
	res, err := p.Run(ctx, NewContext())
	if !errors.Is(err, ErrNilRunContext) || res != nil {
		t.Fatalf("expected ErrNilRunContext, got %#v, %v", res, err)
	}
	if step.calls != 0 {
		t.Fatalf("no step may run without a context, ran %d", step.calls)
	}
}

func TestRunExhaustedChain(t *testing.T) {
	p := New("open", WithLogger(quietLogger())).AddStep(&countingStep{name: "s"})
	if _, err := p.Run(context.Background(), NewContext()); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestRunConvertsStepErrorToInternalError(t *testing.T) {
	leak := errors.New("dial tcp 10.0.0.1:5432: connection refused")
	obs := &recordingObserver{}
	p := New("boundary", WithLogger(quietLogger()), WithObserver(obs)).
		AddStep(&countingStep{name: "broken", err: leak})

	res, err := p.Run(context.Background(), NewContext())
	if err != nil {
		t.Fatalf("step errors must not escape Run: %v", err)
	}
	got, ok := res.(Error)
	if !ok {
		t.Fatalf("expected Error result, got %#v", res)
	}
	if got.Message != InternalErrorMessage {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if strings.Contains(got.Message, "10.0.0.1") || len(got.Errors) != 0 {
		t.Fatal("internal error leaked cause")
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeInternalError {
		t.Fatalf("unexpected outcomes %v", obs.outcomes)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	p := New("panic", WithLogger(quietLogger())).
		AddStep(NewStep("explode", func(context.Context, *Context) (Result, error) {
			panic("boom")
		}))

	res, err := p.Run(context.Background(), NewContext())
	if err != nil {
		t.Fatalf("panics must not escape Run: %v", err)
	}
	if got, ok := res.(Error); !ok || got.Message != InternalErrorMessage {
		t.Fatalf("expected internal error, got %#v", res)
	}
}

func TestRunRecoversContractViolation(t *testing.T) {
	p := New("contract", WithLogger(quietLogger())).
		AddStep(NewStep("blank-key", func(_ context.Context, pc *Context) (Result, error) {
			pc.Set(" ", 1)
			return NotAuthenticated{}, nil
		}))

	res, err := p.Run(context.Background(), NewContext())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got, ok := res.(Error); !ok || got.Message != InternalErrorMessage {
		t.Fatalf("expected internal error, got %#v", res)
	}
}

func TestRunPreconditionFailureIsInternalError(t *testing.T) {
	called := false
	p := New("gate", WithLogger(quietLogger())).
		AddStep(NewStep("needs-name", func(context.Context, *Context) (Result, error) {
			called = true
			return NotAuthenticated{}, nil
		}, String(testKey)))

	res, err := p.Run(context.Background(), NewContext())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, ok := res.(Error); !ok {
		t.Fatalf("expected Error, got %#v", res)
	}
	if called {
		t.Fatal("logic ran although preconditions failed")
	}
}

func TestRunCancellationIsDistinct(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := &countingStep{name: "s", result: NotAuthenticated{}}
	obs := &recordingObserver{}
	p := New("cancel", WithLogger(quietLogger()), WithObserver(obs)).AddStep(step)

	res, err := p.Run(ctx, NewContext())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res != nil {
		t.Fatalf("cancellation must not produce a result, got %#v", res)
	}
	if step.calls != 0 {
		t.Fatal("step ran after cancellation")
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeCanceled {
		t.Fatalf("unexpected outcomes %v", obs.outcomes)
	}
}

func TestRunCancellationDuringStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New("cancel-mid", WithLogger(quietLogger())).
		AddStep(NewStep("slow", func(ctx context.Context, _ *Context) (Result, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		})).
		AddStep(&countingStep{name: "after", result: NotAuthenticated{}})

	res, err := p.Run(ctx, NewContext())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result, got %#v", res)
	}
}

func TestRunDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	p := New("deadline", WithLogger(quietLogger())).
		AddStep(NewStep("wait", func(ctx context.Context, _ *Context) (Result, error) {
			<-ctx.Done()
			return nil, errors.New("collaborator gave up")
		}))

	_, err := p.Run(ctx, NewContext())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPipelineSharedAcrossConcurrentRuns(t *testing.T) {
	p := New("shared", WithLogger(quietLogger()))
	p.AddStep(Effect("copy", func(_ context.Context, pc *Context) error {
		pc.Set("out", StringValue(pc, testKey))
		return nil
	}, String(testKey)))
	p.AddStep(Terminal("emit", func(_ context.Context, pc *Context) (Result, error) {
		return EmailRequired{Message: StringValue(pc, "out")}, nil
	}, String("out")))

	var wg sync.WaitGroup
	errs := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := strings.Repeat("x", i+1)
			res, err := p.Run(context.Background(), NewBuilder().With(testKey, name).Build())
			if err != nil {
				errs <- err.Error()
				return
			}
			if got := res.(EmailRequired).Message; got != name {
				errs <- "got " + got + " want " + name
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}
