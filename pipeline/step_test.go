package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestHandleAggregatesAllValidatorMessages(t *testing.T) {
	called := false
	step := NewStep("gated", func(context.Context, *Context) (Result, error) {
		called = true
		return NotAuthenticated{}, nil
	},
		String("code"),
		TypeOf[int]("count"),
		String("provider"),
	)

	pc := NewBuilder().
		With("count", "seven").
		With("provider", "   ").
		Build()

	if step.CanHandle(pc) {
		t.Fatal("expected CanHandle to be false")
	}

	res, err := step.Handle(context.Background(), pc)
	if res != nil {
		t.Fatalf("expected nil result, got %#v", res)
	}
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	want := "missing value for key 'code'\n" +
		"value for key 'count' has type 'string', expected 'int'\n" +
		"value for key 'provider' is a blank string"
	if err.Error() != want {
		t.Fatalf("unexpected message:\n%s\nwant:\n%s", err.Error(), want)
	}
	if pe.Step != "gated" || len(pe.Messages) != 3 {
		t.Fatalf("unexpected precondition error %#v", pe)
	}
	if called {
		t.Fatal("logic must not run when the gate fails")
	}
}

func TestHandleNilContext(t *testing.T) {
	step := NewStep("s", func(context.Context, *Context) (Result, error) {
		return NotAuthenticated{}, nil
	})
	if _, err := step.Handle(context.Background(), nil); !errors.Is(err, ErrNilContext) {
		t.Fatalf("expected ErrNilContext, got %v", err)
	}
	if step.CanHandle(nil) {
		t.Fatal("nil context must not pass the gate")
	}
}

func TestValidationStep(t *testing.T) {
	step := Validation("must-be-admin", func(pc *Context) Result {
		if StringValue(pc, "role") != "admin" {
			return NewError("forbidden")
		}
		return nil
	}, String("role"))

	res, err := step.Handle(context.Background(), NewBuilder().With("role", "user").Build())
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got, ok := res.(Error); !ok || got.Message != "forbidden" {
		t.Fatalf("unexpected result %#v", res)
	}

	res, err = step.Handle(context.Background(), NewBuilder().With("role", "admin").Build())
	if err != nil || res != nil {
		t.Fatalf("expected pass-through, got %#v, %v", res, err)
	}
}

func TestEffectStepNeverEndsChain(t *testing.T) {
	step := Effect("derive", func(_ context.Context, pc *Context) error {
		pc.Set("derived", 42)
		return nil
	})
	pc := NewContext()
	res, err := step.Handle(context.Background(), pc)
	if err != nil || res != nil {
		t.Fatalf("expected nil, nil; got %#v, %v", res, err)
	}
	if v, ok := Value[int](pc, "derived"); !ok || v != 42 {
		t.Fatalf("expected derived value, got %v", v)
	}
}

func TestTerminalStepRejectsNilResult(t *testing.T) {
	step := Terminal("done", func(context.Context, *Context) (Result, error) {
		return nil, nil
	})
	if _, err := step.Handle(context.Background(), NewContext()); !errors.Is(err, ErrNoTerminalResult) {
		t.Fatalf("expected ErrNoTerminalResult, got %v", err)
	}
}

var errRecognized = errors.New("provider refused")

func translateRecognized(err error) (Result, bool) {
	if errors.Is(err, errRecognized) {
		return NewExternalLoginError("sign-in failed", err.Error()), true
	}
	return nil, false
}

func TestExternalStepTranslatesRecognizedErrors(t *testing.T) {
	step := External("exchange", func(context.Context, *Context) (Result, error) {
		return nil, errRecognized
	}, translateRecognized)

	res, err := step.Handle(context.Background(), NewContext())
	if err != nil {
		t.Fatalf("recognized error must be translated: %v", err)
	}
	got, ok := res.(ExternalLoginError)
	if !ok || got.Message != "sign-in failed" || len(got.Errors) != 1 {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestExternalStepPropagatesUnknownErrors(t *testing.T) {
	unknown := errors.New("socket closed")
	step := External("exchange", func(context.Context, *Context) (Result, error) {
		return nil, unknown
	}, translateRecognized)

	if _, err := step.Handle(context.Background(), NewContext()); !errors.Is(err, unknown) {
		t.Fatalf("expected unknown error to propagate, got %v", err)
	}
}

func TestExternalStepDoesNotTranslateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	step := External("exchange", func(context.Context, *Context) (Result, error) {
		return nil, errRecognized
	}, translateRecognized)

	res, err := step.Handle(ctx, NewContext())
	if err == nil || res != nil {
		t.Fatalf("expected error after cancellation, got %#v, %v", res, err)
	}
}
