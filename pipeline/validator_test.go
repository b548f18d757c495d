package pipeline

import (
	"errors"
	"testing"
)

type profile struct{ Name string }

func runValidator(t *testing.T, v Validator, pc *Context) (bool, []string) {
	t.Helper()
	var out []string
	ok := v.Validate(pc, &out)
	return ok, out
}

func TestValidatorMessages(t *testing.T) {
	var nilProfile *profile
	cases := []struct {
		name string
		v    Validator
		pc   *Context
		want string
	}{
		{"missing", String("code"), NewContext(), "missing value for key 'code'"},
		{"null", String("code"), NewBuilder().With("code", nil).Build(), "value for key 'code' is null"},
		{"typed nil", TypeOf[*profile]("profile"), NewBuilder().With("profile", nilProfile).Build(), "value for key 'profile' is null"},
		{"wrong string type", String("code"), NewBuilder().With("code", 12).Build(), "value for key 'code' has type 'int', expected 'string'"},
		{"blank", String("code"), NewBuilder().With("code", " \t").Build(), "value for key 'code' is a blank string"},
		{"shape", TypeOf[*profile]("profile"), NewBuilder().With("profile", profile{}).Build(), "value for key 'profile' has type 'pipeline.profile', expected '*pipeline.profile'"},
		{"nullable missing", NullableTypeOf[*profile]("profile"), NewContext(), "missing value for key 'profile'"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, out := runValidator(t, tc.v, tc.pc)
			if ok {
				t.Fatal("expected validation failure")
			}
			if len(out) != 1 || out[0] != tc.want {
				t.Fatalf("got %q, want %q", out, tc.want)
			}
		})
	}
}

func TestValidatorAccepts(t *testing.T) {
	var nilProfile *profile
	cases := []struct {
		name string
		v    Validator
		pc   *Context
	}{
		{"string", String("code"), NewBuilder().With("code", "abc").Build()},
		{"shape", TypeOf[*profile]("profile"), NewBuilder().With("profile", &profile{}).Build()},
		{"nullable nil", NullableTypeOf[*profile]("profile"), NewBuilder().With("profile", nil).Build()},
		{"nullable typed nil", NullableTypeOf[*profile]("profile"), NewBuilder().With("profile", nilProfile).Build()},
		{"interface", TypeOf[error]("err"), NewBuilder().With("err", errors.New("x")).Build()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, out := runValidator(t, tc.v, tc.pc)
			if !ok || len(out) != 0 {
				t.Fatalf("expected pass, got %q", out)
			}
		})
	}
}

func TestCheckRequiresEmptyBuffer(t *testing.T) {
	defer func() {
		r := recover()
		ce, ok := r.(*ContractError)
		if !ok || !errors.Is(ce, ErrDirtyErrorBuffer) {
			t.Fatalf("expected ContractError for dirty buffer, got %v", r)
		}
	}()
	out := []string{"left over"}
	Check(NewContext(), &out, String("code"))
}

func TestCheckRunsEveryValidator(t *testing.T) {
	var out []string
	ok := Check(NewBuilder().With("b", "fine").Build(), &out, String("a"), String("b"), String("c"))
	if ok {
		t.Fatal("expected failure")
	}
	if len(out) != 2 || out[0] != "missing value for key 'a'" || out[1] != "missing value for key 'c'" {
		t.Fatalf("unexpected messages %q", out)
	}
}

func TestContextBlankKeyPanics(t *testing.T) {
	defer func() {
		r := recover()
		ce, ok := r.(*ContractError)
		if !ok || !errors.Is(ce, ErrBlankKey) {
			t.Fatalf("expected ContractError for blank key, got %v", r)
		}
	}()
	NewContext().Get("")
}

func TestContextAccessors(t *testing.T) {
	pc := NewBuilder().With("a", nil).With("b", "x").Build()
	if !pc.ContainsKey("a") {
		t.Fatal("explicit nil must count as present")
	}
	if pc.ContainsKey("c") || pc.Get("c") != nil {
		t.Fatal("absent key must report missing")
	}
	if StringValue(pc, "b") != "x" {
		t.Fatal("expected string value")
	}
	if _, ok := Value[int](pc, "b"); ok {
		t.Fatal("expected type mismatch")
	}
}
