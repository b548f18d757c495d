package pipeline

import (
	"fmt"
	"reflect"
	"strings"
)

// Validator is a stateless precondition on one context key.
//
// Validate appends one message to out for each problem it finds and reports
// whether it appended nothing. Validators of one gating call share out.
type Validator interface {
	Key() Key
	Validate(c *Context, out *[]string) bool
}

// Check runs every validator against c, accumulating all messages into out.
// out must be empty on entry. Every validator runs even after a failure.
func Check(c *Context, out *[]string, validators ...Validator) bool {
	if out == nil || len(*out) != 0 {
		contractViolation("pipeline.Check", ErrDirtyErrorBuffer)
	}
	ok := true
	for _, v := range validators {
		if !v.Validate(c, out) {
			ok = false
		}
	}
	return ok
}

// presence performs the checks shared by every validator: the key must be
// present and, unless nullable, hold a non-nil value.
func presence(c *Context, key Key, nullable bool, out *[]string) (any, bool) {
	raw, ok := c.Lookup(key)
	if !ok {
		*out = append(*out, fmt.Sprintf("missing value for key '%s'", key))
		return nil, false
	}
	if isNil(raw) {
		if !nullable {
			*out = append(*out, fmt.Sprintf("value for key '%s' is null", key))
		}
		return nil, false
	}
	return raw, true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func typeMismatch(key Key, actual any, expected string) string {
	return fmt.Sprintf("value for key '%s' has type '%T', expected '%s'", key, actual, expected)
}

type typeValidator[T any] struct {
	key      Key
	nullable bool
}

// TypeOf returns a validator requiring key to hold a non-nil value assignable to T.
func TypeOf[T any](key Key) Validator {
	return typeValidator[T]{key: key}
}

// NullableTypeOf is TypeOf that also accepts an explicit nil value. A missing
// key still fails.
func NullableTypeOf[T any](key Key) Validator {
	return typeValidator[T]{key: key, nullable: true}
}

func (v typeValidator[T]) Key() Key {
	return v.key
}

func (v typeValidator[T]) Validate(c *Context, out *[]string) bool {
	before := len(*out)
	raw, ok := presence(c, v.key, v.nullable, out)
	if ok {
		if _, match := raw.(T); !match {
			*out = append(*out, typeMismatch(v.key, raw, reflect.TypeFor[T]().String()))
		}
	}
	return len(*out) == before
}

type stringValidator struct {
	key Key
}

// String returns a validator requiring key to hold a non-blank string.
func String(key Key) Validator {
	return stringValidator{key: key}
}

func (v stringValidator) Key() Key {
	return v.key
}

func (v stringValidator) Validate(c *Context, out *[]string) bool {
	before := len(*out)
	raw, ok := presence(c, v.key, false, out)
	if ok {
		s, isString := raw.(string)
		switch {
		case !isString:
			*out = append(*out, typeMismatch(v.key, raw, "string"))
		case strings.TrimSpace(s) == "":
			*out = append(*out, fmt.Sprintf("value for key '%s' is a blank string", v.key))
		}
	}
	return len(*out) == before
}
