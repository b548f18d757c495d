package pipeline

import "strings"

// Key names one well-known value carried by a Context.
type Key string

func (k Key) String() string {
	return string(k)
}

// Context is the mutable bag of values shared by the steps of a single run.
// A Context belongs to exactly one run and is not safe for concurrent use.
type Context struct {
	values map[Key]any
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{values: make(map[Key]any)}
}

// ContainsKey reports whether key has been set, even to nil.
func (c *Context) ContainsKey(key Key) bool {
	checkKey("ContainsKey", key)
	_, ok := c.values[key]
	return ok
}

// Get returns the value stored under key, or nil when it is absent.
func (c *Context) Get(key Key) any {
	checkKey("Get", key)
	return c.values[key]
}

// Lookup returns the value stored under key and whether it was present.
func (c *Context) Lookup(key Key) (any, bool) {
	checkKey("Lookup", key)
	v, ok := c.values[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (c *Context) Set(key Key, value any) {
	checkKey("Set", key)
	c.values[key] = value
}

// Value returns the value under key converted to T. The boolean is false when
// the key is absent, nil, or holds another type.
func Value[T any](c *Context, key Key) (T, bool) {
	var zero T
	raw, ok := c.Lookup(key)
	if !ok || raw == nil {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// StringValue returns the string under key, or "" when it is absent or not a string.
func StringValue(c *Context, key Key) string {
	v, _ := Value[string](c, key)
	return v
}

func checkKey(op string, key Key) {
	if strings.TrimSpace(string(key)) == "" {
		contractViolation("pipeline.Context."+op, ErrBlankKey)
	}
}

// Builder assembles a Context before a run starts.
type Builder struct {
	ctx *Context
}

// NewBuilder returns a Builder over a fresh Context.
func NewBuilder() *Builder {
	return &Builder{ctx: NewContext()}
}

// With sets key to value and returns the builder for chaining.
func (b *Builder) With(key Key, value any) *Builder {
	b.ctx.Set(key, value)
	return b
}

// Build returns the assembled Context. The builder must not be reused.
func (b *Builder) Build() *Context {
	ctx := b.ctx
	b.ctx = NewContext()
	return ctx
}
