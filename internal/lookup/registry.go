// Package lookup parses segmented filter keys such as
// "products__categories__name__in" and renders the trailing operator as a
// SQL predicate through a dialect adapter.
package lookup

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"lookupsql/internal/dialect"
)

// DefaultSeparator splits lookup keys into segments.
const DefaultSeparator = "__"

// Exact is the operator used when a key carries no registered operator.
const Exact = "exact"

var (
	// ErrMalformedLookupKey is returned for empty keys or keys with empty segments.
	ErrMalformedLookupKey = errors.New("malformed lookup key")
	// ErrUnknownLookupOperator is returned when Run is asked for an operator
	// nobody registered.
	ErrUnknownLookupOperator = errors.New("unknown lookup operator")
)

// RenderFunc renders one predicate. column is already resolved and may be
// qualified; implementations quote it through the adapter.
type RenderFunc func(a dialect.Adapter, column string, value any) (string, error)

// Parsed is one decoded lookup key with its value.
type Parsed struct {
	Operator string
	Path     []string
	Value    any
}

// Column returns the path joined with dots, the literal column reference used
// when no relation resolver claims the path.
func (p Parsed) Column() string {
	return strings.Join(p.Path, ".")
}

// Registry maps operator names to renderers. Register operators before
// sharing a Registry across goroutines; reads are safe concurrently.
type Registry struct {
	mu        sync.RWMutex
	separator string
	operators map[string]RenderFunc
}

// Option configures a Registry.
type Option func(*Registry)

// WithSeparator overrides the "__" segment separator.
func WithSeparator(sep string) Option {
	return func(r *Registry) {
		if sep != "" {
			r.separator = sep
		}
	}
}

// NewRegistry returns a Registry preloaded with the built-in operators.
func NewRegistry(opts ...Option) *Registry {
	r := NewEmptyRegistry(opts...)
	for name, fn := range builtins() {
		r.operators[name] = fn
	}
	return r
}

// NewEmptyRegistry returns a Registry with no operators at all.
func NewEmptyRegistry(opts ...Option) *Registry {
	r := &Registry{
		separator: DefaultSeparator,
		operators: make(map[string]RenderFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Separator returns the segment separator.
func (r *Registry) Separator() string {
	return r.separator
}

// Register adds or replaces an operator.
func (r *Registry) Register(name string, fn RenderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[name] = fn
}

// Has reports whether name is a registered operator.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.operators[name]
	return ok
}

// Operators lists registered operator names in sorted order.
func (r *Registry) Operators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.operators))
	for name := range r.operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse splits key into a path and an operator. The last segment is the
// operator when it is registered and at least one path segment precedes it;
// otherwise the operator is "exact" and every segment belongs to the path.
func (r *Registry) Parse(key string, value any) (Parsed, error) {
	if strings.TrimSpace(key) == "" {
		return Parsed{}, fmt.Errorf("%w: empty key", ErrMalformedLookupKey)
	}
	segments := strings.Split(key, r.separator)
	for _, segment := range segments {
		if segment == "" {
			return Parsed{}, fmt.Errorf("%w: %q", ErrMalformedLookupKey, key)
		}
	}

	operator := Exact
	if last := segments[len(segments)-1]; len(segments) > 1 && r.Has(last) {
		operator = last
		segments = segments[:len(segments)-1]
	}
	return Parsed{Operator: operator, Path: segments, Value: value}, nil
}

// Run renders operator for column and value.
func (r *Registry) Run(a dialect.Adapter, operator, column string, value any) (string, error) {
	r.mu.RLock()
	fn, ok := r.operators[operator]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLookupOperator, operator)
	}
	return fn(a, column, value)
}
