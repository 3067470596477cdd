package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no entry of a [FallbackGroup] produced a
// result.
var ErrAllFailed = errors.New("all backends failed")

// FallbackConfig is applied to the breaker of every entry.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type entry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup is an ordered list of interchangeable backends. Entries must
// be added before the group is used concurrently.
type FallbackGroup[T any] struct {
	cfg     FallbackConfig
	entries []entry[T]
}

// NewFallbackGroup returns an empty group.
func NewFallbackGroup[T any](cfg FallbackConfig) *FallbackGroup[T] {
	return &FallbackGroup[T]{cfg: cfg}
}

// Add appends a backend. Earlier entries are preferred.
func (g *FallbackGroup[T]) Add(name string, value T) {
	cb := g.cfg.CircuitBreaker
	cb.Name = name
	g.entries = append(g.entries, entry[T]{name: name, value: value, breaker: NewCircuitBreaker(cb)})
}

// Len returns the number of backends.
func (g *FallbackGroup[T]) Len() int { return len(g.entries) }

// Breaker returns the breaker guarding the named backend, or nil.
func (g *FallbackGroup[T]) Breaker(name string) *CircuitBreaker {
	for _, e := range g.entries {
		if e.name == name {
			return e.breaker
		}
	}
	return nil
}

// Call runs fn against each backend in order until one succeeds. It gives up
// early when ctx is done.
func Call[T, R any](ctx context.Context, g *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var zero R
	if len(g.entries) == 0 {
		return zero, fmt.Errorf("%w: no backends configured", ErrAllFailed)
	}

	var errs []error
	for _, e := range g.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var out R
		err := e.breaker.Execute(func() error {
			var err error
			out, err = fn(ctx, e.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("backend skipped, circuit open", "backend", e.name)
		} else {
			slog.Warn("backend failed", "backend", e.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
