// This package contains the main [Hook] type, the [Declaration] variants that resolve into it and
// several implementations inside subpackages.
package hook

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNilHook is returned when a factory produced a nil hook.
	ErrNilHook = errors.New("factory returned nil hook")
	// ErrEmptyDeclaration is returned when resolving the zero value of [Declaration].
	ErrEmptyDeclaration = errors.New("declaration is empty")
)

// Details describes a single scheduled retry attempt.
type Details struct {
	// Name of the retried callable.
	Name string
	// Args the callable was called with. Optional.
	Args []any
	// RetryNum is the number of the upcoming retry, starting at 1.
	RetryNum int
	// WaitFor is the backoff before the upcoming retry.
	WaitFor time.Duration
	// WaitedSoFar is the total backoff before this one.
	WaitedSoFar time.Duration
	// CausedBy is the error that caused the retry.
	CausedBy error
}

// Hook is invoked by the retry engine on each retry attempt.
//
// Hooks are shared between goroutines and must be safe for concurrent use.
type Hook func(ctx context.Context, details Details)

// Factory produces a [Hook]. It's called at most once per resolution of a hook set.
type Factory func() (Hook, error)

// Declaration is either an already bound [Hook] or a [Factory] that must be resolved before use.
//
// An instance can be created by [Bound] or [Lazy]. The zero value is invalid.
type Declaration struct {
	hook    Hook
	factory Factory
}

// Bound declares an already bound hook. Its resolution is the hook itself.
func Bound(hook Hook) Declaration {
	if hook == nil {
		panic("hook can't be nil")
	}
	return Declaration{hook: hook}
}

// Lazy declares a hook that is produced by factory on resolution.
func Lazy(factory Factory) Declaration {
	if factory == nil {
		panic("factory can't be nil")
	}
	return Declaration{factory: factory}
}

// IsFactory reports whether the declaration needs a factory call to be resolved.
func (d Declaration) IsFactory() bool {
	return d.factory != nil
}

// Resolver turns declarations into bound hooks.
type Resolver interface {
	Resolve(d Declaration) (Hook, error)
}

// ResolverFunc adapts a function to [Resolver].
type ResolverFunc func(d Declaration) (Hook, error)

// Resolve implements [Resolver].
func (f ResolverFunc) Resolve(d Declaration) (Hook, error) {
	return f(d)
}

var _ Resolver = ResolverFunc(Resolve)

// Resolve is the default resolution of a declaration: bound hooks are returned unchanged and
// factories are invoked once.
func Resolve(d Declaration) (Hook, error) {
	switch {
	case d.hook != nil:
		return d.hook, nil
	case d.factory != nil:
		h, err := d.factory()
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, ErrNilHook
		}
		return h, nil
	default:
		return nil, ErrEmptyDeclaration
	}
}
