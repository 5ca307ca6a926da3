package stamina

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAttempts is returned by [Cell.SetTesting] when attempts is < 1 or passed more than once.
	ErrInvalidAttempts = errors.New("attempts can't be < 1")
)

// HookResolutionError is returned by [Cell.Hooks] when a declaration fails to resolve.
type HookResolutionError struct {
	// Index of the failed declaration in the hook set.
	Index int
	// Err is the error returned by the resolver.
	Err error
}

func (e *HookResolutionError) Error() string {
	return fmt.Sprintf("resolve hook %d: %v", e.Index, e.Err)
}

func (e *HookResolutionError) Unwrap() error {
	return e.Err
}
