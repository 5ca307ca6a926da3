package stamina

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/teenjuna/stamina/hook"
)

// ResolutionState is the state of the resolved hooks of a [Cell].
type ResolutionState uint8

const (
	// Stale means the hooks were never resolved or were invalidated by [Cell.SetHooks].
	Stale ResolutionState = iota
	// Resolving means a resolution is in progress.
	Resolving
	// Fresh means the resolved hooks reflect the current hook set.
	Fresh
)

func (s ResolutionState) String() string {
	switch s {
	case Stale:
		return "stale"
	case Resolving:
		return "resolving"
	case Fresh:
		return "fresh"
	default:
		return "unknown"
	}
}

// Cell holds the retry configuration: the active flag, the testing mode and the retry hooks.
//
// All methods are safe for concurrent use. Hooks are resolved lazily on the first call to
// [Cell.Hooks] after they were set and the result is reused until the next [Cell.SetHooks].
type Cell struct {
	cfg *Config
	mu  sync.Mutex

	active     *atomic.Bool
	testing    *atomic.Pointer[Testing]
	resolution *atomic.Pointer[resolution]

	// nil means defaults.
	declarations []hook.Declaration
}

type resolution struct {
	state ResolutionState
	hooks []hook.Hook
}

var stale = &resolution{state: Stale}

// New creates a new Cell with the provided configuration functions.
//
// Default configuration:
//   - Resolver: [hook.Resolve]
//   - Defaults: [DefaultHooks]
//   - Logger: [slog.Default] at the time of logging
//   - Active: true
func New(configFuncs ...ConfigFunc) *Cell {
	cfg := &Config{}
	cfg.Resolver(hook.ResolverFunc(hook.Resolve))
	cfg.Defaults(DefaultHooks)
	for _, cf := range configFuncs {
		if cf != nil {
			cf(cfg)
		}
	}

	var (
		active  = new(atomic.Bool)
		testing = new(atomic.Pointer[Testing])
		res     = new(atomic.Pointer[resolution])
	)

	active.Store(!cfg.inactive)
	res.Store(stale)

	return &Cell{
		cfg:        cfg,
		active:     active,
		testing:    testing,
		resolution: res,
	}
}

// IsActive reports whether retrying is active.
func (c *Cell) IsActive() bool {
	return c.active.Load()
}

// SetActive activates or deactivates retrying. It's idempotent.
func (c *Cell) SetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active.Store(active)
}

// IsTesting reports whether the testing mode is enabled.
func (c *Cell) IsTesting() bool {
	return c.testing.Load() != nil
}

// Testing returns the testing mode and whether it's enabled.
func (c *Cell) Testing() (Testing, bool) {
	t := c.testing.Load()
	if t == nil {
		return Testing{}, false
	}
	return *t, true
}

// TestingAttempts returns the attempts cap of the testing mode and whether it's enabled.
func (c *Cell) TestingAttempts() (int, bool) {
	t, ok := c.Testing()
	return t.Attempts, ok
}

// SetTesting enables or disables the testing mode. It's idempotent.
//
// In the testing mode, backoffs are disabled and attempts are capped to attempts, which is 1 if
// omitted. Returns [ErrInvalidAttempts] without changing anything if more than one attempts value
// is passed or if the passed one is < 1, even when disabling.
func (c *Cell) SetTesting(enabled bool, attempts ...int) error {
	n := 1
	switch len(attempts) {
	case 0:
	case 1:
		n = attempts[0]
		if n < 1 {
			return ErrInvalidAttempts
		}
	default:
		return ErrInvalidAttempts
	}

	var t *Testing
	if enabled {
		t = &Testing{Attempts: n}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.testing.Store(t)

	return nil
}

// SetHooks replaces the hook declarations and invalidates the resolved hooks.
//
// A nil slice means the defaults of the cell will be used, while an empty slice means there are no
// hooks at all. The declarations are not resolved until the next call to [Cell.Hooks].
func (c *Cell) SetHooks(declarations []hook.Declaration) {
	declarations = slices.Clone(declarations)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.declarations = declarations
	c.resolution.Store(stale)
}

// ResetHooks makes the cell use the default hooks again.
func (c *Cell) ResetHooks() {
	c.SetHooks(nil)
}

// State returns the current state of the resolved hooks.
func (c *Cell) State() ResolutionState {
	return c.resolution.Load().state
}

// Hooks returns the resolved hooks in the order they were declared.
//
// The first call after [Cell.SetHooks] resolves the declarations. Concurrent callers wait for that
// resolution and receive its result. If any declaration fails to resolve, a [HookResolutionError]
// is returned and the next call tries again.
func (c *Cell) Hooks(ctx context.Context) ([]hook.Hook, error) {
	if r := c.resolution.Load(); r.state == Fresh {
		return slices.Clone(r.hooks), nil
	}
	return c.resolve(ctx)
}

func (c *Cell) resolve(ctx context.Context) ([]hook.Hook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Hooks could have been resolved while waiting for the lock.
	if r := c.resolution.Load(); r.state == Fresh {
		return slices.Clone(r.hooks), nil
	}

	c.resolution.Store(&resolution{state: Resolving})

	// Factories can panic, so the state is restored in a defer.
	done := false
	defer func() {
		if !done {
			c.resolution.Store(stale)
		}
	}()

	declarations, defaults := c.declarations, false
	if declarations == nil {
		declarations, defaults = c.cfg.defaults(), true
	}

	hooks := make([]hook.Hook, 0, len(declarations))
	for i, d := range declarations {
		h, err := c.cfg.resolver.Resolve(d)
		if err == nil && h == nil {
			err = hook.ErrNilHook
		}
		if err != nil {
			err = &HookResolutionError{Index: i, Err: err}
			c.logger().WarnContext(ctx, "hook resolution failed",
				slog.Int("index", i),
				slog.Bool("defaults", defaults),
				slog.Any("error", err),
			)
			return nil, err
		}
		hooks = append(hooks, h)
	}

	c.resolution.Store(&resolution{state: Fresh, hooks: hooks})
	done = true

	c.logger().DebugContext(ctx, "hooks resolved",
		slog.Int("hooks", len(hooks)),
		slog.Bool("defaults", defaults),
	)

	return slices.Clone(hooks), nil
}

func (c *Cell) logger() *slog.Logger {
	if c.cfg.logger != nil {
		return c.cfg.logger
	}
	return slog.Default()
}
