// Package stamina holds the process-wide configuration of retries: whether retrying is active,
// whether the deterministic testing mode is enabled and which hooks are invoked on each retry.
//
// The package-level functions operate on the [Global] cell. Components that need their own
// configuration can create a [Cell] with [New] and pass it around explicitly.
package stamina

import (
	"context"

	"github.com/teenjuna/stamina/hook"
)

var global = New()

// Global returns the process-wide cell used by the package-level functions.
func Global() *Cell {
	return global
}

// IsActive reports whether retrying is active.
func IsActive() bool {
	return global.IsActive()
}

// SetActive activates or deactivates retrying. It's idempotent.
func SetActive(active bool) {
	global.SetActive(active)
}

// IsTesting reports whether the testing mode is enabled.
func IsTesting() bool {
	return global.IsTesting()
}

// TestingAttempts returns the attempts cap of the testing mode and whether it's enabled.
func TestingAttempts() (int, bool) {
	return global.TestingAttempts()
}

// SetTesting enables or disables the testing mode. See [Cell.SetTesting].
func SetTesting(enabled bool, attempts ...int) error {
	return global.SetTesting(enabled, attempts...)
}

// SetHooks replaces the retry hooks. See [Cell.SetHooks].
func SetHooks(declarations ...hook.Declaration) {
	if declarations == nil {
		declarations = []hook.Declaration{}
	}
	global.SetHooks(declarations)
}

// ResetHooks makes the global cell use [DefaultHooks] again.
func ResetHooks() {
	global.ResetHooks()
}

// Hooks returns the resolved retry hooks. See [Cell.Hooks].
func Hooks(ctx context.Context) ([]hook.Hook, error) {
	return global.Hooks(ctx)
}
