package stamina

import (
	"github.com/teenjuna/stamina/hook"
	"github.com/teenjuna/stamina/hook/logging"
)

// DefaultHooks returns the hook declarations used while no hooks are set: a single logging hook
// that is bound to [slog.Default] when the hooks are resolved.
func DefaultHooks() []hook.Declaration {
	return []hook.Declaration{
		logging.New(),
	}
}
