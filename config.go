package stamina

import (
	"log/slog"

	"github.com/teenjuna/stamina/hook"
)

// Config is a config of a [Cell].
//
// An instance is created by [New] and modified by the passed configuration functions.
type Config struct {
	resolver hook.Resolver
	defaults func() []hook.Declaration
	logger   *slog.Logger
	inactive bool
}

type ConfigFunc = func(c *Config)

// Resolver sets the resolver used to turn hook declarations into hooks. Default is
// [hook.Resolve].
func (c *Config) Resolver(resolver hook.Resolver) {
	if resolver == nil {
		panic("resolver can't be nil")
	}
	c.resolver = resolver
}

// Defaults sets the provider of hook declarations that are used while no hooks are set. Default
// is [DefaultHooks].
func (c *Config) Defaults(defaults func() []hook.Declaration) {
	if defaults == nil {
		panic("defaults can't be nil")
	}
	c.defaults = defaults
}

// Logger sets the logger of the cell. Default is [slog.Default].
func (c *Config) Logger(logger *slog.Logger) {
	if logger == nil {
		panic("logger can't be nil")
	}
	c.logger = logger
}

// Active sets the initial value of the active flag. Default is true.
func (c *Config) Active(active bool) {
	c.inactive = !active
}
