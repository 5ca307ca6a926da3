// This package contains a [hook.Hook] that logs scheduled retries with [slog].
package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teenjuna/stamina/hook"
)

// Message is the default message of logged retries.
const Message = "stamina.retry_scheduled"

// Config is a config of the logging hook.
type Config struct {
	logger  *slog.Logger
	level   slog.Level
	message string
}

type ConfigFunc = func(c *Config)

// Logger sets the logger. Default is [slog.Default] at the time of resolution.
func (c *Config) Logger(logger *slog.Logger) {
	if logger == nil {
		panic("logger can't be nil")
	}
	c.logger = logger
}

// Level sets the level of logged retries. Default is [slog.LevelWarn].
func (c *Config) Level(level slog.Level) {
	c.level = level
}

// Message sets the message of logged retries. Default is [Message].
func (c *Config) Message(message string) {
	if message == "" {
		panic("message can't be empty")
	}
	c.message = message
}

// New returns a declaration of the logging hook.
//
// The hook is bound to the logger on resolution, so a logger installed by [slog.SetDefault] after
// the declaration was created is still picked up.
func New(configFuncs ...ConfigFunc) hook.Declaration {
	cfg := &Config{}
	cfg.Level(slog.LevelWarn)
	cfg.Message(Message)
	for _, cf := range configFuncs {
		if cf != nil {
			cf(cfg)
		}
	}

	return hook.Lazy(func() (hook.Hook, error) {
		logger := cfg.logger
		if logger == nil {
			logger = slog.Default()
		}
		return Hook(logger, cfg.level, cfg.message), nil
	})
}

// Hook returns a bound hook that logs every retry to logger.
func Hook(logger *slog.Logger, level slog.Level, message string) hook.Hook {
	return func(ctx context.Context, d hook.Details) {
		if !logger.Enabled(ctx, level) {
			return
		}

		attrs := []slog.Attr{
			slog.String("callable", d.Name),
			slog.Int("retry_num", d.RetryNum),
			slog.Duration("wait_for", d.WaitFor),
			slog.Duration("waited_so_far", d.WaitedSoFar),
		}
		if len(d.Args) != 0 {
			attrs = append(attrs, slog.Any("args", d.Args))
		}
		if d.CausedBy != nil {
			attrs = append(attrs, slog.String("caused_by", causedBy(d.CausedBy)))
		}

		logger.LogAttrs(ctx, level, message, attrs...)
	}
}

func causedBy(err error) string {
	return fmt.Sprintf("%T: %v", err, err)
}
