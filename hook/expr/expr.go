// This package contains a conditional [hook.Hook] guarded by an expr-lang expression.
//
// The expression is evaluated against the details of every retry with these variables:
//   - callable (string)
//   - retry_num (int)
//   - wait_for (float, seconds)
//   - waited_so_far (float, seconds)
//   - caused_by (string, message of the error, empty if there is no error)
//   - error_type (string, Go type of the error)
//
// For example: `retry_num >= 3 && error_type == "*net.OpError"`.
package expr

import (
	"context"
	"fmt"
	"log/slog"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/teenjuna/stamina/hook"
)

type Config struct {
	resolver hook.Resolver
	logger   *slog.Logger
}

type ConfigFunc = func(c *Config)

// Resolver sets the resolver of the next declaration. Default is [hook.Resolve].
//
// It doesn't inherit the resolver of the cell resolving the returned declaration, so a cell with a
// custom resolver should pass it here too.
func (c *Config) Resolver(resolver hook.Resolver) {
	if resolver == nil {
		panic("resolver can't be nil")
	}
	c.resolver = resolver
}

// Logger sets the logger used to report failed evaluations. Default is [slog.Default] at the time
// of logging.
func (c *Config) Logger(logger *slog.Logger) {
	if logger == nil {
		panic("logger can't be nil")
	}
	c.logger = logger
}

// When declares a hook that calls the hook of next only for retries matching expression.
//
// The expression is compiled and next is resolved with the resolver of the config when the returned
// declaration is resolved, so an invalid expression fails the resolution. A retry whose evaluation
// fails is logged and skipped.
func When(expression string, next hook.Declaration, configFuncs ...ConfigFunc) hook.Declaration {
	if expression == "" {
		panic("expression can't be empty")
	}

	cfg := &Config{}
	cfg.Resolver(hook.ResolverFunc(hook.Resolve))
	for _, cf := range configFuncs {
		if cf != nil {
			cf(cfg)
		}
	}

	return hook.Lazy(func() (hook.Hook, error) {
		program, err := compile(expression)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", expression, err)
		}

		h, err := cfg.resolver.Resolve(next)
		if err != nil {
			return nil, fmt.Errorf("resolve next: %w", err)
		}

		return func(ctx context.Context, d hook.Details) {
			ok, err := match(program, d)
			if err != nil {
				cfg.log().WarnContext(ctx, "evaluate hook condition",
					slog.String("expression", expression),
					slog.String("callable", d.Name),
					slog.Any("error", err),
				)
				return
			}
			if ok {
				h(ctx, d)
			}
		}, nil
	})
}

func (c *Config) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

func compile(expression string) (*exprvm.Program, error) {
	return exprlang.Compile(
		expression,
		exprlang.Env(environment(hook.Details{})),
		exprlang.AsBool(),
	)
}

func match(program *exprvm.Program, d hook.Details) (bool, error) {
	out, err := exprlang.Run(program, environment(d))
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

func environment(d hook.Details) map[string]any {
	var errMsg, errType string
	if d.CausedBy != nil {
		errMsg = d.CausedBy.Error()
		errType = fmt.Sprintf("%T", d.CausedBy)
	}
	return map[string]any{
		"callable":      d.Name,
		"retry_num":     d.RetryNum,
		"wait_for":      d.WaitFor.Seconds(),
		"waited_so_far": d.WaitedSoFar.Seconds(),
		"caused_by":     errMsg,
		"error_type":    errType,
	}
}
