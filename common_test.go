package stamina_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/teenjuna/stamina"
	"github.com/teenjuna/stamina/hook"
)

func run(t *testing.T, name string, fn func(t *testing.T)) {
	t.Run(name, func(t *testing.T) {
		t.Helper()
		t.Parallel()
		fn(t)
	})
}

func newCell(configFuncs ...stamina.ConfigFunc) *stamina.Cell {
	return stamina.New(append([]stamina.ConfigFunc{
		func(c *stamina.Config) {
			c.Logger(slog.New(slog.NewTextHandler(io.Discard, nil)))
		},
	}, configFuncs...)...)
}

// journal collects names of the called hooks.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) hook(name string) hook.Hook {
	return func(ctx context.Context, d hook.Details) {
		j.mu.Lock()
		defer j.mu.Unlock()
		j.calls = append(j.calls, name)
	}
}

func (j *journal) names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string{}, j.calls...)
}

func call(t *testing.T, hooks []hook.Hook) {
	t.Helper()
	for _, h := range hooks {
		h(t.Context(), hook.Details{Name: "test", RetryNum: 1})
	}
}
