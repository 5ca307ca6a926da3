package sqlite_test

import (
	"errors"
	"io"
	"log/slog"
	"path"
	"testing"
	"time"

	"github.com/teenjuna/stamina"
	"github.com/teenjuna/stamina/hook"
	"github.com/teenjuna/stamina/hook/sqlite"
	"github.com/teenjuna/stamina/internal/testing/require"
)

func TestConfig(t *testing.T) {
	cfg := &sqlite.Config{}

	require.PanicWithError(t, "URI can't be blank", func() {
		cfg.URI(" ")
	})

	require.PanicWithError(t, "URI query is invalid", func() {
		cfg.URI("file?a=%zz")
	})

	require.PanicWithError(t, "conns can't be < 1", func() {
		cfg.Conns(0)
	})

	require.PanicWithError(t, "logger can't be nil", func() {
		cfg.Logger(nil)
	})
}

func TestNew(t *testing.T) {
	run(t, func(t *testing.T, file string) {
		recorder := sqlite.New(func(c *sqlite.Config) { c.URI(file) })
		deferClose(t, recorder)
		require.NotNil(t, recorder)

		attempts, err := recorder.Attempts(t.Context())
		require.Nil(t, err)
		require.Equal(t, len(attempts), 0)

		stats, err := recorder.Stats(t.Context())
		require.Nil(t, err)
		require.Equal(t, *stats, sqlite.Stats{})
	})
}

func TestRecord(t *testing.T) {
	run(t, func(t *testing.T, file string) {
		recorder := sqlite.New(func(c *sqlite.Config) { c.URI(file) })
		deferClose(t, recorder)

		h, err := hook.Resolve(recorder.Declaration())
		require.Nil(t, err)

		errBad := errors.New("bad")
		inputs := []hook.Details{
			{
				Name:     "fetch",
				Args:     []any{"a", 1},
				RetryNum: 1,
				WaitFor:  time.Second,
				CausedBy: errBad,
			},
			{
				Name:        "fetch",
				RetryNum:    2,
				WaitFor:     2 * time.Second,
				WaitedSoFar: time.Second,
				CausedBy:    errBad,
			},
			{
				Name:     "store",
				RetryNum: 1,
			},
		}
		for _, d := range inputs {
			h(t.Context(), d)
		}

		attempts, err := recorder.Attempts(t.Context())
		require.Nil(t, err)
		require.Equal(t, len(attempts), len(inputs))

		for i, d := range inputs {
			a := attempts[i]
			require.NotEqual(t, a.ID, "")
			require.Equal(t, a.Callable, d.Name)
			require.Equal(t, a.RetryNum, d.RetryNum)
			require.Equal(t, a.WaitFor, d.WaitFor)
			require.Equal(t, a.WaitedSoFar, d.WaitedSoFar)
			require.Equal(t, a.RecordedAt.IsZero(), false)
		}
		require.Equal(t, attempts[0].Args, `["a",1]`)
		require.Equal(t, attempts[0].CausedBy, "bad")
		require.Equal(t, attempts[0].ErrorType, "*errors.errorString")
		require.Equal(t, attempts[2].Args, "")
		require.Equal(t, attempts[2].CausedBy, "")

		stats, err := recorder.Stats(t.Context())
		require.Nil(t, err)
		require.Equal(t, stats.Attempts, 3)
		require.Equal(t, stats.Callables, 2)
		require.Equal(t, stats.LastAttemptAt, attempts[2].RecordedAt)
	})
}

func TestResolveMany(t *testing.T) {
	run(t, func(t *testing.T, file string) {
		recorder := sqlite.New(func(c *sqlite.Config) { c.URI(file) })
		deferClose(t, recorder)

		h1, err := hook.Resolve(recorder.Declaration())
		require.Nil(t, err)
		h2, err := hook.Resolve(recorder.Declaration())
		require.Nil(t, err)

		h1(t.Context(), hook.Details{Name: "fetch", RetryNum: 1})
		h2(t.Context(), hook.Details{Name: "fetch", RetryNum: 2})

		stats, err := recorder.Stats(t.Context())
		require.Nil(t, err)
		require.Equal(t, stats.Attempts, 2)
	})
}

func TestClose(t *testing.T) {
	run(t, func(t *testing.T, file string) {
		recorder := sqlite.New(func(c *sqlite.Config) {
			c.URI(file)
			c.Conns(2)
			c.Logger(slog.New(slog.NewTextHandler(io.Discard, nil)))
		})

		h, err := hook.Resolve(recorder.Declaration())
		require.Nil(t, err)

		require.Nil(t, recorder.Close())
		require.Equal(t, recorder.Close(), sqlite.ErrClosed)

		// Doesn't panic.
		h(t.Context(), hook.Details{Name: "fetch", RetryNum: 1})

		_, err = hook.Resolve(recorder.Declaration())
		require.Equal(t, err, sqlite.ErrClosed)

		_, err = recorder.Attempts(t.Context())
		require.Equal(t, err, sqlite.ErrClosed)

		_, err = recorder.Stats(t.Context())
		require.Equal(t, err, sqlite.ErrClosed)
	})
}

func TestCellResolution(t *testing.T) {
	t.Run("Open failure", func(t *testing.T) {
		file := path.Join(t.TempDir(), "missing", "file")
		recorder := sqlite.New(func(c *sqlite.Config) { c.URI(file) })
		deferClose(t, recorder)

		c := stamina.New()
		c.SetHooks([]hook.Declaration{recorder.Declaration()})

		_, err := c.Hooks(t.Context())
		var rerr *stamina.HookResolutionError
		require.ErrorAs(t, err, &rerr)
		require.Equal(t, c.State(), stamina.Stale)
	})

	t.Run("Record through cell", func(t *testing.T) {
		recorder := sqlite.New()
		deferClose(t, recorder)

		c := stamina.New()
		c.SetHooks([]hook.Declaration{recorder.Declaration()})

		hooks, err := c.Hooks(t.Context())
		require.Nil(t, err)
		for _, h := range hooks {
			h(t.Context(), hook.Details{Name: "fetch", RetryNum: 1})
		}

		stats, err := recorder.Stats(t.Context())
		require.Nil(t, err)
		require.Equal(t, stats.Attempts, 1)
	})
}

func run(t *testing.T, fn func(t *testing.T, file string)) {
	t.Helper()
	t.Run("In file", func(t *testing.T) {
		t.Helper()
		fn(t, path.Join(t.TempDir(), "file"))
	})
	t.Run("In memory", func(t *testing.T) {
		t.Helper()
		fn(t, ":memory:")
	})
}

func deferClose(t *testing.T, recorder *sqlite.Recorder) {
	t.Cleanup(func() {
		if err := recorder.Close(); err != nil && !errors.Is(err, sqlite.ErrClosed) {
			t.Fatalf("close recorder: %v", err)
		}
	})
}
