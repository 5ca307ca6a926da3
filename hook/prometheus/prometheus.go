// This package contains a [hook.Hook] that counts retries with a Prometheus counter.
package prometheus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/teenjuna/stamina/hook"
)

// Labels of the retries counter.
var Labels = []string{"callable", "retry_num", "error_type"}

// Config is a config of the Prometheus counter provided by [Counter].
//
// An instance can be created only by the [New] function. The zero value is invalid.
type Config struct {
	// Options for the retries counter.
	Retries prometheus.CounterOpts

	registerer prometheus.Registerer
}

// Counter counts retries with labels [Labels].
//
// The counter is created and registered when its declaration is resolved for the first time.
// Later resolutions reuse it, so the same Counter can be declared in many hook sets.
type Counter struct {
	cfg *Config

	mu  sync.Mutex
	vec *prometheus.CounterVec
}

// New returns a [Counter] with the provided registerer. If registerer is nil, the counter will not
// be registered. Default parameters can be configured by passing configuration functions.
func New(
	registerer prometheus.Registerer,
	configFuncs ...func(c *Config),
) *Counter {
	c := Config{
		registerer: registerer,
		Retries: prometheus.CounterOpts{
			Namespace: "stamina",
			Name:      "retries_total",
			Help:      "Total number of retries",
		},
	}

	for _, cf := range configFuncs {
		if cf != nil {
			cf(&c)
		}
	}

	return &Counter{cfg: &c}
}

// Declaration returns a declaration of the counting hook.
func (c *Counter) Declaration() hook.Declaration {
	return hook.Lazy(c.init)
}

// Collector returns the underlying counter or nil if it wasn't created yet.
func (c *Counter) Collector() *prometheus.CounterVec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vec
}

func (c *Counter) init() (hook.Hook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vec == nil {
		vec, err := c.register(prometheus.NewCounterVec(c.cfg.Retries, Labels))
		if err != nil {
			return nil, fmt.Errorf("register counter: %w", err)
		}
		c.vec = vec
	}

	vec := c.vec
	return func(ctx context.Context, d hook.Details) {
		vec.WithLabelValues(d.Name, strconv.Itoa(d.RetryNum), errorType(d.CausedBy)).Inc()
	}, nil
}

func (c *Counter) register(vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if c.cfg.registerer == nil {
		return vec, nil
	}

	err := c.cfg.registerer.Register(vec)
	if err == nil {
		return vec, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing, nil
		}
	}

	return nil, err
}

func errorType(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}
