package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/portalprefs/internal/adapter/metrics"
)

// BreakerConfig controls when the Redis breaker opens: Failures failed calls
// among the last Window calls open it for OpenFor. One success while half
// open closes it.
type BreakerConfig struct {
	Failures uint
	Window   uint
	OpenFor  time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Failures: 3, Window: 5, OpenFor: 30 * time.Second}
}

// CircuitBreakerHook fails Redis calls fast while Redis is unavailable.
// Every caller of this client treats a failure, an open breaker included, as
// a cache miss and goes to the store.
type CircuitBreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook builds the breaker. m may be nil.
func NewCircuitBreakerHook(bc BreakerConfig, m *metrics.RedisMetrics) *CircuitBreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThresholdRatio(bc.Failures, bc.Window).
		WithDelay(bc.OpenFor).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Redis circuit breaker state changed", "from", e.OldState.String(), "to", e.NewState.String())
			if m == nil {
				return
			}
			m.StateChanges.WithLabelValues(e.NewState.String()).Inc()
			m.CircuitBreakerState.Set(stateGauge(e.NewState))
		}).
		Build()

	return &CircuitBreakerHook{cb: cb}
}

// stateGauge encodes closed, half-open and open as 0, 1 and 2.
func stateGauge(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	}
	return -1
}

func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var conn net.Conn
		err := h.guard(func() error {
			var err error
			conn, err = next(ctx, network, addr)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("redis dial: %w", err)
		}
		return conn, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		return h.guard(func() error { return next(ctx, cmd) })
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		return h.guard(func() error { return next(ctx, cmds) })
	}
}

// guard runs call when the breaker admits it and records the outcome.
// redis.Nil and a cancelled caller count as successes; neither says anything
// about Redis health.
func (h *CircuitBreakerHook) guard(call func() error) error {
	if !h.cb.TryAcquirePermit() {
		return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
	}
	err := call()
	if err == nil || errors.Is(err, goredis.Nil) || errors.Is(err, context.Canceled) {
		h.cb.RecordSuccess()
		return err
	}
	h.cb.RecordError(err)
	return err
}
