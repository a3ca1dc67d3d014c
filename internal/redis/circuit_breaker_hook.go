package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/pscheid92/tmi/internal/metrics"
)

const breakerComponent = "redis"

// CircuitBreakerHook fails Redis commands fast while Redis is unavailable.
// A nil reply is a success.
type CircuitBreakerHook struct {
	cb *gobreaker.CircuitBreaker
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips after at least 5 requests with a 60% failure
// rate, waits 30s before probing and closes after 3 successful probes.
func NewCircuitBreakerHook() *CircuitBreakerHook {
	return &CircuitBreakerHook{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerComponent,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: onStateChange,
	})}
}

func onStateChange(name string, from, to gobreaker.State) {
	slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
	metrics.CircuitBreakerStateChanges.WithLabelValues(name, to.String()).Inc()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) GetState() gobreaker.State { return h.cb.State() }

func (h *CircuitBreakerHook) GetCounts() gobreaker.Counts { return h.cb.Counts() }

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := h.cb.Execute(func() (any, error) {
			return next(ctx, network, addr)
		})
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		return conn.(net.Conn), nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		var inner error
		_, err := h.cb.Execute(func() (any, error) {
			inner = next(ctx, cmd)
			if errors.Is(inner, goredis.Nil) {
				return nil, nil
			}
			return nil, inner
		})
		return h.result(cmd, inner, err)
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		_, err := h.cb.Execute(func() (any, error) {
			return nil, next(ctx, cmds)
		})
		if isOpen(err) {
			return fmt.Errorf("redis circuit breaker open: %w", err)
		}
		if err != nil {
			return fmt.Errorf("circuit breaker pipeline failed: %w", err)
		}
		return nil
	}
}

// result keeps nil replies intact and marks commands rejected by an open
// breaker as failed.
func (h *CircuitBreakerHook) result(cmd goredis.Cmder, inner, err error) error {
	switch {
	case isOpen(err):
		err = fmt.Errorf("redis circuit breaker open: %w", err)
		cmd.SetErr(err)
		return err
	case errors.Is(inner, goredis.Nil):
		return inner
	case err != nil:
		return fmt.Errorf("circuit breaker process failed: %w", err)
	default:
		return nil
	}
}

func isOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
