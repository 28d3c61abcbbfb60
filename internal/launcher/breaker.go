package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/tasklaunch/internal/metrics"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// ErrBreakerOpen is returned while the breaker rejects calls to the wrapped launcher.
var ErrBreakerOpen = errors.New("launcher circuit open")

const (
	defaultFailThreshold = 5
	defaultCooldown      = 30 * time.Second
)

var (
	_ TaskLauncher = (*Breaker)(nil)
	_ Closer       = (*Breaker)(nil)
)

// Breaker fails fast once the wrapped launcher returns FailThreshold
// consecutive errors. Invalid requests do not count as failures.
type Breaker struct {
	next TaskLauncher
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next in a circuit breaker configured by cfg. A zero
// threshold or empty cooldown falls back to 5 failures and 30s.
func NewBreaker(next TaskLauncher, cfg types.BreakerConfig, logger *slog.Logger) (*Breaker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.FailThreshold
	if threshold <= 0 {
		threshold = defaultFailThreshold
	}
	cooldown := defaultCooldown
	if cfg.Cooldown != "" {
		d, err := time.ParseDuration(cfg.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("breaker cooldown %q: %w", cfg.Cooldown, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("breaker cooldown must be positive, got %s", d)
		}
		cooldown = d
	}

	st := gobreaker.Settings{
		Name:        "launcher",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(threshold)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidRequest)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.BreakerTrips.Add(1)
			}
			logger.Warn("launcher breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) wrapErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrBreakerOpen, err)
	}
	return err
}

func (b *Breaker) Launch(ctx context.Context, req types.LaunchRequest) (types.LaunchID, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Launch(ctx, req)
	})
	if err != nil {
		return "", b.wrapErr(err)
	}
	return out.(types.LaunchID), nil
}

func (b *Breaker) Status(ctx context.Context, id types.LaunchID) (types.TaskStatus, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Status(ctx, id)
	})
	if err != nil {
		return types.TaskStatus{}, b.wrapErr(err)
	}
	return out.(types.TaskStatus), nil
}

func (b *Breaker) Cancel(ctx context.Context, id types.LaunchID) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Cancel(ctx, id)
	})
	return b.wrapErr(err)
}

// Close closes the wrapped launcher, bypassing the breaker.
func (b *Breaker) Close(ctx context.Context) error {
	if c, ok := b.next.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
