package eventually

import (
	"fmt"
	"math"
	"time"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// ValidatePolicy checks that p can drive a polling run.
func ValidatePolicy(p types.PollPolicy) error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: maxAttempts must be positive, got %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.PauseMillis < 0 {
		return fmt.Errorf("%w: pauseMillis must be non-negative, got %d", ErrInvalidPolicy, p.PauseMillis)
	}
	if p.BackoffMultiplier != 0 && p.BackoffMultiplier < 1 {
		return fmt.Errorf("%w: backoffMultiplier must be >= 1, got %g", ErrInvalidPolicy, p.BackoffMultiplier)
	}
	if p.MaxPauseMillis < 0 {
		return fmt.Errorf("%w: maxPauseMillis must be non-negative, got %d", ErrInvalidPolicy, p.MaxPauseMillis)
	}
	return nil
}

// Pause returns the wait after the given zero-based attempt:
// pauseMillis * multiplier^attempt, capped by maxPauseMillis when set.
// A zero multiplier means a fixed cadence.
func Pause(p types.PollPolicy, attempt int) time.Duration {
	base := float64(p.PauseMillis)
	if p.BackoffMultiplier > 1 && attempt > 0 {
		base *= math.Pow(p.BackoffMultiplier, float64(attempt))
	}
	if p.MaxPauseMillis > 0 && base > float64(p.MaxPauseMillis) {
		base = float64(p.MaxPauseMillis)
	}
	if base > float64(math.MaxInt64/int64(time.Millisecond)) {
		base = float64(math.MaxInt64 / int64(time.Millisecond))
	}
	return time.Duration(base) * time.Millisecond
}
