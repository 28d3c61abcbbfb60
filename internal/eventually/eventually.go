// Package eventually implements patient assertions over asynchronous state:
// a probe is polled until a matcher holds, the attempt limit runs out, the
// value settles into one that can never match, the probe errors, or the
// caller's context ends.
//
// Probe errors are never retried. A failing probe means the infrastructure
// under test is broken, which is a different verdict from "not yet".
package eventually

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

const tracerName = "github.com/dwsmith1983/tasklaunch/internal/eventually"

// Probe returns a fresh snapshot of the observed value on every call.
type Probe[T any] func(ctx context.Context) (T, error)

// Waiter pauses between attempts. Wait must return early with a non-nil
// error when ctx is done.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// WaiterFunc adapts a function to Waiter.
type WaiterFunc func(ctx context.Context, d time.Duration) error

// Wait calls f.
func (f WaiterFunc) Wait(ctx context.Context, d time.Duration) error { return f(ctx, d) }

type timerWaiter struct{}

// Wait blocks for d or until ctx is done, whichever comes first.
func (timerWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TimerWaiter returns the default Waiter backed by time.Timer.
func TimerWaiter() Waiter { return timerWaiter{} }

type settings struct {
	waiter Waiter
	logger *slog.Logger
	name   string
}

// Option configures a single Eventually run.
type Option func(*settings)

// WithWaiter replaces the timer-based waiter (useful for testing).
func WithWaiter(w Waiter) Option {
	return func(s *settings) { s.waiter = w }
}

// WithLogger sets the logger used for per-attempt debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithName labels the run in logs and spans.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// Eventually polls probe until m matches, following policy. It returns the
// matching value, or the last observed value together with a *Failure.
//
// The probe is invoked at most policy.MaxAttempts times and never
// concurrently with itself. A value that matches on the first attempt
// returns without any pause.
func Eventually[T any](ctx context.Context, probe Probe[T], m Matcher[T], policy types.PollPolicy, opts ...Option) (T, error) {
	var zero T
	if err := ValidatePolicy(policy); err != nil {
		return zero, err
	}
	if probe == nil || m.Match == nil {
		return zero, errors.New("eventually: probe and matcher predicate are required")
	}

	s := settings{waiter: timerWaiter{}, logger: slog.Default(), name: m.Description}
	for _, o := range opts {
		o(&s)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "eventually")
	defer span.End()
	span.SetAttributes(
		attribute.String("eventually.name", s.name),
		attribute.String("eventually.expected", m.Description),
		attribute.Int("eventually.max_attempts", policy.MaxAttempts),
	)

	start := time.Now()
	var (
		last     T
		observed bool
	)
	fail := func(kind, cause error, attempts int) (T, error) {
		f := &Failure{
			Kind:     kind,
			Expected: m.Description,
			Actual:   "<none>",
			Attempts: attempts,
			Elapsed:  time.Since(start),
			Cause:    cause,
		}
		if observed {
			f.Actual = fmt.Sprintf("%+v", last)
			f.Mismatch = m.DescribeMismatch(last)
		}
		span.SetAttributes(attribute.Int("eventually.attempts", attempts))
		span.RecordError(f)
		span.SetStatus(codes.Error, kind.Error())
		s.logger.Debug("eventually failed", "name", s.name, "attempts", attempts, "kind", kind, "error", cause)
		return last, f
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fail(ErrInterrupted, err, attempt)
		}

		v, err := probe(ctx)
		attempts := attempt + 1
		if err != nil {
			if ctx.Err() != nil {
				return fail(ErrInterrupted, err, attempts)
			}
			return fail(ErrProbe, err, attempts)
		}
		last, observed = v, true

		if m.Match(v) {
			span.SetAttributes(attribute.Int("eventually.attempts", attempts))
			s.logger.Debug("condition met", "name", s.name, "attempt", attempts)
			return v, nil
		}

		s.logger.Debug("condition not met",
			"name", s.name, "attempt", attempts, "maxAttempts", policy.MaxAttempts,
			"mismatch", m.DescribeMismatch(v))

		if m.Settled != nil && m.Settled(v) {
			return fail(ErrSettled, nil, attempts)
		}
		if attempts >= policy.MaxAttempts {
			return fail(ErrTimeout, nil, attempts)
		}
		if err := s.waiter.Wait(ctx, Pause(policy, attempt)); err != nil {
			return fail(ErrInterrupted, err, attempts)
		}
	}
}

// Check probes exactly once and fails immediately when m does not hold.
// It suits conditions that cannot change on their own.
func Check[T any](ctx context.Context, probe Probe[T], m Matcher[T], opts ...Option) (T, error) {
	return Eventually(ctx, probe, m, types.PollPolicy{MaxAttempts: 1}, opts...)
}
