package eventually

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels classifying a Failure. Check them with errors.Is.
var (
	// ErrTimeout means the matcher never held within the attempt limit.
	ErrTimeout = errors.New("condition not met within attempt limit")
	// ErrSettled means the last value can never match, so polling stopped
	// early. It wraps ErrTimeout: the condition was not met.
	ErrSettled = fmt.Errorf("%w: value settled without matching", ErrTimeout)
	// ErrProbe means the probe itself returned an error.
	ErrProbe = errors.New("probe failed")
	// ErrInterrupted means the caller's context ended while polling.
	ErrInterrupted = errors.New("polling interrupted")
	// ErrInvalidPolicy means the poll policy cannot drive a run.
	ErrInvalidPolicy = errors.New("invalid poll policy")
)

// Failure is the diagnostic returned by every failed run. It carries the
// expected condition, the last observed value and the number of probes made.
type Failure struct {
	Kind     error
	Expected string
	Actual   string // last observed value, "<none>" when no probe succeeded
	Mismatch string
	Attempts int
	Elapsed  time.Duration
	Cause    error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "%v after %d attempt(s) in %s", f.Kind, f.Attempts, f.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&buf, "\n  Expected: %s", f.Expected)
	fmt.Fprintf(&buf, "\n  Actual: %s", f.Actual)
	if f.Mismatch != "" {
		fmt.Fprintf(&buf, "\n  Mismatch: %s", f.Mismatch)
	}
	if f.Cause != nil {
		fmt.Fprintf(&buf, "\n  Cause: %v", f.Cause)
	}
	return buf.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (f *Failure) Unwrap() []error {
	if f.Cause == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Cause}
}
