package eventually

import (
	"fmt"
	"strings"
)

// Matcher is a predicate over T paired with the text used in diagnostics.
// Mismatch is optional; when nil the observed value is printed instead.
//
// Settled is optional too. It reports that a non-matching value can never
// change into a match, and lets Eventually give up before the attempt limit.
type Matcher[T any] struct {
	Description string
	Match       func(T) bool
	Mismatch    func(T) string
	Settled     func(T) bool
}

// Func builds a matcher from a description and predicate.
func Func[T any](description string, match func(T) bool) Matcher[T] {
	return Matcher[T]{Description: description, Match: match}
}

// DescribeMismatch explains why v did not satisfy m.
func (m Matcher[T]) DescribeMismatch(v T) string {
	if m.Mismatch != nil {
		return m.Mismatch(v)
	}
	return fmt.Sprintf("was %v", v)
}

// Is matches values equal to want.
func Is[T comparable](want T) Matcher[T] {
	return Matcher[T]{
		Description: fmt.Sprintf("is %v", want),
		Match:       func(v T) bool { return v == want },
	}
}

// Not inverts m.
func Not[T any](m Matcher[T]) Matcher[T] {
	return Matcher[T]{
		Description: "not " + m.Description,
		Match:       func(v T) bool { return !m.Match(v) },
		Mismatch:    func(v T) string { return fmt.Sprintf("was %v", v) },
	}
}

// AllOf matches when every matcher holds. The mismatch names the first
// matcher that failed.
func AllOf[T any](ms ...Matcher[T]) Matcher[T] {
	descs := make([]string, len(ms))
	for i, m := range ms {
		descs[i] = "(" + m.Description + ")"
	}
	return Matcher[T]{
		Description: strings.Join(descs, " and "),
		Match: func(v T) bool {
			for _, m := range ms {
				if !m.Match(v) {
					return false
				}
			}
			return true
		},
		Mismatch: func(v T) string {
			for _, m := range ms {
				if !m.Match(v) {
					return m.Description + " " + m.DescribeMismatch(v)
				}
			}
			return ""
		},
		Settled: func(v T) bool {
			for _, m := range ms {
				if !m.Match(v) && m.Settled != nil && m.Settled(v) {
					return true
				}
			}
			return false
		},
	}
}
