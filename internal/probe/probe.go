// Package probe adapts a TaskLauncher's status query to the eventually engine.
package probe

import (
	"context"
	"fmt"

	"github.com/dwsmith1983/tasklaunch/internal/eventually"
	"github.com/dwsmith1983/tasklaunch/internal/launcher"
	"github.com/dwsmith1983/tasklaunch/internal/lifecycle"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// Status returns a probe that queries l for id on every call. Nothing is
// cached between calls.
func Status(l launcher.TaskLauncher, id types.LaunchID) eventually.Probe[types.TaskStatus] {
	return func(ctx context.Context) (types.TaskStatus, error) {
		st, err := l.Status(ctx, id)
		if err != nil {
			return types.TaskStatus{}, fmt.Errorf("status of %s: %w", id, err)
		}
		return st, nil
	}
}

// HasState matches a status snapshot in the given state. A snapshot in a
// different terminal state has settled: it can never reach want.
func HasState(want types.LaunchState) eventually.Matcher[types.TaskStatus] {
	return eventually.Matcher[types.TaskStatus]{
		Description: fmt.Sprintf("state is %s", want),
		Match:       func(st types.TaskStatus) bool { return st.State == want },
		Mismatch: func(st types.TaskStatus) string {
			return fmt.Sprintf("status of %s had state %s", st.ID, st.State)
		},
		Settled: func(st types.TaskStatus) bool {
			return st.State != want && lifecycle.IsTerminal(st.State)
		},
	}
}

// Observed feeds every snapshot p returns into path. A lifecycle violation
// is returned as a probe error so polling stops at once.
func Observed(p eventually.Probe[types.TaskStatus], path *lifecycle.Path) eventually.Probe[types.TaskStatus] {
	return func(ctx context.Context) (types.TaskStatus, error) {
		st, err := p(ctx)
		if err != nil {
			return st, err
		}
		if err := path.Observe(st.State); err != nil {
			return st, err
		}
		return st, nil
	}
}
