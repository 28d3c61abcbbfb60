package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dwsmith1983/tasklaunch/internal/launcher"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// WaitFor polls check every 10ms until it returns true or timeout is reached.
func WaitFor(t *testing.T, timeout time.Duration, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition: %s", msg)
}

// WaitForState polls l until id reports state, returning the final snapshot.
func WaitForState(t *testing.T, l launcher.TaskLauncher, id types.LaunchID, state types.LaunchState, timeout time.Duration) types.TaskStatus {
	t.Helper()
	var st types.TaskStatus
	WaitFor(t, timeout, func() bool {
		var err error
		st, err = l.Status(context.Background(), id)
		return err == nil && st.State == state
	}, "launch "+string(id)+" reaching "+string(state))
	return st
}
