// Package launchertest provides shared conformance tests for
// launcher.TaskLauncher implementations. Call RunAll from a test function to
// verify a launcher satisfies the full behavioral contract.
package launchertest

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/tasklaunch/internal/eventually"
	"github.com/dwsmith1983/tasklaunch/internal/launcher"
	"github.com/dwsmith1983/tasklaunch/internal/probe"
	"github.com/dwsmith1983/tasklaunch/internal/record"
	"github.com/dwsmith1983/tasklaunch/internal/scenario"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// Options configures the suite. Zero policies fall back to the defaults.
type Options struct {
	Resource             string
	DeploymentProperties map[string]string
	Deployment           types.PollPolicy
	Undeployment         types.PollPolicy
	Logger               *slog.Logger
	PollOptions          []eventually.Option
}

type suite struct {
	l    launcher.TaskLauncher
	r    *scenario.Runner
	rec  *record.Recorder
	opts Options
}

func newSuite(t *testing.T, l launcher.TaskLauncher, opts Options) *suite {
	t.Helper()
	rec := record.NewRecorder(opts.Logger)
	r, err := scenario.New(scenario.Config{
		Launcher:             l,
		Resource:             opts.Resource,
		DeploymentProperties: opts.DeploymentProperties,
		Deployment:           opts.Deployment,
		Undeployment:         opts.Undeployment,
		Logger:               opts.Logger,
		Recorder:             rec,
		PollOptions:          opts.PollOptions,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := rec.Cleanup(context.Background(), l); err != nil {
			t.Errorf("launch cleanup: %v", err)
		}
	})
	return &suite{l: l, r: r, rec: rec, opts: opts}
}

// RunAll runs the complete launcher conformance suite as subtests.
func RunAll(t *testing.T, l launcher.TaskLauncher, opts Options) {
	t.Helper()
	s := newSuite(t, l, opts)

	t.Run("NonExistentStatus", func(t *testing.T) { require.NoError(t, s.r.NonExistentStatus(context.Background())) })
	t.Run("SimpleLaunch", func(t *testing.T) { require.NoError(t, s.r.SimpleLaunch(context.Background())) })
	t.Run("ReLaunch", func(t *testing.T) { require.NoError(t, s.r.ReLaunch(context.Background())) })
	t.Run("ErrorExit", func(t *testing.T) { require.NoError(t, s.r.ErrorExit(context.Background())) })
	t.Run("SimpleCancel", func(t *testing.T) { require.NoError(t, s.r.SimpleCancel(context.Background())) })
	t.Run("CommandLineArgs", func(t *testing.T) { require.NoError(t, s.r.CommandLineArgs(context.Background())) })
	t.Run("CancelUnknownID", func(t *testing.T) { TestCancelUnknownID(t, s.l) })
	t.Run("CancelAfterTerminal", func(t *testing.T) { testCancelAfterTerminal(t, s) })
}

// TestCancelUnknownID verifies that cancelling a never-launched id succeeds
// and leaves it unknown.
func TestCancelUnknownID(t *testing.T, l launcher.TaskLauncher) {
	ctx := context.Background()
	id := types.LaunchID(scenario.RandomName())

	require.NoError(t, l.Cancel(ctx, id))
	st, err := l.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.LaunchUnknown, st.State)
}

func testCancelAfterTerminal(t *testing.T, s *suite) {
	ctx := context.Background()
	req := types.LaunchRequest{
		Definition: types.AppDefinition{
			Name:       scenario.RandomName(),
			Properties: map[string]string{"killDelay": "0", "exitCode": "0"},
		},
		Resource:             s.opts.Resource,
		DeploymentProperties: s.opts.DeploymentProperties,
	}
	id, err := s.l.Launch(ctx, req)
	require.NoError(t, err)
	s.rec.Record(req.Definition.Name, id)

	policy := s.opts.Deployment
	if policy == (types.PollPolicy{}) {
		policy = types.DefaultPollPolicy()
	}
	_, err = eventually.Eventually(ctx, probe.Status(s.l, id), probe.HasState(types.LaunchComplete), policy, s.opts.PollOptions...)
	require.NoError(t, err)

	require.NoError(t, s.l.Cancel(ctx, id), "cancel of a finished launch is a no-op")
	st, err := s.l.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.LaunchComplete, st.State, "cancel must not change a terminal state")
}
