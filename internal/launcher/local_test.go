package launcher_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/tasklaunch/internal/launcher"
	"github.com/dwsmith1983/tasklaunch/internal/launchertest"
	"github.com/dwsmith1983/tasklaunch/internal/testapp"
	"github.com/dwsmith1983/tasklaunch/internal/testutil"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

const helperEnv = "TASKLAUNCH_HELPER_PROCESS"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestHelperProcess is not a real test. The local launcher re-executes the
// test binary with it selected to act as the test application.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	if i := slices.Index(args, "--"); i >= 0 {
		args = args[i+1:]
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	code := testapp.Run(ctx, args, io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	stop()
	os.Exit(code)
}

func newHelperLauncher(t *testing.T) *launcher.Local {
	t.Helper()
	l := launcher.NewLocal(
		launcher.WithBaseArgs("-test.run=^TestHelperProcess$", "--"),
		launcher.WithEnv(map[string]string{helperEnv: "1"}),
		launcher.WithLocalLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, l.Close(ctx))
	})
	return l
}

func helperRequest(props map[string]string, args ...string) types.LaunchRequest {
	return types.LaunchRequest{
		Definition:      types.AppDefinition{Name: "helper", Properties: props},
		Resource:        os.Args[0],
		CommandLineArgs: args,
	}
}

func TestLocal_Conformance(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns processes")
	}
	launchertest.RunAll(t, newHelperLauncher(t), launchertest.Options{
		Resource:     os.Args[0],
		Deployment:   types.PollPolicy{MaxAttempts: 100, PauseMillis: 50},
		Undeployment: types.PollPolicy{MaxAttempts: 100, PauseMillis: 50},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestLocal_ExitCodeAttribute(t *testing.T) {
	l := newHelperLauncher(t)
	id, err := l.Launch(context.Background(), helperRequest(map[string]string{"exitCode": "3"}))
	require.NoError(t, err)

	st := testutil.WaitForState(t, l, id, types.LaunchFailed, 10*time.Second)
	assert.Equal(t, "3", st.Attribute(launcher.AttrExitCode))
	assert.Equal(t, "helper", st.Attribute(launcher.AttrName))
	assert.NotEmpty(t, st.Attribute(launcher.AttrPID))
}

func TestLocal_CancelTerminalIsNoop(t *testing.T) {
	l := newHelperLauncher(t)
	ctx := context.Background()
	id, err := l.Launch(ctx, helperRequest(nil, "--exitCode=0"))
	require.NoError(t, err)
	testutil.WaitForState(t, l, id, types.LaunchComplete, 10*time.Second)

	require.NoError(t, l.Cancel(ctx, id))
	st, err := l.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.LaunchComplete, st.State)
}

func TestLocal_LaunchMissingExecutable(t *testing.T) {
	l := newHelperLauncher(t)
	req := helperRequest(nil)
	req.Resource = "/nonexistent/testapp"
	_, err := l.Launch(context.Background(), req)
	assert.ErrorIs(t, err, launcher.ErrLaunch)
}

func TestLocal_CloseStopsRunning(t *testing.T) {
	l := launcher.NewLocal(
		launcher.WithBaseArgs("-test.run=^TestHelperProcess$", "--"),
		launcher.WithEnv(map[string]string{helperEnv: "1"}),
	)
	ctx := context.Background()
	id, err := l.Launch(ctx, helperRequest(map[string]string{"killDelay": "-1"}))
	require.NoError(t, err)
	testutil.WaitForState(t, l, id, types.LaunchRunning, 5*time.Second)

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, l.Close(closeCtx))

	st, err := l.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.LaunchCancelled, st.State)
}
