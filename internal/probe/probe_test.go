package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/tasklaunch/internal/eventually"
	"github.com/dwsmith1983/tasklaunch/internal/lifecycle"
	"github.com/dwsmith1983/tasklaunch/internal/testutil"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

func noWait() eventually.Option {
	return eventually.WithWaiter(eventually.WaiterFunc(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
}

func TestStatus_QueriesEveryCall(t *testing.T) {
	ml := testutil.NewMockLauncher()
	id, err := ml.Launch(context.Background(), testutil.Request("app", map[string]string{"killDelay": "-1"}))
	require.NoError(t, err)

	p := Status(ml, id)
	for range 3 {
		st, err := p(context.Background())
		require.NoError(t, err)
		assert.Equal(t, id, st.ID)
		assert.Equal(t, types.LaunchRunning, st.State)
	}
	assert.Equal(t, int64(3), ml.StatusCalls())
}

func TestStatus_WrapsError(t *testing.T) {
	ml := testutil.NewMockLauncher()
	boom := errors.New("backend down")
	ml.StatusErr = func(types.LaunchID, int) error { return boom }

	_, err := Status(ml, "x")(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "status of x")
}

func TestHasState(t *testing.T) {
	m := HasState(types.LaunchComplete)
	assert.Equal(t, "state is complete", m.Description)

	st := types.NewTaskStatus("abc", types.LaunchRunning, nil)
	assert.False(t, m.Match(st))
	assert.Equal(t, "status of abc had state running", m.DescribeMismatch(st))
	assert.True(t, m.Match(types.NewTaskStatus("abc", types.LaunchComplete, nil)))
}

func TestHasState_SettledOnOtherTerminalState(t *testing.T) {
	m := HasState(types.LaunchRunning)

	assert.True(t, m.Settled(types.NewTaskStatus("abc", types.LaunchComplete, nil)))
	assert.True(t, m.Settled(types.NewTaskStatus("abc", types.LaunchCancelled, nil)))
	assert.False(t, m.Settled(types.NewTaskStatus("abc", types.LaunchUnknown, nil)))
	assert.False(t, m.Settled(types.NewTaskStatus("abc", types.LaunchRunning, nil)))

	done := HasState(types.LaunchComplete)
	assert.False(t, done.Settled(types.NewTaskStatus("abc", types.LaunchComplete, nil)))
	assert.True(t, done.Settled(types.NewTaskStatus("abc", types.LaunchFailed, nil)))
}

func TestEventually_StopsWhenLaunchFinishesElsewhere(t *testing.T) {
	ml := testutil.NewMockLauncher()
	id, err := ml.Launch(context.Background(), testutil.Request("app", map[string]string{"killDelay": "0"}))
	require.NoError(t, err)

	_, err = eventually.Eventually(context.Background(), Status(ml, id), HasState(types.LaunchCancelled),
		types.PollPolicy{MaxAttempts: 10, PauseMillis: 1}, noWait())
	require.Error(t, err)
	assert.ErrorIs(t, err, eventually.ErrSettled)
	assert.Equal(t, int64(1), ml.StatusCalls())
}

func TestEventually_UnknownIDDiagnostics(t *testing.T) {
	ml := testutil.NewMockLauncher()
	policy := types.PollPolicy{MaxAttempts: 2, PauseMillis: 1}

	_, err := eventually.Eventually(context.Background(), Status(ml, "missing"),
		HasState(types.LaunchRunning), policy, noWait())
	require.Error(t, err)

	var f *eventually.Failure
	require.ErrorAs(t, err, &f)
	assert.ErrorIs(t, err, eventually.ErrTimeout)
	assert.Equal(t, "state is running", f.Expected)
	assert.Equal(t, "status of missing had state unknown", f.Mismatch)
	assert.Equal(t, 2, f.Attempts)
}

func TestObserved_RecordsPath(t *testing.T) {
	seq := []types.LaunchState{types.LaunchUnknown, types.LaunchRunning, types.LaunchComplete}
	i := 0
	base := func(context.Context) (types.TaskStatus, error) {
		st := types.NewTaskStatus("id", seq[i], nil)
		i++
		return st, nil
	}
	path := lifecycle.NewPath("id")
	p := Observed(base, path)
	for range seq {
		_, err := p(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, seq, path.States())
}

func TestObserved_StopsOnRegression(t *testing.T) {
	seq := []types.LaunchState{types.LaunchRunning, types.LaunchFailed, types.LaunchRunning}
	i := 0
	base := func(context.Context) (types.TaskStatus, error) {
		st := types.NewTaskStatus("id", seq[i], nil)
		i++
		return st, nil
	}
	path := lifecycle.NewPath("id")

	_, err := eventually.Eventually(context.Background(), Observed(base, path),
		HasState(types.LaunchCancelled), types.PollPolicy{MaxAttempts: 10}, noWait())
	require.Error(t, err)
	assert.ErrorIs(t, err, eventually.ErrProbe)
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)
	assert.Equal(t, 3, i)
}
