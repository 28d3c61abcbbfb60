package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/tasklaunch/internal/testutil"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

func TestRecorder_Records(t *testing.T) {
	r := NewRecorder(nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	r.Record("a", "id-1")
	r.Record("b", "id-2")

	assert.Equal(t, []LaunchRecord{
		{ID: "id-1", Name: "a", LaunchedAt: fixed},
		{ID: "id-2", Name: "b", LaunchedAt: fixed},
	}, r.Records())
	assert.Equal(t, []types.LaunchID{"id-1", "id-2"}, r.IDs())
}

func TestRecorder_CleanupCancelsRunningOnly(t *testing.T) {
	ctx := context.Background()
	ml := testutil.NewMockLauncher()
	r := NewRecorder(nil)

	done, err := ml.Launch(ctx, testutil.Request("done", map[string]string{"killDelay": "0"}))
	require.NoError(t, err)
	r.Record("done", done)
	_, err = ml.Status(ctx, done)
	require.NoError(t, err)

	forever, err := ml.Launch(ctx, testutil.Request("forever", map[string]string{"killDelay": "-1"}))
	require.NoError(t, err)
	r.Record("forever", forever)
	r.Record("forever", forever)

	require.NoError(t, r.Cleanup(ctx, ml))
	assert.Equal(t, int64(1), ml.CancelCalls())

	st, err := ml.Status(ctx, forever)
	require.NoError(t, err)
	assert.Equal(t, types.LaunchCancelled, st.State)

	st, err = ml.Status(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, types.LaunchComplete, st.State)
}

func TestRecorder_CleanupCancelsUnknownBestEffort(t *testing.T) {
	ctx := context.Background()
	ml := testutil.NewMockLauncher()
	r := NewRecorder(nil)
	r.Record("ghost", "not-listed-yet")

	require.NoError(t, r.Cleanup(ctx, ml))
	assert.Equal(t, int64(1), ml.CancelCalls())
}

func TestRecorder_CleanupIgnoresUnknownCancelError(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(nil)
	r.Record("ghost", "not-listed-yet")

	fl := &failingCancel{MockLauncher: testutil.NewMockLauncher()}
	require.NoError(t, r.Cleanup(ctx, fl))
	assert.Equal(t, 1, fl.calls)
}

type failingCancel struct {
	*testutil.MockLauncher
	calls int
}

func (f *failingCancel) Cancel(context.Context, types.LaunchID) error {
	f.calls++
	return errors.New("no such launch")
}

func TestRecorder_CleanupJoinsErrors(t *testing.T) {
	ctx := context.Background()
	ml := testutil.NewMockLauncher()
	r := NewRecorder(nil)

	a, err := ml.Launch(ctx, testutil.Request("a", map[string]string{"killDelay": "-1"}))
	require.NoError(t, err)
	b, err := ml.Launch(ctx, testutil.Request("b", map[string]string{"killDelay": "-1"}))
	require.NoError(t, err)
	r.Record("a", a)
	r.Record("b", b)

	boom := errors.New("unreachable")
	ml.StatusErr = func(types.LaunchID, int) error { return boom }

	err = r.Cleanup(ctx, ml)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), string(a))
	assert.Contains(t, err.Error(), string(b))
	assert.Equal(t, int64(0), ml.CancelCalls())
}
