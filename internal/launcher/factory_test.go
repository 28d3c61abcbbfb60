package launcher

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

func TestFactory_BuildsInjectedClients(t *testing.T) {
	f := NewFactory(
		WithGlueClient(&mockGlueClient{}),
		WithSFNClient(&mockSFNClient{}),
		WithEMRClient(&mockEMRClient{}),
		WithEMRServerlessClient(&mockEMRServerlessClient{}),
	)
	f.loadAWS = func(context.Context, string) (aws.Config, error) {
		t.Fatal("AWS config must not be loaded when clients are injected")
		return aws.Config{}, nil
	}

	tests := []struct {
		cfg  types.LauncherConfig
		want any
	}{
		{types.LauncherConfig{Type: types.LauncherLocal}, &Local{}},
		{types.LauncherConfig{Type: types.LauncherGlue}, &GlueLauncher{}},
		{types.LauncherConfig{Type: types.LauncherStepFunction}, &StepFunctionLauncher{}},
		{types.LauncherConfig{Type: types.LauncherEMR, EMR: &types.EMRConfig{ClusterID: "j-1"}}, &EMRLauncher{}},
		{types.LauncherConfig{Type: types.LauncherEMRServerless, EMRServerless: &testEMRSLConfig}, &EMRServerlessLauncher{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.cfg.Type), func(t *testing.T) {
			l, err := f.New(context.Background(), tt.cfg)
			require.NoError(t, err)
			inst, ok := l.(*Instrumented)
			require.True(t, ok)
			assert.IsType(t, tt.want, inst.next)
			require.NoError(t, Close(context.Background(), l))
		})
	}
}

func TestFactory_WrapsBreaker(t *testing.T) {
	f := NewFactory(WithGlueClient(&mockGlueClient{}))
	l, err := f.New(context.Background(), types.LauncherConfig{
		Type:    types.LauncherGlue,
		Breaker: &types.BreakerConfig{FailThreshold: 3, Cooldown: "5s"},
	})
	require.NoError(t, err)
	inst := l.(*Instrumented)
	b, ok := inst.next.(*Breaker)
	require.True(t, ok)
	assert.IsType(t, &GlueLauncher{}, b.next)
}

func TestFactory_Errors(t *testing.T) {
	f := NewFactory()
	f.loadAWS = func(context.Context, string) (aws.Config, error) {
		return aws.Config{}, errors.New("no credentials")
	}

	_, err := f.New(context.Background(), types.LauncherConfig{Type: "ftp"})
	assert.ErrorContains(t, err, "unknown launcher type")

	_, err = f.New(context.Background(), types.LauncherConfig{Type: types.LauncherEMR})
	assert.ErrorContains(t, err, "emr launcher config is nil")

	_, err = f.New(context.Background(), types.LauncherConfig{Type: types.LauncherGlue, Region: "eu-west-1"})
	assert.ErrorContains(t, err, "no credentials")
}

func TestCommandLineAndArgumentMap(t *testing.T) {
	req := testRequest()
	assert.Equal(t, []string{"--exitCode=7", "--killDelay=1000", "--exitCode=0"}, CommandLine(req))
	assert.Equal(t, map[string]string{"--exitCode": "0", "--killDelay": "1000"}, ArgumentMap(req))
}

func TestSplitID(t *testing.T) {
	tests := []struct {
		id            types.LaunchID
		scope, native string
		ok            bool
	}{
		{"job/run", "job", "run", true},
		{"a/b/c", "a/b", "c", true},
		{"plain", "", "", false},
		{"/run", "", "", false},
		{"job/", "", "", false},
	}
	for _, tt := range tests {
		scope, native, ok := splitID(tt.id)
		assert.Equal(t, tt.ok, ok, tt.id)
		assert.Equal(t, tt.scope, scope, tt.id)
		assert.Equal(t, tt.native, native, tt.id)
	}
}

func TestNewLaunchID_Unique(t *testing.T) {
	seen := make(map[types.LaunchID]bool)
	for range 100 {
		id := NewLaunchID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
