package launcher

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

type mockEMRClient struct {
	addIn       *emr.AddJobFlowStepsInput
	addOut      *emr.AddJobFlowStepsOutput
	addErr      error
	describeOut *emr.DescribeStepOutput
	describeErr error
	cancelOut   *emr.CancelStepsOutput
	cancelErr   error
}

func (m *mockEMRClient) AddJobFlowSteps(ctx context.Context, params *emr.AddJobFlowStepsInput, optFns ...func(*emr.Options)) (*emr.AddJobFlowStepsOutput, error) {
	m.addIn = params
	return m.addOut, m.addErr
}

func (m *mockEMRClient) DescribeStep(ctx context.Context, params *emr.DescribeStepInput, optFns ...func(*emr.Options)) (*emr.DescribeStepOutput, error) {
	return m.describeOut, m.describeErr
}

func (m *mockEMRClient) CancelSteps(ctx context.Context, params *emr.CancelStepsInput, optFns ...func(*emr.Options)) (*emr.CancelStepsOutput, error) {
	if m.cancelOut == nil {
		return &emr.CancelStepsOutput{}, m.cancelErr
	}
	return m.cancelOut, m.cancelErr
}

func stepOutput(state emrtypes.StepState) *emr.DescribeStepOutput {
	return &emr.DescribeStepOutput{Step: &emrtypes.Step{
		Name:   aws.String("app-1"),
		Status: &emrtypes.StepStatus{State: state},
	}}
}

func TestNewEMRLauncher_RequiresCluster(t *testing.T) {
	_, err := NewEMRLauncher(&mockEMRClient{}, types.EMRConfig{})
	assert.ErrorContains(t, err, "clusterId is required")
}

func TestEMRLauncher_Launch(t *testing.T) {
	client := &mockEMRClient{addOut: &emr.AddJobFlowStepsOutput{StepIds: []string{"s-ABC"}}}
	e, err := NewEMRLauncher(client, types.EMRConfig{ClusterID: "j-CLUSTER"})
	require.NoError(t, err)

	req := testRequest()
	req.Resource = "s3://bucket/testapp.jar"
	id, err := e.Launch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.LaunchID("j-CLUSTER/s-ABC"), id)

	require.Len(t, client.addIn.Steps, 1)
	step := client.addIn.Steps[0]
	assert.Equal(t, "app-1", *step.Name)
	assert.Equal(t, "s3://bucket/testapp.jar", *step.HadoopJarStep.Jar)
	assert.Equal(t, []string{"--exitCode=7", "--killDelay=1000", "--exitCode=0"}, step.HadoopJarStep.Args)
}

func TestEMRLauncher_LaunchNoStep(t *testing.T) {
	e, err := NewEMRLauncher(&mockEMRClient{addOut: &emr.AddJobFlowStepsOutput{}}, types.EMRConfig{ClusterID: "j-1"})
	require.NoError(t, err)
	_, err = e.Launch(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrLaunch)
}

func TestEMRLauncher_Status(t *testing.T) {
	tests := []struct {
		state emrtypes.StepState
		want  types.LaunchState
	}{
		{emrtypes.StepStatePending, types.LaunchRunning},
		{emrtypes.StepStateRunning, types.LaunchRunning},
		{emrtypes.StepStateCancelPending, types.LaunchRunning},
		{emrtypes.StepStateCompleted, types.LaunchComplete},
		{emrtypes.StepStateCancelled, types.LaunchCancelled},
		{emrtypes.StepStateFailed, types.LaunchFailed},
		{emrtypes.StepStateInterrupted, types.LaunchFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			e, err := NewEMRLauncher(&mockEMRClient{describeOut: stepOutput(tt.state)}, types.EMRConfig{ClusterID: "j-1"})
			require.NoError(t, err)
			st, err := e.Status(context.Background(), "j-1/s-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.State)
			assert.Equal(t, "app-1", st.Attribute(AttrName))
		})
	}
}

func TestEMRLauncher_StatusUnknown(t *testing.T) {
	e, err := NewEMRLauncher(&mockEMRClient{describeErr: &emrtypes.InvalidRequestException{}}, types.EMRConfig{ClusterID: "j-1"})
	require.NoError(t, err)

	st, err := e.Status(context.Background(), "j-1/s-missing")
	require.NoError(t, err)
	assert.Equal(t, types.LaunchUnknown, st.State)

	st, err = e.Status(context.Background(), "launchcheck-x")
	require.NoError(t, err)
	assert.Equal(t, types.LaunchUnknown, st.State)
}

func TestEMRLauncher_Cancel(t *testing.T) {
	client := &mockEMRClient{}
	e, err := NewEMRLauncher(client, types.EMRConfig{ClusterID: "j-1"})
	require.NoError(t, err)
	require.NoError(t, e.Cancel(context.Background(), "j-1/s-1"))

	// EMR refuses to cancel a finished step; that is not an error.
	client.cancelOut = &emr.CancelStepsOutput{CancelStepsInfoList: []emrtypes.CancelStepsInfo{{
		StepId: aws.String("s-1"), Status: emrtypes.CancelStepsRequestStatusFailed, Reason: aws.String("step completed"),
	}}}
	client.describeOut = stepOutput(emrtypes.StepStateCompleted)
	require.NoError(t, e.Cancel(context.Background(), "j-1/s-1"))

	client.describeOut = stepOutput(emrtypes.StepStateRunning)
	assert.ErrorContains(t, e.Cancel(context.Background(), "j-1/s-1"), "not cancelled")
}
