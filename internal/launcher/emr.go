package launcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// EMRAPI is the subset of the AWS EMR client used by EMRLauncher.
type EMRAPI interface {
	AddJobFlowSteps(ctx context.Context, params *emr.AddJobFlowStepsInput, optFns ...func(*emr.Options)) (*emr.AddJobFlowStepsOutput, error)
	DescribeStep(ctx context.Context, params *emr.DescribeStepInput, optFns ...func(*emr.Options)) (*emr.DescribeStepOutput, error)
	CancelSteps(ctx context.Context, params *emr.CancelStepsInput, optFns ...func(*emr.Options)) (*emr.CancelStepsOutput, error)
}

var _ TaskLauncher = (*EMRLauncher)(nil)

// EMRLauncher adds steps to an existing EMR cluster. The request resource is
// the step JAR. Launch ids have the form "<clusterId>/<stepId>".
type EMRLauncher struct {
	client    EMRAPI
	clusterID string
}

// NewEMRLauncher creates an EMR step launcher for the configured cluster.
func NewEMRLauncher(client EMRAPI, cfg types.EMRConfig) (*EMRLauncher, error) {
	if cfg.ClusterID == "" {
		return nil, fmt.Errorf("emr launcher: clusterId is required")
	}
	return &EMRLauncher{client: client, clusterID: cfg.ClusterID}, nil
}

// Launch adds one step running the JAR with the rendered command line.
func (e *EMRLauncher) Launch(ctx context.Context, req types.LaunchRequest) (types.LaunchID, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	out, err := e.client.AddJobFlowSteps(ctx, &emr.AddJobFlowStepsInput{
		JobFlowId: aws.String(e.clusterID),
		Steps: []emrtypes.StepConfig{
			{
				Name: aws.String(req.Definition.Name),
				HadoopJarStep: &emrtypes.HadoopJarStepConfig{
					Jar:  aws.String(req.Resource),
					Args: CommandLine(req),
				},
				ActionOnFailure: emrtypes.ActionOnFailureContinue,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: emr AddJobFlowSteps: %w", ErrLaunch, err)
	}
	if len(out.StepIds) == 0 || out.StepIds[0] == "" {
		return "", fmt.Errorf("%w: emr AddJobFlowSteps returned no step id", ErrLaunch)
	}
	return joinID(e.clusterID, out.StepIds[0]), nil
}

// Status maps the step state onto the launch lifecycle.
func (e *EMRLauncher) Status(ctx context.Context, id types.LaunchID) (types.TaskStatus, error) {
	clusterID, stepID, ok := splitID(id)
	if !ok {
		return unknownStatus(id), nil
	}

	out, err := e.client.DescribeStep(ctx, &emr.DescribeStepInput{
		ClusterId: aws.String(clusterID),
		StepId:    aws.String(stepID),
	})
	if err != nil {
		var bad *emrtypes.InvalidRequestException
		if errors.As(err, &bad) {
			return unknownStatus(id), nil
		}
		return types.TaskStatus{}, fmt.Errorf("emr status: DescribeStep failed: %w", err)
	}
	if out.Step == nil || out.Step.Status == nil {
		return types.TaskStatus{}, fmt.Errorf("emr status: DescribeStep returned no step status")
	}

	native := out.Step.Status.State
	attrs := map[string]string{AttrNativeState: string(native)}
	if out.Step.Name != nil {
		attrs[AttrName] = *out.Step.Name
	}
	if fd := out.Step.Status.FailureDetails; fd != nil && fd.Message != nil {
		attrs[AttrMessage] = *fd.Message
	}
	return types.NewTaskStatus(id, emrState(native), attrs), nil
}

func emrState(s emrtypes.StepState) types.LaunchState {
	switch s {
	case emrtypes.StepStateCompleted:
		return types.LaunchComplete
	case emrtypes.StepStateCancelled:
		return types.LaunchCancelled
	case emrtypes.StepStateFailed, emrtypes.StepStateInterrupted:
		return types.LaunchFailed
	default:
		return types.LaunchRunning
	}
}

// Cancel asks EMR to terminate the step's process.
func (e *EMRLauncher) Cancel(ctx context.Context, id types.LaunchID) error {
	clusterID, stepID, ok := splitID(id)
	if !ok {
		return nil
	}
	out, err := e.client.CancelSteps(ctx, &emr.CancelStepsInput{
		ClusterId:              aws.String(clusterID),
		StepIds:                []string{stepID},
		StepCancellationOption: emrtypes.StepCancellationOptionTerminateProcess,
	})
	if err != nil {
		var bad *emrtypes.InvalidRequestException
		if errors.As(err, &bad) {
			return nil
		}
		return fmt.Errorf("emr cancel: CancelSteps failed: %w", err)
	}
	for _, info := range out.CancelStepsInfoList {
		if info.Status == emrtypes.CancelStepsRequestStatusFailed {
			// EMR refuses to cancel steps that already finished.
			status, serr := e.Status(ctx, id)
			if serr == nil && status.State != types.LaunchRunning {
				return nil
			}
			reason := ""
			if info.Reason != nil {
				reason = *info.Reason
			}
			return fmt.Errorf("emr cancel: step %s not cancelled: %s", stepID, reason)
		}
	}
	return nil
}
