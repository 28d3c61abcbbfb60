package launcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emrserverless"
	emrsltypes "github.com/aws/aws-sdk-go-v2/service/emrserverless/types"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// EMRServerlessAPI is the subset of the AWS EMR Serverless client used by EMRServerlessLauncher.
type EMRServerlessAPI interface {
	StartJobRun(ctx context.Context, params *emrserverless.StartJobRunInput, optFns ...func(*emrserverless.Options)) (*emrserverless.StartJobRunOutput, error)
	GetJobRun(ctx context.Context, params *emrserverless.GetJobRunInput, optFns ...func(*emrserverless.Options)) (*emrserverless.GetJobRunOutput, error)
	CancelJobRun(ctx context.Context, params *emrserverless.CancelJobRunInput, optFns ...func(*emrserverless.Options)) (*emrserverless.CancelJobRunOutput, error)
}

var _ TaskLauncher = (*EMRServerlessLauncher)(nil)

// EMRServerlessLauncher submits Spark jobs to an EMR Serverless application.
// The request resource is the job entry point. Launch ids have the form
// "<applicationId>/<jobRunId>".
type EMRServerlessLauncher struct {
	client EMRServerlessAPI
	cfg    types.EMRServerlessConfig
}

// NewEMRServerlessLauncher creates an EMR Serverless launcher.
func NewEMRServerlessLauncher(client EMRServerlessAPI, cfg types.EMRServerlessConfig) (*EMRServerlessLauncher, error) {
	if cfg.ApplicationID == "" {
		return nil, fmt.Errorf("emr-serverless launcher: applicationId is required")
	}
	if cfg.ExecutionRoleARN == "" {
		return nil, fmt.Errorf("emr-serverless launcher: executionRoleArn is required")
	}
	return &EMRServerlessLauncher{client: client, cfg: cfg}, nil
}

// Launch starts a job run with the command line as entry point arguments.
func (e *EMRServerlessLauncher) Launch(ctx context.Context, req types.LaunchRequest) (types.LaunchID, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	out, err := e.client.StartJobRun(ctx, &emrserverless.StartJobRunInput{
		ApplicationId:    aws.String(e.cfg.ApplicationID),
		ExecutionRoleArn: aws.String(e.cfg.ExecutionRoleARN),
		Name:             aws.String(req.Definition.Name),
		JobDriver: &emrsltypes.JobDriverMemberSparkSubmit{
			Value: emrsltypes.SparkSubmit{
				EntryPoint:          aws.String(req.Resource),
				EntryPointArguments: CommandLine(req),
			},
		},
		Tags: req.DeploymentProperties,
	})
	if err != nil {
		return "", fmt.Errorf("%w: emr-serverless StartJobRun: %w", ErrLaunch, err)
	}
	if out.JobRunId == nil || *out.JobRunId == "" {
		return "", fmt.Errorf("%w: emr-serverless StartJobRun returned no job run id", ErrLaunch)
	}
	return joinID(e.cfg.ApplicationID, *out.JobRunId), nil
}

// Status maps the job run state onto the launch lifecycle.
func (e *EMRServerlessLauncher) Status(ctx context.Context, id types.LaunchID) (types.TaskStatus, error) {
	appID, runID, ok := splitID(id)
	if !ok {
		return unknownStatus(id), nil
	}

	out, err := e.client.GetJobRun(ctx, &emrserverless.GetJobRunInput{
		ApplicationId: aws.String(appID),
		JobRunId:      aws.String(runID),
	})
	if err != nil {
		var nf *emrsltypes.ResourceNotFoundException
		if errors.As(err, &nf) {
			return unknownStatus(id), nil
		}
		return types.TaskStatus{}, fmt.Errorf("emr-serverless status: GetJobRun failed: %w", err)
	}
	if out.JobRun == nil {
		return types.TaskStatus{}, fmt.Errorf("emr-serverless status: GetJobRun returned nil JobRun")
	}

	attrs := map[string]string{AttrNativeState: string(out.JobRun.State)}
	if out.JobRun.StateDetails != nil {
		attrs[AttrMessage] = *out.JobRun.StateDetails
	}
	if out.JobRun.Name != nil {
		attrs[AttrName] = *out.JobRun.Name
	}
	return types.NewTaskStatus(id, emrServerlessState(out.JobRun.State), attrs), nil
}

func emrServerlessState(s emrsltypes.JobRunState) types.LaunchState {
	switch s {
	case emrsltypes.JobRunStateSuccess:
		return types.LaunchComplete
	case emrsltypes.JobRunStateCancelled:
		return types.LaunchCancelled
	case emrsltypes.JobRunStateFailed:
		return types.LaunchFailed
	default:
		return types.LaunchRunning
	}
}

// Cancel cancels a job run. Unknown runs are ignored.
func (e *EMRServerlessLauncher) Cancel(ctx context.Context, id types.LaunchID) error {
	appID, runID, ok := splitID(id)
	if !ok {
		return nil
	}
	status, err := e.Status(ctx, id)
	if err != nil {
		return err
	}
	if status.State != types.LaunchRunning {
		return nil
	}
	_, err = e.client.CancelJobRun(ctx, &emrserverless.CancelJobRunInput{
		ApplicationId: aws.String(appID),
		JobRunId:      aws.String(runID),
	})
	if err != nil {
		return fmt.Errorf("emr-serverless cancel: CancelJobRun failed: %w", err)
	}
	return nil
}
