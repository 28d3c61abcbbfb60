package launcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// GlueAPI is the subset of the AWS Glue client used by GlueLauncher.
type GlueAPI interface {
	StartJobRun(ctx context.Context, params *glue.StartJobRunInput, optFns ...func(*glue.Options)) (*glue.StartJobRunOutput, error)
	GetJobRun(ctx context.Context, params *glue.GetJobRunInput, optFns ...func(*glue.Options)) (*glue.GetJobRunOutput, error)
	BatchStopJobRun(ctx context.Context, params *glue.BatchStopJobRunInput, optFns ...func(*glue.Options)) (*glue.BatchStopJobRunOutput, error)
}

var _ TaskLauncher = (*GlueLauncher)(nil)

// GlueLauncher runs the request resource as an AWS Glue job. The resource
// names the job; properties and arguments become job run arguments.
// Launch ids have the form "<jobName>/<jobRunId>".
type GlueLauncher struct {
	client GlueAPI
}

// NewGlueLauncher creates a Glue launcher around client.
func NewGlueLauncher(client GlueAPI) *GlueLauncher {
	return &GlueLauncher{client: client}
}

// Launch starts a Glue job run.
func (g *GlueLauncher) Launch(ctx context.Context, req types.LaunchRequest) (types.LaunchID, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	out, err := g.client.StartJobRun(ctx, &glue.StartJobRunInput{
		JobName:   aws.String(req.Resource),
		Arguments: ArgumentMap(req),
	})
	if err != nil {
		return "", fmt.Errorf("%w: glue StartJobRun: %w", ErrLaunch, err)
	}
	if out.JobRunId == nil || *out.JobRunId == "" {
		return "", fmt.Errorf("%w: glue StartJobRun returned no run id", ErrLaunch)
	}
	return joinID(req.Resource, *out.JobRunId), nil
}

// Status maps the Glue job run state onto the launch lifecycle.
func (g *GlueLauncher) Status(ctx context.Context, id types.LaunchID) (types.TaskStatus, error) {
	jobName, runID, ok := splitID(id)
	if !ok {
		return unknownStatus(id), nil
	}

	out, err := g.client.GetJobRun(ctx, &glue.GetJobRunInput{
		JobName: aws.String(jobName),
		RunId:   aws.String(runID),
	})
	if err != nil {
		var nf *gluetypes.EntityNotFoundException
		if errors.As(err, &nf) {
			return unknownStatus(id), nil
		}
		return types.TaskStatus{}, fmt.Errorf("glue status: GetJobRun failed: %w", err)
	}
	if out.JobRun == nil {
		return types.TaskStatus{}, fmt.Errorf("glue status: GetJobRun returned nil JobRun")
	}

	native := out.JobRun.JobRunState
	attrs := map[string]string{AttrNativeState: string(native)}
	if out.JobRun.ErrorMessage != nil {
		attrs[AttrMessage] = *out.JobRun.ErrorMessage
	}
	return types.NewTaskStatus(id, glueState(native), attrs), nil
}

func glueState(s gluetypes.JobRunState) types.LaunchState {
	switch s {
	case gluetypes.JobRunStateSucceeded:
		return types.LaunchComplete
	case gluetypes.JobRunStateStopped:
		return types.LaunchCancelled
	case gluetypes.JobRunStateFailed, gluetypes.JobRunStateTimeout,
		gluetypes.JobRunStateError, gluetypes.JobRunStateExpired:
		return types.LaunchFailed
	default:
		return types.LaunchRunning
	}
}

// Cancel stops a Glue job run. Glue ignores stop requests for finished runs.
func (g *GlueLauncher) Cancel(ctx context.Context, id types.LaunchID) error {
	jobName, runID, ok := splitID(id)
	if !ok {
		return nil
	}

	out, err := g.client.BatchStopJobRun(ctx, &glue.BatchStopJobRunInput{
		JobName:   aws.String(jobName),
		JobRunIds: []string{runID},
	})
	if err != nil {
		return fmt.Errorf("glue cancel: BatchStopJobRun failed: %w", err)
	}
	for _, e := range out.Errors {
		if e.ErrorDetail == nil || e.ErrorDetail.ErrorCode == nil {
			continue
		}
		switch *e.ErrorDetail.ErrorCode {
		case "EntityNotFoundException", "InvalidInputException":
			// Unknown or already finished run.
			continue
		}
		msg := ""
		if e.ErrorDetail.ErrorMessage != nil {
			msg = *e.ErrorDetail.ErrorMessage
		}
		return fmt.Errorf("glue cancel: %s: %s", *e.ErrorDetail.ErrorCode, msg)
	}
	return nil
}
