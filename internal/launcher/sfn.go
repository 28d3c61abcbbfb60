package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// SFNAPI is the subset of the AWS Step Functions client used by StepFunctionLauncher.
type SFNAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
	DescribeExecution(ctx context.Context, params *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
	StopExecution(ctx context.Context, params *sfn.StopExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StopExecutionOutput, error)
}

var _ TaskLauncher = (*StepFunctionLauncher)(nil)

// StepFunctionLauncher starts executions of the state machine named by the
// request resource. The execution ARN is the launch id.
type StepFunctionLauncher struct {
	client SFNAPI
}

// NewStepFunctionLauncher creates a Step Functions launcher around client.
func NewStepFunctionLauncher(client SFNAPI) *StepFunctionLauncher {
	return &StepFunctionLauncher{client: client}
}

// sfnInput is the execution input handed to the state machine.
type sfnInput struct {
	Name                 string            `json:"name"`
	Properties           map[string]string `json:"properties,omitempty"`
	DeploymentProperties map[string]string `json:"deploymentProperties,omitempty"`
	Args                 []string          `json:"args,omitempty"`
}

// Launch starts a state machine execution. Step Functions generates the
// execution name, so relaunching the same definition always yields a new id.
func (s *StepFunctionLauncher) Launch(ctx context.Context, req types.LaunchRequest) (types.LaunchID, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	b, err := json.Marshal(sfnInput{
		Name:                 req.Definition.Name,
		Properties:           req.Definition.Properties,
		DeploymentProperties: req.DeploymentProperties,
		Args:                 req.CommandLineArgs,
	})
	if err != nil {
		return "", fmt.Errorf("%w: step-function: marshaling input: %w", ErrLaunch, err)
	}

	out, err := s.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(req.Resource),
		Input:           aws.String(string(b)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: step-function StartExecution: %w", ErrLaunch, err)
	}
	if out.ExecutionArn == nil || *out.ExecutionArn == "" {
		return "", fmt.Errorf("%w: step-function StartExecution returned no execution ARN", ErrLaunch)
	}
	return types.LaunchID(*out.ExecutionArn), nil
}

func isExecutionARN(id types.LaunchID) bool {
	return strings.HasPrefix(string(id), "arn:") && strings.Contains(string(id), ":execution:")
}

// Status maps the execution status onto the launch lifecycle.
func (s *StepFunctionLauncher) Status(ctx context.Context, id types.LaunchID) (types.TaskStatus, error) {
	if !isExecutionARN(id) {
		return unknownStatus(id), nil
	}

	out, err := s.client.DescribeExecution(ctx, &sfn.DescribeExecutionInput{
		ExecutionArn: aws.String(string(id)),
	})
	if err != nil {
		var nf *sfntypes.ExecutionDoesNotExist
		var bad *sfntypes.InvalidArn
		if errors.As(err, &nf) || errors.As(err, &bad) {
			return unknownStatus(id), nil
		}
		return types.TaskStatus{}, fmt.Errorf("sfn status: DescribeExecution failed: %w", err)
	}

	attrs := map[string]string{AttrNativeState: string(out.Status)}
	if out.Name != nil {
		attrs[AttrName] = *out.Name
	}
	if out.Cause != nil {
		attrs[AttrMessage] = *out.Cause
	}
	return types.NewTaskStatus(id, sfnState(out.Status), attrs), nil
}

func sfnState(s sfntypes.ExecutionStatus) types.LaunchState {
	switch s {
	case sfntypes.ExecutionStatusSucceeded:
		return types.LaunchComplete
	case sfntypes.ExecutionStatusAborted:
		return types.LaunchCancelled
	case sfntypes.ExecutionStatusFailed, sfntypes.ExecutionStatusTimedOut:
		return types.LaunchFailed
	default:
		return types.LaunchRunning
	}
}

// Cancel stops a running execution. Stopping a finished execution is a
// no-op on the service side.
func (s *StepFunctionLauncher) Cancel(ctx context.Context, id types.LaunchID) error {
	if !isExecutionARN(id) {
		return nil
	}
	_, err := s.client.StopExecution(ctx, &sfn.StopExecutionInput{
		ExecutionArn: aws.String(string(id)),
		Cause:        aws.String("cancelled by launchcheck"),
	})
	if err != nil {
		var nf *sfntypes.ExecutionDoesNotExist
		if errors.As(err, &nf) {
			return nil
		}
		return fmt.Errorf("sfn cancel: StopExecution failed: %w", err)
	}
	return nil
}
