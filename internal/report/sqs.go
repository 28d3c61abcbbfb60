package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// SQSAPI is the subset of the SQS client used by SQSSink.
type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

func newSQSClient(cfg aws.Config) SQSAPI { return sqs.NewFromConfig(cfg) }

// SQSSink sends suite reports to an SQS queue.
type SQSSink struct {
	client   SQSAPI
	queueURL string
}

// NewSQSSink creates a new SQS report sink.
func NewSQSSink(queueURL string, client SQSAPI) (*SQSSink, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("SQS queue URL required")
	}
	return &SQSSink{client: client, queueURL: queueURL}, nil
}

// Name returns the sink identifier.
func (s *SQSSink) Name() string { return "sqs" }

// Send enqueues the report as one JSON message.
func (s *SQSSink) Send(ctx context.Context, report types.SuiteReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, awsSendTimeout)
	defer cancel()
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"suiteId":  {DataType: aws.String("String"), StringValue: aws.String(report.SuiteID)},
			"launcher": {DataType: aws.String("String"), StringValue: aws.String(string(report.Launcher))},
		},
	})
	if err != nil {
		return fmt.Errorf("sending to SQS: %w", err)
	}
	return nil
}
