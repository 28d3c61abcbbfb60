package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

const awsSendTimeout = 10 * time.Second

// SNSAPI is the subset of the SNS client used by SNSSink.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func newSNSClient(cfg aws.Config) SNSAPI { return sns.NewFromConfig(cfg) }

// SNSSink publishes suite reports to an SNS topic.
type SNSSink struct {
	client   SNSAPI
	topicARN string
}

// NewSNSSink creates a new SNS report sink.
func NewSNSSink(topicARN string, client SNSAPI) (*SNSSink, error) {
	if topicARN == "" {
		return nil, fmt.Errorf("SNS topic ARN required")
	}
	return &SNSSink{client: client, topicARN: topicARN}, nil
}

// Name returns the sink identifier.
func (s *SNSSink) Name() string { return "sns" }

// Send publishes the report as JSON. The verdict is also carried as a
// message attribute so subscriptions can filter on failures.
func (s *SNSSink) Send(ctx context.Context, report types.SuiteReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	verdict := "passed"
	if !report.Passed() {
		verdict = "failed"
	}
	subject := fmt.Sprintf("[%s] launchcheck %s %s", verdict, report.Launcher, report.SuiteID)
	if len(subject) > 100 {
		subject = subject[:100]
	}

	ctx, cancel := context.WithTimeout(ctx, awsSendTimeout)
	defer cancel()
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(data)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"verdict": {DataType: aws.String("String"), StringValue: aws.String(verdict)},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing to SNS: %w", err)
	}
	return nil
}
