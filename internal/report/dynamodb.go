package report

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDBSink.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

func newDynamoDBClient(cfg aws.Config) DynamoDBAPI { return dynamodb.NewFromConfig(cfg) }

// DynamoDBSink stores one item per scenario result, keyed by
// PK = "SUITE#<suiteId>" and SK = "SCENARIO#<name>".
type DynamoDBSink struct {
	client    DynamoDBAPI
	tableName string
}

// NewDynamoDBSink creates a new DynamoDB report sink.
func NewDynamoDBSink(tableName string, client DynamoDBAPI) (*DynamoDBSink, error) {
	if tableName == "" {
		return nil, fmt.Errorf("DynamoDB table name required")
	}
	return &DynamoDBSink{client: client, tableName: tableName}, nil
}

// Name returns the sink identifier.
func (s *DynamoDBSink) Name() string { return "dynamodb" }

// Send writes every scenario result of the report.
func (s *DynamoDBSink) Send(ctx context.Context, report types.SuiteReport) error {
	for _, res := range report.Results {
		item, err := attributevalue.MarshalMap(res)
		if err != nil {
			return fmt.Errorf("marshaling result %s: %w", res.Scenario, err)
		}
		item["PK"] = &ddbtypes.AttributeValueMemberS{Value: "SUITE#" + report.SuiteID}
		item["SK"] = &ddbtypes.AttributeValueMemberS{Value: "SCENARIO#" + res.Scenario}
		item["launcher"] = &ddbtypes.AttributeValueMemberS{Value: string(report.Launcher)}

		pctx, cancel := context.WithTimeout(ctx, awsSendTimeout)
		_, err = s.client.PutItem(pctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      item,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("writing result %s: %w", res.Scenario, err)
		}
	}
	return nil
}
