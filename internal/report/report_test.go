package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

func init() {
	color.NoColor = true
}

func sampleReport() types.SuiteReport {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return types.SuiteReport{
		SuiteID:    "01HZSUITE",
		Launcher:   types.LauncherLocal,
		StartedAt:  start,
		FinishedAt: start.Add(5 * time.Second),
		Results: []types.ScenarioResult{
			{Scenario: "simple-launch", Passed: true, LaunchIDs: []types.LaunchID{"a"}, StartedAt: start, Duration: time.Second},
			{
				Scenario:  "cancel",
				Failure:   types.FailureTimeout,
				Message:   "timeout after 20 attempt(s)",
				LaunchIDs: []types.LaunchID{"b"},
				StartedAt: start,
				Duration:  2 * time.Second,
			},
		},
	}
}

type mockSNS struct {
	published []*sns.PublishInput
	err       error
}

func (m *mockSNS) Publish(_ context.Context, input *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.published = append(m.published, input)
	return &sns.PublishOutput{}, m.err
}

type mockSQS struct {
	sent []*sqs.SendMessageInput
}

func (m *mockSQS) SendMessage(_ context.Context, input *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.sent = append(m.sent, input)
	return &sqs.SendMessageOutput{}, nil
}

type mockDynamoDB struct {
	items []map[string]ddbtypes.AttributeValue
}

func (m *mockDynamoDB) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.items = append(m.items, input.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleSink(&buf).Send(context.Background(), sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "suite 01HZSUITE (launcher local)")
	assert.Contains(t, out, "PASS simple-launch")
	assert.Contains(t, out, "FAIL cancel")
	assert.Contains(t, out, "[timeout]")
	assert.Contains(t, out, "timeout after 20 attempt(s)")
	assert.Contains(t, out, "FAILED 1 of 2 scenario(s) failed")
}

func TestFileSink_Formats(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "report.json")
		sink, err := NewFileSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Send(ctx, sampleReport()))
		require.NoError(t, sink.Send(ctx, sampleReport()))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got types.SuiteReport
		require.NoError(t, json.Unmarshal(data, &got), "overwritten, not appended")
		assert.Equal(t, sampleReport(), got)
	})

	t.Run("jsonl", func(t *testing.T) {
		path := filepath.Join(dir, "report.jsonl")
		sink, err := NewFileSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Send(ctx, sampleReport()))
		require.NoError(t, sink.Send(ctx, sampleReport()))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "report.yaml")
		sink, err := NewFileSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Send(ctx, sampleReport()))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got types.SuiteReport
		require.NoError(t, yaml.Unmarshal(data, &got))
		assert.Equal(t, "01HZSUITE", got.SuiteID)
		assert.Len(t, got.Results, 2)
	})
}

func TestFileSink_Unwritable(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "report.json"))
	assert.ErrorContains(t, err, "opening report file")
}

func TestSNSSink_Send(t *testing.T) {
	mock := &mockSNS{}
	sink, err := NewSNSSink("arn:aws:sns:us-east-1:123456789:reports", mock)
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), sampleReport()))

	require.Len(t, mock.published, 1)
	pub := mock.published[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789:reports", *pub.TopicArn)
	assert.Equal(t, "[failed] launchcheck local 01HZSUITE", *pub.Subject)
	assert.Equal(t, "failed", *pub.MessageAttributes["verdict"].StringValue)

	var decoded types.SuiteReport
	require.NoError(t, json.Unmarshal([]byte(*pub.Message), &decoded))
	assert.Equal(t, sampleReport(), decoded)
}

func TestSNSSink_EmptyTopicARN(t *testing.T) {
	_, err := NewSNSSink("", &mockSNS{})
	assert.ErrorContains(t, err, "topic ARN required")
}

func TestSQSSink_Send(t *testing.T) {
	mock := &mockSQS{}
	sink, err := NewSQSSink("https://sqs.us-east-1.amazonaws.com/123/reports", mock)
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), sampleReport()))

	require.Len(t, mock.sent, 1)
	assert.Equal(t, "01HZSUITE", *mock.sent[0].MessageAttributes["suiteId"].StringValue)
	assert.Contains(t, *mock.sent[0].MessageBody, `"scenario":"cancel"`)
}

func TestDynamoDBSink_OneItemPerResult(t *testing.T) {
	mock := &mockDynamoDB{}
	sink, err := NewDynamoDBSink("launchcheck-results", mock)
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), sampleReport()))

	require.Len(t, mock.items, 2)
	item := mock.items[1]
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: "SUITE#01HZSUITE"}, item["PK"])
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: "SCENARIO#cancel"}, item["SK"])

	var res types.ScenarioResult
	require.NoError(t, attributevalue.UnmarshalMap(item, &res))
	assert.Equal(t, sampleReport().Results[1], res)
}

func TestNewDispatcher_Validation(t *testing.T) {
	ctx := context.Background()
	_, err := NewDispatcher(ctx, []types.ReportConfig{{Type: "pager"}})
	assert.ErrorContains(t, err, `unknown report type "pager"`)

	_, err = NewDispatcher(ctx, []types.ReportConfig{{Type: types.ReportFile}})
	assert.ErrorContains(t, err, "file path required")

	_, err = NewDispatcher(ctx, []types.ReportConfig{{Type: types.ReportSQS}}, WithSQSClient(&mockSQS{}))
	assert.ErrorContains(t, err, "queue URL required")
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	var console bytes.Buffer
	snsMock := &mockSNS{err: errors.New("throttled")}
	sqsMock := &mockSQS{}
	ddbMock := &mockDynamoDB{}

	d, err := NewDispatcher(context.Background(), []types.ReportConfig{
		{Type: types.ReportConsole},
		{Type: types.ReportSNS, TopicARN: "arn:aws:sns:us-east-1:1:t"},
		{Type: types.ReportSQS, QueueURL: "https://sqs/q"},
		{Type: types.ReportDynamoDB, TableName: "results"},
	},
		WithConsole(&console),
		WithSNSClient(snsMock),
		WithSQSClient(sqsMock),
		WithDynamoDBClient(ddbMock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	require.Len(t, d.Sinks(), 4)

	err = d.Dispatch(context.Background(), sampleReport())
	require.Error(t, err)
	assert.ErrorContains(t, err, "sns sink")
	assert.NotEmpty(t, console.String())
	assert.Len(t, sqsMock.sent, 1, "sinks after a failing one still run")
	assert.Len(t, ddbMock.items, 2)
}
