// Package report delivers suite reports to the configured sinks.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/dwsmith1983/tasklaunch/internal/metrics"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// Sink is a report destination.
type Sink interface {
	Send(ctx context.Context, report types.SuiteReport) error
	Name() string
}

// Dispatcher routes suite reports to configured sinks.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

type options struct {
	logger    *slog.Logger
	console   io.Writer
	region    string
	snsClient SNSAPI
	sqsClient SQSAPI
	ddbClient DynamoDBAPI

	awsOnce sync.Once
	awsCfg  aws.Config
	awsErr  error
}

// Option configures a Dispatcher.
type Option func(*options)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConsole redirects the console sink (default os.Stdout).
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithRegion sets the AWS region for sinks built from the default config.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithSNSClient sets a custom SNS client (useful for testing).
func WithSNSClient(c SNSAPI) Option {
	return func(o *options) { o.snsClient = c }
}

// WithSQSClient sets a custom SQS client.
func WithSQSClient(c SQSAPI) Option {
	return func(o *options) { o.sqsClient = c }
}

// WithDynamoDBClient sets a custom DynamoDB client.
func WithDynamoDBClient(c DynamoDBAPI) Option {
	return func(o *options) { o.ddbClient = c }
}

func (o *options) aws(ctx context.Context) (aws.Config, error) {
	o.awsOnce.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if o.region != "" {
			opts = append(opts, awsconfig.WithRegion(o.region))
		}
		o.awsCfg, o.awsErr = awsconfig.LoadDefaultConfig(ctx, opts...)
		if o.awsErr != nil {
			o.awsErr = fmt.Errorf("loading AWS config: %w", o.awsErr)
		}
	})
	return o.awsCfg, o.awsErr
}

// NewDispatcher creates a dispatcher from report configs.
func NewDispatcher(ctx context.Context, configs []types.ReportConfig, opts ...Option) (*Dispatcher, error) {
	o := &options{logger: slog.Default(), console: os.Stdout}
	for _, fn := range opts {
		fn(o)
	}
	d := &Dispatcher{logger: o.logger}
	for _, cfg := range configs {
		sink, err := newSink(ctx, cfg, o)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// Sinks returns the configured sinks.
func (d *Dispatcher) Sinks() []Sink { return d.sinks }

// Dispatch sends the report to every sink. A failing sink does not stop the
// others; all failures are returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, report types.SuiteReport) error {
	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, report); err != nil {
			metrics.ReportsFailed.Add(1)
			d.logger.Error("report delivery failed", "sink", sink.Name(), "suiteId", report.SuiteID, "error", err)
			errs = append(errs, fmt.Errorf("%s sink: %w", sink.Name(), err))
			continue
		}
		metrics.ReportsSent.Add(1)
		d.logger.Debug("report delivered", "sink", sink.Name(), "suiteId", report.SuiteID)
	}
	return errors.Join(errs...)
}

func newSink(ctx context.Context, cfg types.ReportConfig, o *options) (Sink, error) {
	switch cfg.Type {
	case types.ReportConsole:
		return NewConsoleSink(o.console), nil
	case types.ReportFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.ReportSNS:
		client := o.snsClient
		if client == nil {
			awsCfg, err := o.aws(ctx)
			if err != nil {
				return nil, err
			}
			client = newSNSClient(awsCfg)
		}
		return NewSNSSink(cfg.TopicARN, client)
	case types.ReportSQS:
		client := o.sqsClient
		if client == nil {
			awsCfg, err := o.aws(ctx)
			if err != nil {
				return nil, err
			}
			client = newSQSClient(awsCfg)
		}
		return NewSQSSink(cfg.QueueURL, client)
	case types.ReportDynamoDB:
		client := o.ddbClient
		if client == nil {
			awsCfg, err := o.aws(ctx)
			if err != nil {
				return nil, err
			}
			client = newDynamoDBClient(awsCfg)
		}
		return NewDynamoDBSink(cfg.TableName, client)
	default:
		return nil, fmt.Errorf("unknown report type %q", cfg.Type)
	}
}
