package launcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	"github.com/aws/aws-sdk-go-v2/service/emrserverless"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// Factory builds launchers from configuration. AWS clients are created from
// the default credential chain unless injected.
type Factory struct {
	logger *slog.Logger

	glueClient  GlueAPI
	emrClient   EMRAPI
	emrSLClient EMRServerlessAPI
	sfnClient   SFNAPI

	loadAWS func(ctx context.Context, region string) (aws.Config, error)
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithGlueClient sets a custom Glue client (useful for testing).
func WithGlueClient(c GlueAPI) FactoryOption {
	return func(f *Factory) { f.glueClient = c }
}

// WithEMRClient sets a custom EMR client.
func WithEMRClient(c EMRAPI) FactoryOption {
	return func(f *Factory) { f.emrClient = c }
}

// WithEMRServerlessClient sets a custom EMR Serverless client.
func WithEMRServerlessClient(c EMRServerlessAPI) FactoryOption {
	return func(f *Factory) { f.emrSLClient = c }
}

// WithSFNClient sets a custom Step Functions client.
func WithSFNClient(c SFNAPI) FactoryOption {
	return func(f *Factory) { f.sfnClient = c }
}

// WithLogger sets the logger handed to built launchers.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a Factory with the given options.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		logger:  slog.Default(),
		loadAWS: loadAWSConfig,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// New builds the launcher described by cfg, wrapped for instrumentation and,
// when configured, a circuit breaker.
func (f *Factory) New(ctx context.Context, cfg types.LauncherConfig) (TaskLauncher, error) {
	base, err := f.build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var l TaskLauncher = base
	if cfg.Breaker != nil {
		b, err := NewBreaker(l, *cfg.Breaker, f.logger)
		if err != nil {
			return nil, err
		}
		l = b
	}
	inst, err := Instrument(l, cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("instrumenting %s launcher: %w", cfg.Type, err)
	}
	return inst, nil
}

func (f *Factory) build(ctx context.Context, cfg types.LauncherConfig) (TaskLauncher, error) {
	switch cfg.Type {
	case types.LauncherLocal:
		opts := []LocalOption{WithLocalLogger(f.logger)}
		if cfg.Local != nil {
			opts = append(opts, WithBaseArgs(cfg.Local.BaseArgs...), WithEnv(cfg.Local.Env))
		}
		return NewLocal(opts...), nil
	case types.LauncherGlue:
		client := f.glueClient
		if client == nil {
			awsCfg, err := f.loadAWS(ctx, cfg.Region)
			if err != nil {
				return nil, err
			}
			client = glue.NewFromConfig(awsCfg)
		}
		return NewGlueLauncher(client), nil
	case types.LauncherStepFunction:
		client := f.sfnClient
		if client == nil {
			awsCfg, err := f.loadAWS(ctx, cfg.Region)
			if err != nil {
				return nil, err
			}
			client = sfn.NewFromConfig(awsCfg)
		}
		return NewStepFunctionLauncher(client), nil
	case types.LauncherEMR:
		if cfg.EMR == nil {
			return nil, fmt.Errorf("emr launcher config is nil")
		}
		client := f.emrClient
		if client == nil {
			awsCfg, err := f.loadAWS(ctx, cfg.Region)
			if err != nil {
				return nil, err
			}
			client = emr.NewFromConfig(awsCfg)
		}
		return NewEMRLauncher(client, *cfg.EMR)
	case types.LauncherEMRServerless:
		if cfg.EMRServerless == nil {
			return nil, fmt.Errorf("emr-serverless launcher config is nil")
		}
		client := f.emrSLClient
		if client == nil {
			awsCfg, err := f.loadAWS(ctx, cfg.Region)
			if err != nil {
				return nil, err
			}
			client = emrserverless.NewFromConfig(awsCfg)
		}
		return NewEMRServerlessLauncher(client, *cfg.EMRServerless)
	default:
		return nil, fmt.Errorf("unknown launcher type: %q", cfg.Type)
	}
}

// Close releases resources held by l if it holds any.
func Close(ctx context.Context, l TaskLauncher) error {
	if c, ok := l.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
