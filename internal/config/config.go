// Package config handles loading and validation of launchcheck.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/tasklaunch/internal/eventually"
	"github.com/dwsmith1983/tasklaunch/internal/scenario"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// FileName is the project config file looked up by Load.
const FileName = "launchcheck.yaml"

// Load reads and parses launchcheck.yaml from the given directory, applies
// defaults and validates the result.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	var blocks map[string]yaml.Node
	if err := yaml.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// A policy block that is present is taken as written; only an absent
	// block gets the default policy.
	if _, ok := blocks["deployment"]; !ok {
		cfg.Deployment = types.DefaultPollPolicy()
	}
	if _, ok := blocks["undeployment"]; !ok {
		cfg.Undeployment = types.DefaultPollPolicy()
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present: the local
// launcher with default poll policies and a console report.
func Default() *types.ProjectConfig {
	cfg := &types.ProjectConfig{
		Launcher:     types.LauncherConfig{Type: types.LauncherLocal},
		Deployment:   types.DefaultPollPolicy(),
		Undeployment: types.DefaultPollPolicy(),
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset concurrency, reports and the telemetry service
// name. Poll policies are never touched: an explicit policy is validated as
// written.
func ApplyDefaults(cfg *types.ProjectConfig) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if len(cfg.Reports) == 0 {
		cfg.Reports = []types.ReportConfig{{Type: types.ReportConsole}}
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "launchcheck"
	}
}

// Validate checks cfg for missing or inconsistent settings.
func Validate(cfg *types.ProjectConfig) error {
	l := cfg.Launcher
	switch l.Type {
	case "":
		return errors.New("launcher.type is required")
	case types.LauncherLocal, types.LauncherGlue, types.LauncherStepFunction:
	case types.LauncherEMR:
		if l.EMR == nil || l.EMR.ClusterID == "" {
			return errors.New("launcher.emr.clusterId is required when launcher type is emr")
		}
	case types.LauncherEMRServerless:
		if l.EMRServerless == nil || l.EMRServerless.ApplicationID == "" {
			return errors.New("launcher.emrServerless.applicationId is required when launcher type is emr-serverless")
		}
		if l.EMRServerless.ExecutionRoleARN == "" {
			return errors.New("launcher.emrServerless.executionRoleArn is required when launcher type is emr-serverless")
		}
	default:
		return fmt.Errorf("unsupported launcher type: %s", l.Type)
	}
	if l.Resource == "" {
		return errors.New("launcher.resource is required")
	}
	if l.Breaker != nil {
		if l.Breaker.FailThreshold < 0 {
			return errors.New("launcher.breaker.failThreshold must not be negative")
		}
		if l.Breaker.Cooldown != "" {
			if _, err := time.ParseDuration(l.Breaker.Cooldown); err != nil {
				return fmt.Errorf("launcher.breaker.cooldown: %w", err)
			}
		}
	}

	if err := eventually.ValidatePolicy(cfg.Deployment); err != nil {
		return fmt.Errorf("deployment: %w", err)
	}
	if err := eventually.ValidatePolicy(cfg.Undeployment); err != nil {
		return fmt.Errorf("undeployment: %w", err)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	for _, name := range cfg.Scenarios {
		if _, err := scenario.Lookup(name); err != nil {
			return err
		}
	}

	for i, r := range cfg.Reports {
		switch r.Type {
		case types.ReportConsole:
		case types.ReportFile:
			if r.Path == "" {
				return fmt.Errorf("reports[%d]: path is required for file reports", i)
			}
		case types.ReportSNS:
			if r.TopicARN == "" {
				return fmt.Errorf("reports[%d]: topicArn is required for sns reports", i)
			}
		case types.ReportSQS:
			if r.QueueURL == "" {
				return fmt.Errorf("reports[%d]: queueUrl is required for sqs reports", i)
			}
		case types.ReportDynamoDB:
			if r.TableName == "" {
				return fmt.Errorf("reports[%d]: tableName is required for dynamodb reports", i)
			}
		default:
			return fmt.Errorf("reports[%d]: unknown report type %q", i, r.Type)
		}
	}
	return nil
}
