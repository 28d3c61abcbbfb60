// Package commands implements the CLI subcommands for the launchcheck binary.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tasklaunch/internal/config"
	"github.com/dwsmith1983/tasklaunch/internal/launcher"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// ErrLocalLauncher is returned by commands that need a launch to outlive the
// process that started it. The local launcher tracks its children in memory.
var ErrLocalLauncher = errors.New("the local launcher keeps no state between invocations")

// newLauncher builds the launcher under test. Tests replace it.
var newLauncher = func(ctx context.Context, cfg types.LauncherConfig) (launcher.TaskLauncher, error) {
	return launcher.NewFactory(launcher.WithLogger(slog.Default())).New(ctx, cfg)
}

// projectFlags are the flags shared by every command that talks to a launcher.
type projectFlags struct {
	dir          string
	launcherType string
	resource     string
	region       string
}

func (p *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.dir, "dir", ".", "directory containing "+config.FileName)
	cmd.Flags().StringVar(&p.launcherType, "type", "", "launcher type, overrides the config file")
	cmd.Flags().StringVar(&p.resource, "resource", "", "test application resource, overrides the config file")
	cmd.Flags().StringVar(&p.region, "region", "", "AWS region, overrides the config file")
}

// load reads the project config and applies flag overrides. A missing config
// file is fine as long as the flags name a launcher.
func (p *projectFlags) load() (*types.ProjectConfig, error) {
	cfg, err := config.Load(p.dir)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && (p.launcherType != "" || p.resource != ""):
		cfg = config.Default()
	default:
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if p.launcherType != "" {
		cfg.Launcher.Type = types.LauncherType(p.launcherType)
	}
	if p.resource != "" {
		cfg.Launcher.Resource = p.resource
	}
	if p.region != "" {
		cfg.Launcher.Region = p.region
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// openLauncher loads the config and builds its launcher. The returned
// cleanup releases launcher resources.
func (p *projectFlags) openLauncher(ctx context.Context) (*types.ProjectConfig, launcher.TaskLauncher, func(), error) {
	cfg, err := p.load()
	if err != nil {
		return nil, nil, nil, err
	}
	return build(ctx, cfg)
}

// openPersistentLauncher is openLauncher for commands that address launches
// made by an earlier invocation.
func (p *projectFlags) openPersistentLauncher(ctx context.Context, command string) (*types.ProjectConfig, launcher.TaskLauncher, func(), error) {
	cfg, err := p.load()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Launcher.Type == types.LauncherLocal {
		return nil, nil, nil, fmt.Errorf("%s: %w; use launch --wait instead", command, ErrLocalLauncher)
	}
	return build(ctx, cfg)
}

func build(ctx context.Context, cfg *types.ProjectConfig) (*types.ProjectConfig, launcher.TaskLauncher, func(), error) {
	l, err := newLauncher(ctx, cfg.Launcher)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating %s launcher: %w", cfg.Launcher.Type, err)
	}
	return cfg, l, func() { closeLauncher(ctx, l) }, nil
}

func closeLauncher(ctx context.Context, l launcher.TaskLauncher) {
	if err := launcher.Close(context.WithoutCancel(ctx), l); err != nil {
		slog.Warn("closing launcher", "error", err)
	}
}

// ParseLogLevel maps debug|info|warn|error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// SetupLogging installs the default slog logger on stderr. An empty level
// falls back to LOG_LEVEL.
func SetupLogging(level, format string) error {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "", "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// parseKeyValues turns k=v pairs into a map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", kv)
		}
		out[k] = v
	}
	return out, nil
}
