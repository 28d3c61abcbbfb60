// Package scenario drives a TaskLauncher through the conformance scenarios:
// launch, poll until the expected state, optionally cancel and poll again.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/tasklaunch/internal/eventually"
	"github.com/dwsmith1983/tasklaunch/internal/launcher"
	"github.com/dwsmith1983/tasklaunch/internal/lifecycle"
	"github.com/dwsmith1983/tasklaunch/internal/probe"
	"github.com/dwsmith1983/tasklaunch/internal/record"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

var (
	// ErrIDCollision is returned when a launcher hands out an id it already
	// returned for an earlier launch.
	ErrIDCollision = errors.New("launch id reused")
	// ErrCleanup wraps failures to stop launches a scenario left behind.
	ErrCleanup = errors.New("scenario cleanup failed")
	// ErrUnknownScenario is returned for scenario names that do not exist.
	ErrUnknownScenario = errors.New("unknown scenario")
)

const cleanupTimeout = 30 * time.Second

// Config wires a Runner to the launcher under test.
type Config struct {
	Launcher     launcher.TaskLauncher
	LauncherType types.LauncherType
	// Resource is the test application handed to every launch.
	Resource string
	// DeploymentProperties are passed unchanged on every launch request.
	DeploymentProperties map[string]string

	Deployment   types.PollPolicy
	Undeployment types.PollPolicy
	Concurrency  int

	Logger *slog.Logger
	// Recorder additionally receives every launch, e.g. for test teardown.
	Recorder *record.Recorder
	// NameFn generates definition names. Defaults to RandomName.
	NameFn func() string
	// PollOptions are appended to every eventually run.
	PollOptions []eventually.Option
}

// Runner executes scenarios against one launcher.
type Runner struct {
	cfg Config
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Runner, error) {
	if cfg.Launcher == nil {
		return nil, errors.New("scenario runner: launcher is required")
	}
	if cfg.Resource == "" {
		return nil, errors.New("scenario runner: resource is required")
	}
	if cfg.Deployment == (types.PollPolicy{}) {
		cfg.Deployment = types.DefaultPollPolicy()
	}
	if cfg.Undeployment == (types.PollPolicy{}) {
		cfg.Undeployment = types.DefaultPollPolicy()
	}
	if err := eventually.ValidatePolicy(cfg.Deployment); err != nil {
		return nil, fmt.Errorf("deployment policy: %w", err)
	}
	if err := eventually.ValidatePolicy(cfg.Undeployment); err != nil {
		return nil, fmt.Errorf("undeployment policy: %w", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NameFn == nil {
		cfg.NameFn = RandomName
	}
	return &Runner{cfg: cfg}, nil
}

// RandomName returns a fresh definition name.
func RandomName() string {
	return "launchcheck-" + strings.ToLower(ulid.Make().String())
}

// session carries the state of one scenario run.
type session struct {
	r        *Runner
	scenario string
	logger   *slog.Logger
	rec      *record.Recorder
	paths    map[types.LaunchID]*lifecycle.Path
}

func (r *Runner) newSession(name string) *session {
	logger := r.cfg.Logger.With("scenario", name)
	return &session{
		r:        r,
		scenario: name,
		logger:   logger,
		rec:      record.NewRecorder(logger),
		paths:    make(map[types.LaunchID]*lifecycle.Path),
	}
}

func (s *session) definition(props map[string]string) types.AppDefinition {
	return types.AppDefinition{Name: s.r.cfg.NameFn(), Properties: props}
}

func (s *session) launch(ctx context.Context, def types.AppDefinition, args ...string) (types.LaunchID, error) {
	req := types.LaunchRequest{
		Definition:           def,
		Resource:             s.r.cfg.Resource,
		DeploymentProperties: maps.Clone(s.r.cfg.DeploymentProperties),
		CommandLineArgs:      args,
	}
	s.logger.Info("launching", "name", def.Name, "properties", def.Properties, "args", args)
	id, err := s.r.cfg.Launcher.Launch(ctx, req)
	if err != nil {
		if !errors.Is(err, launcher.ErrLaunch) && !errors.Is(err, launcher.ErrInvalidRequest) {
			err = fmt.Errorf("%w: %w", launcher.ErrLaunch, err)
		}
		return "", fmt.Errorf("launching %s: %w", def.Name, err)
	}
	if id == "" {
		return "", fmt.Errorf("launching %s: %w: empty launch id", def.Name, launcher.ErrLaunch)
	}

	s.rec.Record(def.Name, id)
	if s.r.cfg.Recorder != nil {
		s.r.cfg.Recorder.Record(def.Name, id)
	}
	if _, ok := s.paths[id]; !ok {
		s.paths[id] = lifecycle.NewPath(id)
	}
	s.logger.Info("launched", "name", def.Name, "launchId", id)
	return id, nil
}

// await polls id until it reports want. It stops early once id settles in
// another terminal state. Terminal states are queried once more and must not
// change.
func (s *session) await(ctx context.Context, id types.LaunchID, want types.LaunchState, policy types.PollPolicy) (types.TaskStatus, error) {
	path, ok := s.paths[id]
	if !ok {
		path = lifecycle.NewPath(id)
		s.paths[id] = path
	}
	observed := probe.Observed(probe.Status(s.r.cfg.Launcher, id), path)

	opts := append([]eventually.Option{
		eventually.WithLogger(s.logger),
		eventually.WithName(fmt.Sprintf("%s: %s %s", s.scenario, id, want)),
	}, s.r.cfg.PollOptions...)

	st, err := eventually.Eventually(ctx, observed, probe.HasState(want), policy, opts...)
	if err != nil {
		s.logger.Warn("state not reached",
			"launchId", id, "want", want, "last", path.Last(), "observed", path.States())
		return st, err
	}
	s.logger.Info("state reached", "launchId", id, "state", st.State, "observed", path.States())

	if !lifecycle.IsTerminal(want) {
		return st, nil
	}
	again, err := observed(ctx)
	if err != nil {
		if errors.Is(err, lifecycle.ErrIllegalTransition) {
			return again, err
		}
		return again, fmt.Errorf("%w: re-query of %s: %w", eventually.ErrProbe, id, err)
	}
	return again, nil
}

func (s *session) cancel(ctx context.Context, id types.LaunchID) error {
	s.logger.Info("cancelling", "launchId", id)
	if err := s.r.cfg.Launcher.Cancel(ctx, id); err != nil {
		return fmt.Errorf("cancelling %s: %w", id, err)
	}
	return nil
}

// cleanup cancels anything this session left running. It runs on a context
// detached from ctx so an interrupted scenario still tears down.
func (s *session) cleanup(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.rec.Cleanup(cctx, s.r.cfg.Launcher); err != nil {
		s.logger.Warn("cleanup failed", "error", err)
		return fmt.Errorf("%w: %w", ErrCleanup, err)
	}
	return nil
}

// Classify maps a scenario error to the failure kind used in reports.
func Classify(err error) types.FailureKind {
	switch {
	case err == nil:
		return types.FailureNone
	case errors.Is(err, ErrIDCollision):
		return types.FailureCollision
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return types.FailureLifecycle
	case errors.Is(err, launcher.ErrLaunch), errors.Is(err, launcher.ErrInvalidRequest):
		return types.FailureLaunch
	case errors.Is(err, eventually.ErrInterrupted),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.FailureInterrupted
	case errors.Is(err, eventually.ErrTimeout):
		return types.FailureTimeout
	case errors.Is(err, eventually.ErrProbe):
		return types.FailureProbe
	case errors.Is(err, ErrCleanup):
		return types.FailureCleanup
	default:
		return types.FailureOther
	}
}
