package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/tasklaunch/internal/eventually"
	"github.com/dwsmith1983/tasklaunch/internal/metrics"
	"github.com/dwsmith1983/tasklaunch/internal/probe"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// Scenario names.
const (
	NameUnknownID       = "unknown-id"
	NameSimpleLaunch    = "simple-launch"
	NameReLaunch        = "re-launch"
	NameErrorExit       = "error-exit"
	NameCancel          = "cancel"
	NameCommandLineArgs = "command-line-args"
)

// Scenario describes one conformance check.
type Scenario struct {
	Name        string
	Description string
	run         func(ctx context.Context, s *session) error
}

var scenarios = []Scenario{
	{NameUnknownID, "status of a never-launched id is unknown", nonExistentStatus},
	{NameSimpleLaunch, "a launch exiting 0 reaches complete", simpleLaunch},
	{NameReLaunch, "relaunching a definition yields a fresh id", reLaunch},
	{NameErrorExit, "a launch exiting non-zero reaches failed", errorExit},
	{NameCancel, "a running launch can be cancelled", simpleCancel},
	{NameCommandLineArgs, "command line arguments reach the application", commandLineArgs},
}

// Scenarios lists every scenario in execution order.
func Scenarios() []Scenario {
	return slices.Clone(scenarios)
}

// Lookup finds a scenario by name.
func Lookup(name string) (Scenario, error) {
	for _, sc := range scenarios {
		if sc.Name == name {
			return sc, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

func nonExistentStatus(ctx context.Context, s *session) error {
	id := types.LaunchID(s.r.cfg.NameFn())
	_, err := eventually.Check(ctx, probe.Status(s.r.cfg.Launcher, id), probe.HasState(types.LaunchUnknown),
		eventually.WithLogger(s.logger), eventually.WithName(s.scenario))
	return err
}

func simpleLaunch(ctx context.Context, s *session) error {
	id, err := s.launch(ctx, s.definition(map[string]string{"killDelay": "0", "exitCode": "0"}))
	if err != nil {
		return err
	}
	_, err = s.await(ctx, id, types.LaunchComplete, s.r.cfg.Deployment)
	return err
}

func reLaunch(ctx context.Context, s *session) error {
	def := s.definition(map[string]string{"killDelay": "0", "exitCode": "0"})
	first, err := s.launch(ctx, def)
	if err != nil {
		return err
	}
	if _, err := s.await(ctx, first, types.LaunchComplete, s.r.cfg.Deployment); err != nil {
		return err
	}

	s.logger.Info("re-launching", "name", def.Name, "previous", first)
	second, err := s.launch(ctx, def)
	if err != nil {
		return err
	}
	if second == first {
		return fmt.Errorf("%w: second launch of %s returned %s again", ErrIDCollision, def.Name, second)
	}
	_, err = s.await(ctx, second, types.LaunchComplete, s.r.cfg.Deployment)
	return err
}

func errorExit(ctx context.Context, s *session) error {
	id, err := s.launch(ctx, s.definition(map[string]string{"killDelay": "0", "exitCode": "1"}))
	if err != nil {
		return err
	}
	_, err = s.await(ctx, id, types.LaunchFailed, s.r.cfg.Deployment)
	return err
}

func simpleCancel(ctx context.Context, s *session) error {
	id, err := s.launch(ctx, s.definition(map[string]string{"killDelay": "-1", "exitCode": "0"}))
	if err != nil {
		return err
	}
	if _, err := s.await(ctx, id, types.LaunchRunning, s.r.cfg.Deployment); err != nil {
		return err
	}
	if err := s.cancel(ctx, id); err != nil {
		return err
	}
	_, err = s.await(ctx, id, types.LaunchCancelled, s.r.cfg.Undeployment)
	return err
}

func commandLineArgs(ctx context.Context, s *session) error {
	id, err := s.launch(ctx, s.definition(map[string]string{"killDelay": "1000"}), "--exitCode=0")
	if err != nil {
		return err
	}
	_, err = s.await(ctx, id, types.LaunchComplete, s.r.cfg.Deployment)
	return err
}

// exec runs sc in a fresh session and tears down whatever it left running.
func (r *Runner) exec(ctx context.Context, sc Scenario) ([]types.LaunchID, error) {
	s := r.newSession(sc.Name)
	err := sc.run(ctx, s)
	if cerr := s.cleanup(ctx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return s.rec.IDs(), err
}

func (r *Runner) runNamed(ctx context.Context, name string) error {
	sc, err := Lookup(name)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx, sc)
	return err
}

// NonExistentStatus checks that a never-launched id reports unknown on the first query.
func (r *Runner) NonExistentStatus(ctx context.Context) error {
	return r.runNamed(ctx, NameUnknownID)
}

// SimpleLaunch launches with exitCode 0 and waits for complete.
func (r *Runner) SimpleLaunch(ctx context.Context) error {
	return r.runNamed(ctx, NameSimpleLaunch)
}

// ReLaunch launches one definition twice and checks the ids differ.
func (r *Runner) ReLaunch(ctx context.Context) error {
	return r.runNamed(ctx, NameReLaunch)
}

// ErrorExit launches with exitCode 1 and waits for failed.
func (r *Runner) ErrorExit(ctx context.Context) error {
	return r.runNamed(ctx, NameErrorExit)
}

// SimpleCancel launches a task that never exits, cancels it and waits for cancelled.
func (r *Runner) SimpleCancel(ctx context.Context) error {
	return r.runNamed(ctx, NameCancel)
}

// CommandLineArgs passes the exit code as a runtime argument and waits for complete.
func (r *Runner) CommandLineArgs(ctx context.Context) error {
	return r.runNamed(ctx, NameCommandLineArgs)
}

// Run executes one scenario and summarizes it.
func (r *Runner) Run(ctx context.Context, sc Scenario) types.ScenarioResult {
	start := time.Now()
	r.cfg.Logger.Info("scenario started", "scenario", sc.Name)
	ids, err := r.exec(ctx, sc)

	res := types.ScenarioResult{
		Scenario:  sc.Name,
		Passed:    err == nil,
		Failure:   Classify(err),
		LaunchIDs: ids,
		StartedAt: start.UTC(),
		Duration:  time.Since(start),
	}
	if err != nil {
		res.Message = err.Error()
		metrics.ScenariosFailed.Add(1)
		if errors.Is(err, eventually.ErrTimeout) {
			metrics.PollTimeouts.Add(1)
		}
		r.cfg.Logger.Error("scenario failed", "scenario", sc.Name, "failure", res.Failure, "error", err)
	} else {
		metrics.ScenariosPassed.Add(1)
		r.cfg.Logger.Info("scenario passed", "scenario", sc.Name, "duration", res.Duration)
	}
	return res
}

// RunAll runs the named scenarios, or all of them when names is empty, with
// at most Concurrency scenarios in flight. Results keep the requested order.
func (r *Runner) RunAll(ctx context.Context, names ...string) (types.SuiteReport, error) {
	selected := scenarios
	if len(names) > 0 {
		selected = make([]Scenario, 0, len(names))
		for _, n := range names {
			sc, err := Lookup(n)
			if err != nil {
				return types.SuiteReport{}, err
			}
			selected = append(selected, sc)
		}
	}

	report := types.SuiteReport{
		SuiteID:   ulid.Make().String(),
		Launcher:  r.cfg.LauncherType,
		StartedAt: time.Now().UTC(),
		Results:   make([]types.ScenarioResult, len(selected)),
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, sc := range selected {
		g.Go(func() error {
			report.Results[i] = r.Run(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	r.cfg.Logger.Info("suite finished", "suiteId", report.SuiteID,
		"scenarios", len(report.Results), "failed", len(report.Failed()))
	return report, nil
}
