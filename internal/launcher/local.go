package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dwsmith1983/tasklaunch/internal/lifecycle"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// Compile-time interface satisfaction check.
var (
	_ TaskLauncher = (*Local)(nil)
	_ Closer       = (*Local)(nil)
)

// Local launches the request resource as a child process. The launch
// outlives the context passed to Launch; only Cancel or Close stop it.
type Local struct {
	mu       sync.Mutex
	launches map[types.LaunchID]*localProcess
	wg       sync.WaitGroup

	baseArgs []string
	env      map[string]string
	logger   *slog.Logger
}

type localProcess struct {
	name      string
	cmd       *exec.Cmd
	state     types.LaunchState
	exitCode  int
	cancelled bool
	startedAt time.Time
	endedAt   time.Time
}

// LocalOption configures a Local launcher.
type LocalOption func(*Local)

// WithBaseArgs prepends args to every launched command line.
func WithBaseArgs(args ...string) LocalOption {
	return func(l *Local) { l.baseArgs = append(l.baseArgs, args...) }
}

// WithEnv adds environment variables to every launched process.
func WithEnv(env map[string]string) LocalOption {
	return func(l *Local) {
		if l.env == nil {
			l.env = make(map[string]string, len(env))
		}
		maps.Copy(l.env, env)
	}
}

// WithLocalLogger sets the launcher's logger.
func WithLocalLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) { l.logger = logger }
}

// NewLocal creates a local process launcher.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		launches: make(map[types.LaunchID]*localProcess),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Launch starts req.Resource with the definition properties rendered as
// --key=value arguments. Deployment properties become environment variables.
func (l *Local) Launch(_ context.Context, req types.LaunchRequest) (types.LaunchID, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	args := append(slices.Clone(l.baseArgs), CommandLine(req)...)
	cmd := exec.Command(req.Resource, args...)
	cmd.Env = os.Environ()
	for _, k := range slices.Sorted(maps.Keys(l.env)) {
		cmd.Env = append(cmd.Env, k+"="+l.env[k])
	}
	for _, k := range slices.Sorted(maps.Keys(req.DeploymentProperties)) {
		cmd.Env = append(cmd.Env, k+"="+req.DeploymentProperties[k])
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: starting %s: %w", ErrLaunch, req.Resource, err)
	}

	id := NewLaunchID()
	p := &localProcess{
		name:      req.Definition.Name,
		cmd:       cmd,
		state:     types.LaunchRunning,
		exitCode:  -1,
		startedAt: time.Now(),
	}

	l.mu.Lock()
	l.launches[id] = p
	l.mu.Unlock()

	l.wg.Add(1)
	go l.wait(id, p)

	l.logger.Debug("local task started", "launchId", id, "name", p.name, "pid", cmd.Process.Pid)
	return id, nil
}

func (l *Local) wait(id types.LaunchID, p *localProcess) {
	defer l.wg.Done()
	err := p.cmd.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	p.endedAt = time.Now()
	if p.cmd.ProcessState != nil {
		p.exitCode = p.cmd.ProcessState.ExitCode()
	}
	switch {
	case p.cancelled:
		p.state = types.LaunchCancelled
	case err == nil && p.exitCode == 0:
		p.state = types.LaunchComplete
	default:
		p.state = types.LaunchFailed
	}
	l.logger.Debug("local task exited", "launchId", id, "state", p.state, "exitCode", p.exitCode)
}

// Status reports the current state of id.
func (l *Local) Status(_ context.Context, id types.LaunchID) (types.TaskStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.launches[id]
	if !ok {
		return unknownStatus(id), nil
	}
	attrs := map[string]string{AttrName: p.name}
	if p.cmd.Process != nil {
		attrs[AttrPID] = strconv.Itoa(p.cmd.Process.Pid)
	}
	if lifecycle.IsTerminal(p.state) {
		attrs[AttrExitCode] = strconv.Itoa(p.exitCode)
	}
	return types.NewTaskStatus(id, p.state, attrs), nil
}

// Cancel kills a running launch. Cancelling an unknown or already finished
// launch is a no-op and never changes the recorded terminal state.
func (l *Local) Cancel(_ context.Context, id types.LaunchID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.launches[id]
	if !ok || lifecycle.IsTerminal(p.state) || p.cancelled {
		return nil
	}
	p.cancelled = true
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing %s: %w", id, err)
	}
	return nil
}

// Close cancels every running launch and waits for the processes to exit.
func (l *Local) Close(ctx context.Context) error {
	l.mu.Lock()
	ids := slices.Collect(maps.Keys(l.launches))
	l.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := l.Cancel(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for local tasks: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}
