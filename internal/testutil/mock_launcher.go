// Package testutil provides shared test utilities for the tasklaunch harness.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dwsmith1983/tasklaunch/internal/launcher"
	"github.com/dwsmith1983/tasklaunch/internal/lifecycle"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// Compile-time interface satisfaction check.
var _ launcher.TaskLauncher = (*MockLauncher)(nil)

// MockResource is the resource name Request uses.
const MockResource = "mock://testapp"

// MockLauncher is an in-memory TaskLauncher driven by status query counts
// instead of wall-clock time. A launch with killDelay d finishes on the
// status query after d/TickMillis queries, so killDelay 0 is terminal on
// the first query and a negative killDelay runs until cancelled.
type MockLauncher struct {
	// TickMillis is the killDelay that one status query stands for. Zero means 1000.
	TickMillis int

	// LaunchErr, when set, fails every launch.
	LaunchErr error
	// StatusErr, when set, is consulted on every status query with the
	// 1-based query count for that id.
	StatusErr func(id types.LaunchID, call int) error
	// FixedID makes every launch return the same id.
	FixedID types.LaunchID
	// RegressTerminal makes a finished launch report running once more.
	RegressTerminal bool
	// IgnoreCancel turns Cancel into a silent no-op.
	IgnoreCancel bool

	mu       sync.Mutex
	launches map[types.LaunchID]*mockLaunch
	order    []types.LaunchID

	launchCalls atomic.Int64
	statusCalls atomic.Int64
	cancelCalls atomic.Int64
}

type mockLaunch struct {
	req       types.LaunchRequest
	killDelay int
	exitCode  int
	polls     int
	state     types.LaunchState
	cancelReq bool
	regressed bool
}

// NewMockLauncher creates an empty mock launcher.
func NewMockLauncher() *MockLauncher {
	return &MockLauncher{launches: make(map[types.LaunchID]*mockLaunch)}
}

// Request builds a launch request against MockResource.
func Request(name string, props map[string]string, args ...string) types.LaunchRequest {
	return types.LaunchRequest{
		Definition:      types.AppDefinition{Name: name, Properties: props},
		Resource:        MockResource,
		CommandLineArgs: args,
	}
}

func (m *MockLauncher) Launch(_ context.Context, req types.LaunchRequest) (types.LaunchID, error) {
	m.launchCalls.Add(1)
	if m.LaunchErr != nil {
		return "", fmt.Errorf("%w: %w", launcher.ErrLaunch, m.LaunchErr)
	}
	if req.Definition.Name == "" {
		return "", fmt.Errorf("%w: definition name is required", launcher.ErrInvalidRequest)
	}

	args := launcher.ArgumentMap(req)
	killDelay, err := intArg(args, "killDelay")
	if err != nil {
		return "", fmt.Errorf("%w: %w", launcher.ErrLaunch, err)
	}
	exitCode, err := intArg(args, "exitCode")
	if err != nil {
		return "", fmt.Errorf("%w: %w", launcher.ErrLaunch, err)
	}

	id := m.FixedID
	if id == "" {
		id = launcher.NewLaunchID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.launches[id] = &mockLaunch{
		req:       req,
		killDelay: killDelay,
		exitCode:  exitCode,
		state:     types.LaunchRunning,
	}
	m.order = append(m.order, id)
	return id, nil
}

func intArg(args map[string]string, name string) (int, error) {
	v, ok := args["--"+name]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func (m *MockLauncher) tick() int {
	if m.TickMillis <= 0 {
		return 1000
	}
	return m.TickMillis
}

func (m *MockLauncher) Status(_ context.Context, id types.LaunchID) (types.TaskStatus, error) {
	m.statusCalls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.launches[id]
	calls := 1
	if ok {
		l.polls++
		calls = l.polls
	}
	if m.StatusErr != nil {
		if err := m.StatusErr(id, calls); err != nil {
			return types.TaskStatus{}, err
		}
	}
	if !ok {
		return types.NewTaskStatus(id, types.LaunchUnknown, nil), nil
	}

	if !lifecycle.IsTerminal(l.state) {
		switch {
		case l.cancelReq:
			l.state = types.LaunchCancelled
		case l.killDelay >= 0 && l.polls > l.killDelay/m.tick():
			if l.exitCode == 0 {
				l.state = types.LaunchComplete
			} else {
				l.state = types.LaunchFailed
			}
		}
	} else if m.RegressTerminal && !l.regressed {
		l.regressed = true
		return types.NewTaskStatus(id, types.LaunchRunning, nil), nil
	}

	attrs := map[string]string{launcher.AttrName: l.req.Definition.Name}
	if l.state == types.LaunchComplete || l.state == types.LaunchFailed {
		attrs[launcher.AttrExitCode] = strconv.Itoa(l.exitCode)
	}
	return types.NewTaskStatus(id, l.state, attrs), nil
}

// Cancel requests cancellation; the next status query observes it. Unknown
// and finished launches are left untouched.
func (m *MockLauncher) Cancel(_ context.Context, id types.LaunchID) error {
	m.cancelCalls.Add(1)
	if m.IgnoreCancel {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.launches[id]; ok && !lifecycle.IsTerminal(l.state) {
		l.cancelReq = true
	}
	return nil
}

// Launches returns the launched ids in launch order.
func (m *MockLauncher) Launches() []types.LaunchID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.LaunchID, len(m.order))
	copy(out, m.order)
	return out
}

// LaunchRequestFor returns the request that produced id.
func (m *MockLauncher) LaunchRequestFor(id types.LaunchID) (types.LaunchRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.launches[id]
	if !ok {
		return types.LaunchRequest{}, false
	}
	return l.req, true
}

// LaunchCalls returns the number of Launch calls.
func (m *MockLauncher) LaunchCalls() int64 { return m.launchCalls.Load() }

// StatusCalls returns the number of Status calls.
func (m *MockLauncher) StatusCalls() int64 { return m.statusCalls.Load() }

// CancelCalls returns the number of Cancel calls.
func (m *MockLauncher) CancelCalls() int64 { return m.cancelCalls.Load() }
