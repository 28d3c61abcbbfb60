// Package launcher defines the TaskLauncher contract the harness verifies and
// ships implementations for local processes and AWS batch services.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// TaskLauncher starts short-lived tasks and reports their lifecycle state.
//
// Status must be safe to call at any time: ids that were never launched
// report types.LaunchUnknown, and finished launches keep reporting their
// terminal state. Cancel is best-effort and idempotent.
type TaskLauncher interface {
	Launch(ctx context.Context, req types.LaunchRequest) (types.LaunchID, error)
	Status(ctx context.Context, id types.LaunchID) (types.TaskStatus, error)
	Cancel(ctx context.Context, id types.LaunchID) error
}

// Closer is implemented by launchers holding local resources.
type Closer interface {
	Close(ctx context.Context) error
}

var (
	// ErrLaunch wraps every failure to start a task.
	ErrLaunch = errors.New("launch failed")
	// ErrInvalidRequest is returned for requests rejected before reaching the backend.
	ErrInvalidRequest = errors.New("invalid launch request")
)

// Attribute keys used in TaskStatus.Attributes.
const (
	AttrName        = "name"
	AttrExitCode    = "exitCode"
	AttrPID         = "pid"
	AttrNativeState = "nativeState"
	AttrMessage     = "message"
)

// NewLaunchID returns a fresh, time-sortable launch id.
func NewLaunchID() types.LaunchID {
	return types.LaunchID(strings.ToLower(ulid.Make().String()))
}

// CommandLine renders the definition properties as --key=value arguments in
// key order, followed by the request's own command line arguments.
func CommandLine(req types.LaunchRequest) []string {
	keys := make([]string, 0, len(req.Definition.Properties))
	for k := range req.Definition.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	args := make([]string, 0, len(keys)+len(req.CommandLineArgs))
	for _, k := range keys {
		args = append(args, "--"+k+"="+req.Definition.Properties[k])
	}
	return append(args, req.CommandLineArgs...)
}

// ArgumentMap merges definition properties and --key=value command line
// arguments into one map keyed "--key". Arguments win over properties.
func ArgumentMap(req types.LaunchRequest) map[string]string {
	out := make(map[string]string, len(req.Definition.Properties)+len(req.CommandLineArgs))
	for k, v := range req.Definition.Properties {
		out["--"+k] = v
	}
	for _, arg := range req.CommandLineArgs {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		k, v, _ := strings.Cut(arg, "=")
		out[k] = v
	}
	return out
}

func validateRequest(req types.LaunchRequest) error {
	if req.Definition.Name == "" {
		return fmt.Errorf("%w: definition name is required", ErrInvalidRequest)
	}
	if req.Resource == "" {
		return fmt.Errorf("%w: resource is required", ErrInvalidRequest)
	}
	return nil
}

// joinID builds "<scope>/<native>" ids for backends that need two keys to
// look a run up.
func joinID(scope, native string) types.LaunchID {
	return types.LaunchID(scope + "/" + native)
}

// splitID reverses joinID. Scope may itself contain slashes; native may not.
func splitID(id types.LaunchID) (scope, native string, ok bool) {
	s := string(id)
	i := strings.LastIndex(s, "/")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func unknownStatus(id types.LaunchID) types.TaskStatus {
	return types.NewTaskStatus(id, types.LaunchUnknown, nil)
}
