// Package lifecycle implements the task launch state machine.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// ErrIllegalTransition is returned when an observed state sequence leaves the
// lifecycle graph.
var ErrIllegalTransition = errors.New("illegal launch state transition")

// Transition table: from -> allowed tos
var validTransitions = map[types.LaunchState][]types.LaunchState{
	types.LaunchUnknown:   {types.LaunchRunning},
	types.LaunchRunning:   {types.LaunchComplete, types.LaunchFailed, types.LaunchCancelled},
	types.LaunchComplete:  {},
	types.LaunchFailed:    {},
	types.LaunchCancelled: {},
}

// CanTransition checks if moving from one launch state to another is a
// single edge of the lifecycle graph.
func CanTransition(from, to types.LaunchState) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates a single-edge transition.
func Transition(from, to types.LaunchState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: from %s to %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// Reachable reports whether to can follow from in a sampled sequence of
// observations: same state, or any state reachable through the graph. A
// short task may finish between two polls, so unknown -> complete is a
// legal observation even though it skips running.
func Reachable(from, to types.LaunchState) bool {
	if from == to {
		return true
	}
	seen := map[types.LaunchState]bool{from: true}
	queue := []types.LaunchState{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range validTransitions[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// IsTerminal returns true if the state is final.
func IsTerminal(state types.LaunchState) bool {
	return state == types.LaunchComplete || state == types.LaunchFailed || state == types.LaunchCancelled
}

// Path records the states observed for one launch id and rejects any
// observation that moves backwards or away from a terminal state.
type Path struct {
	mu     sync.Mutex
	id     types.LaunchID
	states []types.LaunchState
}

// NewPath starts an empty observation path for id.
func NewPath(id types.LaunchID) *Path {
	return &Path{id: id}
}

// Observe appends state to the path. The state is recorded even when it
// violates the lifecycle so diagnostics show the full sequence.
func (p *Path) Observe(state types.LaunchState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !state.Valid() {
		p.states = append(p.states, state)
		return fmt.Errorf("%w: %s reported unrecognized state %q", ErrIllegalTransition, p.id, state)
	}
	if len(p.states) == 0 {
		p.states = append(p.states, state)
		return nil
	}

	last := p.states[len(p.states)-1]
	p.states = append(p.states, state)
	if IsTerminal(last) && state != last {
		return fmt.Errorf("%w: %s left terminal state %s for %s (observed %v)",
			ErrIllegalTransition, p.id, last, state, p.states)
	}
	if last == state {
		return nil
	}
	// A single edge is the common case; a longer forward path means the
	// sampling missed an intermediate state, which is allowed.
	if err := Transition(last, state); err != nil && !Reachable(last, state) {
		return fmt.Errorf("%s moved from %s back to %s (observed %v): %w",
			p.id, last, state, p.states, err)
	}
	return nil
}

// States returns a copy of the observed sequence.
func (p *Path) States() []types.LaunchState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.LaunchState, len(p.states))
	copy(out, p.states)
	return out
}

// Last returns the most recent observation, or unknown when nothing was seen.
func (p *Path) Last() types.LaunchState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.states) == 0 {
		return types.LaunchUnknown
	}
	return p.states[len(p.states)-1]
}
