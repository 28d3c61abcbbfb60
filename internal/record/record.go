// Package record keeps track of every launch a scenario performs so teardown
// can stop anything still running.
package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dwsmith1983/tasklaunch/internal/launcher"
	"github.com/dwsmith1983/tasklaunch/internal/lifecycle"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// LaunchRecord is one launch made by the harness.
type LaunchRecord struct {
	ID         types.LaunchID
	Name       string
	LaunchedAt time.Time
}

// Recorder is safe for concurrent use by several scenarios.
type Recorder struct {
	mu      sync.Mutex
	records []LaunchRecord
	now     func() time.Time
	logger  *slog.Logger
}

// NewRecorder creates an empty recorder. A nil logger uses slog.Default().
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{now: time.Now, logger: logger}
}

// Record stores id under the definition name that produced it.
func (r *Recorder) Record(name string, id types.LaunchID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, LaunchRecord{ID: id, Name: name, LaunchedAt: r.now()})
}

// Records returns the recorded launches in order.
func (r *Recorder) Records() []LaunchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LaunchRecord, len(r.records))
	copy(out, r.records)
	return out
}

// IDs returns the recorded launch ids in order.
func (r *Recorder) IDs() []types.LaunchID {
	recs := r.Records()
	out := make([]types.LaunchID, len(recs))
	for i, rec := range recs {
		out[i] = rec.ID
	}
	return out
}

// Cleanup cancels every recorded launch that is not yet terminal. Launches
// already finished are left alone. Launches reported unknown get a
// best-effort cancel whose failure is only logged. All other failures are
// returned joined.
func (r *Recorder) Cleanup(ctx context.Context, l launcher.TaskLauncher) error {
	var errs []error
	seen := make(map[types.LaunchID]bool)
	for _, rec := range r.Records() {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		st, err := l.Status(ctx, rec.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s (%s): %w", rec.ID, rec.Name, err))
			continue
		}
		if lifecycle.IsTerminal(st.State) {
			continue
		}
		if st.State == types.LaunchUnknown {
			// The backend may not list the launch yet; cancel anyway.
			if err := l.Cancel(ctx, rec.ID); err != nil {
				r.logger.Warn("cancel of unknown launch failed", "launchId", rec.ID, "name", rec.Name, "error", err)
			}
			continue
		}
		r.logger.Info("cancelling leftover launch", "launchId", rec.ID, "name", rec.Name, "state", st.State)
		if err := l.Cancel(ctx, rec.ID); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s (%s): %w", rec.ID, rec.Name, err))
		}
	}
	return errors.Join(errs...)
}
