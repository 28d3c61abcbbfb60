package testapp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"defaults", nil, 0},
		{"explicit zero", []string{"--exitCode=0"}, 0},
		{"error exit", []string{"--exitCode=1"}, 1},
		{"short delay", []string{"--killDelay=10", "--exitCode=3"}, 3},
		{"unknown flags ignored", []string{"--foo=bar", "--killDelay=0", "--exitCode=4"}, 4},
		{"positional args ignored", []string{"extra", "--exitCode=5"}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			got := Run(context.Background(), tt.args, &stderr, quietLogger())
			assert.Equal(t, tt.want, got, stderr.String())
		})
	}
}

func TestRun_BadFlagValue(t *testing.T) {
	var stderr bytes.Buffer
	got := Run(context.Background(), []string{"--killDelay=soon"}, &stderr, quietLogger())
	assert.Equal(t, exitUsage, got)
	assert.Contains(t, stderr.String(), "killDelay")
}

func TestRun_NegativeDelayWaitsForContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	got := Run(ctx, []string{"--killDelay=-1", "--exitCode=0"}, io.Discard, quietLogger())
	assert.Equal(t, ExitInterrupted, got)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRun_DelayInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := Run(ctx, []string{"--killDelay=60000"}, io.Discard, quietLogger())
	assert.Equal(t, ExitInterrupted, got)
}
