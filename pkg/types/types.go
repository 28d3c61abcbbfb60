package types

import (
	"maps"
	"slices"
	"time"
)

// LaunchID is the opaque token a launcher returns for one launch. Callers
// must not assume any structure.
type LaunchID string

// AppDefinition names an application and carries its own properties.
type AppDefinition struct {
	Name       string            `yaml:"name" json:"name"`
	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// LaunchRequest bundles everything a launcher needs to start one task.
type LaunchRequest struct {
	Definition           AppDefinition     `yaml:"definition" json:"definition"`
	Resource             string            `yaml:"resource" json:"resource"`
	DeploymentProperties map[string]string `yaml:"deploymentProperties,omitempty" json:"deploymentProperties,omitempty"`
	CommandLineArgs      []string          `yaml:"commandLineArgs,omitempty" json:"commandLineArgs,omitempty"`
}

// TaskStatus is a point-in-time snapshot of one launch. Launchers build a
// fresh value on every query; callers never mutate a returned snapshot.
type TaskStatus struct {
	ID         LaunchID          `json:"id"`
	State      LaunchState       `json:"state"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewTaskStatus builds a snapshot, copying attrs so later changes by the
// caller are not visible through it.
func NewTaskStatus(id LaunchID, state LaunchState, attrs map[string]string) TaskStatus {
	var cp map[string]string
	if len(attrs) > 0 {
		cp = maps.Clone(attrs)
	}
	return TaskStatus{ID: id, State: state, Attributes: cp}
}

// Attribute returns one auxiliary attribute, or "" when absent.
func (s TaskStatus) Attribute(key string) string {
	return s.Attributes[key]
}

// PollPolicy governs an eventually-style assertion: how many probes at most,
// and how long to pause between them.
type PollPolicy struct {
	MaxAttempts       int     `yaml:"maxAttempts" json:"maxAttempts"`
	PauseMillis       int     `yaml:"pauseMillis" json:"pauseMillis"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier,omitempty" json:"backoffMultiplier,omitempty"`
	MaxPauseMillis    int     `yaml:"maxPauseMillis,omitempty" json:"maxPauseMillis,omitempty"`
}

// DefaultPollPolicy returns the policy used when a config leaves one unset.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		MaxAttempts: 20,
		PauseMillis: 2000,
	}
}

// ScenarioResult is the outcome of one scenario run.
type ScenarioResult struct {
	Scenario  string        `json:"scenario" yaml:"scenario" dynamodbav:"scenario"`
	Passed    bool          `json:"passed" yaml:"passed" dynamodbav:"passed"`
	Failure   FailureKind   `json:"failure,omitempty" yaml:"failure,omitempty" dynamodbav:"failure,omitempty"`
	Message   string        `json:"message,omitempty" yaml:"message,omitempty" dynamodbav:"message,omitempty"`
	LaunchIDs []LaunchID    `json:"launchIds,omitempty" yaml:"launchIds,omitempty" dynamodbav:"launchIds,omitempty"`
	StartedAt time.Time     `json:"startedAt" yaml:"startedAt" dynamodbav:"startedAt"`
	Duration  time.Duration `json:"duration" yaml:"duration" dynamodbav:"durationNanos"`
}

// SuiteReport aggregates the scenario results of one suite run.
type SuiteReport struct {
	SuiteID    string           `json:"suiteId" yaml:"suiteId"`
	Launcher   LauncherType     `json:"launcher" yaml:"launcher"`
	StartedAt  time.Time        `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt" yaml:"finishedAt"`
	Results    []ScenarioResult `json:"results" yaml:"results"`
}

// Passed reports whether every scenario in the suite passed.
func (r SuiteReport) Passed() bool {
	return !slices.ContainsFunc(r.Results, func(res ScenarioResult) bool { return !res.Passed })
}

// Failed returns the results that did not pass.
func (r SuiteReport) Failed() []ScenarioResult {
	var out []ScenarioResult
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}
