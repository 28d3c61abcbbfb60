// Package types defines the public domain types for the tasklaunch conformance harness.
package types

// LaunchState represents the lifecycle stage of a single launch.
type LaunchState string

// LaunchState values enumerate the lifecycle of a launch. Unknown means the
// launcher has no record of the id.
const (
	LaunchUnknown   LaunchState = "unknown"
	LaunchRunning   LaunchState = "running"
	LaunchComplete  LaunchState = "complete"
	LaunchFailed    LaunchState = "failed"
	LaunchCancelled LaunchState = "cancelled"
)

// AllLaunchStates lists every LaunchState in lifecycle order.
var AllLaunchStates = []LaunchState{
	LaunchUnknown,
	LaunchRunning,
	LaunchComplete,
	LaunchFailed,
	LaunchCancelled,
}

// Valid reports whether s is one of the known launch states.
func (s LaunchState) Valid() bool {
	for _, known := range AllLaunchStates {
		if s == known {
			return true
		}
	}
	return false
}

// LauncherType selects the TaskLauncher implementation.
type LauncherType string

// LauncherType values enumerate the bundled launcher implementations.
const (
	LauncherLocal         LauncherType = "local"
	LauncherGlue          LauncherType = "glue"
	LauncherStepFunction  LauncherType = "step-function"
	LauncherEMR           LauncherType = "emr"
	LauncherEMRServerless LauncherType = "emr-serverless"
)

// ReportType defines the suite report sink type.
type ReportType string

// ReportType values enumerate the supported report sink backends.
const (
	ReportConsole  ReportType = "console"
	ReportFile     ReportType = "file"
	ReportSNS      ReportType = "sns"
	ReportSQS      ReportType = "sqs"
	ReportDynamoDB ReportType = "dynamodb"
)

// FailureKind classifies why a scenario failed.
type FailureKind string

// FailureKind values follow the harness error taxonomy.
const (
	FailureNone        FailureKind = ""
	FailureLaunch      FailureKind = "launch"
	FailureProbe       FailureKind = "probe"
	FailureTimeout     FailureKind = "timeout"
	FailureInterrupted FailureKind = "interrupted"
	FailureCollision   FailureKind = "collision"
	FailureLifecycle   FailureKind = "lifecycle"
	FailureCleanup     FailureKind = "cleanup"
	FailureOther       FailureKind = "other"
)
