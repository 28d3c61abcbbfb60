// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	LaunchesTotal   = expvar.NewInt("launches_total")
	LaunchErrors    = expvar.NewInt("launch_errors")
	StatusQueries   = expvar.NewInt("status_queries")
	StatusErrors    = expvar.NewInt("status_errors")
	Cancels         = expvar.NewInt("cancels_total")
	PollTimeouts    = expvar.NewInt("poll_timeouts")
	ScenariosPassed = expvar.NewInt("scenarios_passed")
	ScenariosFailed = expvar.NewInt("scenarios_failed")
	BreakerTrips    = expvar.NewInt("breaker_trips")
	ReportsSent     = expvar.NewInt("reports_sent")
	ReportsFailed   = expvar.NewInt("reports_failed")
)
