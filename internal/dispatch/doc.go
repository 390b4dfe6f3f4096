// Package dispatch drives jobs from the remote queue through validation,
// execution, and status reporting.
//
// One Dispatcher handles one job at a time. Each job runs inside a boundary
// that turns panics and silent returns into a FAILED report, so the queue
// owner always sees exactly one terminal status per accepted job. Run wraps
// RunOnce in an outer guard that survives faults escaping the job boundary.
package dispatch
