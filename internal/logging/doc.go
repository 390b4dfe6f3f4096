// Package logging assembles structured slog loggers and formatting helpers used
// across the worker.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so dispatcher code can tag log
// lines with job IDs, job kinds, and correlation IDs. A JSON copy of every
// record is teed into the configured log directory. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
package logging
