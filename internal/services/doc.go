// Package services defines shared utilities consumed by the job dispatcher and
// the external integrations it drives.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, job kinds, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap and WithHint helpers that keep
//     failure classification uniform across the queue, store, and media
//     layers.
//
// Use these helpers when wiring new integrations so operational behaviour
// stays consistent across the worker.
package services
