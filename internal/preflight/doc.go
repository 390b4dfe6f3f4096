// Package preflight provides readiness checks for the tools, directories,
// and remote services the worker depends on.
//
// These checks run in two contexts:
//   - The worker runtime calls RunAll once at startup and refuses to start
//     when Evaluate reports a fatal failure.
//   - The CLI "streamworker preflight" command renders every result as a
//     table without starting the dispatcher.
//
// Missing tools and unusable directories are always fatal. Queue and bucket
// reachability are advisory unless preflight.strict is set.
package preflight
