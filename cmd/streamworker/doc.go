// Package main hosts the streamworker CLI.
//
// The Cobra command tree starts the worker loop (`run`), executes the startup
// checks on demand (`preflight`), inspects the local job ledger (`history`)
// and scaffolds configuration (`config`). Configuration is resolved once per
// invocation through commandContext; everything else lives in internal
// packages.
package main
