// Package worker assembles the queue client, object store, media supervisor,
// ledger, and dispatcher into one process and runs it until shutdown.
//
// Run holds a per-worker-id file lock for its whole lifetime, runs preflight
// once, and converts any panic that escapes the dispatcher into a returned
// error so main can exit non-zero.
package worker
