// Package ledger keeps a local SQLite history of job outcomes so operators
// can see what a worker did without querying the remote queue. Writes are
// best effort from the dispatcher's point of view; a ledger failure never
// changes a job's reported status.
package ledger
