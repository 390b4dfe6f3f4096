// Package queueclient implements the worker side of the queue protocol:
// polling for the next job, posting status reports, and a health probe. All
// calls authenticate with a bearer token and share one bounded retry policy.
package queueclient
