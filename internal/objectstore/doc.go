// Package objectstore wraps an S3-compatible bucket for key-based transfers
// and probes direct locators (pre-signed URLs) for reachability.
package objectstore
