// Package config loads, normalizes, and validates streamworker configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables that
// container deployments rely on such as API_BASE, WORKER_TOKEN and S3_ENDPOINT.
// Environment values win over file values.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
