package dispatch

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"streamworker/internal/objectstore"
	"streamworker/internal/services"
)

const streamStartHint = "ffmpeg exited during startup; check the ingest URL, stream key, and the log tail"

// probeFailure classifies an unreachable source by the status the store
// returned. The locator is reported without its query string.
func probeFailure(locator string, res objectstore.ProbeResult) error {
	target := redactLocator(locator)
	marker, hint := services.ErrTransient, ""
	switch code := res.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		marker = services.ErrPermission
		hint = "source URL rejected access; the pre-signed URL may have expired or its signature is invalid"
	case code == http.StatusNotFound:
		marker = services.ErrNotFound
		hint = "source object does not exist; check that the upload finished and s3Key is correct"
	case code >= 500:
		hint = "object store returned a server error; the store may be down or overloaded"
	case code == 0:
		hint = "object store is unreachable; check DNS and network access from the worker"
	default:
		hint = fmt.Sprintf("source probe returned HTTP %d", code)
	}

	message := fmt.Sprintf("source %s unreachable", target)
	if res.StatusCode > 0 {
		message = fmt.Sprintf("source %s unreachable (HTTP %d)", target, res.StatusCode)
	}
	return services.WithHint(
		services.Wrap(marker, "dispatch", "probe source", message, transportCause(res.Err)),
		hint,
	)
}

// transportCause drops the url.Error wrapper, which would repeat the signed
// locator, and keeps only the underlying network failure.
func transportCause(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return nil
}

func redactLocator(locator string) string {
	parsed, err := url.Parse(locator)
	if err != nil || parsed.Host == "" {
		return "locator"
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.User = nil
	return parsed.String()
}
