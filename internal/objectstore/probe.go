package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"streamworker/internal/logging"
	"streamworker/internal/retry"
)

// ProbeResult is the outcome of a reachability probe. StatusCode is zero when
// no response was received.
type ProbeResult struct {
	Reachable  bool
	StatusCode int
	Err        error
}

// Probe issues a metadata-only request against a direct locator such as a
// pre-signed URL. Pre-signed GET URLs commonly reject HEAD with 403 or 405,
// so those responses are re-checked with a one-byte ranged GET.
func (s *Store) Probe(ctx context.Context, locator string) ProbeResult {
	var result ProbeResult
	err := s.probePolicy.Do(ctx, func(ctx context.Context, attempt int) error {
		status, err := s.probeOnce(ctx, http.MethodHead, locator)
		if status == http.StatusForbidden || status == http.StatusMethodNotAllowed {
			status, err = s.probeOnce(ctx, http.MethodGet, locator)
		}
		result.StatusCode = status
		return err
	})
	if err != nil {
		result.Err = err
		s.logger.Debug("source probe failed",
			logging.Int("status_code", result.StatusCode),
			logging.Error(err),
		)
		return result
	}
	result.Reachable = true
	return result
}

// ProbeReachable reports whether locator answered with a 2xx status.
func (s *Store) ProbeReachable(ctx context.Context, locator string) bool {
	return s.Probe(ctx, locator).Reachable
}

func (s *Store) probeOnce(ctx context.Context, method, locator string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, locator, nil)
	if err != nil {
		return 0, fmt.Errorf("probe: new request: %w", err)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	resp, err := s.probeClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", method, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &retry.StatusError{Op: "probe " + method, StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// KeyFromLocator derives a store key from a direct locator. Path-style URLs
// yield the path after the "/{bucket}/" segment; virtual-hosted URLs whose
// host starts with "{bucket}." yield the whole path.
func KeyFromLocator(locator, bucket string) (string, bool) {
	bucket = strings.Trim(strings.TrimSpace(bucket), "/")
	if bucket == "" {
		return "", false
	}
	parsed, err := url.Parse(strings.TrimSpace(locator))
	if err != nil || parsed.Path == "" {
		return "", false
	}
	if strings.HasPrefix(parsed.Hostname(), bucket+".") {
		key := strings.TrimPrefix(parsed.Path, "/")
		return key, key != ""
	}
	marker := "/" + bucket + "/"
	idx := strings.Index(parsed.Path, marker)
	if idx < 0 {
		return "", false
	}
	key := parsed.Path[idx+len(marker):]
	return key, key != ""
}
