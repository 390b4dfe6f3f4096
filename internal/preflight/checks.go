package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"streamworker/internal/deps"
	"streamworker/internal/retry"
)

const remoteCheckTimeout = 15 * time.Second

// CheckFFmpeg verifies the media tool resolves and carries the encoders the
// job argv uses.
func CheckFFmpeg(ctx context.Context, binary string) Result {
	status := deps.CheckFFmpeg(ctx, binary)
	result := Result{Name: "FFmpeg", Required: true, Passed: status.Available}
	switch {
	case !status.Available:
		result.Detail = status.Detail
	case status.Version != "":
		result.Detail = fmt.Sprintf("%s (version %s)", status.Command, status.Version)
	default:
		result.Detail = status.Command
	}
	return result
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckQueue performs a single authenticated health request.
func CheckQueue(ctx context.Context, queue HealthChecker) Result {
	const name = "Queue API"
	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()
	if err := queue.Health(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckBucket verifies the configured bucket is visible to the credentials.
func CheckBucket(ctx context.Context, bucket string, store BucketChecker) Result {
	const name = "Object store"
	if !store.Configured() {
		return Result{Name: name, Passed: true, Detail: "not configured (TRANSFORM jobs will fail)"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()
	if err := store.BucketAccessible(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %q accessible", bucket)}
}

// summarizeRemoteError produces a human-readable summary for remote check failures.
func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	switch code := retry.StatusCode(err); code {
	case 401, 403:
		return fmt.Sprintf("rejected credentials (HTTP %d)", code)
	case 0:
	default:
		return fmt.Sprintf("unexpected HTTP %d", code)
	}
	return err.Error()
}
