package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"streamworker/internal/config"
	"streamworker/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Required bool
	Detail   string
}

// HealthChecker is satisfied by the queue client.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// BucketChecker is satisfied by the object store client.
type BucketChecker interface {
	Configured() bool
	BucketAccessible(ctx context.Context) error
}

// Targets are the remote services checked alongside local requirements.
// Nil targets are skipped.
type Targets struct {
	Queue HealthChecker
	Store BucketChecker
}

// RunAll executes every check for cfg. Local checks are required; remote
// checks are advisory unless strict mode promotes them in Evaluate.
func RunAll(ctx context.Context, cfg *config.Config, targets Targets) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckFFmpeg(ctx, cfg.FFmpegBinary()),
		required(CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir)),
		required(CheckDirectoryAccess("State directory", cfg.Paths.StateDir)),
	}
	if targets.Queue != nil {
		results = append(results, CheckQueue(ctx, targets.Queue))
	}
	if targets.Store != nil {
		results = append(results, CheckBucket(ctx, cfg.Store.Bucket, targets.Store))
	}
	return results
}

// Evaluate turns results into a startup decision. Required failures are
// always fatal; advisory failures are fatal only when strict is set.
func Evaluate(results []Result, strict bool) error {
	var failed []string
	for _, r := range results {
		if r.Passed || (!r.Required && !strict) {
			continue
		}
		failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "evaluate",
		strings.Join(failed, "; "), errors.New("preflight failed"))
}

func required(r Result) Result {
	r.Required = true
	return r
}
