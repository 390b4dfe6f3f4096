package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"streamworker/internal/logging"
	"streamworker/internal/objectstore"
	"streamworker/internal/preflight"
	"streamworker/internal/queueclient"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Run the startup checks and report the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()
			targets := preflight.Targets{}
			if queue, err := queueclient.New(cfg.Queue, logger); err == nil {
				targets.Queue = queue
			}
			store, err := objectstore.New(cfg.Store, cfg.Stream, logger)
			if err != nil {
				return fmt.Errorf("create object store client: %w", err)
			}
			targets.Store = store

			results := preflight.RunAll(cmd.Context(), cfg, targets)
			out := cmd.OutOrStdout()
			strict = strict || cfg.Preflight.Strict
			writePreflightResults(out, results, strict, shouldColorize(out))
			return preflight.Evaluate(results, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat advisory check failures as fatal")
	return cmd
}

func writePreflightResults(out io.Writer, results []preflight.Result, strict, colorize bool) {
	fmt.Fprintln(out, renderSectionHeader("Preflight", colorize))
	failures := 0
	for _, r := range results {
		kind := preflightKind(r, strict)
		if kind == statusError {
			failures++
		}
		label := r.Name
		if !r.Required {
			label += " (advisory)"
		}
		fmt.Fprintln(out, renderStatusLine(label, kind, r.Detail, colorize))
	}
	if failures == 0 {
		fmt.Fprintln(out, renderStatusLine("Summary", statusOK, "ready to run", colorize))
		return
	}
	fmt.Fprintln(out, renderStatusLine("Summary", statusError, fmt.Sprintf("%d blocking check(s) failed", failures), colorize))
}

func preflightKind(r preflight.Result, strict bool) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case r.Required || strict:
		return statusError
	default:
		return statusWarn
	}
}
