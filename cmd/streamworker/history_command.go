package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"streamworker/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		kind   string
		status string
		jobID  string
		limit  int
		prune  time.Duration
	)

	cmd := &cobra.Command{
		Use:         "history",
		Short:       "Show jobs recently finished by this worker",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := ctx.inspectConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job ledger: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if prune > 0 {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d outcome(s) older than %s\n", removed, prune)
			}

			outcomes, err := store.Recent(cmd.Context(), ledger.Filter{
				Kind:   kind,
				Status: status,
				JobID:  jobID,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			counts, err := store.Counts(cmd.Context())
			if err != nil {
				return err
			}
			writeHistory(out, outcomes, counts)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only show jobs of this kind (STREAM or TRANSFORM)")
	cmd.Flags().StringVar(&status, "status", "", "Only show jobs with this terminal status")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show outcomes for this job id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of outcomes to show")
	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete outcomes older than this age before listing (e.g. 720h)")
	return cmd
}

func writeHistory(out io.Writer, outcomes []ledger.Outcome, counts map[string]int) {
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "No recorded jobs")
	} else {
		rows := make([][]string, 0, len(outcomes))
		for _, o := range outcomes {
			rows = append(rows, []string{
				o.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				o.JobID,
				titleLabel(o.Kind),
				titleLabel(o.Status),
				formatDuration(o.Duration()),
				formatBitrate(o.LastBitrate),
				outcomeDetail(o),
			})
		}
		fmt.Fprint(out, renderTable([]tableColumn{
			{Header: "Finished"},
			{Header: "Job"},
			{Header: "Kind"},
			{Header: "Status"},
			{Header: "Duration", Align: alignRight},
			{Header: "Kbps", Align: alignRight},
			{Header: "Detail", MaxWidth: detailWidth},
		}, rows))
		fmt.Fprintln(out)
	}
	if summary := formatCounts(counts); summary != "" {
		fmt.Fprintf(out, "Totals: %s\n", summary)
	}
}

func outcomeDetail(o ledger.Outcome) string {
	switch {
	case o.Error != "" && o.Hint != "":
		return fmt.Sprintf("%s (hint: %s)", o.Error, o.Hint)
	case o.Error != "":
		return o.Error
	case o.OutputKey != "":
		return o.OutputKey
	default:
		return ""
	}
}

func titleLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return cases.Title(language.Und).String(strings.ToLower(value))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func formatBitrate(kbps *float64) string {
	if kbps == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *kbps)
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", titleLabel(k), counts[k]))
	}
	return strings.Join(parts, ", ")
}
