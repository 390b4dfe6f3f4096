package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"streamworker/internal/ledger"
	"streamworker/internal/testsupport"
)

func TestRecordAndRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bitrate := 2480.5
	first, err := l.Record(ctx, ledger.Outcome{
		JobID:       "job-1",
		Kind:        "STREAM",
		SubjectID:   "stream-1",
		Worker:      "test-worker",
		Status:      "COMPLETED",
		LastBitrate: &bitrate,
		StartedAt:   base,
		FinishedAt:  base.Add(90 * time.Second),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated id")
	}
	if _, err := l.Record(ctx, ledger.Outcome{
		JobID:      "job-2",
		Kind:       "TRANSFORM",
		SubjectID:  "video-9",
		Worker:     "test-worker",
		Status:     "FAILED",
		Error:      "download failed",
		Hint:       "check the key",
		FinishedAt: base.Add(2 * time.Minute),
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	all, err := l.Recent(ctx, ledger.Filter{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 2 || all[0].JobID != "job-2" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].Hint != "check the key" || all[0].LastBitrate != nil {
		t.Fatalf("unexpected failed outcome %+v", all[0])
	}
	if all[1].LastBitrate == nil || *all[1].LastBitrate != bitrate {
		t.Fatalf("expected bitrate round trip, got %+v", all[1])
	}
	if got := all[1].Duration(); got != 90*time.Second {
		t.Fatalf("unexpected duration %s", got)
	}
	if got := all[0].Duration(); got != 0 {
		t.Fatalf("never-active job should have zero duration, got %s", got)
	}

	streams, err := l.Recent(ctx, ledger.Filter{Kind: "stream"})
	if err != nil {
		t.Fatalf("Recent(kind): %v", err)
	}
	if len(streams) != 1 || streams[0].JobID != "job-1" {
		t.Fatalf("unexpected kind filter result %+v", streams)
	}

	counts, err := l.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["COMPLETED"] != 1 || counts["FAILED"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestRecordRequiresJobID(t *testing.T) {
	l := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	if _, err := l.Record(context.Background(), ledger.Outcome{Status: "FAILED"}); err == nil {
		t.Fatal("expected missing job id error")
	}
}

func TestRecentHonoursLimit(t *testing.T) {
	l := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if _, err := l.Record(ctx, ledger.Outcome{
			JobID:      "job",
			Kind:       "STREAM",
			Worker:     "w",
			Status:     "COMPLETED",
			FinishedAt: base.Add(time.Duration(i) * time.Millisecond),
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	got, err := l.Recent(ctx, ledger.Filter{Limit: 3})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(got))
	}
	if !got[0].FinishedAt.After(got[2].FinishedAt) {
		t.Fatalf("expected descending order, got %v then %v", got[0].FinishedAt, got[2].FinishedAt)
	}
}

func TestPruneRemovesOldOutcomes(t *testing.T) {
	l := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	now := time.Now().UTC()
	for i, finished := range []time.Time{now.Add(-48 * time.Hour), now} {
		if _, err := l.Record(ctx, ledger.Outcome{
			JobID:      []string{"old", "new"}[i],
			Kind:       "STREAM",
			Worker:     "w",
			Status:     "COMPLETED",
			FinishedAt: finished,
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	removed, err := l.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one pruned outcome, got %d", removed)
	}
	left, _ := l.Recent(ctx, ledger.Filter{})
	if len(left) != 1 || left[0].JobID != "new" {
		t.Fatalf("unexpected remaining outcomes %+v", left)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := ledger.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = l.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := ledger.OpenPath(path); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
