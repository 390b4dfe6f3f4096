package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"streamworker/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "transform", "ffmpeg", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transform", "ffmpeg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "worker failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestHintSurvivesWrapping(t *testing.T) {
	base := services.Wrap(services.ErrPermission, "stream", "probe", "source rejected", nil)
	hinted := services.WithHint(base, "presigned URL may have expired")
	outer := fmt.Errorf("stream job: %w", hinted)

	if got := services.Hint(outer); got != "presigned URL may have expired" {
		t.Fatalf("unexpected hint %q", got)
	}
	if hinted.Error() != base.Error() {
		t.Fatalf("hint must not change the message: %q", hinted.Error())
	}
	details := services.Details(outer)
	if details.Kind != "permission" {
		t.Fatalf("expected permission kind, got %q", details.Kind)
	}
	if details.Hint == "" || details.Message == "" {
		t.Fatalf("expected populated details, got %+v", details)
	}
}

func TestWithHintIgnoresEmptyInput(t *testing.T) {
	if services.WithHint(nil, "x") != nil {
		t.Fatal("expected nil for nil error")
	}
	base := errors.New("plain")
	if services.WithHint(base, "  ") != base {
		t.Fatal("expected blank hint to return the original error")
	}
}

func TestKindMapping(t *testing.T) {
	cases := map[error]string{
		services.Wrap(services.ErrValidation, "job", "validate", "bad", nil):    "validation",
		services.Wrap(services.ErrTimeout, "stream", "ffmpeg", "deadline", nil): "timeout",
		services.Wrap(services.ErrNotFound, "store", "download", "gone", nil):   "not_found",
		errors.New("mystery"): "unknown",
	}
	for err, want := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
	if services.Kind(nil) != "" {
		t.Fatal("expected empty kind for nil")
	}
}
