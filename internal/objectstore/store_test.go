package objectstore_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamworker/internal/config"
	"streamworker/internal/logging"
	"streamworker/internal/objectstore"
	"streamworker/internal/services"
)

func newStore(t *testing.T, endpoint string, opts ...objectstore.Option) *objectstore.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Endpoint = endpoint
	cfg.Store.AccessKey = "ak"
	cfg.Store.SecretKey = "sk"
	cfg.Store.Bucket = "media"
	opts = append([]objectstore.Option{objectstore.WithSleeper(func(time.Duration) {})}, opts...)
	store, err := objectstore.New(cfg.Store, cfg.Stream, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func hostOf(t *testing.T, raw string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return parsed.Host
}

func TestKeyFromLocator(t *testing.T) {
	cases := []struct {
		locator string
		key     string
		ok      bool
	}{
		{"http://minio:9000/media/videos/a.mp4?X-Amz-Signature=abc", "videos/a.mp4", true},
		{"https://media.s3.amazonaws.com/videos/b%20c.mp4", "videos/b c.mp4", true},
		{"https://cdn.example.com/other/videos/a.mp4", "", false},
		{"http://minio:9000/media/", "", false},
		{"::not a url", "", false},
	}
	for _, tc := range cases {
		key, ok := objectstore.KeyFromLocator(tc.locator, "media")
		if key != tc.key || ok != tc.ok {
			t.Fatalf("KeyFromLocator(%q) = %q %v, want %q %v", tc.locator, key, ok, tc.key, tc.ok)
		}
	}
	if _, ok := objectstore.KeyFromLocator("http://minio/media/a.mp4", ""); ok {
		t.Fatal("expected no key without a bucket")
	}
}

func TestProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := newStore(t, "").Probe(context.Background(), srv.URL+"/v.mp4")
	if !result.Reachable || result.StatusCode != http.StatusOK || result.Err != nil {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestProbeFallsBackToRangedGet(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("Range") != "bytes=0-0" {
			t.Errorf("expected ranged GET, got %q", r.Header.Get("Range"))
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, "x")
	}))
	defer srv.Close()

	if !newStore(t, "").ProbeReachable(context.Background(), srv.URL+"/signed.mp4") {
		t.Fatal("expected ranged GET to prove reachability")
	}
	if len(methods) != 2 || methods[0] != http.MethodHead || methods[1] != http.MethodGet {
		t.Fatalf("unexpected request sequence %v", methods)
	}
}

func TestProbeRangedGetRejectionIsUnreachable(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := newStore(t, "").Probe(context.Background(), srv.URL+"/expired.mp4")
	if result.Reachable || result.StatusCode != http.StatusForbidden || result.Err == nil {
		t.Fatalf("expected 403 from the ranged GET, got %+v", result)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(methods) != 2 || methods[0] != http.MethodHead || methods[1] != http.MethodGet {
		t.Fatalf("expected HEAD then GET, got %v", methods)
	}
}

func TestProbeNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := newStore(t, "", objectstore.WithProbeRetry(3, 0)).Probe(context.Background(), srv.URL)
	if result.Reachable || result.StatusCode != http.StatusNotFound || result.Err == nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt for 404, got %d", calls.Load())
	}
}

func TestProbeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result := newStore(t, "", objectstore.WithProbeRetry(3, time.Second)).Probe(context.Background(), srv.URL)
	if result.Reachable || result.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected result %+v", result)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestProbeNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	locator := srv.URL + "/v.mp4"
	srv.Close()

	result := newStore(t, "", objectstore.WithProbeRetry(1, 0)).Probe(context.Background(), locator)
	if result.Reachable || result.StatusCode != 0 || result.Err == nil {
		t.Fatalf("expected transport failure, got %+v", result)
	}
}

func TestTransfersRequireEndpoint(t *testing.T) {
	store := newStore(t, "")
	if store.Configured() {
		t.Fatal("store without endpoint must not be configured")
	}
	err := store.Download(context.Background(), "a.mp4", filepath.Join(t.TempDir(), "a.mp4"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := store.Upload(context.Background(), "a", "b", "video/mp4"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDownloadMissingObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := newStore(t, hostOf(t, srv.URL))
	target := filepath.Join(t.TempDir(), "input.mp4")
	err := store.Download(context.Background(), "videos/missing.mp4", target)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if services.Hint(err) == "" {
		t.Fatal("expected a diagnostic hint")
	}
}

func TestDownloadAccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := newStore(t, hostOf(t, srv.URL)).Download(context.Background(), "videos/a.mp4", filepath.Join(t.TempDir(), "a.mp4"))
	if !errors.Is(err, services.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestUploadPutsPathStyleObject(t *testing.T) {
	var gotPath, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotPath, gotType, gotBody = r.URL.Path, r.Header.Get("Content-Type"), string(body)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	source := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(source, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := newStore(t, hostOf(t, srv.URL)).Upload(context.Background(), source, "out/v1.mp4", "video/mp4"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotPath != "/media/out/v1.mp4" {
		t.Fatalf("expected path-style key, got %q", gotPath)
	}
	if gotType != "video/mp4" {
		t.Fatalf("expected content type, got %q", gotType)
	}
	if gotBody == "" {
		t.Fatal("expected uploaded body")
	}
}
