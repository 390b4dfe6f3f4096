package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"streamworker/internal/config"
	"streamworker/internal/logging"
	"streamworker/internal/retry"
	"streamworker/internal/services"
)

// Store is a thin S3-compatible client bound to one bucket. Transfers fail
// closed; retrying them is the caller's decision.
type Store struct {
	client       *minio.Client
	bucket       string
	endpoint     string
	probeClient  *http.Client
	probePolicy  retry.Policy
	probeTimeout time.Duration
	logger       *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithProbeHTTPClient overrides the client used for locator probes.
func WithProbeHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.probeClient = client
		}
	}
}

// WithProbeRetry overrides the probe attempt ceiling and delay.
func WithProbeRetry(attempts int, delay time.Duration) Option {
	return func(s *Store) {
		s.probePolicy.Attempts = attempts
		s.probePolicy.Delay = delay
	}
}

// WithSleeper overrides probe retry waits (tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(s *Store) {
		s.probePolicy.Sleep = sleeper
	}
}

// New builds a store. An empty endpoint yields a store that can still probe
// direct locators but rejects key-based transfers.
func New(cfg config.Store, stream config.Stream, logger *slog.Logger, opts ...Option) (*Store, error) {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &Store{
		bucket:       cfg.Bucket,
		endpoint:     cfg.Endpoint,
		probeClient:  &http.Client{},
		probeTimeout: timeout,
		probePolicy: retry.Policy{
			Attempts: stream.ProbeAttempts,
			Delay:    time.Duration(stream.ProbeDelay) * time.Second,
		},
		logger: logging.NewComponentLogger(logger, "objectstore"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if strings.TrimSpace(cfg.Endpoint) == "" {
		return s, nil
	}
	if cfg.Bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "init", "bucket is empty", nil)
	}

	transport, err := minio.DefaultTransport(cfg.UseSSL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "init", "build transport", err)
	}
	transport.ResponseHeaderTimeout = timeout

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
		Transport:    transport,
		MaxRetries:   1,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "init", "create client", err)
	}
	s.client = client
	return s, nil
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Configured reports whether key-based transfers are available.
func (s *Store) Configured() bool { return s != nil && s.client != nil }

// Download fetches key into localPath.
func (s *Store) Download(ctx context.Context, key, localPath string) error {
	if !s.Configured() {
		return services.Wrap(services.ErrConfiguration, "objectstore", "download", "object store endpoint is not configured", nil)
	}
	start := time.Now()
	if err := s.client.FGetObject(ctx, s.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return classify("download", key, err)
	}
	attrs := []logging.Attr{
		logging.String("key", key),
		logging.Duration("duration", time.Since(start)),
	}
	if info, err := os.Stat(localPath); err == nil {
		attrs = append(attrs, logging.Int64("bytes", info.Size()))
	}
	s.logger.Debug("object downloaded", logging.Args(attrs...)...)
	return nil
}

// Upload stores localPath under key with the given content type.
func (s *Store) Upload(ctx context.Context, localPath, key, contentType string) error {
	if !s.Configured() {
		return services.Wrap(services.ErrConfiguration, "objectstore", "upload", "object store endpoint is not configured", nil)
	}
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return classify("upload", key, err)
	}
	s.logger.Debug("object uploaded",
		logging.String("key", key),
		logging.Int64("bytes", info.Size),
		logging.String("file", filepath.Base(localPath)),
	)
	return nil
}

// BucketAccessible verifies the bucket exists and the credentials can see it.
func (s *Store) BucketAccessible(ctx context.Context) error {
	if !s.Configured() {
		return services.Wrap(services.ErrConfiguration, "objectstore", "bucket check", "object store endpoint is not configured", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classify("bucket check", s.bucket, err)
	}
	if !exists {
		return services.Wrap(services.ErrNotFound, "objectstore", "bucket check", fmt.Sprintf("bucket %q does not exist", s.bucket), nil)
	}
	return nil
}

func classify(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	message := fmt.Sprintf("%s %q", op, key)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "objectstore", op, message, err)
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return services.WithHint(
			services.Wrap(services.ErrNotFound, "objectstore", op, message, err),
			"object or bucket does not exist; check the key and S3_BUCKET_NAME",
		)
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return services.WithHint(
			services.Wrap(services.ErrPermission, "objectstore", op, message, err),
			"store rejected the credentials; check S3_ACCESS_KEY and bucket policy",
		)
	default:
		return services.Wrap(services.ErrTransient, "objectstore", op, message, err)
	}
}
