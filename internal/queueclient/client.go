package queueclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"streamworker/internal/config"
	"streamworker/internal/job"
	"streamworker/internal/logging"
	"streamworker/internal/retry"
	"streamworker/internal/services"
)

const maxBodyBytes = 1 << 20

// Client talks to the remote job queue. It never propagates transient
// failures: exhausted polls degrade to "no job", exhausted reports are
// dropped after logging.
type Client struct {
	baseURL        string
	token          string
	nextPath       string
	callbackPath   string
	healthPath     string
	requestTimeout time.Duration
	httpClient     *http.Client
	policy         retry.Policy
	logger         *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry waits are performed (tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.policy.Sleep = sleeper
	}
}

// WithRetry overrides the attempt ceiling and delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.policy.Attempts = attempts
		c.policy.Delay = delay
	}
}

// New builds a client from the queue section of the configuration.
func New(cfg config.Queue, logger *slog.Logger, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "queue", "init", "base url is empty", nil)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "queue", "init", "bearer token is empty", nil)
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:        base,
		token:          cfg.Token,
		nextPath:       cfg.NextPath,
		callbackPath:   cfg.CallbackPath,
		healthPath:     cfg.HealthPath,
		requestTimeout: timeout,
		httpClient:     &http.Client{},
		policy: retry.Policy{
			Attempts: cfg.RetryAttempts,
			Delay:    time.Duration(cfg.RetryDelay) * time.Second,
		},
		logger: logging.NewComponentLogger(logger, "queue"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// FetchNext polls for the next job. A nil envelope with a nil error means
// there is no work: the queue is empty, rejected the credential, or could
// not be reached within the retry ceiling. Only a malformed job body is
// returned as an error.
func (c *Client) FetchNext(ctx context.Context) (*job.Envelope, error) {
	var body []byte
	policy := c.policy
	policy.OnRetry = c.logRetry("fetch next job")
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		body = nil
		data, status, err := c.do(ctx, http.MethodGet, c.nextPath, nil)
		if err != nil {
			return err
		}
		if status == http.StatusNoContent {
			return nil
		}
		body = data
		return nil
	})
	if err != nil {
		c.logFetchFailure(err)
		return nil, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	envelope, err := job.DecodeEnvelope(bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "queue", "fetch next job", "malformed job body", err)
	}
	return envelope, nil
}

func (c *Client) logFetchFailure(err error) {
	status := retry.StatusCode(err)
	var exhausted *retry.ExhaustedError
	switch {
	case errors.Is(err, context.Canceled):
		c.logger.Debug("job poll cancelled")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		logging.ErrorWithContext(c.logger, "queue rejected worker credentials", "queue_auth_failed",
			logging.Int("status_code", status),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check WORKER_TOKEN matches the queue owner's token"),
		)
	case errors.As(err, &exhausted):
		logging.WarnWithContext(c.logger, "queue unreachable, idling", "queue_poll_exhausted",
			logging.Int("attempts", exhausted.Attempts),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check API_BASE and queue availability"),
			logging.String(logging.FieldImpact, "no job fetched this cycle"),
		)
	default:
		logging.WarnWithContext(c.logger, "queue poll rejected", "queue_poll_rejected",
			logging.Int("status_code", status),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no job fetched this cycle"),
		)
	}
}

// Report posts a status report. It returns whether the queue accepted it and
// never blocks longer than the retry ceiling.
func (c *Client) Report(ctx context.Context, report job.StatusReport) bool {
	payload, err := json.Marshal(report)
	if err != nil {
		logging.ErrorWithContext(c.logger, "encode status report failed", "status_report_encode_failed", logging.Error(err))
		return false
	}
	policy := c.policy
	policy.OnRetry = c.logRetry("report status")
	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		_, _, err := c.do(ctx, http.MethodPost, c.callbackPath, payload)
		return err
	})
	if err != nil {
		logging.WarnWithContext(c.logger, "status report dropped", "status_report_failed",
			logging.String(logging.FieldJobID, report.JobID),
			logging.String("status", string(report.Status)),
			logging.Int("status_code", retry.StatusCode(err)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "queue owner may show a stale job state"),
		)
		return false
	}
	c.logger.Debug("status reported",
		logging.String(logging.FieldJobID, report.JobID),
		logging.String("status", string(report.Status)),
	)
	return true
}

// Health performs a single authenticated health check.
func (c *Client) Health(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, c.healthPath, nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "queue", "health", "health check failed", err)
	}
	return nil
}

func (c *Client) logRetry(op string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		c.logger.Info("queue request failed, retrying",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
}

// do performs one request. Non-2xx responses become *retry.StatusError.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	op := method + " " + path
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: http error (timeout=%s): %w", op, c.requestTimeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp.StatusCode, &retry.StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, resp.StatusCode, nil
}
