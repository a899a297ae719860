package textanalytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"textsummarize/internal/domain"
	"textsummarize/internal/poll"

	"github.com/google/uuid"
)

const (
	DefaultAPIVersion = "2023-04-01"
	DefaultMaxRetries = 3
	DefaultRetryDelay = 800 * time.Millisecond
	DefaultUserAgent  = "textsummarize/1.0"

	requestTimeout = 30 * time.Second
	jobsPath       = "language/analyze-text/jobs"
	displayName    = "textsummarize"
	maxBodyBytes   = 16 << 20

	apiKeyHeader            = "Ocp-Apim-Subscription-Key"
	clientRequestIDHeader   = "x-ms-client-request-id"
	operationLocationHeader = "Operation-Location"
	retryAfterHeader        = "Retry-After"
)

type Config struct {
	Endpoint     string
	APIKey       string
	APIVersion   string
	HTTPClient   *http.Client
	PollStrategy poll.Strategy
	MaxRetries   int
	RetryDelay   time.Duration
	UserAgent    string
}

// Client talks to the Azure AI Language analyze-text jobs API.
type Client struct {
	endpoint   *url.URL
	apiKey     string
	apiVersion string
	httpClient *http.Client
	strategy   poll.Strategy
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	log        *slog.Logger
}

func New(cfg Config, log *slog.Logger) (*Client, error) {
	endpoint, err := url.Parse(strings.TrimSpace(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("parse endpoint: %q is not an absolute URL", cfg.Endpoint)
	}

	c := &Client{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		httpClient: cfg.HTTPClient,
		strategy:   cfg.PollStrategy,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		userAgent:  cfg.UserAgent,
		log:        log,
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: requestTimeout}
	}
	if c.strategy == nil {
		c.strategy = poll.Default()
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	} else if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.log == nil {
		c.log = slog.Default()
	}

	return c, nil
}

// StartExtractSummary submits batch and returns the handle of the created job.
func (c *Client) StartExtractSummary(
	ctx context.Context,
	batch domain.Batch,
	actions domain.ActionSet,
) (*Operation, error) {
	body, err := json.Marshal(newJobRequest(displayName, batch, actions))
	if err != nil {
		return nil, fmt.Errorf("marshal job request: %w", err)
	}

	submitURL := c.endpoint.JoinPath(jobsPath)
	q := submitURL.Query()
	q.Set("api-version", c.apiVersion)
	submitURL.RawQuery = q.Encode()

	resp, err := c.do(ctx, http.MethodPost, submitURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}

	location := strings.TrimSpace(resp.header.Get(operationLocationHeader))
	if location == "" {
		return nil, errors.New("submit job: response has no operation location")
	}

	c.log.InfoContext(ctx, "Analyze job is submitted",
		"operationLocation", location,
		"documentsCount", len(batch),
		"actionsCount", len(actions.ExtractSummary))

	return newOperation(c, location, batch), nil
}

func (c *Client) getJob(
	ctx context.Context,
	rawURL string,
) (*jobState, time.Duration, error) {
	target, err := c.resolve(rawURL)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}

	var state jobState
	if err = json.Unmarshal(resp.body, &state); err != nil {
		return nil, 0, fmt.Errorf("unmarshal job state: %w", err)
	}

	return &state, parseRetryAfter(resp.header.Get(retryAfterHeader)), nil
}

// resolve turns relative links into endpoint URLs.
func (c *Client) resolve(rawURL string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}

	return c.endpoint.ResolveReference(ref).String(), nil
}

type response struct {
	statusCode int
	header     http.Header
	body       []byte
}

// do retries transport errors, 408, 429 and 5xx responses. Other non-2xx
// responses fail immediately with *APIError. Every attempt carries the same
// client request ID so the service can recognise a repeated submission.
func (c *Client) do(
	ctx context.Context,
	method string,
	target string,
	body []byte,
) (*response, error) {
	var (
		lastErr   error
		requestID = uuid.NewString()
	)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << (attempt - 1)
			if hinted := retryAfterOf(lastErr); hinted > delay {
				delay = hinted
			}

			c.log.WarnContext(ctx, "Request failed so it will be retried",
				"error", lastErr,
				"method", method,
				"attempt", attempt,
				"delay", delay)

			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := c.doOnce(ctx, method, target, requestID, body)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !isRetryable(ctx, err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doOnce(
	ctx context.Context,
	method string,
	target string,
	requestID string,
	body []byte,
) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set(clientRequestIDHeader, requestID)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"method", method)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retryHint{
			err:        newAPIError(resp.StatusCode, respBody),
			retryAfter: parseRetryAfter(resp.Header.Get(retryAfterHeader)),
		}
	}

	return &response{
		statusCode: resp.StatusCode,
		header:     resp.Header,
		body:       respBody,
	}, nil
}

// retryHint carries the Retry-After of a failed response alongside its error.
type retryHint struct {
	err        error
	retryAfter time.Duration
}

func (h *retryHint) Error() string { return h.err.Error() }

func (h *retryHint) Unwrap() error { return h.err }

func retryAfterOf(err error) time.Duration {
	var hint *retryHint
	if errors.As(err, &hint) {
		return hint.retryAfter
	}

	return 0
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}

	return true
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		return max(time.Until(at), 0)
	}

	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
