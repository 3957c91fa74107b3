package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// TokenFunc supplies the bearer token for authenticated requests.
type TokenFunc func() (string, error)

// Client is a thin HTTP client for the task sync server. It handles Bearer
// token authentication, JSON marshaling, and bounded retry with exponential
// backoff on throttling, gateway errors and transport failures.
type Client struct {
	baseURL       string
	token         TokenFunc
	httpClient    *http.Client
	maxRetries    int
	retryInterval time.Duration
	log           *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries bounds how many times a request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryInterval sets the first backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryInterval = d }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a client for the server rooted at baseURL. token is
// called for every authenticated request.
func NewClient(baseURL string, token TokenFunc, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries:    3,
		retryInterval: time.Second,
		log:           zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do builds the request, attaches auth when requested, retries transient
// failures and decodes the JSON response into result.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	authenticated bool,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var bearer string
	if authenticated {
		token, err := c.token()
		if err != nil || token == "" {
			return &AuthError{Message: "no auth token available"}
		}
		bearer = token
	}

	policy := &retryAfterBackOff{BackOff: c.newBackOff()}
	var b backoff.BackOff = backoff.WithMaxRetries(policy, uint64(max(c.maxRetries, 0)))
	b = backoff.WithContext(b, ctx)

	var respBody []byte
	attempt := 0
	operation := func() error {
		attempt++

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.Debugw("Request failed, retrying",
				"method", method, "path", path, "attempt", attempt, "error", err)
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(data)),
			}
			if retryable(resp.StatusCode) {
				policy.wait = retryAfter(resp)
				c.log.Debugw("Server asked to back off",
					"method", method, "path", path, "status", resp.StatusCode, "attempt", attempt)
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		respBody = data
		return nil
	}

	if err := backoff.Retry(operation, b); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) || attempt <= 1 {
			return err
		}
		return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
	}

	// No content to parse (e.g. 204).
	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryInterval
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

// retryAfterBackOff prefers a server-provided Retry-After delay over the
// wrapped policy's next interval.
type retryAfterBackOff struct {
	backoff.BackOff
	wait time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.wait > 0 {
		next, b.wait = b.wait, 0
	}
	return next
}

// retryAfter reads the Retry-After header in seconds; zero when absent.
func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return min(time.Duration(seconds)*time.Second, 30*time.Second)
		}
	}
	return 0
}
