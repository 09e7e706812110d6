// Package httpclient provides a small HTTP client with retry and
// exponential-backoff handling, used by pkg/llm to talk to a streaming
// Ollama-format endpoint that may be local or on the other side of a
// flaky connection.
package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RetryStrategy defines how to handle retries for a given response.
type RetryStrategy int

const (
	// NoRetry indicates no retry should be attempted.
	NoRetry RetryStrategy = iota

	// ConservativeRetry attempts up to 2 retries with fixed delays.
	ConservativeRetry

	// SmartRetry uses the Retry-After header (if present) and
	// exponential backoff with jitter otherwise.
	SmartRetry
)

// RetryInfo carries retry hints extracted from a response.
type RetryInfo struct {
	RetryAfter time.Duration
}

// StrategyFunc determines the retry strategy based on status code.
type StrategyFunc func(int) RetryStrategy

// Client wraps http.Client with retry and backoff capabilities.
type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	strategyFunc StrategyFunc
	limiter      *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client (e.g. one with a TLS-configured
// transport via ConfigureTLS).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(max int) Option {
	return func(c *Client) { c.maxRetries = max }
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) { c.baseDelay = delay }
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(delay time.Duration) Option {
	return func(c *Client) { c.maxDelay = delay }
}

// WithRetryStrategy sets a custom retry strategy function.
func WithRetryStrategy(strategyFunc StrategyFunc) Option {
	return func(c *Client) { c.strategyFunc = strategyFunc }
}

// WithRateLimit bounds the rate of outgoing attempts (the initial
// request and every retry alike) to requestsPerSecond, with burst
// allowed up to burst in one go. This keeps a retry storm against a
// struggling endpoint from turning into a second source of load on
// top of whatever made it struggle in the first place.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// New creates a new Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		client:       &http.Client{Timeout: 0}, // streaming responses: no client-wide deadline
		maxRetries:   3,
		baseDelay:    500 * time.Millisecond,
		maxDelay:     10 * time.Second,
		strategyFunc: DefaultStrategy,
		limiter:      rate.NewLimiter(rate.Inf, 1), // unbounded unless WithRateLimit is given
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultStrategy returns the default retry strategy for a status code.
func DefaultStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// Do executes the request with retry logic. Retries only apply to the
// initial connect-and-headers phase; once a 2xx response body starts
// streaming, the caller owns reading it and Do does not intervene.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: read request body: %w", err)
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("httpclient: rate limit wait: %w", err)
		}

		resp, strategy, retryInfo, err := c.attemptRequest(req)
		if strategy == NoRetry || err == nil {
			return resp, err
		}

		if attempt >= c.maxRetries {
			return resp, &RetryableError{
				StatusCode: statusCodeOf(resp),
				Message:    fmt.Sprintf("max retries (%d) exceeded", c.maxRetries),
				Err:        err,
			}
		}

		delay := c.calculateDelay(strategy, attempt, retryInfo)
		if delay <= 0 {
			return resp, err
		}
		c.logRetry(strategy, delay, attempt, resp)
		time.Sleep(delay)
	}

	return nil, &RetryableError{Message: "max retries exceeded", Err: fmt.Errorf("max retries exceeded")}
}

func statusCodeOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func (c *Client) attemptRequest(req *http.Request) (*http.Response, RetryStrategy, RetryInfo, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NoRetry, RetryInfo{}, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, NoRetry, RetryInfo{}, nil
	}

	info := parseRetryAfter(resp.Header)
	strategy := c.strategyFunc(resp.StatusCode)
	return resp, strategy, info, fmt.Errorf("httpclient: HTTP %d", resp.StatusCode)
}

func parseRetryAfter(h http.Header) RetryInfo {
	v := h.Get("Retry-After")
	if v == "" {
		return RetryInfo{}
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return RetryInfo{RetryAfter: time.Duration(secs) * time.Second}
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return RetryInfo{RetryAfter: d}
		}
	}
	return RetryInfo{}
}

func (c *Client) calculateDelay(strategy RetryStrategy, attempt int, info RetryInfo) time.Duration {
	switch strategy {
	case SmartRetry:
		if info.RetryAfter > 0 {
			return min(info.RetryAfter, c.maxDelay)
		}
		delay := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
		return min(delay+jitter, c.maxDelay)
	case ConservativeRetry:
		if attempt >= 2 {
			return 0
		}
		return time.Duration(1+attempt) * time.Second
	default:
		return 0
	}
}

func (c *Client) logRetry(strategy RetryStrategy, delay time.Duration, attempt int, resp *http.Response) {
	slog.Warn("retrying request",
		"strategy", strategy,
		"delay", delay,
		"attempt", attempt+1,
		"max", c.maxRetries,
		"status", statusCodeOf(resp),
	)
}
