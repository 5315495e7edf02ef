package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Endpoint        string
	Timeout         time.Duration
	MaxRetries      int
	BackoffMaxDelay time.Duration
	APIKey          string
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

type Caller struct {
	endpoint        string
	apiKey          string
	maxRetries      int
	backoffMaxDelay time.Duration
	httpClient      *http.Client
	logger          *zap.Logger
	nextID          atomic.Int64
}

const (
	backoffBaseDelay  = 500 * time.Millisecond
	backoffMultiplier = 1.6
	backoffJitter     = 0.2
)

func NewCaller(config Config) (*Caller, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BackoffMaxDelay == 0 {
		config.BackoffMaxDelay = 10 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Caller{
		endpoint:        config.Endpoint,
		apiKey:          config.APIKey,
		maxRetries:      config.MaxRetries,
		backoffMaxDelay: config.BackoffMaxDelay,
		httpClient:      config.HTTPClient,
		logger:          config.Logger,
	}, nil
}

// Call issues a single JSON-RPC request and decodes its result into
// result (which may be nil when the caller only cares about errors).
// Transport failures and HTTP 5xx responses are retried with exponential
// backoff; errors returned by the service itself are not.
func (c *Caller) Call(ctx context.Context, method string, params any, result any) error {
	id := c.nextID.Add(1)

	req := Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
		ID:      id,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt)
			c.logger.Debug("Retrying request",
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return c.contextError(ctx.Err())
			}
		}

		retryable, err := c.doOnce(ctx, body, id, result)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// doOnce performs one HTTP round trip. The bool return reports whether
// the failure is worth retrying.
func (c *Caller) doOnce(ctx context.Context, body []byte, id int64, result any) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return true, c.transportError(err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return false, &AuthenticationError{Message: httpResp.Status}
	case httpResp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, httpResp.Body)
		return true, &ConnectionError{Endpoint: c.endpoint, cause: fmt.Errorf("server error: %s", httpResp.Status)}
	case httpResp.StatusCode != http.StatusOK:
		return false, &ConnectionError{Endpoint: c.endpoint, cause: fmt.Errorf("unexpected status: %s", httpResp.Status)}
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return true, &ConnectionError{Endpoint: c.endpoint, cause: fmt.Errorf("decode response: %w", err)}
	}

	if resp.ID != id {
		return false, &ConnectionError{Endpoint: c.endpoint, cause: fmt.Errorf("response id mismatch: sent %d, got %d", id, resp.ID)}
	}

	if resp.Error != nil {
		return false, errorFromObject(resp.Error)
	}

	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return false, &ConnectionError{Endpoint: c.endpoint, cause: fmt.Errorf("decode result: %w", err)}
		}
	}

	return false, nil
}

func (c *Caller) backoffDelay(attempt int) time.Duration {
	delay := float64(backoffBaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= backoffMultiplier
	}
	if delay > float64(c.backoffMaxDelay) {
		delay = float64(c.backoffMaxDelay)
	}
	// Spread retries out so concurrent callers do not sync up.
	delay *= 1 + backoffJitter*(2*rand.Float64()-1)
	return time.Duration(delay)
}

func (c *Caller) transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Endpoint: c.endpoint, cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Endpoint: c.endpoint, cause: err}
	}
	return &ConnectionError{Endpoint: c.endpoint, cause: err}
}

func (c *Caller) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Endpoint: c.endpoint, cause: err}
	}
	return err
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Caller) Close() {
	c.httpClient.CloseIdleConnections()
}

// Endpoint returns the configured endpoint URL.
func (c *Caller) Endpoint() string {
	return c.endpoint
}
