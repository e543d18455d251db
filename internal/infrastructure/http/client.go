// Package http provides a JSON-over-HTTP client for outbound webhooks with
// retry and circuit breaking.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"signalbridge/pkg/telemetry"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// APIError is returned for responses with a status of 400 or above
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Policy tunes the resilience pipeline
type Policy struct {
	MaxRetries   int
	BackoffMin   time.Duration
	BackoffMax   time.Duration
	BreakerDelay time.Duration
}

// DefaultPolicy retries three times with backoff and opens the breaker
// after 5 failures out of 10 attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		BackoffMin:   100 * time.Millisecond,
		BackoffMax:   2 * time.Second,
		BreakerDelay: 10 * time.Second,
	}
}

// Client is a wrapper around http.Client with resilience
type Client struct {
	client   *http.Client
	baseURL  string
	headers  map[string]string
	pipeline failsafe.Executor[[]byte]

	tracer     trace.Tracer
	reqCounter metric.Int64Counter
	errCounter metric.Int64Counter
}

// NewClient creates a client with DefaultPolicy. headers are set on every request.
func NewClient(baseURL string, timeout time.Duration, headers map[string]string) *Client {
	return NewClientWithPolicy(baseURL, timeout, headers, DefaultPolicy())
}

// NewClientWithPolicy creates a client with a custom resilience policy
func NewClientWithPolicy(baseURL string, timeout time.Duration, headers map[string]string, p Policy) *Client {
	retryPolicy := retrypolicy.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool {
			return retryable(err)
		}).
		WithBackoff(p.BackoffMin, p.BackoffMax).
		WithMaxRetries(p.MaxRetries).
		Build()

	breaker := circuitbreaker.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool {
			return serverFault(err)
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(p.BreakerDelay).
		Build()

	meter := telemetry.GetMeter("webhook-client")
	reqCounter, _ := meter.Int64Counter("signal_bridge_webhook_requests_total",
		metric.WithDescription("Outbound webhook requests"))
	errCounter, _ := meter.Int64Counter("signal_bridge_webhook_errors_total",
		metric.WithDescription("Outbound webhook requests that failed after retries"))

	return &Client{
		client:     &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		headers:    headers,
		pipeline:   failsafe.With[[]byte](retryPolicy, breaker),
		tracer:     telemetry.GetTracer("webhook-client"),
		reqCounter: reqCounter,
		errCounter: errCounter,
	}
}

// Post sends body as JSON and returns the response body
func (c *Client) Post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		payload = b
	}

	ctx, span := c.tracer.Start(ctx, "POST "+path,
		trace.WithAttributes(attribute.String("http.method", http.MethodPost)))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("path", path))
	c.reqCounter.Add(ctx, 1, attrs)

	resp, err := c.pipeline.GetWithExecution(func(exec failsafe.Execution[[]byte]) ([]byte, error) {
		span.SetAttributes(attribute.Int("http.attempt", exec.Attempts()))
		return c.attempt(ctx, path, payload)
	})
	if err != nil {
		span.RecordError(err)
		c.errCounter.Add(ctx, 1, attrs)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// attempt builds a fresh request so the body can be replayed on retry
func (c *Client) attempt(ctx context.Context, path string, payload []byte) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

// retryable covers transport failures, 5xx and 429
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func serverFault(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
