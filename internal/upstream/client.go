package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/obs"
)

const maxResponseBytes = 1 << 20

// Request describes a single call to a provider. Exactly one of Form or JSON
// may be set.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	JSON   any
	Header http.Header
}

// Client calls one payment or courier provider. Failed calls are surfaced as
// KindUpstream errors carrying the provider status and decoded payload; the
// client never retries.
type Client struct {
	Name    string
	BaseURL string
	HTTP    *http.Client
	Breaker *Breaker
	Limiter *rate.Limiter
	Timeout time.Duration
	Header  http.Header
}

// NewHTTPClient returns an http.Client instrumented with OpenTelemetry.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Do executes req and decodes a 2xx JSON response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if c.HTTP == nil {
		return errors.New("upstream: http client not configured")
	}
	// a request that cannot be built never takes the half-open slot
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return err
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return common.Upstream(c.Name, http.StatusTooManyRequests, nil, err)
		}
	}
	if !c.Breaker.Allow(ctx) {
		return common.Upstream(c.Name, http.StatusServiceUnavailable, nil, ErrOpenCircuit)
	}
	if c.Timeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()
		httpReq = httpReq.WithContext(callCtx)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		c.Breaker.Report(ctx, false)
		c.observe(start, "error")
		status := 0
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		return common.Upstream(c.Name, status, nil, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.observe(start, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.Breaker.Report(ctx, false)
		return common.Upstream(c.Name, resp.StatusCode, nil, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// client errors say nothing about provider health
		c.Breaker.Report(ctx, resp.StatusCode < 500)
		return common.Upstream(c.Name, resp.StatusCode, decodePayload(body), fmt.Errorf("%s %s: %s", req.Method, req.Path, resp.Status))
	}
	c.Breaker.Report(ctx, true)

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return common.Upstream(c.Name, http.StatusBadGateway, decodePayload(body), fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("upstream: encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	return httpReq, nil
}

func (c *Client) observe(start time.Time, status string) {
	if obs.UpstreamLatency == nil {
		return
	}
	obs.UpstreamLatency.WithLabelValues(c.Name, status).Observe(float64(time.Since(start).Milliseconds()))
}

// decodePayload keeps provider error bodies readable in the error envelope.
func decodePayload(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(trimmed)
}
