// Package client is the HTTP client for the sysagent tool protocol.
//
// The tool server exposes GET /tools/list, POST /tools/call, and GET
// /health as plain JSON over HTTP. The client maps every failure to an
// *InvokeError carrying one of the stable error kinds, so callers
// never have to inspect HTTP status codes or net errors themselves.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bc-dunia/sysagent/internal/config"
	"github.com/bc-dunia/sysagent/internal/otel"
	"github.com/bc-dunia/sysagent/internal/types"
)

const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerAPIKey      = "X-API-Key"

	contentTypeJSON = "application/json"

	// Tool responses are small JSON documents. The read cap protects
	// against a misbehaving server streaming unbounded output.
	maxResponseBytes = 10 * 1024 * 1024
)

// Config holds client construction parameters. Zero values fall back
// to the package defaults.
type Config struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// Tracer, when set and enabled, injects W3C trace context into
	// outbound requests.
	Tracer *otel.Tracer
}

// DefaultConfig returns a Config pointed at the local tool server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        config.DefaultBaseURL,
		ConnectTimeout: config.DefaultConnectTimeout,
		RequestTimeout: config.DefaultRequestTimeout,
	}
}

// Client invokes operations on a sysagent tool server.
type Client struct {
	baseURL        string
	apiKey         string
	requestTimeout time.Duration
	tracer         *otel.Tracer
	httpClient     *http.Client
}

// New builds a Client from cfg. A nil cfg selects DefaultConfig.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = config.DefaultConnectTimeout
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = config.DefaultRequestTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: connectTimeout,
	}

	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         cfg.APIKey,
		requestTimeout: requestTimeout,
		tracer:         cfg.Tracer,
		// Deadlines come from the per-request context, not the
		// http.Client, so callers can tighten them per call.
		httpClient: &http.Client{Transport: transport, Timeout: 0},
	}
}

// BaseURL returns the server base URL the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListOperations fetches the operation catalog from GET /tools/list.
func (c *Client) ListOperations(ctx context.Context) ([]types.ToolListItem, error) {
	body, err := c.do(ctx, http.MethodGet, "/tools/list", nil, "")
	if err != nil {
		return nil, err
	}

	var items []types.ToolListItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &InvokeError{
			Kind:    KindTransportError,
			Message: fmt.Sprintf("failed to parse catalog response: %v", err),
			Err:     err,
		}
	}
	return items, nil
}

// OperationNames fetches the catalog and returns just the operation
// names, in server order.
func (c *Client) OperationNames(ctx context.Context) ([]string, error) {
	items, err := c.ListOperations(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names, nil
}

// Invoke calls one operation via POST /tools/call and returns the
// decoded result payload. Failures come back as *InvokeError with the
// operation name attached.
func (c *Client) Invoke(ctx context.Context, operation string, args map[string]interface{}) (interface{}, error) {
	reqBody, err := json.Marshal(&types.ToolCallRequest{Name: operation, Args: args})
	if err != nil {
		return nil, &InvokeError{
			Kind:      KindPlanningProtocolError,
			Operation: operation,
			Message:   fmt.Sprintf("failed to encode arguments: %v", err),
			Err:       err,
		}
	}

	body, err := c.do(ctx, http.MethodPost, "/tools/call", reqBody, operation)
	if err != nil {
		return nil, err
	}

	var result types.ToolCallResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &InvokeError{
			Kind:      KindTransportError,
			Operation: operation,
			Message:   fmt.Sprintf("failed to parse result: %v", err),
			Err:       err,
		}
	}
	return result.Result, nil
}

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	body, err := c.do(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return nil, err
	}

	var health types.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, &InvokeError{
			Kind:    KindTransportError,
			Message: fmt.Sprintf("failed to parse health response: %v", err),
			Err:     err,
		}
	}
	return &health, nil
}

// do runs one HTTP exchange and returns the raw response body on 2xx.
// Non-2xx statuses are decoded into the protocol error body and mapped
// to an InvokeError.
func (c *Client) do(ctx context.Context, method, path string, reqBody []byte, operation string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, c.wrap(MapError(err), operation)
	}

	req.Header.Set(headerAccept, contentTypeJSON)
	if reqBody != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}
	c.tracer.Inject(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrap(MapError(err), operation)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.wrap(MapError(err), operation)
	}

	if httpErr := MapHTTPStatus(resp.StatusCode, decodeDetail(body)); httpErr != nil {
		return nil, c.wrap(httpErr, operation)
	}
	return body, nil
}

// wrap stamps the operation name onto a mapped error.
func (c *Client) wrap(invErr *InvokeError, operation string) error {
	if invErr == nil {
		return nil
	}
	if invErr.Operation == "" {
		invErr.Operation = operation
	}
	return invErr
}

// decodeDetail extracts the "detail" message from an error body, or
// falls back to the trimmed raw body for non-protocol responses.
func decodeDetail(body []byte) string {
	var errBody types.ErrorBody
	if err := json.Unmarshal(body, &errBody); err == nil && errBody.Detail != "" {
		return errBody.Detail
	}
	return strings.TrimSpace(string(body))
}
