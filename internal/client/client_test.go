package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/bc-dunia/sysagent/internal/types"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedKind ErrorKind
	}{
		{
			name:         "context cancelled",
			err:          context.Canceled,
			expectedKind: KindOperationError,
		},
		{
			name:         "context deadline exceeded",
			err:          context.DeadlineExceeded,
			expectedKind: KindOperationError,
		},
		{
			name: "DNS lookup failed",
			err: &net.DNSError{
				Err:  "no such host",
				Name: "example.com",
			},
			expectedKind: KindTransportError,
		},
		{
			name:         "plain error",
			err:          errors.New("something broke"),
			expectedKind: KindTransportError,
		},
		{
			name:         "nil error",
			err:          nil,
			expectedKind: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapError(tt.err)
			if tt.err == nil {
				if result != nil {
					t.Errorf("expected nil, got %v", result)
				}
				return
			}
			if result.Kind != tt.expectedKind {
				t.Errorf("expected kind %s, got %s", tt.expectedKind, result.Kind)
			}
		})
	}
}

func TestErrorMappingPassthrough(t *testing.T) {
	orig := &InvokeError{Kind: KindUnknownOperation, Operation: "bogus", Message: "Unknown tool: bogus"}

	mapped := MapError(orig)
	if mapped != orig {
		t.Errorf("expected the same *InvokeError back, got %v", mapped)
	}

	wrapped := fmt.Errorf("invoking: %w", orig)
	mapped = MapError(wrapped)
	if mapped != orig {
		t.Errorf("expected unwrap to the original *InvokeError, got %v", mapped)
	}
}

func TestMapSyscallErrors(t *testing.T) {
	tests := []struct {
		errno           syscall.Errno
		expectedKind    ErrorKind
		expectedMessage string
	}{
		{syscall.ECONNREFUSED, KindTransportError, "connection refused to 127.0.0.1:8080"},
		{syscall.ECONNRESET, KindTransportError, "connection reset by peer"},
		{syscall.ENETUNREACH, KindTransportError, "network is unreachable"},
		{syscall.ETIMEDOUT, KindTransportError, "connection timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.errno.Error(), func(t *testing.T) {
			opErr := &net.OpError{
				Op:   "dial",
				Net:  "tcp",
				Addr: &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8080},
				Err:  tt.errno,
			}
			result := MapError(opErr)
			if result.Kind != tt.expectedKind {
				t.Errorf("expected kind %s, got %s", tt.expectedKind, result.Kind)
			}
			if result.Message != tt.expectedMessage {
				t.Errorf("expected message %q, got %q", tt.expectedMessage, result.Message)
			}
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		detail       string
		expectedKind ErrorKind
		expectedMsg  string
	}{
		{"ok", 200, "", "", ""},
		{"no content", 204, "", "", ""},
		{"unknown operation", 404, "Unknown tool: bogus", KindUnknownOperation, "Unknown tool: bogus"},
		{"unknown operation no detail", 404, "", KindUnknownOperation, "not found"},
		{"operation error", 400, "file_name is required", KindOperationError, "file_name is required"},
		{"operation error no detail", 400, "", KindOperationError, "bad request"},
		{"unauthorized", 401, "Invalid authentication credentials", KindTransportError, "unexpected status 401: Invalid authentication credentials"},
		{"server error", 500, "", KindTransportError, "unexpected status 500"},
		{"unavailable", 503, "", KindTransportError, "unexpected status 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapHTTPStatus(tt.status, tt.detail)
			if tt.expectedKind == "" {
				if result != nil {
					t.Errorf("expected nil for status %d, got %v", tt.status, result)
				}
				return
			}
			if result.Kind != tt.expectedKind {
				t.Errorf("expected kind %s, got %s", tt.expectedKind, result.Kind)
			}
			if result.Message != tt.expectedMsg {
				t.Errorf("expected message %q, got %q", tt.expectedMsg, result.Message)
			}
		})
	}
}

func TestInvokeErrorFormat(t *testing.T) {
	withOp := &InvokeError{Kind: KindOperationError, Operation: "get_cpu_usage", Message: "cpu sampling failed"}
	if got := withOp.Error(); got != "get_cpu_usage: operation_error: cpu sampling failed" {
		t.Errorf("unexpected error string: %q", got)
	}

	withoutOp := &InvokeError{Kind: KindTransportError, Message: "connection refused to 127.0.0.1:8000"}
	if got := withoutOp.Error(); got != "transport_error: connection refused to 127.0.0.1:8000" {
		t.Errorf("unexpected error string: %q", got)
	}

	cause := errors.New("boom")
	wrapped := &InvokeError{Kind: KindTransportError, Message: "boom", Err: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestKindOf(t *testing.T) {
	invErr := &InvokeError{Kind: KindUnknownOperation, Message: "Unknown tool: x"}
	if kind := KindOf(invErr); kind != KindUnknownOperation {
		t.Errorf("expected %s, got %s", KindUnknownOperation, kind)
	}
	if kind := KindOf(fmt.Errorf("call failed: %w", invErr)); kind != KindUnknownOperation {
		t.Errorf("expected %s through wrapping, got %s", KindUnknownOperation, kind)
	}
	if kind := KindOf(errors.New("opaque")); kind != KindTransportError {
		t.Errorf("expected %s for opaque errors, got %s", KindTransportError, kind)
	}
}

func TestClientListOperations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/tools/list" {
			t.Errorf("expected path /tools/list, got %s", r.URL.Path)
		}
		if r.Header.Get(headerAccept) != contentTypeJSON {
			t.Errorf("expected accept %s", contentTypeJSON)
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		json.NewEncoder(w).Encode([]types.ToolListItem{
			{Name: "get_system_info"},
			{Name: "get_cpu_usage"},
		})
	}))
	defer server.Close()

	c := New(&Config{BaseURL: server.URL})
	items, err := c.ListOperations(context.Background())
	if err != nil {
		t.Fatalf("list operations failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "get_system_info" || items[1].Name != "get_cpu_usage" {
		t.Errorf("unexpected catalog: %+v", items)
	}
}

func TestClientOperationNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]types.ToolListItem{
			{Name: "get_system_info"},
			{Name: "store_in_file"},
		})
	}))
	defer server.Close()

	c := New(&Config{BaseURL: server.URL})
	names, err := c.OperationNames(context.Background())
	if err != nil {
		t.Fatalf("operation names failed: %v", err)
	}
	if len(names) != 2 || names[0] != "get_system_info" || names[1] != "store_in_file" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestClientInvoke(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/tools/call" {
				t.Errorf("expected path /tools/call, got %s", r.URL.Path)
			}
			if r.Header.Get(headerContentType) != contentTypeJSON {
				t.Errorf("expected content-type %s", contentTypeJSON)
			}

			var req types.ToolCallRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Name != "store_in_file" {
				t.Errorf("expected operation store_in_file, got %s", req.Name)
			}
			if req.Args["file_name"] != "report.txt" {
				t.Errorf("expected file_name arg, got %v", req.Args)
			}

			json.NewEncoder(w).Encode(types.ToolCallResult{
				Result: map[string]interface{}{"path": "/tmp/output/report.txt"},
			})
		}))
		defer server.Close()

		c := New(&Config{BaseURL: server.URL})
		result, err := c.Invoke(context.Background(), "store_in_file", map[string]interface{}{
			"file_name": "report.txt",
			"content":   "hello",
		})
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		payload, ok := result.(map[string]interface{})
		if !ok {
			t.Fatalf("expected object result, got %T", result)
		}
		if payload["path"] != "/tmp/output/report.txt" {
			t.Errorf("unexpected path: %v", payload["path"])
		}
	})

	t.Run("unknown operation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(headerContentType, contentTypeJSON)
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(types.ErrorBody{Detail: "Unknown tool: bogus"})
		}))
		defer server.Close()

		c := New(&Config{BaseURL: server.URL})
		_, err := c.Invoke(context.Background(), "bogus", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		var invErr *InvokeError
		if !errors.As(err, &invErr) {
			t.Fatalf("expected *InvokeError, got %T", err)
		}
		if invErr.Kind != KindUnknownOperation {
			t.Errorf("expected kind %s, got %s", KindUnknownOperation, invErr.Kind)
		}
		if invErr.Operation != "bogus" {
			t.Errorf("expected operation bogus, got %s", invErr.Operation)
		}
		if invErr.Message != "Unknown tool: bogus" {
			t.Errorf("expected server detail preserved, got %q", invErr.Message)
		}
	})

	t.Run("operation error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(headerContentType, contentTypeJSON)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(types.ErrorBody{Detail: "file_name is required"})
		}))
		defer server.Close()

		c := New(&Config{BaseURL: server.URL})
		_, err := c.Invoke(context.Background(), "store_in_file", map[string]interface{}{})
		var invErr *InvokeError
		if !errors.As(err, &invErr) {
			t.Fatalf("expected *InvokeError, got %T", err)
		}
		if invErr.Kind != KindOperationError {
			t.Errorf("expected kind %s, got %s", KindOperationError, invErr.Kind)
		}
		if invErr.Message != "file_name is required" {
			t.Errorf("expected server detail preserved, got %q", invErr.Message)
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal", http.StatusInternalServerError)
		}))
		defer server.Close()

		c := New(&Config{BaseURL: server.URL})
		_, err := c.Invoke(context.Background(), "get_system_info", nil)
		var invErr *InvokeError
		if !errors.As(err, &invErr) {
			t.Fatalf("expected *InvokeError, got %T", err)
		}
		if invErr.Kind != KindTransportError {
			t.Errorf("expected kind %s, got %s", KindTransportError, invErr.Kind)
		}
	})

	t.Run("malformed result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer server.Close()

		c := New(&Config{BaseURL: server.URL})
		_, err := c.Invoke(context.Background(), "get_system_info", nil)
		var invErr *InvokeError
		if !errors.As(err, &invErr) {
			t.Fatalf("expected *InvokeError, got %T", err)
		}
		if invErr.Kind != KindTransportError {
			t.Errorf("expected kind %s, got %s", KindTransportError, invErr.Kind)
		}
		if !strings.Contains(invErr.Message, "failed to parse result") {
			t.Errorf("unexpected message: %q", invErr.Message)
		}
	})
}

func TestClientInvokeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	c := New(&Config{BaseURL: addr, ConnectTimeout: 2 * time.Second, RequestTimeout: 2 * time.Second})
	_, err := c.Invoke(context.Background(), "get_system_info", nil)
	if err == nil {
		t.Fatal("expected error against closed server")
	}
	var invErr *InvokeError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvokeError, got %T", err)
	}
	if invErr.Kind != KindTransportError {
		t.Errorf("expected kind %s, got %s", KindTransportError, invErr.Kind)
	}
}

func TestClientInvokeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(types.ToolCallResult{Result: "late"})
	}))
	defer server.Close()

	c := New(&Config{BaseURL: server.URL, RequestTimeout: 50 * time.Millisecond})
	_, err := c.Invoke(context.Background(), "get_cpu_usage", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var invErr *InvokeError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvokeError, got %T", err)
	}
	if invErr.Kind != KindOperationError {
		t.Errorf("expected timeout to map to kind %s, got %s", KindOperationError, invErr.Kind)
	}
	if !strings.Contains(invErr.Message, "timeout") {
		t.Errorf("expected timeout message, got %q", invErr.Message)
	}
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected path /health, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(types.HealthResponse{
			Status: "ok",
			Tools:  []string{"get_cpu_usage", "get_system_info"},
		})
	}))
	defer server.Close()

	c := New(&Config{BaseURL: server.URL})
	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("expected status ok, got %s", health.Status)
	}
	if len(health.Tools) != 2 {
		t.Errorf("expected 2 tools, got %d", len(health.Tools))
	}
}

func TestClientAPIKeyHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(headerAPIKey); got != "secret-key" {
			t.Errorf("expected X-API-Key header, got %q", got)
		}
		json.NewEncoder(w).Encode([]types.ToolListItem{})
	}))
	defer server.Close()

	c := New(&Config{BaseURL: server.URL, APIKey: "secret-key"})
	if _, err := c.ListOperations(context.Background()); err != nil {
		t.Fatalf("list operations failed: %v", err)
	}
}

func TestClientDefaults(t *testing.T) {
	c := New(nil)
	if c.BaseURL() != "http://127.0.0.1:8000" {
		t.Errorf("unexpected default base URL: %s", c.BaseURL())
	}

	trimmed := New(&Config{BaseURL: "http://example.test:9000/"})
	if trimmed.BaseURL() != "http://example.test:9000" {
		t.Errorf("expected trailing slash trimmed, got %s", trimmed.BaseURL())
	}
}
