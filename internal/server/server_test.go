package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bc-dunia/sysagent/internal/auth"
	"github.com/bc-dunia/sysagent/internal/retention"
	"github.com/bc-dunia/sysagent/internal/types"
)

func startServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BaseDir == "" && cfg.Registry == nil {
		cfg.BaseDir = t.TempDir()
	}
	srv, cleanup, err := StartTestServer(cfg)
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(cleanup)
	return srv
}

func postCall(t *testing.T, baseURL, name string, args map[string]interface{}) (int, []byte) {
	t.Helper()
	payload, err := json.Marshal(types.ToolCallRequest{Name: name, Args: args})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(baseURL+"/tools/call", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post /tools/call: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func decodeDetail(t *testing.T, body []byte) string {
	t.Helper()
	var eb types.ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		t.Fatalf("error body not JSON: %v (%s)", err, body)
	}
	return eb.Detail
}

func TestServerToolsList(t *testing.T) {
	srv := startServer(t, nil)

	resp, err := http.Get(srv.BaseURL() + "/tools/list")
	if err != nil {
		t.Fatalf("get /tools/list: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var items []types.ToolListItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"get_cpu_usage", "get_system_info", "list_processes", "store_in_file"}
	if len(items) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(items))
	}
	for i, name := range want {
		if items[i].Name != name {
			t.Fatalf("tool %d: expected %s, got %s", i, name, items[i].Name)
		}
	}
}

func TestServerStoreInFileRoundTrip(t *testing.T) {
	base := t.TempDir()
	srv := startServer(t, &Config{BaseDir: base})

	status, body := postCall(t, srv.BaseURL(), "store_in_file", map[string]interface{}{
		"file_name": "report.txt",
		"content":   "hello world\n",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result types.ToolCallResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	resMap, ok := result.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is not an object: %v", result.Result)
	}
	wantPath := filepath.Join(base, "output", "report.txt")
	if resMap["path"] != wantPath {
		t.Fatalf("expected path %q, got %v", wantPath, resMap["path"])
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "hello world\n" {
		t.Fatalf("unexpected file content %q", data)
	}
}

func TestServerUnknownTool(t *testing.T) {
	srv := startServer(t, nil)

	status, body := postCall(t, srv.BaseURL(), "bogus", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if detail := decodeDetail(t, body); detail != "Unknown tool: bogus" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestServerValidationFailure(t *testing.T) {
	srv := startServer(t, nil)

	status, body := postCall(t, srv.BaseURL(), "store_in_file", map[string]interface{}{})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if detail := decodeDetail(t, body); detail != "file_name is required" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestServerRejectsPathSeparators(t *testing.T) {
	srv := startServer(t, nil)

	status, body := postCall(t, srv.BaseURL(), "store_in_file", map[string]interface{}{
		"file_name": "../escape.txt",
		"content":   "x",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if detail := decodeDetail(t, body); !strings.Contains(detail, "path separators") {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestServerMalformedBody(t *testing.T) {
	srv := startServer(t, nil)

	resp, err := http.Post(srv.BaseURL()+"/tools/call", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if detail := decodeDetail(t, body); detail != "invalid request body" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv := startServer(t, nil)

	resp, err := http.Post(srv.BaseURL()+"/tools/list", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post /tools/list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST /tools/list, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.BaseURL() + "/tools/call")
	if err != nil {
		t.Fatalf("get /tools/call: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /tools/call, got %d", resp.StatusCode)
	}
}

func TestServerHealth(t *testing.T) {
	srv := startServer(t, nil)

	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var health types.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" {
		t.Fatalf("unexpected status %q", health.Status)
	}
	if len(health.Tools) != 4 {
		t.Fatalf("expected 4 tools, got %v", health.Tools)
	}
}

func TestServerMetricsExposition(t *testing.T) {
	srv := startServer(t, nil)

	if status, body := postCall(t, srv.BaseURL(), "store_in_file", map[string]interface{}{
		"file_name": "m.txt",
		"content":   "x",
	}); status != http.StatusOK {
		t.Fatalf("store call failed: %d %s", status, body)
	}
	postCall(t, srv.BaseURL(), "nope", nil)

	resp, err := http.Get(srv.BaseURL() + "/metrics")
	if err != nil {
		t.Fatalf("get /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		"sysagent_operations_registered 4",
		`sysagent_operations_total{operation="store_in_file"} 1`,
		`sysagent_operation_errors_total{operation="nope",kind="unknown_operation"} 1`,
		"sysagent_requests_total",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, text)
		}
	}
}

func TestServerAPIKeyAuth(t *testing.T) {
	srv := startServer(t, &Config{
		BaseDir: t.TempDir(),
		Auth: &auth.Config{
			Mode:    auth.AuthModeAPIKey,
			APIKeys: []string{"sekrit"},
		},
	})

	resp, err := http.Get(srv.BaseURL() + "/tools/list")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}
	if detail := decodeDetail(t, body); detail != "Missing authentication credentials" {
		t.Fatalf("unexpected detail %q", detail)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.BaseURL()+"/tools/list", nil)
	req.Header.Set("X-API-Key", "wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.BaseURL()+"/tools/list", nil)
	req.Header.Set("X-API-Key", "sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health must skip auth, got %d", resp.StatusCode)
	}
}

func TestServerRetentionSweep(t *testing.T) {
	base := t.TempDir()
	srv := startServer(t, &Config{
		BaseDir: base,
		Retention: &retention.Config{
			TTL:      time.Millisecond,
			Interval: 20 * time.Millisecond,
		},
	})

	status, body := postCall(t, srv.BaseURL(), "store_in_file", map[string]interface{}{
		"file_name": "stale.txt",
		"content":   "soon gone",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	stalePath := filepath.Join(base, "output", "stale.txt")
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(stalePath); os.IsNotExist(err) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("expected background sweep to remove the stored file")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
