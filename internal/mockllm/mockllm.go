// Package mockllm runs an OpenAI-compatible chat completion endpoint
// with a fixed tool-calling script. It stands in for the generative
// service in development setups and end-to-end tests where no real
// credential is available: fresh conversations get the standard probe
// batch, conversations that already carry tool results get a closing
// text answer.
package mockllm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/sysagent/internal/llm"
	"github.com/bc-dunia/sysagent/internal/ops"
)

// Config configures the mock service.
type Config struct {
	// Addr is the listen address. Empty selects a loopback port.
	Addr string

	// Model is the model name echoed in responses when the request
	// does not name one.
	Model string

	// FailRequests makes the first n chat requests answer 503 so
	// callers exercise their retry policy.
	FailRequests int
}

// DefaultConfig returns a config bound to an ephemeral loopback port.
func DefaultConfig() *Config {
	return &Config{
		Addr:  "127.0.0.1:0",
		Model: "mock-planner-1",
	}
}

// Server serves the mock chat completion endpoint.
type Server struct {
	cfg        *Config
	httpServer *http.Server
	listener   net.Listener
	addr       string

	replies atomic.Int64

	mu       sync.Mutex
	failures int
}

// New creates a mock service from cfg. A nil cfg selects defaults.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.Model == "" {
		c.Model = "mock-planner-1"
	}
	return &Server{cfg: &c, failures: c.FailRequests}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", normalizeAddr(s.cfg.Addr))
	if err != nil {
		return err
	}
	s.listener = ln
	s.addr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", s.handleChat)
	mux.HandleFunc("/v1/chat/completions", s.handleChat)

	s.httpServer = &http.Server{Handler: mux}
	go func() {
		_ = s.httpServer.Serve(ln)
	}()
	return nil
}

// Stop shuts the service down.
func (s *Server) Stop(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	_ = s.httpServer.Shutdown(ctx)
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.addr
}

// BaseURL returns the service base URL for client configuration.
func (s *Server) BaseURL() string {
	if s.addr == "" {
		return ""
	}
	return "http://" + s.addr + "/v1"
}

// StartTestServer starts a mock service on a loopback port and returns
// it with a cleanup function.
func StartTestServer(cfg *Config) (*Server, func(), error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	srv := New(cfg)
	if err := srv.Start(); err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}
	return srv, cleanup, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if s.takeFailure() {
		writeAPIError(w, http.StatusServiceUnavailable, "mock service overloaded")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req llm.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeAPIError(w, http.StatusBadRequest, "messages are required")
		return
	}

	seq := s.replies.Add(1)
	s.writeCompletion(w, &req, s.scriptedMessage(&req, seq), seq)
}

// scriptedMessage picks the reply for the conversation so far.
func (s *Server) scriptedMessage(req *llm.ChatRequest, seq int64) llm.Message {
	toolResults := 0
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleTool {
			toolResults++
		}
	}
	if toolResults > 0 {
		return llm.Message{
			Role:    llm.RoleAssistant,
			Content: fmt.Sprintf("Gathered %d tool results; the report is ready to assemble.", toolResults),
		}
	}

	calls := probeCalls(req.Tools, seq)
	if len(calls) == 0 {
		return llm.Message{Role: llm.RoleAssistant, Content: "None of the offered tools fit a system probe."}
	}
	return llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
}

// probeCalls plans the standard probe batch, restricted to operations
// the request actually advertises.
func probeCalls(tools []llm.Tool, seq int64) []llm.ToolCall {
	offered := make(map[string]bool, len(tools))
	for _, tool := range tools {
		offered[tool.Function.Name] = true
	}

	plan := []struct {
		name string
		args string
	}{
		{ops.OpGetSystemInfo, "{}"},
		{ops.OpGetCPUUsage, `{"interval_sec": 0.2}`},
		{ops.OpListProcesses, `{"limit": 5}`},
	}

	calls := make([]llm.ToolCall, 0, len(plan))
	for i, step := range plan {
		if !offered[step.name] {
			continue
		}
		calls = append(calls, llm.ToolCall{
			ID:   fmt.Sprintf("call_%d_%d", seq, i+1),
			Type: "function",
			Function: llm.ToolCallFunction{
				Name:      step.name,
				Arguments: step.args,
			},
		})
	}
	return calls
}

func (s *Server) writeCompletion(w http.ResponseWriter, req *llm.ChatRequest, msg llm.Message, seq int64) {
	finish := llm.FinishStop
	if len(msg.ToolCalls) > 0 {
		finish = llm.FinishToolCalls
	}
	model := req.Model
	if model == "" {
		model = s.cfg.Model
	}

	resp := llm.ChatResponse{
		ID:      fmt.Sprintf("chatcmpl-mock-%d", seq),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []llm.Choice{{Message: msg, FinishReason: finish}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&resp)
}

func (s *Server) takeFailure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures <= 0 {
		return false
	}
	s.failures--
	return true
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "mock_error",
		},
	})
}

func normalizeAddr(addr string) string {
	if addr == "" {
		return "127.0.0.1:0"
	}
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		return "127.0.0.1:" + port
	}
	return addr
}
