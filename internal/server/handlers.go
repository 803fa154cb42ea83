package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bc-dunia/sysagent/internal/ops"
	"github.com/bc-dunia/sysagent/internal/types"
)

// maxRequestBytes caps /tools/call bodies; report payloads stay far
// below this.
const maxRequestBytes = 10 << 20

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/tools/list", s.handleToolsList)
	mux.HandleFunc("/tools/call", s.handleToolsCall)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return mux
}

func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	names := s.registry.List()
	items := make([]types.ToolListItem, 0, len(names))
	for _, name := range names {
		items = append(items, types.ToolListItem{Name: name})
	}
	s.writeJSON(w, r, http.StatusOK, items)
}

func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req types.ToolCallRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	op, ok := s.registry.Get(req.Name)
	if !ok {
		s.events.LogUnknownOperation(req.Name)
		s.metrics.RecordRejection(req.Name, "unknown_operation")
		s.writeError(w, r, http.StatusNotFound, "Unknown tool: "+req.Name)
		return
	}

	args := req.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := op.Validate(args); err != nil {
		detail := errorDetail(err)
		s.events.LogValidationFailed(req.Name, detail)
		s.metrics.RecordRejection(req.Name, "validation")
		s.writeError(w, r, http.StatusBadRequest, detail)
		return
	}

	start := time.Now()
	value, err := op.Execute(r.Context(), args)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		detail := errorDetail(err)
		s.events.LogOperationInvoked(req.Name, "error", durationMs)
		s.metrics.RecordOperation(req.Name, durationMs, false)
		s.writeError(w, r, http.StatusBadRequest, detail)
		return
	}

	s.events.LogOperationInvoked(req.Name, "ok", durationMs)
	s.metrics.RecordOperation(req.Name, durationMs, true)
	s.recordArtifact(req.Name, args, value)
	s.writeJSON(w, r, http.StatusOK, types.ToolCallResult{Result: value})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, r, http.StatusOK, types.HealthResponse{
		Status: "ok",
		Tools:  s.registry.List(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.metrics.Expose())
	s.metrics.RecordRequest(r.URL.Path, http.StatusOK)
}

func (s *Server) recordArtifact(operation string, args map[string]interface{}, value interface{}) {
	if operation != ops.OpStoreInFile {
		return
	}
	fileName, _ := args["file_name"].(string)
	content, _ := args["content"].(string)
	path := ""
	if res, ok := value.(*ops.StoreResult); ok {
		path = res.Path
	}
	s.events.LogArtifactStored(fileName, path, int64(len(content)))
	s.metrics.RecordArtifact(int64(len(content)))
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	s.metrics.RecordRequest(r.URL.Path, status)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	s.writeJSON(w, r, status, types.ErrorBody{Detail: detail})
}

// errorDetail strips the operation prefix off typed errors; the wire
// detail carries the bare message only.
func errorDetail(err error) string {
	var argErr *ops.ArgumentError
	if errors.As(err, &argErr) {
		return argErr.Message
	}
	var hErr *ops.HandlerError
	if errors.As(err, &hErr) {
		if hErr.Err != nil {
			return hErr.Message + ": " + hErr.Err.Error()
		}
		return hErr.Message
	}
	return err.Error()
}
