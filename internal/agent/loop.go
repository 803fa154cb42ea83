// Package agent drives goal sessions: a generative service plans which
// operations to invoke, the loop executes them against the tool server,
// and a finalizer picks the answer from what the session accumulated.
// When the generative service cannot serve a session, the Runner falls
// back to rule-based planning.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bc-dunia/sysagent/internal/client"
	"github.com/bc-dunia/sysagent/internal/config"
	"github.com/bc-dunia/sysagent/internal/events"
	"github.com/bc-dunia/sysagent/internal/llm"
	"github.com/bc-dunia/sysagent/internal/ops"
	"github.com/bc-dunia/sysagent/internal/otel"
	"github.com/bc-dunia/sysagent/internal/report"
)

// ErrServiceUnavailable marks a session aborted because the generative
// service could not serve the planning phase. Callers treat it as the
// signal to fall back to rule-based planning.
var ErrServiceUnavailable = errors.New("generative service unavailable")

// ChatService is the generative planning surface the loop consumes.
type ChatService interface {
	Configured() bool
	ChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.ChatResponse, error)
}

// Invoker executes operations against the tool server.
type Invoker interface {
	OperationNames(ctx context.Context) ([]string, error)
	Invoke(ctx context.Context, operation string, args map[string]interface{}) (interface{}, error)
}

// LoopConfig carries the loop's collaborators. Nil observability fields
// default to no-ops.
type LoopConfig struct {
	LLM         ChatService
	Invoker     Invoker
	MaxTurns    int
	OutFileName string
	Events      *events.EventLogger
	Metrics     *otel.Metrics
	Tracer      *otel.Tracer
}

// Loop runs goal sessions through the generative service.
type Loop struct {
	llm         ChatService
	invoker     Invoker
	maxTurns    int
	outFileName string
	events      *events.EventLogger
	metrics     *otel.Metrics
	tracer      *otel.Tracer
}

// NewLoop builds a loop, filling unset config fields with defaults.
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		llm:         cfg.LLM,
		invoker:     cfg.Invoker,
		maxTurns:    cfg.MaxTurns,
		outFileName: cfg.OutFileName,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
	}
	if l.maxTurns <= 0 {
		l.maxTurns = config.DefaultMaxTurns
	}
	if l.outFileName == "" {
		l.outFileName = config.DefaultOutputFileName
	}
	if l.events == nil {
		l.events = events.NoopEventLogger()
	}
	if l.metrics == nil {
		l.metrics = otel.NoopMetrics()
	}
	if l.tracer == nil {
		l.tracer = otel.NoopTracer()
	}
	return l
}

// Run drives one goal to an answer. A generative-service failure at any
// point returns an error wrapping ErrServiceUnavailable. Operation
// failures during execution never abort the session; they are absorbed
// into the session's results and reported back to the service. External
// cancellation does not error either: the loop stops planning and
// finalizes with whatever the session holds.
func (l *Loop) Run(ctx context.Context, goal string) (string, error) {
	sess := NewSession(goal)

	if l.llm == nil || !l.llm.Configured() {
		_ = sess.transition(StateUnavailable)
		return "", fmt.Errorf("%w: no API key configured", ErrServiceUnavailable)
	}

	catalog, err := l.invoker.OperationNames(ctx)
	if err != nil {
		return "", fmt.Errorf("list operations: %w", err)
	}
	available := make(map[string]bool, len(catalog))
	for _, name := range catalog {
		available[name] = true
	}
	tools := toolsForCatalog(catalog)

	l.events.LogSessionStarted(goal, len(catalog))
	l.metrics.IncrementSessions(ctx)
	defer l.metrics.DecrementSessions(ctx)

	sess.messages = []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(l.outFileName)},
		{Role: llm.RoleUser, Content: goal},
	}

	if err := sess.transition(StatePlanning); err != nil {
		return "", err
	}

	for {
		sess.turns++
		l.metrics.RecordTurn(ctx)

		resp, err := l.llm.ChatCompletion(ctx, sess.messages, tools)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			_ = sess.transition(StateUnavailable)
			return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		choice, err := resp.FirstChoice()
		if err != nil {
			_ = sess.transition(StateUnavailable)
			return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}

		msg := choice.Message
		if strings.TrimSpace(msg.Content) != "" {
			sess.lastText = msg.Content
		}
		if len(msg.ToolCalls) == 0 {
			break
		}

		if err := sess.transition(StateExecuting); err != nil {
			return "", err
		}
		sess.messages = append(sess.messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   msg.Content,
			ToolCalls: msg.ToolCalls,
		})
		l.events.LogCallsPlanned(sess.turns, len(msg.ToolCalls))

		for _, tc := range msg.ToolCalls {
			res := l.execute(ctx, sess, tc)
			if res.Operation != "" {
				sess.recordResult(res)
			}
			sess.messages = append(sess.messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    toolMessageContent(res),
				ToolCallID: tc.ID,
			})
		}

		if sess.turns >= l.maxTurns || ctx.Err() != nil {
			break
		}
		if err := sess.transition(StatePlanning); err != nil {
			return "", err
		}
	}

	if err := sess.transition(StateFinalizing); err != nil {
		return "", err
	}
	answer, outcome := l.finalize(ctx, sess, available)
	_ = sess.transition(StateDone)
	l.events.LogSessionFinished(outcome, sess.turns, sess.elapsedMs())
	return answer, nil
}

// execute runs one requested call. Malformed arguments and operation
// failures both come back as error results, never as loop errors.
func (l *Loop) execute(ctx context.Context, sess *Session, tc llm.ToolCall) CallResult {
	name := tc.Function.Name
	args, err := parseArgs(tc.Function.Arguments)
	if err != nil {
		res := CallResult{
			Operation: name,
			ErrorKind: string(client.KindPlanningProtocolError),
			Message:   err.Error(),
		}
		l.events.LogCallAbsorbed(name, res.ErrorKind, res.Message)
		l.metrics.RecordError(ctx, res.ErrorKind)
		return res
	}

	callCtx, span := l.tracer.StartCallSpan(ctx, otel.CallSpanOptions{
		SessionID: sess.ID,
		Turn:      sess.turns,
		Operation: name,
	})
	value, err := l.invoker.Invoke(callCtx, name, args)
	if err != nil {
		kind := string(client.KindOf(err))
		otel.RecordError(span, err, kind, false)
		span.End()
		l.events.LogCallAbsorbed(name, kind, err.Error())
		l.metrics.RecordError(ctx, kind)
		return CallResult{Operation: name, ErrorKind: kind, Message: err.Error()}
	}
	span.End()

	if name == ops.OpStoreInFile {
		if path, ok := pathFromResult(value); ok {
			sess.storedPath = path
		}
	}
	return CallResult{Operation: name, Value: value}
}

// finalize picks the session answer: a stored artifact path wins, then
// a report synthesized from fully collected sources, then the service's
// last free text, then the accumulated results as JSON.
func (l *Loop) finalize(ctx context.Context, sess *Session, available map[string]bool) (answer, outcome string) {
	if sess.storedPath != "" {
		return sess.storedPath, "stored_path"
	}

	if sess.hasReportSources() {
		text := report.Assemble(sess.reportSources())
		if available[ops.OpStoreInFile] {
			args := map[string]interface{}{
				"file_name": l.outFileName,
				"content":   text,
			}
			value, err := l.invoker.Invoke(ctx, ops.OpStoreInFile, args)
			if err == nil {
				if path, ok := pathFromResult(value); ok {
					return path, "synthesized_report"
				}
			} else {
				kind := string(client.KindOf(err))
				l.events.LogCallAbsorbed(ops.OpStoreInFile, kind, err.Error())
				l.metrics.RecordError(ctx, kind)
			}
		}
		return text, "synthesized_report"
	}

	if sess.lastText != "" {
		return sess.lastText, "free_text"
	}

	body, err := json.MarshalIndent(sess.results, "", "  ")
	if err != nil {
		return "{}", "accumulated_results"
	}
	return string(body), "accumulated_results"
}

// toolsForCatalog converts the server's catalog into tool declarations.
// Operations without a local definition are exposed by name only.
func toolsForCatalog(names []string) []llm.Tool {
	defs := make(map[string]ops.Definition)
	for _, def := range ops.BuiltinDefinitions() {
		defs[def.Name] = def
	}
	tools := make([]llm.Tool, 0, len(names))
	for _, name := range names {
		if def, ok := defs[name]; ok {
			tools = append(tools, llm.NewTool(def.Name, def.Description, def.Schema))
			continue
		}
		tools = append(tools, llm.NewTool(name, "", nil))
	}
	return tools
}

// parseArgs decodes a tool-call argument payload. Empty and "null"
// payloads mean no arguments.
func parseArgs(raw string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return nil, fmt.Errorf("malformed call arguments: %v", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

// toolMessageContent encodes an invocation outcome for the service.
func toolMessageContent(res CallResult) string {
	var body []byte
	if res.OK() {
		body, _ = json.Marshal(res.Value)
	} else {
		body, _ = json.Marshal(map[string]string{
			"error":   res.ErrorKind,
			"message": res.Message,
		})
	}
	if len(body) == 0 {
		return "null"
	}
	return string(body)
}

func pathFromResult(value interface{}) (string, bool) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return "", false
	}
	path, ok := m["path"].(string)
	return path, ok && path != ""
}

func systemPrompt(outFileName string) string {
	return fmt.Sprintf("You are sysagent, an assistant that inspects the "+
		"local system through the provided tools. Call tools to gather data "+
		"before answering. When the user asks for a health report, collect "+
		"system info, CPU usage and the process list, then store the "+
		"assembled report with store_in_file using file_name %q and reply "+
		"with the stored path. Keep answers short.", outFileName)
}
