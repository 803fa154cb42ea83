package agent

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/sysagent/internal/llm"
	"github.com/bc-dunia/sysagent/internal/ops"
)

// CallResult is the recorded outcome of a single operation invocation.
// Failed calls carry the error kind and message instead of a value.
type CallResult struct {
	Operation string      `json:"operation"`
	Value     interface{} `json:"value,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// OK reports whether the invocation produced a value.
func (r CallResult) OK() bool {
	return r.ErrorKind == ""
}

// Session tracks one goal through the loop: the conversation so far,
// invocation results keyed by operation name, and the lifecycle state.
type Session struct {
	ID   string
	Goal string

	state      SessionState
	turns      int
	messages   []llm.Message
	results    map[string]CallResult
	lastText   string
	storedPath string
	started    time.Time
}

var sessionCounter atomic.Int64

func newSessionID() string {
	return "ses_" + strconv.FormatInt(sessionCounter.Add(1), 16)
}

// NewSession starts a session in StateStart for the given goal.
func NewSession(goal string) *Session {
	return &Session{
		ID:      newSessionID(),
		Goal:    goal,
		state:   StateStart,
		results: make(map[string]CallResult),
		started: time.Now(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return s.state
}

// Turns returns the number of planning rounds consumed so far.
func (s *Session) Turns() int {
	return s.turns
}

func (s *Session) transition(to SessionState) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("invalid session transition %s -> %s", s.state, to)
	}
	s.state = to
	return nil
}

// recordResult stores an invocation outcome. A repeated operation name
// overwrites the earlier entry.
func (s *Session) recordResult(res CallResult) {
	s.results[res.Operation] = res
}

// hasReportSources reports whether all three report inputs were
// collected successfully. A failed call does not count even when an
// entry for its operation exists.
func (s *Session) hasReportSources() bool {
	for _, name := range []string{ops.OpGetSystemInfo, ops.OpGetCPUUsage, ops.OpListProcesses} {
		res, ok := s.results[name]
		if !ok || !res.OK() {
			return false
		}
	}
	return true
}

// reportSources returns the collected values for report assembly.
// Meaningful only after hasReportSources returns true.
func (s *Session) reportSources() (systemInfo, cpuUsage, processes interface{}) {
	return s.results[ops.OpGetSystemInfo].Value,
		s.results[ops.OpGetCPUUsage].Value,
		s.results[ops.OpListProcesses].Value
}

func (s *Session) elapsedMs() int64 {
	return time.Since(s.started).Milliseconds()
}
