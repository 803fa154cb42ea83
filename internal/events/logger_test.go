package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestGetGlobalEventLoggerReturnsSingletonNoopWhenUnset(t *testing.T) {
	SetGlobalEventLogger(nil)

	a := GetGlobalEventLogger()
	b := GetGlobalEventLogger()

	if a == nil || b == nil {
		t.Fatal("expected non-nil noop logger")
	}
	if a != b {
		t.Fatal("expected singleton noop logger instance")
	}
}

func TestGetGlobalEventLoggerReturnsConfiguredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewEventLoggerWithWriter("server", "", &buf)

	SetGlobalEventLogger(logger)
	defer SetGlobalEventLogger(nil)

	if GetGlobalEventLogger() != logger {
		t.Fatal("expected configured logger instance")
	}
}

func TestEventLoggerEmitsJSONWithBaseAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewEventLoggerWithWriter("agent", "sess-1", &buf)

	logger.LogCallAbsorbed("get_cpu_usage", "operation_error", "timed out")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}

	if entry["msg"] != "call_absorbed" {
		t.Errorf("expected event call_absorbed, got %v", entry["msg"])
	}
	if entry["component"] != "agent" {
		t.Errorf("expected component agent, got %v", entry["component"])
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("expected session_id sess-1, got %v", entry["session_id"])
	}
	if entry["operation"] != "get_cpu_usage" {
		t.Errorf("expected operation get_cpu_usage, got %v", entry["operation"])
	}
	if entry["kind"] != "operation_error" {
		t.Errorf("expected kind operation_error, got %v", entry["kind"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("expected WARN level, got %v", entry["level"])
	}
}

func TestEventLoggerSessionLifecycleEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := NewEventLoggerWithWriter("agent", "sess-2", &buf)

	logger.LogSessionStarted("produce a health report", 4)
	logger.LogCallsPlanned(0, 3)
	logger.LogFallbackEngaged("tool catalog unreachable")
	logger.LogSessionFinished("fallback", 0, 12)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 event lines, got %d", len(lines))
	}

	wantEvents := []string{"session_started", "calls_planned", "fallback_engaged", "session_finished"}
	for i, line := range lines {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if entry["msg"] != wantEvents[i] {
			t.Errorf("expected event %s at line %d, got %v", wantEvents[i], i, entry["msg"])
		}
	}
}
