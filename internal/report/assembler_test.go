package report

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleInputs() (map[string]interface{}, map[string]interface{}, []interface{}) {
	systemInfo := map[string]interface{}{
		"platform":        "Linux",
		"release":         "6.1.0-18-amd64",
		"version":         "#1 SMP PREEMPT_DYNAMIC",
		"arch":            "x86_64",
		"hostname":        "host-1",
		"uptime_sec":      float64(3600),
		"total_mem_bytes": float64(8589934592),
		"free_mem_bytes":  float64(4294967296),
		"cpu_count":       float64(8),
		"cpu_model":       "Test CPU @ 3.00GHz",
	}
	cpuUsage := map[string]interface{}{
		"cpu_usage_percent": float64(12.34),
		"window_sec":        float64(0.5),
	}
	processes := []interface{}{
		map[string]interface{}{"pid": float64(101), "cpu": float64(55.5), "mem": float64(1.2), "cmd": "serverd --listen"},
		map[string]interface{}{"pid": float64(42), "cpu": float64(10), "mem": float64(0.5), "cmd": "watcher"},
	}
	return systemInfo, cpuUsage, processes
}

func TestAssemble(t *testing.T) {
	systemInfo, cpuUsage, processes := sampleInputs()

	got := Assemble(systemInfo, cpuUsage, processes)

	want := strings.Join([]string{
		"System Health Report",
		"====================",
		"",
		"System Info:",
		"- platform: Linux",
		"- release: 6.1.0-18-amd64",
		"- version: #1 SMP PREEMPT_DYNAMIC",
		"- arch: x86_64",
		"- hostname: host-1",
		"- uptime_sec: 3600",
		"- total_mem_bytes: 8589934592",
		"- free_mem_bytes: 4294967296",
		"- cpu_count: 8",
		"- cpu_model: Test CPU @ 3.00GHz",
		"",
		"CPU Usage: 12.34% (window 0.5s)",
		"",
		"Top Processes (by CPU):",
		"- pid=101 cpu=55.5% mem=1.2% cmd=serverd --listen",
		"- pid=42 cpu=10% mem=0.5% cmd=watcher",
	}, "\n") + "\n"

	if got != want {
		t.Errorf("report mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func TestAssembleIdempotent(t *testing.T) {
	systemInfo, cpuUsage, processes := sampleInputs()

	first := Assemble(systemInfo, cpuUsage, processes)
	second := Assemble(systemInfo, cpuUsage, processes)
	if first != second {
		t.Error("expected byte-identical output for identical inputs")
	}
}

func TestAssembleAbsentFieldsRenderNone(t *testing.T) {
	systemInfo := map[string]interface{}{
		"platform": "Linux",
	}
	cpuUsage := map[string]interface{}{}

	got := Assemble(systemInfo, cpuUsage, nil)

	for _, line := range []string{
		"- platform: Linux",
		"- release: None",
		"- cpu_model: None",
		"CPU Usage: None% (window Nones)",
	} {
		if !strings.Contains(got, line) {
			t.Errorf("expected line %q in report:\n%s", line, got)
		}
	}
}

func TestAssembleNilInputs(t *testing.T) {
	got := Assemble(nil, nil, nil)

	if !strings.HasPrefix(got, "System Health Report\n====================\n") {
		t.Errorf("expected header, got:\n%s", got)
	}
	if !strings.HasSuffix(got, "Top Processes (by CPU):\n") {
		t.Errorf("expected empty process block at end, got:\n%s", got)
	}
	if count := strings.Count(got, ": None\n"); count != 10 {
		t.Errorf("expected 10 None system info fields, got %d", count)
	}
}

func TestAssembleFromDecodedJSON(t *testing.T) {
	raw := `{"pid": 7, "cpu": 99.9, "mem": 2.5, "cmd": "busyloop"}`
	var entry interface{}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	got := Assemble(nil, nil, []interface{}{entry})
	if !strings.Contains(got, "- pid=7 cpu=99.9% mem=2.5% cmd=busyloop") {
		t.Errorf("unexpected process line in:\n%s", got)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"nil", nil, "None"},
		{"string", "x86_64", "x86_64"},
		{"float", float64(12.34), "12.34"},
		{"whole float", float64(100), "100"},
		{"half", float64(0.5), "0.5"},
		{"int", 8, "8"},
		{"int64", int64(-3), "-3"},
		{"uint64", uint64(8589934592), "8589934592"},
		{"bool", true, "true"},
		{"json number", json.Number("42.5"), "42.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.value); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
