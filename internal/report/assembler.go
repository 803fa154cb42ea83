// Package report renders the fixed-format system health report.
//
// The assembler is a pure function over the three gathered operation
// results. Identical inputs produce byte-identical text, which the
// planner and the agent finalizer both rely on.
package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// systemInfoFields is the fixed render order for the system info
// block. Every field emits a line even when the value is absent.
var systemInfoFields = []string{
	"platform",
	"release",
	"version",
	"arch",
	"hostname",
	"uptime_sec",
	"total_mem_bytes",
	"free_mem_bytes",
	"cpu_count",
	"cpu_model",
}

// Assemble builds the health report from decoded operation results:
// the system info object, the CPU usage object, and the process list.
// Inputs are the JSON-decoded result payloads as returned by the
// invocation client.
func Assemble(systemInfo, cpuUsage, processes interface{}) string {
	lines := make([]string, 0, 18)
	lines = append(lines, "System Health Report")
	lines = append(lines, "====================")
	lines = append(lines, "")
	lines = append(lines, "System Info:")

	info, _ := systemInfo.(map[string]interface{})
	for _, field := range systemInfoFields {
		lines = append(lines, fmt.Sprintf("- %s: %s", field, formatValue(info[field])))
	}

	lines = append(lines, "")
	cpu, _ := cpuUsage.(map[string]interface{})
	lines = append(lines, fmt.Sprintf("CPU Usage: %s%% (window %ss)",
		formatValue(cpu["cpu_usage_percent"]), formatValue(cpu["window_sec"])))

	lines = append(lines, "")
	lines = append(lines, "Top Processes (by CPU):")
	if procs, ok := processes.([]interface{}); ok {
		for _, p := range procs {
			entry, _ := p.(map[string]interface{})
			lines = append(lines, fmt.Sprintf("- pid=%s cpu=%s%% mem=%s%% cmd=%s",
				formatValue(entry["pid"]), formatValue(entry["cpu"]),
				formatValue(entry["mem"]), formatValue(entry["cmd"])))
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

// formatValue renders one decoded JSON value for a report line. Absent
// values render as "None". Numbers use the shortest representation
// that round-trips, so 12.0 renders as 12 and 0.5 stays 0.5.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
