// Package planner implements the deterministic keyword planner.
//
// The planner is the offline counterpart to the adaptive agent loop:
// a pure function of (goal, catalog) that keyword-matches the goal
// against an ordered rule table and invokes operations directly. It
// never talks to the generative service, which makes it both the
// fallback path and the test oracle for agent behavior.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bc-dunia/sysagent/internal/config"
	"github.com/bc-dunia/sysagent/internal/ops"
	"github.com/bc-dunia/sysagent/internal/report"
)

// Invoker is the slice of the invocation client the planner needs.
type Invoker interface {
	Invoke(ctx context.Context, operation string, args map[string]interface{}) (interface{}, error)
}

// Planner matches goals against the rule table and runs the matching
// plan through its Invoker.
type Planner struct {
	invoker     Invoker
	outFileName string
}

// New builds a Planner. An empty outFileName selects the default
// report file name.
func New(invoker Invoker, outFileName string) *Planner {
	if outFileName == "" {
		outFileName = config.DefaultOutputFileName
	}
	return &Planner{invoker: invoker, outFileName: outFileName}
}

type rule struct {
	name    string
	matches func(goal string) bool
	run     func(p *Planner, ctx context.Context, available map[string]bool) (string, error)
}

// rules is the ordered match table. The first matching rule runs, so
// order is part of the contract. The last rule matches everything,
// making the table total.
var rules = []rule{
	{
		name: "health_report",
		matches: func(goal string) bool {
			return strings.Contains(goal, "health") &&
				(strings.Contains(goal, "report") || strings.Contains(goal, "summary"))
		},
		run: (*Planner).healthReport,
	},
	{
		name: "cpu_usage",
		matches: func(goal string) bool {
			return strings.Contains(goal, "cpu") && strings.Contains(goal, "usage")
		},
		run: (*Planner).cpuUsage,
	},
	{
		name: "process_list",
		matches: func(goal string) bool {
			return strings.Contains(goal, "process")
		},
		run: (*Planner).processList,
	},
	{
		name:    "capabilities",
		matches: func(string) bool { return true },
		run:     (*Planner).capabilities,
	},
}

// RuleFor reports which rule a goal selects. Matching is done on the
// lower-cased goal, same as Plan.
func RuleFor(goal string) string {
	lowered := strings.ToLower(goal)
	for _, r := range rules {
		if r.matches(lowered) {
			return r.name
		}
	}
	return ""
}

// Plan resolves a goal against the catalog and returns the final
// answer text. Operation failures propagate to the caller unchanged;
// the planner has no fallback of its own.
func (p *Planner) Plan(ctx context.Context, goal string, catalog []string) (string, error) {
	available := make(map[string]bool, len(catalog))
	for _, name := range catalog {
		available[name] = true
	}

	lowered := strings.ToLower(goal)
	for _, r := range rules {
		if r.matches(lowered) {
			return r.run(p, ctx, available)
		}
	}
	// Unreachable while the last rule matches everything.
	return p.capabilities(ctx, available)
}

// healthReport gathers the three report sources, renders the report,
// and persists it when the catalog has a file-store operation.
func (p *Planner) healthReport(ctx context.Context, available map[string]bool) (string, error) {
	systemInfo, err := p.invoker.Invoke(ctx, ops.OpGetSystemInfo, nil)
	if err != nil {
		return "", err
	}
	cpuUsage, err := p.invoker.Invoke(ctx, ops.OpGetCPUUsage, map[string]interface{}{
		"interval_sec": config.DefaultCPUWindowSec,
	})
	if err != nil {
		return "", err
	}
	processes, err := p.invoker.Invoke(ctx, ops.OpListProcesses, map[string]interface{}{
		"limit": config.DefaultProcessLimit,
	})
	if err != nil {
		return "", err
	}

	text := report.Assemble(systemInfo, cpuUsage, processes)
	if !available[ops.OpStoreInFile] {
		return text, nil
	}

	stored, err := p.invoker.Invoke(ctx, ops.OpStoreInFile, map[string]interface{}{
		"file_name": p.outFileName,
		"content":   text,
	})
	if err != nil {
		return "", err
	}
	if path, ok := storedPath(stored); ok {
		return path, nil
	}
	// Store result without a usable path. The report text is still the
	// answer.
	return text, nil
}

func (p *Planner) cpuUsage(ctx context.Context, _ map[string]bool) (string, error) {
	result, err := p.invoker.Invoke(ctx, ops.OpGetCPUUsage, map[string]interface{}{
		"interval_sec": config.DefaultCPUWindowSec,
	})
	if err != nil {
		return "", err
	}
	return formatJSON(result)
}

func (p *Planner) processList(ctx context.Context, _ map[string]bool) (string, error) {
	result, err := p.invoker.Invoke(ctx, ops.OpListProcesses, map[string]interface{}{
		"limit": config.DefaultProcessLimit,
	})
	if err != nil {
		return "", err
	}
	return formatJSON(result)
}

// capabilities is the catch-all rule: no invocation, just the sorted
// list of operation names so the caller sees what the system can do.
func (p *Planner) capabilities(_ context.Context, available map[string]bool) (string, error) {
	names := make([]string, 0, len(available))
	for name := range available {
		names = append(names, name)
	}
	sort.Strings(names)

	return formatJSON(map[string]interface{}{
		"message":              "no planner rule matches this goal",
		"available_operations": names,
	})
}

// storedPath extracts the artifact path from a file-store result.
func storedPath(result interface{}) (string, bool) {
	obj, ok := result.(map[string]interface{})
	if !ok {
		return "", false
	}
	path, ok := obj["path"].(string)
	return path, ok && path != ""
}

// formatJSON renders a result as indented JSON text.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format result: %w", err)
	}
	return string(data), nil
}
