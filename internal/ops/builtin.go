package ops

import (
	"context"
	"encoding/json"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/bc-dunia/sysagent/internal/artifacts"
	"github.com/bc-dunia/sysagent/internal/config"
)

// Built-in operation names.
const (
	OpGetSystemInfo = "get_system_info"
	OpGetCPUUsage   = "get_cpu_usage"
	OpListProcesses = "list_processes"
	OpStoreInFile   = "store_in_file"
)

// SystemInfo is the result of get_system_info.
type SystemInfo struct {
	Platform      string `json:"platform"`
	Release       string `json:"release"`
	Version       string `json:"version"`
	Arch          string `json:"arch"`
	Hostname      string `json:"hostname"`
	UptimeSec     uint64 `json:"uptime_sec"`
	TotalMemBytes uint64 `json:"total_mem_bytes"`
	FreeMemBytes  uint64 `json:"free_mem_bytes"`
	CPUCount      int    `json:"cpu_count"`
	CPUModel      string `json:"cpu_model"`
}

// CPUUsage is the result of get_cpu_usage.
type CPUUsage struct {
	CPUUsagePercent float64 `json:"cpu_usage_percent"`
	WindowSec       float64 `json:"window_sec"`
}

// ProcessEntry is one row in the result of list_processes.
type ProcessEntry struct {
	PID int32   `json:"pid"`
	CPU float64 `json:"cpu"`
	Mem float64 `json:"mem"`
	Cmd string  `json:"cmd"`
}

// StoreResult is the result of store_in_file.
type StoreResult struct {
	Path string `json:"path"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// checkSchema runs generic schema validation and converts the outcome
// into a typed argument error.
func checkSchema(operation string, args map[string]interface{}, schema *ArgumentSchema) error {
	result := ValidateArguments(args, schema)
	if !result.Valid {
		return NewArgumentError(operation, "", result.Error())
	}
	return nil
}

// SystemInfoOperation reports static host facts. Individual probe
// failures leave zero values rather than failing the whole call.
type SystemInfoOperation struct {
	raw    json.RawMessage
	schema *ArgumentSchema
}

func NewSystemInfoOperation() *SystemInfoOperation {
	raw, schema := loadSchema(OpGetSystemInfo)
	return &SystemInfoOperation{raw: raw, schema: schema}
}

func (o *SystemInfoOperation) Name() string { return OpGetSystemInfo }

func (o *SystemInfoOperation) Description() string {
	return "Collect static system information: platform, kernel, uptime, memory, and CPU details."
}

func (o *SystemInfoOperation) Schema() json.RawMessage { return o.raw }

func (o *SystemInfoOperation) Validate(args map[string]interface{}) error {
	return checkSchema(o.Name(), args, o.schema)
}

func (o *SystemInfoOperation) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	info := SystemInfo{
		Arch:     runtime.GOARCH,
		CPUModel: "unknown",
	}

	if hi, err := host.InfoWithContext(ctx); err == nil && hi != nil {
		info.Platform = hi.OS
		info.Release = hi.KernelVersion
		info.Version = hi.PlatformVersion
		info.Hostname = hi.Hostname
		info.UptimeSec = hi.Uptime
		if hi.KernelArch != "" {
			info.Arch = hi.KernelArch
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.TotalMemBytes = vm.Total
		info.FreeMemBytes = vm.Available
	}

	if count, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUCount = count
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 && cpus[0].ModelName != "" {
		info.CPUModel = cpus[0].ModelName
	}

	return &info, nil
}

// CPUUsageOperation samples aggregate CPU utilization over a window.
type CPUUsageOperation struct {
	raw    json.RawMessage
	schema *ArgumentSchema
}

func NewCPUUsageOperation() *CPUUsageOperation {
	raw, schema := loadSchema(OpGetCPUUsage)
	return &CPUUsageOperation{raw: raw, schema: schema}
}

func (o *CPUUsageOperation) Name() string { return OpGetCPUUsage }

func (o *CPUUsageOperation) Description() string {
	return "Sample total CPU utilization as a percentage over a short blocking window."
}

func (o *CPUUsageOperation) Schema() json.RawMessage { return o.raw }

func (o *CPUUsageOperation) Validate(args map[string]interface{}) error {
	return checkSchema(o.Name(), args, o.schema)
}

func (o *CPUUsageOperation) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	interval := config.DefaultCPUWindowSec
	if v, ok := args["interval_sec"]; ok {
		if f, ok := asFloat(v); ok {
			interval = f
		}
	}

	window := time.Duration(interval * float64(time.Second))
	percents, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return nil, NewHandlerError(o.Name(), "cpu sampling failed", err)
	}

	usage := 0.0
	if len(percents) > 0 {
		usage = percents[0]
	}

	return &CPUUsage{
		CPUUsagePercent: round2(usage),
		WindowSec:       interval,
	}, nil
}

// ProcessListOperation lists the heaviest processes by CPU usage.
type ProcessListOperation struct {
	raw    json.RawMessage
	schema *ArgumentSchema
}

func NewProcessListOperation() *ProcessListOperation {
	raw, schema := loadSchema(OpListProcesses)
	return &ProcessListOperation{raw: raw, schema: schema}
}

func (o *ProcessListOperation) Name() string { return OpListProcesses }

func (o *ProcessListOperation) Description() string {
	return "List the top processes sorted by CPU usage, including pid, cpu, memory, and command line."
}

func (o *ProcessListOperation) Schema() json.RawMessage { return o.raw }

func (o *ProcessListOperation) Validate(args map[string]interface{}) error {
	return checkSchema(o.Name(), args, o.schema)
}

func (o *ProcessListOperation) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	limit := config.DefaultProcessLimit
	if v, ok := args["limit"]; ok {
		if f, ok := asFloat(v); ok {
			limit = int(f)
		}
	}
	if limit < 0 {
		limit = 0
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, NewHandlerError(o.Name(), "process enumeration failed", err)
	}

	entries := make([]ProcessEntry, 0, len(procs))
	for _, p := range procs {
		entry := ProcessEntry{PID: p.Pid, Cmd: "unknown"}

		if cpuPct, err := p.CPUPercentWithContext(ctx); err == nil {
			entry.CPU = round2(cpuPct)
		}
		if memPct, err := p.MemoryPercentWithContext(ctx); err == nil {
			entry.Mem = round2(float64(memPct))
		}
		if cmdline, err := p.CmdlineWithContext(ctx); err == nil && cmdline != "" {
			entry.Cmd = cmdline
		} else if name, err := p.NameWithContext(ctx); err == nil && name != "" {
			entry.Cmd = name
		}

		entries = append(entries, entry)
	}

	// Stable sort keeps pid enumeration order for equal CPU values.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CPU > entries[j].CPU
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// StoreFileOperation persists text content through the artifact store.
type StoreFileOperation struct {
	raw    json.RawMessage
	schema *ArgumentSchema
	store  artifacts.Store
}

func NewStoreFileOperation(store artifacts.Store) *StoreFileOperation {
	raw, schema := loadSchema(OpStoreInFile)
	return &StoreFileOperation{raw: raw, schema: schema, store: store}
}

func (o *StoreFileOperation) Name() string { return OpStoreInFile }

func (o *StoreFileOperation) Description() string {
	return "Write text content to a named file under the managed output directory and return its path."
}

func (o *StoreFileOperation) Schema() json.RawMessage { return o.raw }

func (o *StoreFileOperation) Validate(args map[string]interface{}) error {
	name, _ := args["file_name"].(string)
	if name == "" {
		return NewArgumentError(o.Name(), "file_name", "file_name is required")
	}
	return checkSchema(o.Name(), args, o.schema)
}

func (o *StoreFileOperation) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	name, _ := args["file_name"].(string)
	content, _ := args["content"].(string)

	info, err := o.store.Save(name, []byte(content))
	if err != nil {
		return nil, NewHandlerError(o.Name(), "save failed", err)
	}

	return &StoreResult{Path: info.Path}, nil
}

// RegisterBuiltins registers the built-in operations on the registry.
func RegisterBuiltins(reg *Registry, store artifacts.Store) error {
	builtins := []Operation{
		NewSystemInfoOperation(),
		NewCPUUsageOperation(),
		NewProcessListOperation(),
		NewStoreFileOperation(store),
	}
	for _, op := range builtins {
		if err := reg.Register(op); err != nil {
			return err
		}
	}
	return nil
}

// BuiltinDefinitions returns catalog entries for the built-in
// operations, sorted by name. The returned definitions carry no
// executable state; callers that need to run operations use a
// Registry instead.
func BuiltinDefinitions() []Definition {
	builtins := []Operation{
		NewSystemInfoOperation(),
		NewCPUUsageOperation(),
		NewProcessListOperation(),
		NewStoreFileOperation(nil),
	}
	defs := make([]Definition, 0, len(builtins))
	for _, op := range builtins {
		defs = append(defs, Definition{
			Name:        op.Name(),
			Description: op.Description(),
			Schema:      op.Schema(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
