// Package metrics provides Prometheus metrics exposition for sysagent.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Collector collects and exposes sysagent metrics in Prometheus format.
// Thread-safe for concurrent access.
//
// Lock Strategy: Collector uses a single RWMutex for thread-safety. While this creates some lock
// contention under high load, it's necessary because Go maps are not atomic-safe. Alternative
// approaches (sync.Map, sharded maps) add complexity without clear benefit for our access patterns.
// The RWMutex allows concurrent reads via Expose() while serializing writes from hot-path methods
// like RecordOperation(). This is a reasonable trade-off between simplicity and performance.
type Collector struct {
	mu sync.RWMutex

	startTime time.Time

	// Cached metrics data
	requestCounts      map[requestKey]int64      // (endpoint, status) -> count
	operationCounts    map[string]int64          // operation -> count
	operationDurations map[string]*histogramData // operation -> histogram
	operationErrors    map[opErrKey]int64        // (operation, kind) -> count
	artifactCount      int64
	artifactBytes      int64
	registeredOps      int

	// Time function for testing
	nowFunc func() time.Time
}

// requestKey is a composite key for HTTP request metrics.
type requestKey struct {
	endpoint string
	status   int
}

// opErrKey is a composite key for operation error metrics.
type opErrKey struct {
	operation string
	kind      string
}

// histogramData holds histogram data for Prometheus exposition.
type histogramData struct {
	sum   float64
	count int64
}

// NewCollector creates a new metrics Collector.
func NewCollector() *Collector {
	return &Collector{
		startTime:          time.Now(),
		requestCounts:      make(map[requestKey]int64),
		operationCounts:    make(map[string]int64),
		operationDurations: make(map[string]*histogramData),
		operationErrors:    make(map[opErrKey]int64),
		nowFunc:            time.Now,
	}
}

// SetRegisteredOperations records the size of the operation catalog.
func (c *Collector) SetRegisteredOperations(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registeredOps = n
}

// RecordRequest records a completed HTTP request.
func (c *Collector) RecordRequest(endpoint string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCounts[requestKey{endpoint: endpoint, status: status}]++
}

// RecordOperation records an operation invocation.
func (c *Collector) RecordOperation(operation string, durationMs int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operationCounts[operation]++

	if c.operationDurations[operation] == nil {
		c.operationDurations[operation] = &histogramData{}
	}
	c.operationDurations[operation].sum += float64(durationMs) / 1000.0
	c.operationDurations[operation].count++

	if !ok {
		c.operationErrors[opErrKey{operation: operation, kind: "handler"}]++
	}
}

// RecordRejection records a call rejected before its handler ran.
// kind is "unknown_operation" or "validation".
func (c *Collector) RecordRejection(operation, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operationErrors[opErrKey{operation: operation, kind: kind}]++
}

// RecordArtifact records a file persisted through the artifact store.
func (c *Collector) RecordArtifact(sizeBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifactCount++
	c.artifactBytes += sizeBytes
}

// Expose returns the metrics in Prometheus text exposition format.
func (c *Collector) Expose() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder
	timestamp := c.nowFunc().UnixMilli()

	// sysagent_uptime_seconds
	c.writeUptime(&sb, timestamp)

	// sysagent_operations_registered
	c.writeRegistered(&sb, timestamp)

	// sysagent_requests_total
	c.writeRequestsTotal(&sb, timestamp)

	// sysagent_operations_total
	c.writeOperationsTotal(&sb, timestamp)

	// sysagent_operation_duration_seconds
	c.writeOperationDuration(&sb, timestamp)

	// sysagent_operation_errors_total
	c.writeOperationErrors(&sb, timestamp)

	// sysagent_artifacts_*
	c.writeArtifacts(&sb, timestamp)

	return sb.String()
}

func (c *Collector) writeUptime(sb *strings.Builder, timestamp int64) {
	sb.WriteString("# HELP sysagent_uptime_seconds Time since the server started\n")
	sb.WriteString("# TYPE sysagent_uptime_seconds gauge\n")
	uptime := c.nowFunc().Sub(c.startTime).Seconds()
	fmt.Fprintf(sb, "sysagent_uptime_seconds %.3f %d\n", uptime, timestamp)
}

func (c *Collector) writeRegistered(sb *strings.Builder, timestamp int64) {
	sb.WriteString("# HELP sysagent_operations_registered Number of operations in the catalog\n")
	sb.WriteString("# TYPE sysagent_operations_registered gauge\n")
	fmt.Fprintf(sb, "sysagent_operations_registered %d %d\n", c.registeredOps, timestamp)
}

func (c *Collector) writeRequestsTotal(sb *strings.Builder, timestamp int64) {
	sb.WriteString("# HELP sysagent_requests_total Total number of HTTP requests served\n")
	sb.WriteString("# TYPE sysagent_requests_total counter\n")

	// Sort keys for deterministic output
	keys := make([]requestKey, 0, len(c.requestCounts))
	for k := range c.requestCounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].endpoint != keys[j].endpoint {
			return keys[i].endpoint < keys[j].endpoint
		}
		return keys[i].status < keys[j].status
	})

	for _, k := range keys {
		count := c.requestCounts[k]
		fmt.Fprintf(sb, "sysagent_requests_total{endpoint=%q,status=\"%d\"} %d %d\n", k.endpoint, k.status, count, timestamp)
	}
}

func (c *Collector) writeOperationsTotal(sb *strings.Builder, timestamp int64) {
	sb.WriteString("# HELP sysagent_operations_total Total number of operation invocations\n")
	sb.WriteString("# TYPE sysagent_operations_total counter\n")

	keys := make([]string, 0, len(c.operationCounts))
	for k := range c.operationCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, operation := range keys {
		count := c.operationCounts[operation]
		fmt.Fprintf(sb, "sysagent_operations_total{operation=%q} %d %d\n", operation, count, timestamp)
	}
}

func (c *Collector) writeOperationDuration(sb *strings.Builder, timestamp int64) {
	sb.WriteString("# HELP sysagent_operation_duration_seconds Duration of operation invocations in seconds\n")
	sb.WriteString("# TYPE sysagent_operation_duration_seconds histogram\n")

	keys := make([]string, 0, len(c.operationDurations))
	for k := range c.operationDurations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, operation := range keys {
		data := c.operationDurations[operation]
		fmt.Fprintf(sb, "sysagent_operation_duration_seconds_sum{operation=%q} %.6f %d\n", operation, data.sum, timestamp)
		fmt.Fprintf(sb, "sysagent_operation_duration_seconds_count{operation=%q} %d %d\n", operation, data.count, timestamp)
	}
}

func (c *Collector) writeOperationErrors(sb *strings.Builder, timestamp int64) {
	sb.WriteString("# HELP sysagent_operation_errors_total Total number of failed or rejected calls\n")
	sb.WriteString("# TYPE sysagent_operation_errors_total counter\n")

	keys := make([]opErrKey, 0, len(c.operationErrors))
	for k := range c.operationErrors {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].operation != keys[j].operation {
			return keys[i].operation < keys[j].operation
		}
		return keys[i].kind < keys[j].kind
	})

	for _, k := range keys {
		count := c.operationErrors[k]
		fmt.Fprintf(sb, "sysagent_operation_errors_total{operation=%q,kind=%q} %d %d\n", k.operation, k.kind, count, timestamp)
	}
}

func (c *Collector) writeArtifacts(sb *strings.Builder, timestamp int64) {
	sb.WriteString("# HELP sysagent_artifacts_stored_total Total number of files persisted\n")
	sb.WriteString("# TYPE sysagent_artifacts_stored_total counter\n")
	fmt.Fprintf(sb, "sysagent_artifacts_stored_total %d %d\n", c.artifactCount, timestamp)

	sb.WriteString("# HELP sysagent_artifact_bytes_total Total bytes persisted\n")
	sb.WriteString("# TYPE sysagent_artifact_bytes_total counter\n")
	fmt.Fprintf(sb, "sysagent_artifact_bytes_total %d %d\n", c.artifactBytes, timestamp)
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestCounts = make(map[requestKey]int64)
	c.operationCounts = make(map[string]int64)
	c.operationDurations = make(map[string]*histogramData)
	c.operationErrors = make(map[opErrKey]int64)
	c.artifactCount = 0
	c.artifactBytes = 0
}
