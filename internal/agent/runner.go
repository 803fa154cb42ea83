package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/bc-dunia/sysagent/internal/events"
	"github.com/bc-dunia/sysagent/internal/otel"
	"github.com/bc-dunia/sysagent/internal/planner"
)

// RunnerConfig carries the runner's collaborators. Nil observability
// fields default to no-ops.
type RunnerConfig struct {
	Loop    *Loop
	Planner *planner.Planner
	Invoker Invoker
	Events  *events.EventLogger
	Metrics *otel.Metrics
}

// Runner answers goals with the generative loop and falls back to the
// rule-based planner when the service is unavailable. Tool server
// failures on the fallback path are fatal; without either the service
// or the server there is nothing left to answer with.
type Runner struct {
	loop    *Loop
	planner *planner.Planner
	invoker Invoker
	events  *events.EventLogger
	metrics *otel.Metrics
}

// NewRunner builds a runner, filling unset observability fields.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		loop:    cfg.Loop,
		planner: cfg.Planner,
		invoker: cfg.Invoker,
		events:  cfg.Events,
		metrics: cfg.Metrics,
	}
	if r.events == nil {
		r.events = events.NoopEventLogger()
	}
	if r.metrics == nil {
		r.metrics = otel.NoopMetrics()
	}
	return r
}

// Run answers the goal. usedFallback reports whether the rule-based
// planner produced the answer.
func (r *Runner) Run(ctx context.Context, goal string) (answer string, usedFallback bool, err error) {
	answer, err = r.loop.Run(ctx, goal)
	if err == nil {
		return answer, false, nil
	}
	if !errors.Is(err, ErrServiceUnavailable) {
		return "", false, err
	}

	r.events.LogFallbackEngaged(err.Error())
	r.metrics.RecordFallback(ctx)

	catalog, cerr := r.invoker.OperationNames(ctx)
	if cerr != nil {
		return "", true, fmt.Errorf("list operations: %w", cerr)
	}
	answer, perr := r.planner.Plan(ctx, goal, catalog)
	if perr != nil {
		return "", true, perr
	}
	return answer, true, nil
}
