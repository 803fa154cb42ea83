package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bc-dunia/sysagent/internal/agent"
	"github.com/bc-dunia/sysagent/internal/client"
	"github.com/bc-dunia/sysagent/internal/config"
	"github.com/bc-dunia/sysagent/internal/events"
	"github.com/bc-dunia/sysagent/internal/llm"
	"github.com/bc-dunia/sysagent/internal/otel"
	"github.com/bc-dunia/sysagent/internal/planner"
)

// defaultGoal keeps the bare invocation useful: with no arguments the
// agent produces and stores the standard health report.
const defaultGoal = "Generate a system health report and store it in a file"

func main() {
	goal := flag.String("goal", "", "Goal for the agent (default: the positional arguments joined, or the health report goal)")
	out := flag.String("out", config.DefaultOutputFileName, "Output file name for stored reports")
	base := flag.String("base", config.DefaultBaseURL, "Tool server base URL")
	apiKey := flag.String("api-key", "", "Tool server API key (default: SYSAGENT_API_KEY)")
	model := flag.String("model", "", "Generative model name (default: OPENAI_MODEL)")
	llmBase := flag.String("llm-base", "", "Generative service base URL (default: OPENAI_BASE_URL)")
	otelEnabled := flag.Bool("otel", false, "Enable OpenTelemetry trace and metric export")
	otelExporter := flag.String("otel-exporter", string(otel.ExporterStdout), "OpenTelemetry exporter: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP endpoint for the otlp exporters")
	otelInsecure := flag.Bool("otel-insecure", false, "Disable TLS for OTLP connections")
	flag.Parse()

	goalText := resolveGoal(*goal, flag.Args())

	serverKey := *apiKey
	if serverKey == "" {
		serverKey = os.Getenv(config.EnvServerAPIKey)
	}

	// Stdout carries the answer; everything else goes to stderr.
	logger := events.NewEventLoggerWithWriter("agent", "", os.Stderr)
	events.SetGlobalEventLogger(logger)

	tracer := otel.NoopTracer()
	meters := otel.NoopMetrics()
	if *otelEnabled {
		tcfg := otel.DefaultConfig()
		tcfg.Enabled = true
		tcfg.ExporterType = otel.ExporterType(*otelExporter)
		tcfg.OTLPEndpoint = *otelEndpoint
		tcfg.OTLPInsecure = *otelInsecure
		t, err := otel.NewTracer(context.Background(), tcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing tracing: %v\n", err)
			return
		}
		tracer = t
		otel.SetGlobalTracer(t)

		mcfg := otel.DefaultMetricsConfig()
		mcfg.Enabled = true
		mcfg.ExporterType = otel.ExporterType(*otelExporter)
		mcfg.OTLPEndpoint = *otelEndpoint
		mcfg.OTLPInsecure = *otelInsecure
		m, err := otel.NewMetrics(context.Background(), mcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing metrics: %v\n", err)
			return
		}
		meters = m
		otel.SetGlobalMetrics(m)
	}

	llmCfg := llm.ConfigFromEnv()
	if *model != "" {
		llmCfg.Model = *model
	}
	if *llmBase != "" {
		llmCfg.BaseURL = *llmBase
	}

	invoker := client.New(&client.Config{
		BaseURL: *base,
		APIKey:  serverKey,
		Tracer:  tracer,
	})

	runner := agent.NewRunner(agent.RunnerConfig{
		Loop: agent.NewLoop(agent.LoopConfig{
			LLM:         llm.New(llmCfg),
			Invoker:     invoker,
			OutFileName: *out,
			Events:      logger,
			Metrics:     meters,
			Tracer:      tracer,
		}),
		Planner: planner.New(invoker, *out),
		Invoker: invoker,
		Events:  logger,
		Metrics: meters,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	answer, usedFallback, err := runner.Run(ctx, goalText)
	if usedFallback {
		fmt.Fprintln(os.Stderr, "Generative service unavailable, answering with the deterministic planner")
	}
	if err != nil {
		// Failures are reported as text; the exit code stays zero.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	} else {
		fmt.Println(answer)
	}

	if *otelEnabled {
		sctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
		defer cancel()
		_ = meters.Shutdown(sctx)
		_ = tracer.Shutdown(sctx)
	}
}

// resolveGoal picks the goal from the flag, then the positional
// arguments, then the default. Surrounding whitespace is dropped.
func resolveGoal(flagValue string, args []string) string {
	if goal := strings.TrimSpace(flagValue); goal != "" {
		return goal
	}
	if goal := strings.TrimSpace(strings.Join(args, " ")); goal != "" {
		return goal
	}
	return defaultGoal
}
