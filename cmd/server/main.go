package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bc-dunia/sysagent/internal/auth"
	"github.com/bc-dunia/sysagent/internal/config"
	"github.com/bc-dunia/sysagent/internal/events"
	"github.com/bc-dunia/sysagent/internal/metrics"
	"github.com/bc-dunia/sysagent/internal/otel"
	"github.com/bc-dunia/sysagent/internal/retention"
	"github.com/bc-dunia/sysagent/internal/server"
)

func main() {
	addr := flag.String("addr", config.DefaultServerAddr, "HTTP listen address")
	baseDir := flag.String("base-dir", "", "Base directory for stored artifacts (default: SYSAGENT_BASE_DIR or the working directory)")
	apiKeys := flag.String("api-keys", "", "Comma-separated API keys; empty disables authentication (default: SYSAGENT_API_KEY)")
	artifactTTL := flag.Duration("artifact-ttl", 0, "Prune stored artifacts older than this age (0 disables pruning)")
	otelEnabled := flag.Bool("otel", false, "Enable OpenTelemetry trace export")
	otelExporter := flag.String("otel-exporter", string(otel.ExporterStdout), "OpenTelemetry exporter: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP endpoint for the otlp exporters")
	otelInsecure := flag.Bool("otel-insecure", false, "Disable TLS for OTLP connections")
	flag.Parse()

	dir := *baseDir
	if dir == "" {
		dir = os.Getenv(config.EnvOutputBaseDir)
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving working directory: %v\n", err)
			os.Exit(1)
		}
		dir = wd
	}

	keys := *apiKeys
	if keys == "" {
		keys = os.Getenv(config.EnvServerAPIKey)
	}
	authCfg := auth.DefaultConfig()
	if keys != "" {
		authCfg.Mode = auth.AuthModeAPIKey
		for _, key := range strings.Split(keys, ",") {
			if key = strings.TrimSpace(key); key != "" {
				authCfg.APIKeys = append(authCfg.APIKeys, key)
			}
		}
	}

	logger := events.NewEventLogger("server", "")
	events.SetGlobalEventLogger(logger)

	tracer := otel.NoopTracer()
	if *otelEnabled {
		tcfg := otel.DefaultConfig()
		tcfg.Enabled = true
		tcfg.ExporterType = otel.ExporterType(*otelExporter)
		tcfg.OTLPEndpoint = *otelEndpoint
		tcfg.OTLPInsecure = *otelInsecure
		t, err := otel.NewTracer(context.Background(), tcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing tracing: %v\n", err)
			os.Exit(1)
		}
		tracer = t
		otel.SetGlobalTracer(t)
	}

	var retentionCfg *retention.Config
	if *artifactTTL > 0 {
		cfg := retention.DefaultConfig()
		cfg.TTL = *artifactTTL
		retentionCfg = &cfg
	}

	srv, err := server.New(&server.Config{
		Addr:      *addr,
		BaseDir:   dir,
		Auth:      authCfg,
		Events:    logger,
		Metrics:   metrics.NewCollector(),
		Tracer:    tracer,
		Retention: retentionCfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("sysagent tool server listening on %s\n", srv.BaseURL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()
	srv.Stop(ctx)
	if tracer.Enabled() {
		_ = tracer.Shutdown(ctx)
	}
	fmt.Println("Server stopped")
}
