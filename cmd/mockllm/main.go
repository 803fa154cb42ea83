// Package main provides the sysagent-mockllm binary: a local
// OpenAI-compatible mock of the generative service, for driving the
// agent without a real credential.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bc-dunia/sysagent/internal/config"
	"github.com/bc-dunia/sysagent/internal/mockllm"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8090", "HTTP listen address")
	model := flag.String("model", "", "Model name echoed in responses")
	flag.Parse()

	cfg := mockllm.DefaultConfig()
	cfg.Addr = *addr
	cfg.Model = *model

	srv := mockllm.New(cfg)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting mock service: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mock generative service listening on %s\n", srv.Addr())
	fmt.Printf("Point the agent at it with --llm-base %s\n", srv.BaseURL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()
	srv.Stop(ctx)
	fmt.Println("Mock service stopped")
}
