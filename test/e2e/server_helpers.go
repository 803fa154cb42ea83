// Package e2e exercises the tool server, the invocation client, the
// planner, and the agent loop together over real HTTP on loopback.
package e2e

import (
	"testing"

	"github.com/bc-dunia/sysagent/internal/client"
	"github.com/bc-dunia/sysagent/internal/server"
)

// startServer boots a tool server on a loopback port with artifacts
// rooted in a per-test temp dir, and returns it with a client pointed
// at it. Both are torn down when the test finishes.
func startServer(t *testing.T, cfg *server.Config) (*server.Server, *client.Client) {
	t.Helper()
	if cfg == nil {
		cfg = &server.Config{}
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = t.TempDir()
	}
	srv, cleanup, err := server.StartTestServer(cfg)
	if err != nil {
		t.Fatalf("start test server: %v", err)
	}
	t.Cleanup(cleanup)

	c := client.New(&client.Config{BaseURL: srv.BaseURL()})
	return srv, c
}
