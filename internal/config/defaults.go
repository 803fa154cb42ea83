package config

import "time"

// Default configuration constants for the tool server and the agent loop
const (
	DefaultServerAddr = "127.0.0.1:8000"
	DefaultBaseURL    = "http://127.0.0.1:8000"

	DefaultConnectTimeout  = 5 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultMaxTurns bounds planning<->executing round trips per
	// session; the loop has no other termination guarantee against a
	// non-converging model.
	DefaultMaxTurns = 3

	DefaultCPUWindowSec = 0.5
	DefaultProcessLimit = 5
	MaxCPUWindowSec     = 5.0

	DefaultOutputDirName  = "output"
	DefaultOutputFileName = "health_report.txt"
)

// Generative service defaults. The API key comes from the environment
// only; an absent key selects the deterministic fallback path.
const (
	DefaultLLMBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel      = "gpt-4o-mini"
	DefaultLLMTimeout    = 60 * time.Second
	DefaultLLMMaxRetries = 2
)

// Environment variable names read at startup. Flags take precedence.
const (
	EnvLLMAPIKey     = "OPENAI_API_KEY"
	EnvLLMBaseURL    = "OPENAI_BASE_URL"
	EnvLLMModel      = "OPENAI_MODEL"
	EnvServerAPIKey  = "SYSAGENT_API_KEY"
	EnvOutputBaseDir = "SYSAGENT_BASE_DIR"
)
