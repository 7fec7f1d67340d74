package config

import (
	"os"
	"path/filepath"

	"github.com/HarshModi2005/realityspiral/pkg/redaction"
)

const (
	EnvSpiralConfig = "SPIRAL_CONFIG"
	EnvSpiralHome   = "SPIRAL_HOME"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			BaseURL:        "https://api.openai.com/v1",
			MaxTokens:      4096,
			Temperature:    0,
			RequestTimeout: 120,
		},
		Agent: AgentConfig{
			ID:             "realityspiral",
			Name:           "Spiral",
			DataDir:        "~/.realityspiral/data",
			RecentMessages: 20,
		},
		GitHub: GitHubConfig{
			BaseURL: "https://api.github.com",
		},
		Coinbase: CoinbaseConfig{
			BaseURL: "https://api.coinbase.com",
		},
		Email: EmailConfig{
			Incoming: IncomingEmailConfig{
				Service:      "imap",
				Port:         993,
				Mailbox:      "INBOX",
				PollInterval: 60,
			},
			Outgoing: OutgoingEmailConfig{
				Service: "gmail",
			},
		},
		Memory: MemoryConfig{
			Backend: "sqlite",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "spiral:memories:",
			},
			JetStream: JetStreamConfig{
				Stream: "SPIRAL_MEMORIES",
			},
		},
		Orchestrator: OrchestratorConfig{
			DiagnosticsDir: filepath.Join(os.TempDir(), "realityspiral"),
		},
		Dashboard: DashboardConfig{
			Host: "127.0.0.1",
			Port: 18800,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "realityspiral",
			SampleRate:  1.0,
		},
		Audit: AuditConfig{
			Path: "~/.realityspiral/audit.jsonl",
		},
		RateLimits: RateLimitsConfig{
			GitHubRequestsPerMinute:   60,
			CoinbaseRequestsPerSecond: 10,
			ActionCallsPerMinute:      0,
		},
		Log: LogConfig{
			Level:     "info",
			Redaction: redaction.DefaultConfig(),
		},
	}
}

// ConfigPath returns $SPIRAL_CONFIG, else $SPIRAL_HOME/config.json, else
// ~/.realityspiral/config.json.
func ConfigPath() string {
	if p := os.Getenv(EnvSpiralConfig); p != "" {
		return expandHome(p)
	}
	home := expandHome(os.Getenv(EnvSpiralHome))
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil && h != "" {
			home = filepath.Join(h, ".realityspiral")
		} else {
			home = ".realityspiral"
		}
	}
	return filepath.Join(home, "config.json")
}
