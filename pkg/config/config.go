// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/HarshModi2005/realityspiral/pkg/redaction"
)

type Config struct {
	LLM          LLMConfig          `json:"llm" yaml:"llm"`
	Agent        AgentConfig        `json:"agent" yaml:"agent"`
	GitHub       GitHubConfig       `json:"github" yaml:"github"`
	Coinbase     CoinbaseConfig     `json:"coinbase" yaml:"coinbase"`
	Email        EmailConfig        `json:"email" yaml:"email"`
	Memory       MemoryConfig       `json:"memory" yaml:"memory"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator"`
	Dashboard    DashboardConfig    `json:"dashboard" yaml:"dashboard"`
	Tracing      TracingConfig      `json:"tracing" yaml:"tracing"`
	Audit        AuditConfig        `json:"audit" yaml:"audit"`
	RateLimits   RateLimitsConfig   `json:"rate_limits" yaml:"rate_limits"`
	Log          LogConfig          `json:"log" yaml:"log"`
	mu           sync.RWMutex
}

type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider       string  `json:"provider" yaml:"provider" env:"SPIRAL_LLM_PROVIDER"`
	Model          string  `json:"model" yaml:"model" env:"SPIRAL_LLM_MODEL"`
	APIKey         string  `json:"api_key" yaml:"api_key" env:"SPIRAL_LLM_API_KEY"`
	BaseURL        string  `json:"base_url" yaml:"base_url" env:"SPIRAL_LLM_BASE_URL"`
	MaxTokens      int     `json:"max_tokens" yaml:"max_tokens" env:"SPIRAL_LLM_MAX_TOKENS"`
	Temperature    float64 `json:"temperature" yaml:"temperature" env:"SPIRAL_LLM_TEMPERATURE"`
	RequestTimeout int     `json:"request_timeout" yaml:"request_timeout" env:"SPIRAL_LLM_REQUEST_TIMEOUT"` // seconds
}

type AgentConfig struct {
	ID             string `json:"id" yaml:"id" env:"SPIRAL_AGENT_ID"`
	Name           string `json:"name" yaml:"name" env:"SPIRAL_AGENT_NAME"`
	DataDir        string `json:"data_dir" yaml:"data_dir" env:"SPIRAL_AGENT_DATA_DIR"`
	RecentMessages int    `json:"recent_messages" yaml:"recent_messages" env:"SPIRAL_AGENT_RECENT_MESSAGES"`
}

type GitHubConfig struct {
	APIToken string `json:"api_token" yaml:"api_token" env:"SPIRAL_GITHUB_API_TOKEN"`
	BaseURL  string `json:"base_url" yaml:"base_url" env:"SPIRAL_GITHUB_BASE_URL"`
}

type CoinbaseConfig struct {
	// APIKey is the CDP key name, organizations/{org}/apiKeys/{id}.
	APIKey string `json:"api_key" yaml:"api_key" env:"SPIRAL_COINBASE_API_KEY"`
	// APISecret is the PEM encoded EC private key.
	APISecret string `json:"api_secret" yaml:"api_secret" env:"SPIRAL_COINBASE_API_SECRET"`
	BaseURL   string `json:"base_url" yaml:"base_url" env:"SPIRAL_COINBASE_BASE_URL"`
}

type EmailConfig struct {
	Incoming IncomingEmailConfig `json:"incoming" yaml:"incoming"`
	Outgoing OutgoingEmailConfig `json:"outgoing" yaml:"outgoing"`
}

type IncomingEmailConfig struct {
	Service      string `json:"service" yaml:"service" env:"SPIRAL_EMAIL_INCOMING_SERVICE"`
	Host         string `json:"host" yaml:"host" env:"SPIRAL_EMAIL_INCOMING_HOST"`
	Port         int    `json:"port" yaml:"port" env:"SPIRAL_EMAIL_INCOMING_PORT"`
	User         string `json:"user" yaml:"user" env:"SPIRAL_EMAIL_INCOMING_USER"`
	Pass         string `json:"pass" yaml:"pass" env:"SPIRAL_EMAIL_INCOMING_PASS"`
	Mailbox      string `json:"mailbox" yaml:"mailbox" env:"SPIRAL_EMAIL_INCOMING_MAILBOX"`
	PollInterval int    `json:"poll_interval" yaml:"poll_interval" env:"SPIRAL_EMAIL_INCOMING_POLL_INTERVAL"` // seconds, used when IDLE is unavailable
}

type OutgoingEmailConfig struct {
	// Service is "gmail" or "smtp".
	Service string `json:"service" yaml:"service" env:"SPIRAL_EMAIL_OUTGOING_SERVICE"`
	Host    string `json:"host" yaml:"host" env:"SPIRAL_EMAIL_OUTGOING_HOST"`
	Port    int    `json:"port" yaml:"port" env:"SPIRAL_EMAIL_OUTGOING_PORT"`
	Secure  bool   `json:"secure" yaml:"secure" env:"SPIRAL_EMAIL_SECURE"`
	User    string `json:"user" yaml:"user" env:"SPIRAL_EMAIL_OUTGOING_USER"`
	Pass    string `json:"pass" yaml:"pass" env:"SPIRAL_EMAIL_OUTGOING_PASS"`
	From    string `json:"from" yaml:"from" env:"SPIRAL_EMAIL_OUTGOING_FROM"`
}

type MemoryConfig struct {
	// Backend is one of sqlite, jsonl, redis, jetstream.
	Backend   string          `json:"backend" yaml:"backend" env:"SPIRAL_MEMORY_BACKEND"`
	Path      string          `json:"path" yaml:"path" env:"SPIRAL_MEMORY_PATH"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	JetStream JetStreamConfig `json:"jetstream" yaml:"jetstream"`
}

type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr" env:"SPIRAL_MEMORY_REDIS_ADDR"`
	Password  string `json:"password" yaml:"password" env:"SPIRAL_MEMORY_REDIS_PASSWORD"`
	DB        int    `json:"db" yaml:"db" env:"SPIRAL_MEMORY_REDIS_DB"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"SPIRAL_MEMORY_REDIS_KEY_PREFIX"`
}

type JetStreamConfig struct {
	// URL of an existing NATS server. Empty starts an embedded server.
	URL      string `json:"url" yaml:"url" env:"SPIRAL_MEMORY_NATS_URL"`
	StoreDir string `json:"store_dir" yaml:"store_dir" env:"SPIRAL_MEMORY_NATS_STORE_DIR"`
	Stream   string `json:"stream" yaml:"stream" env:"SPIRAL_MEMORY_NATS_STREAM"`
}

type OrchestratorConfig struct {
	DiagnosticsDir string `json:"diagnostics_dir" yaml:"diagnostics_dir" env:"SPIRAL_ORCHESTRATOR_DIAGNOSTICS_DIR"`
	// PlanTimeout and StepTimeout are seconds; 0 waits indefinitely.
	PlanTimeout int `json:"plan_timeout" yaml:"plan_timeout" env:"SPIRAL_ORCHESTRATOR_PLAN_TIMEOUT"`
	StepTimeout int `json:"step_timeout" yaml:"step_timeout" env:"SPIRAL_ORCHESTRATOR_STEP_TIMEOUT"`
}

type DashboardConfig struct {
	Host   string `json:"host" yaml:"host" env:"SPIRAL_DASHBOARD_HOST"`
	Port   int    `json:"port" yaml:"port" env:"SPIRAL_DASHBOARD_PORT"`
	APIKey string `json:"api_key" yaml:"api_key" env:"SPIRAL_DASHBOARD_API_KEY"`
}

func (d DashboardConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" env:"SPIRAL_TRACING_ENABLED"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" env:"SPIRAL_TRACING_ENDPOINT"`
	Insecure    bool    `json:"insecure" yaml:"insecure" env:"SPIRAL_TRACING_INSECURE"`
	ServiceName string  `json:"service_name" yaml:"service_name" env:"SPIRAL_TRACING_SERVICE_NAME"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate" env:"SPIRAL_TRACING_SAMPLE_RATE"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"SPIRAL_AUDIT_ENABLED"`
	Path    string `json:"path" yaml:"path" env:"SPIRAL_AUDIT_PATH"`
	HMACKey string `json:"hmac_key" yaml:"hmac_key" env:"SPIRAL_AUDIT_HMAC_KEY"`
}

type RateLimitsConfig struct {
	GitHubRequestsPerMinute   int `json:"github_requests_per_minute" yaml:"github_requests_per_minute" env:"SPIRAL_RATE_LIMITS_GITHUB_REQUESTS_PER_MINUTE"`       // 0 = unlimited
	CoinbaseRequestsPerSecond int `json:"coinbase_requests_per_second" yaml:"coinbase_requests_per_second" env:"SPIRAL_RATE_LIMITS_COINBASE_REQUESTS_PER_SECOND"` // 0 = unlimited
	ActionCallsPerMinute      int `json:"action_calls_per_minute" yaml:"action_calls_per_minute" env:"SPIRAL_RATE_LIMITS_ACTION_CALLS_PER_MINUTE"`             // 0 = unlimited
}

type LogConfig struct {
	Level     string           `json:"level" yaml:"level" env:"SPIRAL_LOG_LEVEL"`
	File      string           `json:"file" yaml:"file" env:"SPIRAL_LOG_FILE"`
	Redaction redaction.Config `json:"redaction" yaml:"redaction"`
}

// LoadConfig applies defaults, then the file at path (JSON, or YAML for
// .yaml/.yml), then SPIRAL_* environment variables. A missing file is not an
// error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overlay: %w", err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

// SaveConfig writes cfg with 0600 permissions through a temp file rename.
func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }

func (c *Config) DataPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agent.DataDir)
}

// MemoryPath resolves the sqlite file or jsonl directory for the configured
// backend, defaulting under the data directory.
func (c *Config) MemoryPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Memory.Path != "" {
		return expandHome(c.Memory.Path)
	}
	base := expandHome(c.Agent.DataDir)
	if c.Memory.Backend == "jsonl" {
		return filepath.Join(base, "memory")
	}
	return filepath.Join(base, "memory.db")
}

func (c *Config) DiagnosticsPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Orchestrator.DiagnosticsDir)
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
