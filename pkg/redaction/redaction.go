// Package redaction masks credentials and other sensitive values before they
// reach log sinks, diagnostics files or the dashboard.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Config holds redaction configuration.
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// RedactTokens covers GitHub tokens, LLM provider keys, bearer tokens and JWTs.
	RedactTokens bool `json:"redact_tokens" yaml:"redact_tokens"`

	// RedactKeys covers Coinbase API key names and PEM private key blocks.
	RedactKeys bool `json:"redact_keys" yaml:"redact_keys"`

	RedactPasswords bool `json:"redact_passwords" yaml:"redact_passwords"`

	// RedactEmails masks the local part of e-mail addresses (a***@example.com).
	RedactEmails bool `json:"redact_emails" yaml:"redact_emails"`

	CustomPatterns []string `json:"custom_patterns,omitempty" yaml:"custom_patterns,omitempty"`

	Replacement string `json:"replacement" yaml:"replacement"`
}

// DefaultConfig returns the default redaction configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		RedactTokens:    true,
		RedactKeys:      true,
		RedactPasswords: true,
		RedactEmails:    false,
		Replacement:     "[REDACTED]",
	}
}

type rule struct {
	re *regexp.Regexp
	// group is the capture group to replace; 0 replaces the whole match.
	group int
}

var (
	tokenRules = []rule{
		{re: regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`)},
		{re: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`)},
		{re: regexp.MustCompile(`sk-ant-[A-Za-z0-9\-_]{20,}`)},
		{re: regexp.MustCompile(`sk-[A-Za-z0-9\-_]{20,}`)},
		{re: regexp.MustCompile(`eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`)},
		{re: regexp.MustCompile(`(?i)bearer\s+([A-Za-z0-9_\-\.=]{16,})`), group: 1},
		{re: regexp.MustCompile(`(?i)(?:token|api[_-]?key|api[_-]?secret)\s*[=:]\s*['"]?([A-Za-z0-9_\-\.]{16,})`), group: 1},
	}
	keyRules = []rule{
		{re: regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`)},
		{re: regexp.MustCompile(`organizations/[0-9a-fA-F-]{36}/apiKeys/[0-9a-fA-F-]{36}`)},
	}
	passwordRules = []rule{
		{re: regexp.MustCompile(`(?i)(?:password|passwd|pass|pwd)\s*[=:]\s*['"]?([^'"\s,}]{4,})`), group: 1},
	}
	jsonSecret = regexp.MustCompile(`"(?:api_key|api_secret|token|password|pass|private_key|secret)"\s*:\s*"([^"]+)"`)
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// sensitiveKeys are field names whose values are always replaced.
var sensitiveKeys = []string{
	"password", "pass", "secret", "token", "api_key", "apikey",
	"private_key", "credential", "authorization",
}

// Redactor applies the configured rules.
type Redactor struct {
	mu     sync.RWMutex
	config Config
	custom []*regexp.Regexp
}

// NewRedactor creates a Redactor. Invalid custom patterns are ignored.
func NewRedactor(config Config) *Redactor {
	if config.Replacement == "" {
		config.Replacement = "[REDACTED]"
	}
	r := &Redactor{config: config}
	for _, p := range config.CustomPatterns {
		if re, err := regexp.Compile(p); err == nil {
			r.custom = append(r.custom, re)
		}
	}
	return r
}

// Redact applies all enabled rules to input.
func (r *Redactor) Redact(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.config.Enabled || input == "" {
		return input
	}

	out := input
	if r.config.RedactKeys {
		out = r.apply(out, keyRules)
	}
	if r.config.RedactTokens {
		out = r.apply(out, tokenRules)
		out = jsonSecret.ReplaceAllStringFunc(out, func(m string) string {
			sub := jsonSecret.FindStringSubmatch(m)
			return strings.Replace(m, sub[1], r.config.Replacement, 1)
		})
	}
	if r.config.RedactPasswords {
		out = r.apply(out, passwordRules)
	}
	if r.config.RedactEmails {
		out = emailRe.ReplaceAllStringFunc(out, maskEmail)
	}
	for _, re := range r.custom {
		out = re.ReplaceAllString(out, r.config.Replacement)
	}
	return out
}

func (r *Redactor) apply(input string, rules []rule) string {
	for _, rl := range rules {
		re, group := rl.re, rl.group
		input = re.ReplaceAllStringFunc(input, func(m string) string {
			if group == 0 {
				return r.config.Replacement
			}
			sub := re.FindStringSubmatch(m)
			if len(sub) <= group || sub[group] == "" {
				return m
			}
			return strings.Replace(m, sub[group], r.config.Replacement, 1)
		})
	}
	return input
}

func maskEmail(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return addr
	}
	return addr[:1] + "***" + addr[at:]
}

// RedactFields returns a copy of fields with sensitive keys replaced and
// string values redacted. Nested maps are walked.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	r.mu.RLock()
	enabled, repl := r.config.Enabled, r.config.Replacement
	r.mu.RUnlock()

	if !enabled || fields == nil {
		return fields
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = repl
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = r.Redact(val)
		case map[string]any:
			out[k] = r.RedactFields(val)
		default:
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	// token counters are not secrets
	if strings.HasSuffix(lower, "_tokens") || strings.HasSuffix(lower, "token_count") {
		return false
	}
	for _, sk := range sensitiveKeys {
		if strings.Contains(lower, sk) {
			return true
		}
	}
	return false
}

// SetEnabled toggles redaction at runtime.
func (r *Redactor) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Enabled = enabled
}

// AddCustomPattern compiles and appends a pattern.
func (r *Redactor) AddCustomPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = append(r.custom, re)
	return nil
}

var (
	globalMu sync.RWMutex
	global   = NewRedactor(DefaultConfig())
)

func current() *Redactor {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Redact applies the global redactor.
func Redact(input string) string { return current().Redact(input) }

// RedactFields applies the global redactor to a field map.
func RedactFields(fields map[string]any) map[string]any { return current().RedactFields(fields) }

// SetGlobalConfig replaces the global redactor.
func SetGlobalConfig(config Config) {
	r := NewRedactor(config)
	globalMu.Lock()
	global = r
	globalMu.Unlock()
}
