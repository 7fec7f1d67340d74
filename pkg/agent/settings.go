package agent

import (
	"os"
	"strconv"

	"github.com/HarshModi2005/realityspiral/pkg/config"
)

// Settings holds the named values actions read through GetSetting. Keys
// missing or empty here fall back to the process environment.
type Settings map[string]string

func (s Settings) Get(key string) string {
	if v := s[key]; v != "" {
		return v
	}
	return os.Getenv(key)
}

func (s Settings) GetSetting(key string) string { return s.Get(key) }

// SettingsFromConfig maps cfg onto the setting names the plugins expect.
func SettingsFromConfig(cfg *config.Config) Settings {
	cfg.RLock()
	defer cfg.RUnlock()
	return settingsFromConfigLocked(cfg)
}

func settingsFromConfigLocked(cfg *config.Config) Settings {
	in, out := cfg.Email.Incoming, cfg.Email.Outgoing
	s := Settings{
		"GITHUB_API_TOKEN":    cfg.GitHub.APIToken,
		"GITHUB_BASE_URL":     cfg.GitHub.BaseURL,
		"COINBASE_API_KEY":    cfg.Coinbase.APIKey,
		"COINBASE_API_SECRET": cfg.Coinbase.APISecret,
		"COINBASE_BASE_URL":   cfg.Coinbase.BaseURL,

		"EMAIL_INCOMING_SERVICE": in.Service,
		"EMAIL_INCOMING_HOST":    in.Host,
		"EMAIL_INCOMING_USER":    in.User,
		"EMAIL_INCOMING_PASS":    in.Pass,
		"EMAIL_INCOMING_MAILBOX": in.Mailbox,
		"EMAIL_OUTGOING_SERVICE": out.Service,
		"EMAIL_OUTGOING_HOST":    out.Host,
		"EMAIL_OUTGOING_USER":    out.User,
		"EMAIL_OUTGOING_PASS":    out.Pass,
		"EMAIL_OUTGOING_FROM":    out.From,
	}
	if in.Port > 0 {
		s["EMAIL_INCOMING_PORT"] = strconv.Itoa(in.Port)
	}
	if in.PollInterval > 0 {
		s["EMAIL_INCOMING_POLL_INTERVAL"] = strconv.Itoa(in.PollInterval)
	}
	if out.Port > 0 {
		s["EMAIL_OUTGOING_PORT"] = strconv.Itoa(out.Port)
	}
	if out.Secure {
		s["EMAIL_SECURE"] = "true"
	}
	return s
}
