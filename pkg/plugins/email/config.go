// Package email sends mail over SMTP (or Gmail) and watches an IMAP mailbox
// for new messages.
package email

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Provider selects how outgoing mail is delivered.
type Provider string

const (
	ProviderGmail Provider = "gmail"
	ProviderSMTP  Provider = "smtp"
)

const (
	gmailHost        = "smtp.gmail.com"
	gmailPort        = 587
	defaultIMAPPort  = 993
	defaultMailbox   = "INBOX"
	defaultPollEvery = 30 * time.Second
)

var ErrInvalidConfig = errors.New("invalid email configuration")

// Settings is the lookup the validators read from; actions.Runtime
// satisfies it.
type Settings interface {
	GetSetting(key string) string
}

type IncomingConfig struct {
	Service      string
	Host         string
	Port         int
	User         string
	Pass         string
	Mailbox      string
	PollInterval time.Duration
}

func (c IncomingConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type OutgoingConfig struct {
	Provider Provider
	Host     string
	Port     int
	// Secure dials with implicit TLS (port 465) instead of STARTTLS.
	Secure bool
	User   string
	Pass   string
	From   string
}

// ValidateIncoming reads the EMAIL_INCOMING_* settings. It returns nil and no
// error when no incoming service is configured.
func ValidateIncoming(s Settings) (*IncomingConfig, error) {
	service := strings.ToLower(strings.TrimSpace(s.GetSetting("EMAIL_INCOMING_SERVICE")))
	if service == "" {
		return nil, nil
	}
	if service != "imap" {
		return nil, fmt.Errorf("%w: unsupported incoming service %q", ErrInvalidConfig, service)
	}

	cfg := &IncomingConfig{
		Service: service,
		Host:    strings.TrimSpace(s.GetSetting("EMAIL_INCOMING_HOST")),
		Port:    defaultIMAPPort,
		User:    s.GetSetting("EMAIL_INCOMING_USER"),
		Pass:    s.GetSetting("EMAIL_INCOMING_PASS"),
		Mailbox: s.GetSetting("EMAIL_INCOMING_MAILBOX"),

		PollInterval: defaultPollEvery,
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = defaultMailbox
	}
	var err error
	if cfg.Port, err = port(s, "EMAIL_INCOMING_PORT", defaultIMAPPort); err != nil {
		return nil, err
	}
	if v := s.GetSetting("EMAIL_INCOMING_POLL_INTERVAL"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("%w: EMAIL_INCOMING_POLL_INTERVAL must be a positive number of seconds", ErrInvalidConfig)
		}
		cfg.PollInterval = time.Duration(secs) * time.Second
	}

	var missing []string
	if cfg.Host == "" {
		missing = append(missing, "EMAIL_INCOMING_HOST")
	}
	if cfg.User == "" {
		missing = append(missing, "EMAIL_INCOMING_USER")
	}
	if cfg.Pass == "" {
		missing = append(missing, "EMAIL_INCOMING_PASS")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return cfg, nil
}

// ValidateOutgoing reads the EMAIL_OUTGOING_* settings. It returns nil and no
// error when no outgoing service is configured.
func ValidateOutgoing(s Settings) (*OutgoingConfig, error) {
	provider := Provider(strings.ToLower(strings.TrimSpace(s.GetSetting("EMAIL_OUTGOING_SERVICE"))))
	if provider == "" {
		return nil, nil
	}

	cfg := &OutgoingConfig{
		Provider: provider,
		User:     s.GetSetting("EMAIL_OUTGOING_USER"),
		Pass:     s.GetSetting("EMAIL_OUTGOING_PASS"),
		From:     s.GetSetting("EMAIL_OUTGOING_FROM"),
	}
	var missing []string
	switch provider {
	case ProviderGmail:
		cfg.Host, cfg.Port = gmailHost, gmailPort
	case ProviderSMTP:
		cfg.Host = strings.TrimSpace(s.GetSetting("EMAIL_OUTGOING_HOST"))
		cfg.Secure, _ = strconv.ParseBool(s.GetSetting("EMAIL_SECURE"))
		def := 587
		if cfg.Secure {
			def = 465
		}
		var err error
		if cfg.Port, err = port(s, "EMAIL_OUTGOING_PORT", def); err != nil {
			return nil, err
		}
		if cfg.Host == "" {
			missing = append(missing, "EMAIL_OUTGOING_HOST")
		}
	default:
		return nil, fmt.Errorf("%w: invalid email provider %q", ErrInvalidConfig, provider)
	}
	if cfg.User == "" {
		missing = append(missing, "EMAIL_OUTGOING_USER")
	}
	if cfg.Pass == "" {
		missing = append(missing, "EMAIL_OUTGOING_PASS")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return cfg, nil
}

func port(s Settings, key string, def int) (int, error) {
	v := strings.TrimSpace(s.GetSetting(key))
	if v == "" {
		return def, nil
	}
	p, err := strconv.Atoi(v)
	if err != nil || p <= 0 || p > 65535 {
		return 0, fmt.Errorf("%w: %s must be a port number, got %q", ErrInvalidConfig, key, v)
	}
	return p, nil
}
