package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settings map[string]string

func (s settings) GetSetting(key string) string { return s[key] }

func TestValidateOutgoing(t *testing.T) {
	tests := []struct {
		name    string
		in      settings
		want    *OutgoingConfig
		wantErr string
	}{
		{name: "not configured", in: settings{}},
		{
			name: "gmail",
			in:   settings{"EMAIL_OUTGOING_SERVICE": "Gmail", "EMAIL_OUTGOING_USER": "me@gmail.com", "EMAIL_OUTGOING_PASS": "app"},
			want: &OutgoingConfig{Provider: ProviderGmail, Host: "smtp.gmail.com", Port: 587, User: "me@gmail.com", Pass: "app", From: "me@gmail.com"},
		},
		{
			name: "smtp secure default port",
			in: settings{
				"EMAIL_OUTGOING_SERVICE": "smtp", "EMAIL_OUTGOING_HOST": "mail.example.com",
				"EMAIL_SECURE": "true", "EMAIL_OUTGOING_USER": "u", "EMAIL_OUTGOING_PASS": "p",
				"EMAIL_OUTGOING_FROM": "Bot <bot@example.com>",
			},
			want: &OutgoingConfig{Provider: ProviderSMTP, Host: "mail.example.com", Port: 465, Secure: true, User: "u", Pass: "p", From: "Bot <bot@example.com>"},
		},
		{
			name:    "smtp missing host and pass",
			in:      settings{"EMAIL_OUTGOING_SERVICE": "smtp", "EMAIL_OUTGOING_USER": "u"},
			wantErr: "missing EMAIL_OUTGOING_HOST, EMAIL_OUTGOING_PASS",
		},
		{
			name:    "bad port",
			in:      settings{"EMAIL_OUTGOING_SERVICE": "smtp", "EMAIL_OUTGOING_HOST": "h", "EMAIL_OUTGOING_PORT": "70000"},
			wantErr: "EMAIL_OUTGOING_PORT must be a port number",
		},
		{
			name:    "unknown provider",
			in:      settings{"EMAIL_OUTGOING_SERVICE": "carrier-pigeon"},
			wantErr: `invalid email provider "carrier-pigeon"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateOutgoing(tt.in)
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateIncoming(t *testing.T) {
	got, err := ValidateIncoming(settings{})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ValidateIncoming(settings{
		"EMAIL_INCOMING_SERVICE":       "imap",
		"EMAIL_INCOMING_HOST":          "imap.example.com",
		"EMAIL_INCOMING_USER":          "u",
		"EMAIL_INCOMING_PASS":          "p",
		"EMAIL_INCOMING_POLL_INTERVAL": "5",
	})
	require.NoError(t, err)
	assert.Equal(t, &IncomingConfig{
		Service: "imap", Host: "imap.example.com", Port: 993, User: "u", Pass: "p",
		Mailbox: "INBOX", PollInterval: 5 * time.Second,
	}, got)
	assert.Equal(t, "imap.example.com:993", got.Addr())

	_, err = ValidateIncoming(settings{"EMAIL_INCOMING_SERVICE": "imap", "EMAIL_INCOMING_HOST": "h"})
	assert.ErrorContains(t, err, "missing EMAIL_INCOMING_USER, EMAIL_INCOMING_PASS")

	_, err = ValidateIncoming(settings{"EMAIL_INCOMING_SERVICE": "pop3"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
