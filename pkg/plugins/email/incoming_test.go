package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imapMessage(uid uint32, env *imap.Envelope, raw string) *imap.Message {
	section := &imap.BodySectionName{}
	return &imap.Message{
		Uid:      uid,
		Envelope: env,
		Body:     map[*imap.BodySectionName]imap.Literal{section: bytes.NewReader([]byte(raw))},
	}
}

func TestParseMessage_Multipart(t *testing.T) {
	raw := "From: Ada <ada@example.com>\r\n" +
		"To: bot@example.com\r\n" +
		"Subject: Build failed\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n\r\n" +
		"The build is red.\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n\r\n" +
		"<p>The build is red.</p>\r\n" +
		"--XYZ\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Disposition: attachment; filename=log.pdf\r\n\r\n" +
		"%PDF\r\n" +
		"--XYZ--\r\n"
	date := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	got := parseMessage(imapMessage(42, &imap.Envelope{
		Subject: "Build failed",
		Date:    date,
		From:    []*imap.Address{{MailboxName: "ada", HostName: "example.com"}},
		To:      []*imap.Address{{MailboxName: "bot", HostName: "example.com"}, {}},
	}, raw))

	assert.Equal(t, Mail{
		UID:     42,
		From:    "ada@example.com",
		To:      []string{"bot@example.com"},
		Subject: "Build failed",
		Date:    date,
		Text:    "The build is red.",
		HTML:    "<p>The build is red.</p>",
	}, got)
}

func TestParseMessage_HeaderFallbackAndCharset(t *testing.T) {
	raw := "From: Bob <bob@example.com>\r\n" +
		"Subject: Caf=E9\r\n" +
		"Content-Type: text/plain; charset=windows-1252\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n\r\n" +
		"Caf=E9 au lait"
	got := parseMessage(imapMessage(7, nil, raw))
	assert.Equal(t, uint32(7), got.UID)
	assert.Equal(t, "bob@example.com", got.From)
	assert.Equal(t, "Café au lait", got.Text)
}

func TestParseMessage_NoBody(t *testing.T) {
	got := parseMessage(&imap.Message{Uid: 1, Envelope: &imap.Envelope{Subject: "empty"}})
	assert.Equal(t, Mail{UID: 1, Subject: "empty"}, got)
}

func TestIncomingManager_StartFailsWhenDialFails(t *testing.T) {
	m := NewIncomingManager(IncomingConfig{Host: "imap.invalid", Port: 993})
	m.dial = func(string) (*client.Client, error) { return nil, errors.New("connection refused") }

	err := m.Start(context.Background())
	require.ErrorContains(t, err, "connection refused")

	// a failed start leaves the manager restartable
	m.dial = func(string) (*client.Client, error) { return nil, errors.New("still down") }
	assert.ErrorContains(t, m.Start(context.Background()), "still down")
}

func TestIncomingManager_ReconnectHonoursContext(t *testing.T) {
	m := NewIncomingManager(IncomingConfig{Host: "imap.invalid", Port: 993})
	m.dial = func(string) (*client.Client, error) { return nil, errors.New("down") }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.reconnectWithBackoff(ctx), context.DeadlineExceeded)
}

func TestIncomingManager_DeliverFansOut(t *testing.T) {
	m := NewIncomingManager(IncomingConfig{})
	var a, b []string
	m.Listen(func(msg Mail) { a = append(a, msg.Subject) })
	m.Listen(func(msg Mail) { b = append(b, msg.Subject) })

	m.deliver(Mail{Subject: "hello"})
	assert.Equal(t, []string{"hello"}, a)
	assert.Equal(t, []string{"hello"}, b)
	assert.Equal(t, "INBOX", m.cfg.Mailbox)
	assert.Equal(t, 30*time.Second, m.cfg.PollInterval)
}
