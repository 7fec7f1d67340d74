package email

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

var ErrNoRecipients = errors.New("email: at least one recipient is required")

type SendOptions struct {
	// From defaults to the configured sender.
	From    string
	To      []string
	Subject string
	Text    string
}

// Response reports what the server accepted.
type Response struct {
	MessageID string
	Accepted  []string
	Rejected  []string
}

// OutgoingManager delivers mail through one SMTP server.
type OutgoingManager struct {
	cfg     OutgoingConfig
	timeout time.Duration
	// tlsConfig is used for both implicit TLS and STARTTLS.
	tlsConfig *tls.Config
}

func NewOutgoingManager(cfg OutgoingConfig) (*OutgoingManager, error) {
	switch cfg.Provider {
	case ProviderGmail, ProviderSMTP:
	default:
		return nil, fmt.Errorf("%w: invalid email provider %q", ErrInvalidConfig, cfg.Provider)
	}
	return &OutgoingManager{
		cfg:       cfg,
		timeout:   30 * time.Second,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}, nil
}

// sanitizeHeaderValue strips CR and LF so values cannot inject headers.
func sanitizeHeaderValue(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

func newMessageID(host string) string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("<%s@%s>", hex.EncodeToString(b), host)
}

// buildMessage renders a text/plain RFC 5322 message.
func buildMessage(from string, opts SendOptions, messageID string, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.Set("Message-Id", messageID)

	fromRaw := sanitizeHeaderValue(from)
	if addrs, err := mail.ParseAddressList(fromRaw); err == nil && len(addrs) > 0 {
		h.SetAddressList("From", addrs)
	} else {
		h.Set("From", fromRaw)
	}

	var to []*mail.Address
	for _, raw := range opts.To {
		addrs, err := mail.ParseAddressList(sanitizeHeaderValue(raw))
		if err != nil {
			return nil, fmt.Errorf("email: invalid recipient %q: %w", raw, err)
		}
		to = append(to, addrs...)
	}
	h.SetAddressList("To", to)
	h.SetSubject(sanitizeHeaderValue(opts.Subject))
	h.Set("Content-Type", "text/plain; charset=utf-8")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("email build message: %w", err)
	}
	if _, err := w.Write([]byte(opts.Text)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("email write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("email close message: %w", err)
	}
	return buf.Bytes(), nil
}

// envelopeAddress returns the bare address used in MAIL FROM / RCPT TO.
func envelopeAddress(raw string) string {
	if a, err := mail.ParseAddress(sanitizeHeaderValue(raw)); err == nil {
		return a.Address
	}
	return sanitizeHeaderValue(strings.TrimSpace(raw))
}

func (m *OutgoingManager) Send(ctx context.Context, opts SendOptions) (*Response, error) {
	if len(opts.To) == 0 {
		return nil, ErrNoRecipients
	}
	from := opts.From
	if from == "" {
		from = m.cfg.From
	}
	if from == "" {
		from = m.cfg.User
	}

	resp := &Response{MessageID: newMessageID(domainOf(envelopeAddress(from)))}
	body, err := buildMessage(from, opts, resp.MessageID, time.Now())
	if err != nil {
		return nil, err
	}

	c, err := m.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if m.cfg.User != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)); err != nil {
				return nil, fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(envelopeAddress(from)); err != nil {
		return nil, fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range opts.To {
		addr := envelopeAddress(rcpt)
		if err := c.Rcpt(addr); err != nil {
			logger.WarnCF("email", "Recipient rejected", map[string]any{"to": addr, "error": err.Error()})
			resp.Rejected = append(resp.Rejected, addr)
			continue
		}
		resp.Accepted = append(resp.Accepted, addr)
	}
	if len(resp.Accepted) == 0 {
		return resp, fmt.Errorf("smtp rcpt: all recipients rejected")
	}

	w, err := c.Data()
	if err != nil {
		return nil, fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("smtp data close: %w", err)
	}
	if err := c.Quit(); err != nil {
		logger.DebugCF("email", "SMTP quit failed", map[string]any{"error": err.Error()})
	}

	logger.InfoCF("email", "Email sent", map[string]any{
		"message_id": resp.MessageID,
		"accepted":   len(resp.Accepted),
		"rejected":   len(resp.Rejected),
	})
	return resp, nil
}

// dial connects with implicit TLS when Secure is set, otherwise over plain
// TCP upgraded with STARTTLS when the server offers it.
func (m *OutgoingManager) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: m.timeout}

	var (
		conn net.Conn
		err  error
	)
	if m.cfg.Secure {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: m.tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.timeout))
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp new client: %w", err)
	}
	if !m.cfg.Secure {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(m.tlsConfig); err != nil {
				c.Close()
				return nil, fmt.Errorf("smtp starttls: %w", err)
			}
		} else {
			logger.WarnCF("email", "Server does not offer STARTTLS, connection is unencrypted", map[string]any{
				"host": m.cfg.Host,
			})
		}
	}
	return c, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		return addr[i+1:]
	}
	return ""
}
