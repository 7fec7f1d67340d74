package email

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

func init() {
	// windows-1252 is common in mail from Outlook clients
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
}

const (
	reconnectBackoffInitial = 1 * time.Second
	reconnectBackoffMax     = 10 * time.Minute
	bodyPartMaxBytes        = 1 * 1024 * 1024
	idleRestart             = 25 * time.Minute
)

// Mail is a received message.
type Mail struct {
	UID     uint32
	From    string
	To      []string
	Subject string
	Date    time.Time
	Text    string
	HTML    string
}

// IncomingManager watches one IMAP mailbox and hands every new message to
// its listeners. Only mail that arrives after Start is delivered.
type IncomingManager struct {
	cfg IncomingConfig

	mu         sync.Mutex
	imapClient *client.Client
	lastUID    uint32
	listeners  []func(Mail)
	cancel     context.CancelFunc
	loopWg     sync.WaitGroup

	reconnectMu      sync.Mutex
	reconnectVersion int

	// dial is replaced in tests.
	dial func(addr string) (*client.Client, error)
}

func NewIncomingManager(cfg IncomingConfig) *IncomingManager {
	if cfg.Mailbox == "" {
		cfg.Mailbox = defaultMailbox
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollEvery
	}
	return &IncomingManager{
		cfg: cfg,
		dial: func(addr string) (*client.Client, error) {
			return client.DialTLS(addr, nil)
		},
	}
}

// Listen registers fn for every received message.
func (m *IncomingManager) Listen(fn func(Mail)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Start connects and begins watching in the background. The watch loop
// reconnects with backoff until Stop is called or ctx ends.
func (m *IncomingManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	if err := m.connect(); err != nil {
		cancel()
		m.mu.Lock()
		m.cancel = nil
		m.mu.Unlock()
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	m.loopWg.Add(1)
	go m.watch(runCtx)
	return nil
}

func (m *IncomingManager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()

	m.closeIMAPClient()
	m.loopWg.Wait()
	logger.InfoCF("email", "Stopped watching mailbox", map[string]any{"mailbox": m.cfg.Mailbox})
}

func (m *IncomingManager) connect() error {
	cl, err := m.dial(m.cfg.Addr())
	if err != nil {
		return err
	}
	if err := cl.Login(m.cfg.User, m.cfg.Pass); err != nil {
		_ = cl.Logout()
		return err
	}

	status, err := cl.Select(m.cfg.Mailbox, false)
	if err != nil {
		_ = cl.Logout()
		return fmt.Errorf("failed to select mailbox %s: %w", m.cfg.Mailbox, err)
	}

	m.mu.Lock()
	m.imapClient = cl
	if m.lastUID == 0 && status != nil && status.UidNext > 0 {
		m.lastUID = status.UidNext - 1
	}
	lastUID := m.lastUID
	m.mu.Unlock()

	logger.InfoCF("email", "Connected to IMAP server", map[string]any{
		"server":   m.cfg.Host,
		"mailbox":  m.cfg.Mailbox,
		"last_uid": lastUID,
	})
	return nil
}

func (m *IncomingManager) closeIMAPClient() {
	m.mu.Lock()
	cl := m.imapClient
	m.imapClient = nil
	m.mu.Unlock()
	if cl != nil {
		_ = cl.Logout()
	}
}

// reconnectWithBackoff replaces the current connection, retrying with
// exponential backoff. Concurrent callers share one reconnect.
func (m *IncomingManager) reconnectWithBackoff(ctx context.Context) error {
	m.mu.Lock()
	version := m.reconnectVersion
	m.mu.Unlock()

	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()

	m.mu.Lock()
	if version != m.reconnectVersion {
		ok := m.imapClient != nil && m.imapClient.State() == imap.SelectedState
		m.mu.Unlock()
		if ok {
			return nil
		}
	} else {
		m.mu.Unlock()
	}
	m.mu.Lock()
	m.reconnectVersion++
	m.mu.Unlock()

	m.closeIMAPClient()
	backoff := reconnectBackoffInitial
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := m.connect()
		if err == nil {
			return nil
		}
		logger.ErrorCF("email", "IMAP reconnect failed, retrying with backoff", map[string]any{
			"error":   err.Error(),
			"backoff": backoff.String(),
		})
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			backoff = min(backoff*2, reconnectBackoffMax)
		}
	}
}

func (m *IncomingManager) current() *client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imapClient
}

// watch runs IDLE cycles, checking for mail after every server update and
// whenever IDLE ends. go-imap falls back to polling at PollInterval when
// the server lacks IDLE.
func (m *IncomingManager) watch(ctx context.Context) {
	defer m.loopWg.Done()

	m.checkNewMail(ctx)

	opts := &client.IdleOptions{LogoutTimeout: idleRestart, PollInterval: m.cfg.PollInterval}
	updates := make(chan client.Update, 32)

	for ctx.Err() == nil {
		cl := m.current()
		if cl == nil || cl.State() != imap.SelectedState {
			if err := m.reconnectWithBackoff(ctx); err != nil {
				return
			}
			continue
		}

		cl.Updates = updates
		stop := make(chan struct{})
		idleDone := make(chan error, 1)
		go func() { idleDone <- cl.Idle(stop, opts) }()

		var err error
		select {
		case <-ctx.Done():
			close(stop)
			<-idleDone
			return
		case <-updates:
			close(stop)
			err = <-idleDone
		case err = <-idleDone:
		}
		cl.Updates = nil

		if err != nil {
			logger.WarnCF("email", "IDLE ended with error", map[string]any{"error": err.Error()})
			if err := m.reconnectWithBackoff(ctx); err != nil {
				return
			}
		}
		m.checkNewMail(ctx)
	}
}

// checkNewMail fetches every unseen message above lastUID, delivers it and
// marks it seen.
func (m *IncomingManager) checkNewMail(ctx context.Context) {
	for ctx.Err() == nil {
		m.mu.Lock()
		cl := m.imapClient
		lastUID := m.lastUID
		m.mu.Unlock()
		if cl == nil {
			return
		}
		if cl.State() != imap.SelectedState {
			if err := m.reconnectWithBackoff(ctx); err != nil {
				return
			}
			continue
		}

		criteria := imap.NewSearchCriteria()
		criteria.WithoutFlags = []string{imap.SeenFlag}
		if lastUID > 0 {
			uids := new(imap.SeqSet)
			uids.AddRange(lastUID+1, 0)
			criteria.Uid = uids
		}
		uids, err := cl.UidSearch(criteria)
		if err != nil {
			logger.ErrorCF("email", "Failed to search mailbox", map[string]any{"error": err.Error()})
			if err := m.reconnectWithBackoff(ctx); err != nil {
				return
			}
			continue
		}
		if len(uids) == 0 {
			return
		}

		set := new(imap.SeqSet)
		set.AddNum(uids...)
		messages := make(chan *imap.Message, 10)
		done := make(chan error, 1)
		section := &imap.BodySectionName{}
		go func() {
			done <- cl.UidFetch(set, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
		}()

		var maxUID uint32
		for msg := range messages {
			// UID n:* matches the newest message even when n is above it
			if msg.Uid <= lastUID {
				continue
			}
			maxUID = max(maxUID, msg.Uid)
			m.deliver(parseMessage(msg))

			seen := new(imap.SeqSet)
			seen.AddNum(msg.Uid)
			if err := cl.UidStore(seen, imap.FormatFlagsOp(imap.AddFlags, true), []any{imap.SeenFlag}, nil); err != nil {
				logger.DebugCF("email", "Failed to mark email as seen", map[string]any{
					"uid":   msg.Uid,
					"error": err.Error(),
				})
			}
		}
		if maxUID > 0 {
			m.mu.Lock()
			m.lastUID = max(m.lastUID, maxUID)
			m.mu.Unlock()
		}

		if err := <-done; err != nil {
			logger.ErrorCF("email", "Failed to fetch emails", map[string]any{"error": err.Error()})
			if err := m.reconnectWithBackoff(ctx); err != nil {
				return
			}
			continue
		}
		return
	}
}

func (m *IncomingManager) deliver(msg Mail) {
	m.mu.Lock()
	listeners := make([]func(Mail), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	logger.InfoCF("email", "Email received", map[string]any{
		"uid":     msg.UID,
		"from":    msg.From,
		"subject": msg.Subject,
	})
	for _, fn := range listeners {
		fn(msg)
	}
}

func formatAddress(a *imap.Address) string {
	if a == nil || a.MailboxName == "" {
		return ""
	}
	return a.MailboxName + "@" + a.HostName
}

// parseMessage extracts the envelope and the text and HTML bodies of msg.
func parseMessage(msg *imap.Message) Mail {
	out := Mail{UID: msg.Uid}
	if env := msg.Envelope; env != nil {
		out.Subject = env.Subject
		out.Date = env.Date
		if len(env.From) > 0 {
			out.From = formatAddress(env.From[0])
		}
		for _, a := range env.To {
			if s := formatAddress(a); s != "" {
				out.To = append(out.To, s)
			}
		}
	}

	body := msg.GetBody(&imap.BodySectionName{})
	if body == nil {
		return out
	}
	mr, err := mail.CreateReader(body)
	if err != nil {
		logger.DebugCF("email", "Failed to create mail reader", map[string]any{"error": err.Error()})
		return out
	}
	defer mr.Close()

	if out.Subject == "" {
		out.Subject, _ = mr.Header.Subject()
	}
	if out.From == "" {
		if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
			out.From = from[0].Address
		}
	}

	var text, html []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.DebugCF("email", "Failed to read email part", map[string]any{"error": err.Error()})
			break
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		data, err := io.ReadAll(io.LimitReader(p.Body, bodyPartMaxBytes))
		if err != nil {
			continue
		}
		s := strings.TrimSpace(string(data))
		if s == "" {
			continue
		}
		switch {
		case ct == "text/html":
			html = append(html, s)
		case strings.HasPrefix(ct, "text/"), ct == "":
			text = append(text, s)
		}
	}
	out.Text = strings.Join(text, "\n\n")
	out.HTML = strings.Join(html, "\n\n")
	return out
}
