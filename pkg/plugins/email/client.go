// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

package email

import (
	"context"
	"errors"
	"sync"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

var (
	ErrSendNotInitialized    = errors.New("Email service is not initialized for sending emails")
	ErrReceiveNotInitialized = errors.New("Email service is not initialized for receiving emails")
)

// Client owns the outgoing and incoming managers of one agent. Managers are
// built once, on the first successful Initialize.
type Client struct {
	settings Settings

	mu          sync.Mutex
	initialized bool
	outgoing    *OutgoingManager
	incoming    *IncomingManager
}

func NewClient(settings Settings) *Client {
	return &Client{settings: settings}
}

// Initialize validates both configurations and starts watching the mailbox
// when incoming mail is configured. A side that is not configured stays
// disabled; an invalid configuration is an error.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}

	inCfg, err := ValidateIncoming(c.settings)
	if err != nil {
		return err
	}
	outCfg, err := ValidateOutgoing(c.settings)
	if err != nil {
		return err
	}

	if outCfg != nil {
		if c.outgoing, err = NewOutgoingManager(*outCfg); err != nil {
			return err
		}
	} else {
		logger.WarnCF("email", "SMTP configuration is missing. Unable to send emails.", nil)
	}
	if inCfg != nil {
		incoming := NewIncomingManager(*inCfg)
		if err := incoming.Start(ctx); err != nil {
			c.outgoing = nil
			return err
		}
		c.incoming = incoming
	} else {
		logger.WarnCF("email", "IMAP configuration is missing. Unable to receive emails.", nil)
	}
	c.initialized = true

	logger.InfoCF("email", "Email service initialized successfully: "+status(c.incoming != nil)+"Incoming - "+status(c.outgoing != nil)+"Outgoing", nil)
	return nil
}

func status(ok bool) string {
	if ok {
		return "✅ "
	}
	return "❌ "
}

func (c *Client) Stop() {
	c.mu.Lock()
	incoming := c.incoming
	c.mu.Unlock()
	if incoming != nil {
		incoming.Stop()
	}
}

func (c *Client) CanSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outgoing != nil
}

func (c *Client) Send(ctx context.Context, opts SendOptions) (*Response, error) {
	c.mu.Lock()
	outgoing := c.outgoing
	c.mu.Unlock()
	if outgoing == nil {
		return nil, ErrSendNotInitialized
	}
	return outgoing.Send(ctx, opts)
}

func (c *Client) Receive(fn func(Mail)) error {
	c.mu.Lock()
	incoming := c.incoming
	c.mu.Unlock()
	if incoming == nil {
		return ErrReceiveNotInitialized
	}
	incoming.Listen(fn)
	return nil
}
