// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

package jetstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

// Config holds configuration for the JetStream stream.
type Config struct {
	StreamName string
	// Subjects captured by the stream, e.g. "spiral.memories.>".
	Subjects []string
	MaxAge   time.Duration
	MaxBytes int64
	Storage  nats.StorageType
}

func DefaultConfig() *Config {
	return &Config{
		StreamName: "SPIRAL_MEMORIES",
		Subjects:   []string{"spiral.memories.>"},
		MaxAge:     30 * 24 * time.Hour,
		MaxBytes:   1 << 30,
		Storage:    nats.FileStorage,
	}
}

// Store publishes payloads to a JetStream stream and reads them back per
// subject.
type Store struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	stream string
}

func NewStore(conn *nats.Conn) (*Store, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}
	return &Store{conn: conn, js: js}, nil
}

// Initialize creates the stream unless it already exists.
func (s *Store) Initialize(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s.stream = cfg.StreamName

	info, err := s.js.StreamInfo(cfg.StreamName)
	if err == nil {
		logger.DebugCF("memory", "JetStream stream already exists", map[string]any{
			"name": info.Config.Name,
		})
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = s.js.AddStream(&nats.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		Retention: nats.LimitsPolicy,
		Discard:   nats.DiscardOld,
		Storage:   cfg.Storage,
	})
	if err != nil {
		return fmt.Errorf("failed to add stream: %w", err)
	}

	logger.InfoCF("memory", "Created JetStream stream", map[string]any{
		"name":     cfg.StreamName,
		"subjects": fmt.Sprintf("%v", cfg.Subjects),
	})
	return nil
}

// Publish appends data under subject and waits for the stream ack.
func (s *Store) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := s.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// ReadAll returns every payload stored under subject, oldest first.
func (s *Store) ReadAll(ctx context.Context, subject string) ([][]byte, error) {
	sub, err := s.js.PullSubscribe(subject, "",
		nats.BindStream(s.stream),
		nats.DeliverAll(),
		nats.AckExplicit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	info, err := sub.ConsumerInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read consumer info: %w", err)
	}

	pending := int(info.NumPending)
	out := make([][]byte, 0, pending)
	for len(out) < pending {
		batch := pending - len(out)
		if batch > 256 {
			batch = 256
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		msgs, err := sub.Fetch(batch, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				break
			}
			return nil, fmt.Errorf("failed to fetch: %w", err)
		}
		for _, msg := range msgs {
			out = append(out, msg.Data)
			_ = msg.Ack()
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
