package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/HarshModi2005/realityspiral/pkg/memory/jetstream"
)

const subjectPrefix = "spiral.memories."

// StreamStore publishes every memory to a JetStream stream under
// spiral.memories.<room> and replays the subject on read.
type StreamStore struct {
	js       *jetstream.Store
	embedded *jetstream.EmbeddedServer
}

// OpenStream connects to url, or starts an embedded server storing data in
// storeDir when url is empty.
func OpenStream(url, storeDir, stream string) (*StreamStore, error) {
	var embedded *jetstream.EmbeddedServer
	if url == "" {
		srv, err := jetstream.StartEmbedded(storeDir)
		if err != nil {
			return nil, err
		}
		embedded = srv
		url = srv.ClientURL()
	}

	conn, err := nats.Connect(url, nats.Name("realityspiral-memory"))
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("memory: connect to nats: %w", err)
	}

	js, err := jetstream.NewStore(conn)
	if err == nil {
		cfg := jetstream.DefaultConfig()
		if stream != "" {
			cfg.StreamName = stream
		}
		err = js.Initialize(cfg)
	}
	if err != nil {
		conn.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("memory: %w", err)
	}
	return &StreamStore{js: js, embedded: embedded}, nil
}

// subjectFor encodes a room id as a single subject token.
func subjectFor(room string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return subjectPrefix + r.Replace(room)
}

func (s *StreamStore) CreateMemory(ctx context.Context, m *Memory) error {
	if err := prepare(m); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("memory: marshal record: %w", err)
	}
	return s.js.Publish(ctx, subjectFor(m.RoomID), data)
}

func (s *StreamStore) GetMemories(ctx context.Context, roomID string, limit int) ([]Memory, error) {
	payloads, err := s.js.ReadAll(ctx, subjectFor(roomID))
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	out := make([]Memory, 0, len(payloads))
	for _, p := range payloads {
		var m Memory
		if err := json.Unmarshal(p, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return tail(out, limit), nil
}

func (s *StreamStore) Close() error {
	err := s.js.Close()
	if s.embedded != nil {
		s.embedded.Shutdown()
	}
	return err
}
