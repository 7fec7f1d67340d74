package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each room as a Redis list of JSON records under
// prefix+roomID, so several agent processes can share one memory.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("memory: connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(room string) string {
	return s.prefix + room
}

func (s *RedisStore) CreateMemory(ctx context.Context, m *Memory) error {
	if err := prepare(m); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("memory: marshal record: %w", err)
	}
	if err := s.client.RPush(ctx, s.key(m.RoomID), data).Err(); err != nil {
		return fmt.Errorf("memory: rpush: %w", err)
	}
	return nil
}

func (s *RedisStore) GetMemories(ctx context.Context, roomID string, limit int) ([]Memory, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	vals, err := s.client.LRange(ctx, s.key(roomID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory: lrange: %w", err)
	}

	out := make([]Memory, 0, len(vals))
	for _, v := range vals {
		var m Memory
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("memory: decode record: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
