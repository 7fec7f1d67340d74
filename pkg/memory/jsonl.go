package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// JSONLStore keeps one append-only JSONL file per room:
//
//	{sanitized_room}.jsonl holds one JSON-encoded Memory per line
//
// A torn trailing line left by a crash is skipped on read.
type JSONLStore struct {
	dir   string
	locks sync.Map // map[string]*sync.Mutex, one per room
}

func NewJSONLStore(dir string) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: create directory: %w", err)
	}
	return &JSONLStore{dir: dir}, nil
}

func (s *JSONLStore) roomLock(room string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(room, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *JSONLStore) path(room string) string {
	return filepath.Join(s.dir, sanitizeKey(room)+".jsonl")
}

// sanitizeKey turns a room id into a safe filename component.
func sanitizeKey(key string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_", "..", "_")
	return r.Replace(key)
}

func (s *JSONLStore) CreateMemory(_ context.Context, m *Memory) error {
	if err := prepare(m); err != nil {
		return err
	}

	line, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("memory: marshal record: %w", err)
	}
	line = append(line, '\n')

	l := s.roomLock(m.RoomID)
	l.Lock()
	defer l.Unlock()

	f, err := os.OpenFile(s.path(m.RoomID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("memory: open jsonl for append: %w", err)
	}
	_, writeErr := f.Write(line)
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("memory: append record: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("memory: close jsonl: %w", closeErr)
	}
	return nil
}

func (s *JSONLStore) GetMemories(_ context.Context, roomID string, limit int) ([]Memory, error) {
	l := s.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	f, err := os.Open(s.path(roomID))
	if os.IsNotExist(err) {
		return []Memory{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: open jsonl: %w", err)
	}
	defer f.Close()

	var out []Memory
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m Memory
		if json.Unmarshal(line, &m) != nil {
			continue
		}
		out = append(out, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("memory: scan jsonl: %w", err)
	}
	return tail(out, limit), nil
}

func (s *JSONLStore) Close() error { return nil }
