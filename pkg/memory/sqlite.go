package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS memories (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	room_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL DEFAULT '',
	agent_id   TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_room ON memories(room_id, seq);
`

// SQLiteStore keeps memories in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("memory: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite: %w", err)
	}
	// one writer keeps modernc happy under concurrent CreateMemory calls
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateMemory(ctx context.Context, m *Memory) error {
	if err := prepare(m); err != nil {
		return err
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return fmt.Errorf("memory: encode content: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, room_id, user_id, agent_id, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, m.UserID, m.AgentID, string(content), m.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("memory: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMemories(ctx context.Context, roomID string, limit int) ([]Memory, error) {
	query := `SELECT id, room_id, user_id, agent_id, content, created_at FROM (
		SELECT * FROM memories WHERE room_id = ? ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}

	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: query: %w", err)
	}
	defer rows.Close()

	out := []Memory{}
	for rows.Next() {
		var (
			m       Memory
			content string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.AgentID, &content, &created); err != nil {
			return nil, fmt.Errorf("memory: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(content), &m.Content); err != nil {
			return nil, fmt.Errorf("memory: decode content of %s: %w", m.ID, err)
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
