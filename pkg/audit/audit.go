// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

// Package audit keeps a tamper-evident, append-only record of action
// executions and orchestration runs. Each line carries an HMAC over its
// content and the previous line's hash.
package audit

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/HarshModi2005/realityspiral/pkg/config"
)

type EventType string

const (
	EventTypeActionExecution EventType = "action_execution"
	EventTypeOrchestration   EventType = "orchestration"
	EventTypePlanGenerated   EventType = "plan_generated"
	EventTypeRateLimitHit    EventType = "rate_limit_hit"
)

// Event is one audit line.
type Event struct {
	Timestamp    time.Time      `json:"timestamp"`
	EventType    EventType      `json:"event_type"`
	Actor        string         `json:"actor,omitempty"`
	Action       string         `json:"action"`
	Resource     string         `json:"resource,omitempty"` // room id
	Details      map[string]any `json:"details,omitempty"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	Hash         string         `json:"hash,omitempty"`
	PreviousHash string         `json:"previous_hash,omitempty"`
}

var ErrChainBroken = errors.New("audit chain broken")

// Logger appends events to a single file.
type Logger struct {
	path     string
	key      []byte
	mu       sync.Mutex
	file     *os.File
	lastHash string
}

// Open opens or creates the log at path and resumes its hash chain. An empty
// key gets a random one, which makes earlier files unverifiable after a
// restart.
func Open(path string, key []byte) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}

	last, err := lastHash(path)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &Logger{path: path, key: key, file: file, lastHash: last}, nil
}

// FromConfig opens the log named by cfg, or returns nil when auditing is
// disabled. A nil *Logger accepts and drops every event.
func FromConfig(cfg config.AuditConfig, dataDir string) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	path := cfg.Path
	if path == "" {
		path = filepath.Join(dataDir, "audit.log")
	}
	return Open(path, []byte(cfg.HMACKey))
}

func lastHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	data = bytes.TrimRight(data, "\n")
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	if len(data) == 0 {
		return "", nil
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return "", fmt.Errorf("%w: last line unreadable", ErrChainBroken)
	}
	return ev.Hash, nil
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Log appends ev, stamping the time and chaining its hash.
func (l *Logger) Log(ev Event) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.PreviousHash = l.lastHash
	ev.Hash = l.computeHash(ev)

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	l.lastHash = ev.Hash
	return nil
}

// LogAction records one handler invocation.
func (l *Logger) LogAction(action, actor, room string, err error, details map[string]any) error {
	ev := Event{
		EventType: EventTypeActionExecution,
		Actor:     actor,
		Action:    action,
		Resource:  room,
		Details:   details,
		Success:   err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return l.Log(ev)
}

// LogOrchestration records the outcome of one orchestration run.
func (l *Logger) LogOrchestration(room string, steps []string, completed int, err error) error {
	ev := Event{
		EventType: EventTypeOrchestration,
		Action:    "ORCHESTRATE",
		Resource:  room,
		Details: map[string]any{
			"steps":     steps,
			"completed": completed,
		},
		Success: err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return l.Log(ev)
}

func (l *Logger) computeHash(ev Event) string {
	details, _ := json.Marshal(ev.Details)
	signData := fmt.Sprintf("%s|%s|%s|%s|%s|%v|%s|%s|%s",
		ev.Timestamp.Format(time.RFC3339Nano),
		ev.EventType,
		ev.Actor,
		ev.Action,
		ev.Resource,
		ev.Success,
		ev.Error,
		details,
		ev.PreviousHash,
	)
	h := hmac.New(sha256.New, l.key)
	h.Write([]byte(signData))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain re-reads the file and checks every hash and link.
func (l *Logger) VerifyChain() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	prev := ""
	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return fmt.Errorf("%w: line %d unreadable: %v", ErrChainBroken, line, err)
		}
		if ev.PreviousHash != prev {
			return fmt.Errorf("%w: link mismatch at line %d", ErrChainBroken, line)
		}
		if !hmac.Equal([]byte(ev.Hash), []byte(l.computeHash(ev))) {
			return fmt.Errorf("%w: hash mismatch at line %d", ErrChainBroken, line)
		}
		prev = ev.Hash
	}
	return sc.Err()
}
