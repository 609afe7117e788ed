// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/medassist/medassist-client/internal/model"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	keyIdentity = "identity"
	keyMessages = "messages"
)

// ErrNotFound is returned when a cache key has no stored value.
var ErrNotFound = errors.New("cache: not found")

// =============================================================================
// STORE
// =============================================================================

// Store is the persistent session cache. It remembers the last known
// identity and the last mirrored timeline so a restart can show the
// prior conversation before the server is reachable.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// A single connection sidesteps sqlite write contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// =============================================================================
// IDENTITY
// =============================================================================

// Identity returns the cached identity, or ErrNotFound.
func (s *Store) Identity() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(keyIdentity)
}

// SaveIdentity records the identity the cached timeline belongs to.
func (s *Store) SaveIdentity(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(keyIdentity, identity)
}

// =============================================================================
// MESSAGES
// =============================================================================

// Messages returns the cached timeline, or ErrNotFound when nothing is
// stored.
func (s *Store) Messages() ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.get(keyMessages)
	if err != nil {
		return nil, err
	}
	var msgs []*model.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("decode cached messages: %w", err)
	}
	return msgs, nil
}

// SaveMessages mirrors the timeline into the cache.
func (s *Store) SaveMessages(msgs []*model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	return s.put(keyMessages, string(raw))
}

// Purge drops all cached state. Used on identity mismatch and sign-out
// so one account's conversation never leaks into another's view.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM kv`); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	return nil
}

// =============================================================================
// KV PRIMITIVES
// =============================================================================

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cache get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}
