package thread

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS thread_control (
	conversation_id TEXT PRIMARY KEY,
	touched_at      TIMESTAMP NOT NULL
);`

// SQLiteStore is the standalone persistent ControlStore. Ownership
// survives restarts without requiring a database server.
// Reads are served from a write-through cache; backend write failures
// are logged and the cache stays authoritative for the process lifetime.
type SQLiteStore struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string]time.Time
}

// NewSQLiteStore opens (creating if needed) the store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	s := &SQLiteStore{db: db, cache: make(map[string]time.Time)}
	if err := s.warmCache(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load thread control state: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) warmCache() error {
	rows, err := s.db.Query(`SELECT conversation_id, touched_at FROM thread_control`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var touched time.Time
		if err := rows.Scan(&id, &touched); err != nil {
			return err
		}
		s.cache[id] = touched
	}
	return rows.Err()
}

func (s *SQLiteStore) IsHumanControlled(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[conversationID]
	return ok
}

func (s *SQLiteStore) SetHumanControlled(conversationID string) {
	now := time.Now()
	s.mu.Lock()
	s.cache[conversationID] = now
	s.mu.Unlock()

	if _, err := s.db.Exec(
		`INSERT INTO thread_control (conversation_id, touched_at) VALUES (?, ?)
		 ON CONFLICT (conversation_id) DO UPDATE SET touched_at = excluded.touched_at`,
		conversationID, now,
	); err != nil {
		slog.Error("thread control write failed", "backend", "sqlite", "error", err)
	}
}

func (s *SQLiteStore) ClearHumanControlled(conversationID string) {
	s.mu.Lock()
	delete(s.cache, conversationID)
	s.mu.Unlock()

	if _, err := s.db.Exec(
		`DELETE FROM thread_control WHERE conversation_id = ?`, conversationID,
	); err != nil {
		slog.Error("thread control delete failed", "backend", "sqlite", "error", err)
	}
}

func (s *SQLiteStore) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	return ids
}

func (s *SQLiteStore) EvictBefore(cutoff time.Time) int {
	s.mu.Lock()
	evicted := 0
	for id, touched := range s.cache {
		if touched.Before(cutoff) {
			delete(s.cache, id)
			evicted++
		}
	}
	s.mu.Unlock()

	if _, err := s.db.Exec(
		`DELETE FROM thread_control WHERE touched_at < ?`, cutoff,
	); err != nil {
		slog.Error("thread control eviction failed", "backend", "sqlite", "error", err)
	}
	return evicted
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
