package thread

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore is the managed-mode ControlStore backed by Postgres, so
// several relay instances behind a load balancer share ownership state.
// The thread_control table is created by `pagerelay migrate up`.
//
// Reads are served from a write-through cache warmed at startup;
// cross-instance convergence happens via the shared table on restart.
// Cross-delivery ordering on one conversation id is an accepted race,
// matching the platform's own lack of ordering guarantees.
type PGStore struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string]time.Time
}

// NewPGStore connects to Postgres and warms the ownership cache.
func NewPGStore(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PGStore{db: db, cache: make(map[string]time.Time)}
	if err := s.warmCache(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load thread control state: %w", err)
	}
	return s, nil
}

func (s *PGStore) warmCache() error {
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

func (s *PGStore) IsHumanControlled(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[conversationID]
	return ok
}

func (s *PGStore) SetHumanControlled(conversationID string) {
	now := time.Now()
	s.mu.Lock()
	s.cache[conversationID] = now
	s.mu.Unlock()

	if _, err := s.db.Exec(
		`INSERT INTO thread_control (conversation_id, touched_at) VALUES ($1, $2)
		 ON CONFLICT (conversation_id) DO UPDATE SET touched_at = EXCLUDED.touched_at`,
		conversationID, now,
	); err != nil {
		slog.Error("thread control write failed", "backend", "postgres", "error", err)
	}
}

func (s *PGStore) ClearHumanControlled(conversationID string) {
	s.mu.Lock()
	delete(s.cache, conversationID)
	s.mu.Unlock()

	if _, err := s.db.Exec(
		`DELETE FROM thread_control WHERE conversation_id = $1`, conversationID,
	); err != nil {
		slog.Error("thread control delete failed", "backend", "postgres", "error", err)
	}
}

func (s *PGStore) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	return ids
}

func (s *PGStore) EvictBefore(cutoff time.Time) int {
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
		`DELETE FROM thread_control WHERE touched_at < $1`, cutoff,
	); err != nil {
		slog.Error("thread control eviction failed", "backend", "postgres", "error", err)
	}
	return evicted
}

func (s *PGStore) Close() error { return s.db.Close() }
