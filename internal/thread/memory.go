package thread

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

// MemoryStore is the default volatile ControlStore. State is sharded by
// conversation id so concurrent deliveries for different conversations
// never contend on one lock.
type MemoryStore struct {
	shards [shardCount]*memoryShard
}

type memoryShard struct {
	mu sync.RWMutex
	// conversation id → last touch time. Presence means human-controlled.
	entries map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &memoryShard{entries: make(map[string]time.Time)}
	}
	return s
}

func (s *MemoryStore) shard(conversationID string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) IsHumanControlled(conversationID string) bool {
	sh := s.shard(conversationID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.entries[conversationID]
	return ok
}

func (s *MemoryStore) SetHumanControlled(conversationID string) {
	sh := s.shard(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.entries[conversationID] = time.Now()
}

func (s *MemoryStore) ClearHumanControlled(conversationID string) {
	sh := s.shard(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.entries, conversationID)
}

func (s *MemoryStore) Snapshot() []string {
	var ids []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id := range sh.entries {
			ids = append(ids, id)
		}
		sh.mu.RUnlock()
	}
	return ids
}

func (s *MemoryStore) EvictBefore(cutoff time.Time) int {
	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, touched := range sh.entries {
			if touched.Before(cutoff) {
				delete(sh.entries, id)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

func (s *MemoryStore) Close() error { return nil }
