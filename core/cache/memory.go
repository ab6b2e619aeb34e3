// Sharded in-memory cache store. Sixteen shards keep readers from
// contending with writers under 100+ concurrent calculations.
package cache

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"premium-rating/internal/logging"
)

const shardCount = 16

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// MemoryStore is an in-process sharded cache store with a cron janitor
// sweeping expired entries.
type MemoryStore struct {
	shards  [shardCount]*memoryShard
	janitor *cron.Cron
}

// NewMemoryStore creates a memory store. An empty janitorSchedule
// disables the sweep; expired entries still never serve.
func NewMemoryStore(janitorSchedule string) (*MemoryStore, error) {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &memoryShard{entries: make(map[string]memoryEntry)}
	}

	if janitorSchedule != "" {
		s.janitor = cron.New(cron.WithSeconds())
		if _, err := s.janitor.AddFunc(janitorSchedule, s.sweep); err != nil {
			return nil, err
		}
		s.janitor.Start()
	}

	return s, nil
}

// Close stops the janitor
func (s *MemoryStore) Close() {
	if s.janitor != nil {
		s.janitor.Stop()
	}
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Get retrieves raw bytes; expired entries are a miss
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	sh := s.shard(key)
	sh.mu.RLock()
	entry, ok := sh.entries[key]
	sh.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores raw bytes with a TTL
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	sh := s.shard(key)
	sh.mu.Lock()
	sh.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	sh.mu.Unlock()
	return nil
}

// DeletePrefix removes all keys with the given prefix
func (s *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key := range sh.entries {
			if strings.HasPrefix(key, prefix) {
				delete(sh.entries, key)
			}
		}
		sh.mu.Unlock()
	}
	return nil
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	now := time.Now()
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			if !e.expired(now) {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n
}

// sweep evicts expired entries shard by shard
func (s *MemoryStore) sweep() {
	now := time.Now()
	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.expired(now) {
				delete(sh.entries, key)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	if evicted > 0 {
		logging.Sugar.Debugf("cache janitor evicted %d expired entries", evicted)
	}
}
