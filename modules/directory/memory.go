package directory

import (
	"context"
	"sync"

	"github.com/hodanmillion/TapIn2025-sub000/domain/chat"
)

// MemoryStore implements Store with in-process maps. It backs unit tests
// and single-node development runs; production deployments use RedisStore
// so that find-or-create is atomic across engine instances.
type MemoryStore struct {
	mu     sync.Mutex
	rooms  map[string]chat.Room
	counts map[string]int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:  make(map[string]chat.Room),
		counts: make(map[string]int64),
	}
}

func (s *MemoryStore) UpsertIfAbsent(_ context.Context, key string, record chat.Room) (chat.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rooms[key]; ok {
		return existing, false, nil
	}
	s.rooms[key] = record
	return record, true, nil
}

func (s *MemoryStore) AdjustUserCount(_ context.Context, roomID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.counts[roomID] + delta
	if count < 0 {
		count = 0
	}
	s.counts[roomID] = count
	return count, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (chat.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[key]
	if !ok {
		return chat.Room{}, ErrRoomNotFound
	}
	return room, nil
}
