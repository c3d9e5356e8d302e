package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/scc-edu/registry-sync/internal/models"
)

// MemoryQueueStore keeps queued writes in memory. It satisfies the durable
// store contract for tests and ephemeral runs; nothing survives a restart.
type MemoryQueueStore struct {
	mu      sync.Mutex
	records map[string]models.QueuedWrite
}

// NewMemoryQueueStore builds an empty in-memory store.
func NewMemoryQueueStore() *MemoryQueueStore {
	return &MemoryQueueStore{records: make(map[string]models.QueuedWrite)}
}

// List returns all stored records in enqueue order.
func (s *MemoryQueueStore) List(ctx context.Context) ([]models.QueuedWrite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writes := make([]models.QueuedWrite, 0, len(s.records))
	for _, w := range s.records {
		writes = append(writes, w)
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Seq < writes[j].Seq })
	return writes, nil
}

// Save upserts a record.
func (s *MemoryQueueStore) Save(ctx context.Context, w models.QueuedWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[w.ID] = w
	return nil
}

// Delete removes a record by id.
func (s *MemoryQueueStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
