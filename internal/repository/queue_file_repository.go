package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scc-edu/registry-sync/internal/models"
)

// FileQueueStore persists queued writes as one JSON file per record under a
// base directory. File names embed the sequence number so enqueue order
// survives process restarts.
type FileQueueStore struct {
	dir string
}

// NewFileQueueStore ensures the directory exists and returns a handle.
func NewFileQueueStore(dir string) (*FileQueueStore, error) {
	if dir == "" {
		dir = "./queue"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}
	return &FileQueueStore{dir: dir}, nil
}

// List returns all stored records in enqueue order.
func (s *FileQueueStore) List(ctx context.Context) ([]models.QueuedWrite, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read queue directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	writes := make([]models.QueuedWrite, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read queue record %s: %w", name, err)
		}
		var w models.QueuedWrite
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode queue record %s: %w", name, err)
		}
		writes = append(writes, w)
	}
	return writes, nil
}

// Save upserts a record.
func (s *FileQueueStore) Save(ctx context.Context, w models.QueuedWrite) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode queue record %s: %w", w.ID, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, s.fileName(w)), raw, 0o644); err != nil {
		return fmt.Errorf("write queue record %s: %w", w.ID, err)
	}
	return nil
}

// Delete removes a record by id. Missing records are not an error.
func (s *FileQueueStore) Delete(ctx context.Context, id string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read queue directory: %w", err)
	}
	suffix := "-" + id + ".json"
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("delete queue record %s: %w", id, err)
			}
			return nil
		}
	}
	return nil
}

func (s *FileQueueStore) fileName(w models.QueuedWrite) string {
	return fmt.Sprintf("%012d-%s.json", w.Seq, w.ID)
}
