package remote

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
)

// PutRecord captures one committed write, in commit order.
type PutRecord struct {
	Collection string
	Key        string
	Data       json.RawMessage
}

// MemoryStore is an in-process Store used by tests and local development.
// It supports change fan-out and error injection.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]json.RawMessage
	subs        map[string]map[int]func(Event)
	nextSub     int

	unavailable bool
	failNext    int
	rejecting   map[string]bool

	puts []PutRecord
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]json.RawMessage),
		subs:        make(map[string]map[int]func(Event)),
		rejecting:   make(map[string]bool),
	}
}

// SetUnavailable simulates a network partition while true.
func (s *MemoryStore) SetUnavailable(v bool) {
	s.mu.Lock()
	s.unavailable = v
	s.mu.Unlock()
}

// FailNext makes the next n operations fail with a transient error.
func (s *MemoryStore) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

// RejectWrites makes Put against the collection fail permanently, modelling
// a remote-side validation or permission rejection.
func (s *MemoryStore) RejectWrites(collection string, v bool) {
	s.mu.Lock()
	s.rejecting[collection] = v
	s.mu.Unlock()
}

// Puts returns committed writes in commit order.
func (s *MemoryStore) Puts() []PutRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PutRecord, len(s.puts))
	copy(out, s.puts)
	return out
}

func (s *MemoryStore) checkAvailable() error {
	if s.failNext > 0 {
		s.failNext--
		return appErrors.Clone(appErrors.ErrRemoteUnavailable, "injected transient failure")
	}
	if s.unavailable {
		return appErrors.Clone(appErrors.ErrRemoteUnavailable, "store unavailable")
	}
	return nil
}

// Get fetches a document.
func (s *MemoryStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return nil, err
	}
	data, ok := s.collections[collection][key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return &Document{Key: key, Data: data}, nil
}

// Query lists documents matching the filter by exact JSON field match.
func (s *MemoryStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(s.collections[collection]))
	for key, data := range s.collections[collection] {
		if len(filter) > 0 && !matches(data, filter) {
			continue
		}
		docs = append(docs, Document{Key: key, Data: data})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

// Put upserts a document and notifies subscribers.
func (s *MemoryStore) Put(ctx context.Context, collection, key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "encode document")
	}

	s.mu.Lock()
	if err := s.checkAvailable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.rejecting[collection] {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrRemoteRejected, "write rejected by store")
	}
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]json.RawMessage)
	}
	s.collections[collection][key] = data
	s.puts = append(s.puts, PutRecord{Collection: collection, Key: key, Data: data})
	fns := s.subscribers(collection)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(Event{Collection: collection, Type: EventPut, Key: key})
	}
	return nil
}

// Delete removes a document and notifies subscribers.
func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	if err := s.checkAvailable(); err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.collections[collection], key)
	fns := s.subscribers(collection)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(Event{Collection: collection, Type: EventDelete, Key: key})
	}
	return nil
}

// Subscribe registers a change callback for the collection.
func (s *MemoryStore) Subscribe(collection string, fn func(Event)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]func(Event))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[collection][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[collection], id)
	}, nil
}

func (s *MemoryStore) subscribers(collection string) []func(Event) {
	fns := make([]func(Event), 0, len(s.subs[collection]))
	for _, fn := range s.subs[collection] {
		fns = append(fns, fn)
	}
	return fns
}

func matches(data json.RawMessage, filter Filter) bool {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	for k, want := range filter {
		got, ok := fields[k]
		if !ok {
			return false
		}
		if str, ok := got.(string); !ok || str != want {
			return false
		}
	}
	return true
}
