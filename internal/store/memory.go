package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Gateway = (*MemoryStore)(nil)

// MemoryStore is an in-memory Gateway. Documents are kept per collection in
// insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	name        string
	collections map[string][]Document
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:        name,
		collections: make(map[string][]Document),
		now:         time.Now,
	}
}

func (s *MemoryStore) CreateDocument(ctx context.Context, collection string, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storageErr("create", collection, err)
	}

	id := uuid.New().String()
	now := s.now().UTC()

	stored := make(Document, len(doc)+3)
	maps.Copy(stored, doc)
	stored[FieldID] = id
	stored[FieldCreatedAt] = now
	stored[FieldUpdatedAt] = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], stored)
	return id, nil
}

func (s *MemoryStore) GetDocuments(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("find", collection, err)
	}
	if err := checkFilter(filter); err != nil {
		return nil, storageErr("find", collection, err)
	}
	if limit <= 0 {
		return []Document{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := []Document{}
	for _, doc := range s.collections[collection] {
		if !matches(doc, filter) {
			continue
		}
		docs = append(docs, maps.Clone(doc))
		if len(docs) == limit {
			break
		}
	}
	return docs, nil
}

func (s *MemoryStore) ListCollections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("list collections", "", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.collections)), nil
}

func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) Close() error { return nil }

func matches(doc Document, filter Filter) bool {
	for field, want := range filter {
		got, ok := doc[field]
		if !ok || got != want {
			return false
		}
	}
	return true
}
