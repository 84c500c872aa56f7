package indexstore

import (
	"context"
	"sync"

	"github.com/sh3r4rd/object_index/internal/model"
)

// MemoryStore keeps records in a map. It backs tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]model.IndexRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.IndexRecord)}
}

func (s *MemoryStore) Lookup(_ context.Context, filename string) (model.IndexRecord, bool, error) {
	if filename == "" {
		return model.IndexRecord{}, false, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[filename]
	return rec, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, rec model.IndexRecord) error {
	if rec.Filename == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Filename] = rec
	return nil
}

func (s *MemoryStore) PutIf(_ context.Context, rec model.IndexRecord, prev *model.IndexRecord) error {
	if rec.Filename == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.Filename]
	switch {
	case prev == nil && ok:
		return ErrConflict
	case prev != nil && (!ok || !matches(stored, *prev)):
		return ErrConflict
	}

	s.records[rec.Filename] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, filename string) error {
	if filename == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, filename)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}
