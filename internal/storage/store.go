package storage

import (
	"context"
	"sync"
)

// Store is the record persistence contract shared by the memory and
// Redis backends.
type Store interface {
	Put(ctx context.Context, record *StoredRecord) error
	Get(ctx context.Context, id string) (*StoredRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*StoredRecord, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*StoredRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*StoredRecord),
	}
}

func (s *MemoryStore) Put(_ context.Context, record *StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return ErrRecordNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*StoredRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	return records, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
