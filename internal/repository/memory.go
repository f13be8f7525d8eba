package repository

import (
	"context"
	"sync"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
)

// MemoryRecordStore keeps records in process memory with the same CAS
// contract as the Postgres store.
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[string]*models.TransactionRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*models.TransactionRecord)}
}

func (s *MemoryRecordStore) Save(ctx context.Context, rec *models.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.EventID]; ok {
		return ErrAlreadyExists
	}
	s.records[rec.EventID] = rec.Clone()
	return nil
}

func (s *MemoryRecordStore) Load(ctx context.Context, eventID string) (*models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryRecordStore) CompareAndSwap(ctx context.Context, rec *models.TransactionRecord, expectedRevision uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.EventID]
	if !ok {
		return ErrNotFound
	}
	if current.Revision != expectedRevision {
		return ErrRevisionConflict
	}
	s.records[rec.EventID] = rec.Clone()
	return nil
}
