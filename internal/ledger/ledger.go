// Package ledger implements the idempotency ledger: a read-mostly mapping
// from event id to terminal record snapshot. It guarantees at-most-once
// application of financial effects under client retries and duplicate
// deliveries. Entries expire after a retention window; genuine retries are
// expected to arrive within it.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
)

// MemoryLedger is an in-process ledger with TTL eviction. It backs tests and
// single-node deployments; RedisLedger is the shared variant.
type MemoryLedger struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	record    *models.TransactionRecord
	expiresAt time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

// RecordIfAbsent finalizes eventID with rec unless a snapshot already exists.
// Returns (true, nil) when the write won, (false, existing) when eventID was
// already finalized.
func (l *MemoryLedger) RecordIfAbsent(ctx context.Context, eventID string, rec *models.TransactionRecord) (bool, *models.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, ok := l.entries[eventID]; ok && now.Before(entry.expiresAt) {
		return false, entry.record.Clone(), nil
	}
	l.entries[eventID] = memoryEntry{record: rec.Clone(), expiresAt: now.Add(l.ttl)}
	l.evictExpired(now)
	return true, nil, nil
}

// Lookup returns the cached terminal record for eventID, or nil when the id
// is unknown or its entry expired.
func (l *MemoryLedger) Lookup(ctx context.Context, eventID string) (*models.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[eventID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(l.entries, eventID)
		return nil, nil
	}
	return entry.record.Clone(), nil
}

// evictExpired drops stale entries. Called with the lock held.
func (l *MemoryLedger) evictExpired(now time.Time) {
	for id, entry := range l.entries {
		if now.After(entry.expiresAt) {
			delete(l.entries, id)
		}
	}
}
