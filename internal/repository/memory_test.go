package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
)

func testRecord(eventID string) *models.TransactionRecord {
	return models.NewTransactionRecord(events.TransactionRequest{
		EventID:       eventID,
		Type:          events.TypeWithdrawal,
		Amount:        decimal.NewFromFloat(25),
		SourceAccount: "01234567",
	}, []models.Leg{{Participant: "service-user", Account: "01234567", Operation: events.OpDebit}})
}

func TestMemoryStoreSaveAndLoad(t *testing.T) {
	store := NewMemoryRecordStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rec := testRecord("evt-1")
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Save(ctx, testRecord("evt-1")); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	loaded, err := store.Load(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.State != models.StateReceived || loaded.Revision != 1 {
		t.Errorf("unexpected loaded record: %+v", loaded)
	}
}

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	store := NewMemoryRecordStore()
	ctx := context.Background()

	rec := testRecord("evt-2")
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	updated := rec.Clone()
	updated.State = models.StateDispatched
	updated.Revision = 2
	if err := store.CompareAndSwap(ctx, updated, 1); err != nil {
		t.Fatalf("CAS with matching revision failed: %v", err)
	}

	// A writer holding the old revision must lose.
	stale := rec.Clone()
	stale.State = models.StateFailed
	stale.Revision = 2
	if err := store.CompareAndSwap(ctx, stale, 1); !errors.Is(err, ErrRevisionConflict) {
		t.Errorf("expected ErrRevisionConflict, got %v", err)
	}

	if err := store.CompareAndSwap(ctx, testRecord("nope"), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	loaded, _ := store.Load(ctx, "evt-2")
	if loaded.State != models.StateDispatched {
		t.Errorf("stale CAS must not apply, state is %s", loaded.State)
	}
}
