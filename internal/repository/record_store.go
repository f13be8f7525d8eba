package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrAlreadyExists    = errors.New("transaction already exists")
	ErrRevisionConflict = errors.New("revision conflict")
)

// uniqueViolation is the Postgres error code for duplicate primary keys.
const uniqueViolation = "23505"

// PostgresRecordStore persists TransactionRecord aggregates. It is the write
// store of truth; optimistic concurrency runs on the record revision.
type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

func (s *PostgresRecordStore) Save(ctx context.Context, rec *models.TransactionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	query := `
		INSERT INTO transaction_records (event_id, state, revision, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.EventID, string(rec.State), rec.Revision, body, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) Load(ctx context.Context, eventID string) (*models.TransactionRecord, error) {
	var body []byte
	query := `SELECT record FROM transaction_records WHERE event_id = $1`
	if err := s.db.QueryRowContext(ctx, query, eventID).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	var rec models.TransactionRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

// CompareAndSwap overwrites the stored record only while its revision still
// equals expectedRevision.
func (s *PostgresRecordStore) CompareAndSwap(ctx context.Context, rec *models.TransactionRecord, expectedRevision uint64) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	query := `
		UPDATE transaction_records
		SET state = $2, revision = $3, record = $4, updated_at = $5
		WHERE event_id = $1 AND revision = $6
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.EventID, string(rec.State), rec.Revision, body, time.Now().UTC(), expectedRevision,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrRevisionConflict
	}
	return nil
}
