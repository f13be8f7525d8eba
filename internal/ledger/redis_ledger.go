package ledger

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
	redisClient "github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/redis"
)

const keyPrefix = "ledger:"

// RedisLedger is the shared idempotency ledger. SetNX gives the
// compare-and-set-on-absent semantics; the TTL is the retention window.
type RedisLedger struct {
	cache *redisClient.SnapshotCache[models.TransactionRecord]
}

func NewRedisLedger(client *goredis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{
		cache: redisClient.NewSnapshotCache[models.TransactionRecord](client, ttl),
	}
}

func (l *RedisLedger) RecordIfAbsent(ctx context.Context, eventID string, rec *models.TransactionRecord) (bool, *models.TransactionRecord, error) {
	won, err := l.cache.SetIfAbsent(ctx, keyPrefix+eventID, rec)
	if err != nil {
		return false, nil, fmt.Errorf("ledger write failed: %w", err)
	}
	if won {
		return true, nil, nil
	}
	existing, ok := l.cache.Get(ctx, keyPrefix+eventID)
	if !ok {
		// Entry expired between SetNX and Get; treat the caller's record as
		// the surviving snapshot.
		return true, nil, nil
	}
	return false, existing, nil
}

func (l *RedisLedger) Lookup(ctx context.Context, eventID string) (*models.TransactionRecord, error) {
	rec, ok := l.cache.Get(ctx, keyPrefix+eventID)
	if !ok {
		return nil, nil
	}
	return rec, nil
}
