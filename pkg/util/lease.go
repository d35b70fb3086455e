package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SyncLease serializes sync runs per account across processes. A lease is a
// redis SETNX key with a TTL; losing redis fails open so an outage cannot
// stop mail ingestion (the dedup unique constraint is the backstop).
type SyncLease struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewSyncLease(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *SyncLease {
	return &SyncLease{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire tries to take the sync lease for an account.
// Returns true if this process may sync the account now.
func (l *SyncLease) Acquire(ctx context.Context, accountID string) bool {
	key := fmt.Sprintf("mailsync:lease:%s", accountID)

	ok, err := l.rdb.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("Redis lease check failed, allowing sync",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && l.logger != nil {
		l.logger.Info("Sync already in progress for account, skipping",
			zap.String("account_id", accountID),
			zap.String("lease_key", key),
		)
	}

	return ok
}

// Release drops the lease early so the next scheduled sync does not wait
// out the TTL.
func (l *SyncLease) Release(ctx context.Context, accountID string) {
	key := fmt.Sprintf("mailsync:lease:%s", accountID)
	if err := l.rdb.Del(ctx, key).Err(); err != nil && l.logger != nil {
		l.logger.Warn("Failed to release sync lease",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}
