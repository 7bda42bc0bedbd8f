package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"parentslist/internal/middleware"
	"parentslist/internal/models"
	"parentslist/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	rdb       *redis.Client
	ttl       time.Duration
	maxWait   time.Duration
	retryWait time.Duration
}

// NewRedisLocker returns a locker whose leases expire after ttl. Callers wait at
// most maxWait before getting a CONFLICT error.
func NewRedisLocker(rdb *redis.Client, ttl, maxWait time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:       rdb,
		ttl:       ttl,
		maxWait:   maxWait,
		retryWait: 25 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	token := uuid.NewString()
	deadline := start.Add(l.maxWait)

	ctx, span := observability.TraceRedisOperation(ctx, "lock")
	defer span.End()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			span.RecordError(err)
			return nil, models.NewInternalError(err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, models.NewConflictError("list is busy, try again")
		}

		timer := time.NewTimer(l.retryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	observability.ListLockWait.WithLabelValues("redis").Observe(time.Since(start).Seconds())

	return func() {
		// Release must run even if the request context was cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "failed to release list lock",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}, nil
}
