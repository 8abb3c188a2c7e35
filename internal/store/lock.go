package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gaia-notifier/internal/common/logger"
)

// releaseScript deletes the lock key only if this holder still owns it, so a
// slow run cannot release a lock a later run re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ScheduleLocker serializes dispatch runs per schedule with a redis SETNX
// lease. It implements dispatch.Locker.
type ScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

func NewScheduleLocker(client *redis.Client, ttl time.Duration, log logger.Logger) *ScheduleLocker {
	return &ScheduleLocker{client: client, ttl: ttl, log: log}
}

func (l *ScheduleLocker) key(scheduleID string) string {
	return "notifier:dispatch:" + scheduleID
}

// Acquire takes the lease for one schedule. When another run holds it the
// second return value is false and the caller should skip.
func (l *ScheduleLocker) Acquire(ctx context.Context, scheduleID string) (func(), bool, error) {
	token := uuid.New().String()
	key := l.key(scheduleID)

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The TTL covers us if the release itself fails.
		if err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			l.log.WithError(err).Warn("failed to release dispatch lock", map[string]interface{}{
				"scheduleId": scheduleID,
			})
		}
	}
	return release, true, nil
}
