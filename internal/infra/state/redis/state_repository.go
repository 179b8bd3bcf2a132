package redisstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
)

var _ repository.StateRepository = (*RedisStateRepository)(nil)

// RedisStateRepository is the Redis implementation of StateRepository.
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository creates a RedisStateRepository. keyPrefix
// namespaces every key; it defaults to "cc:".
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "cc:"
	}
	return &RedisStateRepository{client: client, keyPrefix: keyPrefix}
}

// --- Key helpers ---

func (r *RedisStateRepository) activityKey() string {
	return r.keyPrefix + "activity:pending"
}

func (r *RedisStateRepository) activityCollectKey() string {
	return r.keyPrefix + "activity:collecting"
}

func (r *RedisStateRepository) presenceKey(roomKey string) string {
	return r.keyPrefix + "presence:" + roomKey
}

func (r *RedisStateRepository) rateLimitKey(key string) string {
	return r.keyPrefix + "ratelimit:" + key
}

// MarkActivity stores the latest activity timestamp for the session in a
// pending hash consumed by the flush task.
func (r *RedisStateRepository) MarkActivity(ctx context.Context, sessionID string, at time.Time) error {
	err := r.client.HSet(ctx, r.activityKey(), sessionID, at.UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("redis: mark activity for session %q: %w", sessionID, err)
	}
	return nil
}

// CollectActivity atomically takes ownership of the pending hash by
// renaming it, then reads and deletes the renamed copy. Marks arriving
// during collection land in a fresh pending hash for the next cycle.
func (r *RedisStateRepository) CollectActivity(ctx context.Context) (map[string]time.Time, error) {
	err := r.client.Rename(ctx, r.activityKey(), r.activityCollectKey()).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) || err.Error() == "ERR no such key" {
			return map[string]time.Time{}, nil
		}
		return nil, fmt.Errorf("redis: rotate activity hash: %w", err)
	}

	raw, err := r.client.HGetAll(ctx, r.activityCollectKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read collected activity: %w", err)
	}
	if err := r.client.Del(ctx, r.activityCollectKey()).Err(); err != nil {
		logrus.WithError(err).Warn("redis: failed to delete collected activity hash")
	}

	marks := make(map[string]time.Time, len(raw))
	for sessionID, value := range raw {
		millis, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			logrus.WithFields(logrus.Fields{"session_id": sessionID, "value": value}).
				Warn("redis: skipping malformed activity timestamp")
			continue
		}
		marks[sessionID] = time.UnixMilli(millis)
	}
	return marks, nil
}

func (r *RedisStateRepository) SetRoomPresence(ctx context.Context, roomKey string, count int, ttl time.Duration) error {
	if count <= 0 {
		if err := r.client.Del(ctx, r.presenceKey(roomKey)).Err(); err != nil {
			return fmt.Errorf("redis: clear presence for room %q: %w", roomKey, err)
		}
		return nil
	}
	if err := r.client.Set(ctx, r.presenceKey(roomKey), count, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set presence for room %q: %w", roomKey, err)
	}
	return nil
}

// SessionPresence sums presence counts over every room key of the session.
func (r *RedisStateRepository) SessionPresence(ctx context.Context, sessionID string) (int, error) {
	pattern := r.presenceKey(sessionID + "::*")
	total := 0
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		value, err := r.client.Get(ctx, iter.Val()).Int()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return 0, fmt.Errorf("redis: read presence key %q: %w", iter.Val(), err)
		}
		total += value
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis: scan presence for session %q: %w", sessionID, err)
	}
	return total, nil
}

// CheckRateLimit implements a fixed-window counter: INCR plus EXPIRE on
// the first hit of the window.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := r.rateLimitKey(key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis: increment rate limit %q: %w", key, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("redis: expire rate limit %q: %w", key, err)
		}
	}
	return count > int64(limit), nil
}
