// Package quota enforces per-user daily generation limits backed by Redis.
//
// The limiter counts generations per user per UTC day. When Redis is
// unreachable the limiter fails open: a quota backend outage must never
// take content generation down with it.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrQuotaExceeded is returned when a user has exhausted their daily
// generation allowance.
var ErrQuotaExceeded = errors.New("daily generation quota exceeded")

// Limiter gates generation requests against a per-user daily allowance.
type Limiter interface {
	// Allow consumes one unit of the user's daily quota.
	// Returns ErrQuotaExceeded when the allowance is exhausted.
	Allow(ctx context.Context, userID uuid.UUID) error
}

// RedisLimiter implements Limiter with a Redis counter per user per UTC day.
type RedisLimiter struct {
	client     *redis.Client
	dailyLimit int
	logger     *slog.Logger
	now        func() time.Time
}

// Ensure RedisLimiter implements Limiter
var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed daily limiter.
// If logger is nil, a default logger will be used.
func NewRedisLimiter(client *redis.Client, dailyLimit int, logger *slog.Logger) *RedisLimiter {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if dailyLimit <= 0 {
		panic("daily limit must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisLimiter{
		client:     client,
		dailyLimit: dailyLimit,
		logger:     logger.With(slog.String("component", "quota_limiter")),
		now:        time.Now,
	}
}

// Allow implements Limiter.Allow
// It increments the user's counter for the current UTC day and compares it
// against the daily limit. The counter key expires at the end of the day.
// Redis failures are logged and the request is allowed through.
func (l *RedisLimiter) Allow(ctx context.Context, userID uuid.UUID) error {
	log := l.logger

	day := l.now().UTC()
	key := dailyKey(userID, day)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		// Fail open: quota enforcement must not block generation when
		// the backend is unavailable.
		log.Warn("quota check failed, allowing request",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return nil
	}

	if count == 1 {
		ttl := endOfDay(day).Sub(day)
		if err := l.client.Expire(ctx, key, ttl).Err(); err != nil {
			log.Warn("failed to set quota key expiry",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	if count > int64(l.dailyLimit) {
		log.Info("daily generation quota exceeded",
			slog.String("user_id", userID.String()),
			slog.Int64("count", count),
			slog.Int("limit", l.dailyLimit))
		return fmt.Errorf("%w: limit of %d generations per day", ErrQuotaExceeded, l.dailyLimit)
	}

	return nil
}

// dailyKey builds the counter key for one user and one UTC day.
func dailyKey(userID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("quota:generation:%s:%s", userID, day.Format("2006-01-02"))
}

// endOfDay returns midnight UTC following the given instant.
func endOfDay(t time.Time) time.Time {
	year, month, dayOfMonth := t.UTC().Date()
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// NoopLimiter allows every request. Used when no Redis URL is configured.
type NoopLimiter struct{}

// Ensure NoopLimiter implements Limiter
var _ Limiter = (*NoopLimiter)(nil)

// Allow implements Limiter.Allow and never rejects.
func (NoopLimiter) Allow(context.Context, uuid.UUID) error {
	return nil
}
