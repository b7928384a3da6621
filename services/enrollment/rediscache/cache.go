package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
)

// cmdable is the part of redis.Cmdable the cache uses.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Enrollment caches IsEnrolled answers of the wrapped enrollment service.
// Enroll & Unenroll drop the cached answer. Cache failures fall back to the wrapped service.
type Enrollment struct {
	next   fee.Enrollment
	rdb    cmdable
	ttl    time.Duration
	logger core.Logger
}

var _ fee.Enrollment = (*Enrollment)(nil)

func New(next fee.Enrollment, rdb redis.Cmdable, ttl time.Duration, logger core.Logger) *Enrollment {
	return &Enrollment{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// NewClient connects to redis, returning nil when no address is configured.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	if conf.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: conf.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func cacheKey(userID int64, courseID string) string {
	return fmt.Sprintf("enrollment:%d:%s", userID, courseID)
}

func (e *Enrollment) IsEnrolled(ctx context.Context, userID int64, courseID string) (bool, error) {
	key := cacheKey(userID, courseID)
	val, err := e.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case err != redis.Nil:
		e.logger.Warn(fmt.Sprintf("reading enrollment cache: %v", err), err)
	}

	enrolled, err := e.next.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return false, err
	}
	val = "0"
	if enrolled {
		val = "1"
	}
	if err = e.rdb.Set(ctx, key, val, e.ttl).Err(); err != nil {
		e.logger.Warn(fmt.Sprintf("writing enrollment cache: %v", err), err)
	}
	return enrolled, nil
}

func (e *Enrollment) Enroll(ctx context.Context, userID int64, courseID string) error {
	defer e.forget(ctx, userID, courseID)
	return e.next.Enroll(ctx, userID, courseID)
}

func (e *Enrollment) Unenroll(ctx context.Context, userID int64, courseID string) error {
	defer e.forget(ctx, userID, courseID)
	return e.next.Unenroll(ctx, userID, courseID)
}

func (e *Enrollment) EnrolledAt(ctx context.Context, userID int64, courseID string) (time.Time, error) {
	return e.next.EnrolledAt(ctx, userID, courseID)
}

func (e *Enrollment) forget(ctx context.Context, userID int64, courseID string) {
	if err := e.rdb.Del(ctx, cacheKey(userID, courseID)).Err(); err != nil {
		e.logger.Warn(fmt.Sprintf("clearing enrollment cache: %v", err), err)
	}
}
