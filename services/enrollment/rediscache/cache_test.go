package rediscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeMock struct {
	data map[string]string
	err  error
}

func (s *storeMock) Get(_ context.Context, key string) *redis.StringCmd {
	if s.err != nil {
		return redis.NewStringResult("", s.err)
	}
	val, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (s *storeMock) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if s.err != nil {
		return redis.NewStatusResult("", s.err)
	}
	s.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (s *storeMock) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(s.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), s.err)
}

type enrollmentMock struct {
	enrolled map[string]bool
	calls    int
}

func (m *enrollmentMock) IsEnrolled(_ context.Context, userID int64, courseID string) (bool, error) {
	m.calls++
	return m.enrolled[cacheKey(userID, courseID)], nil
}

func (m *enrollmentMock) Enroll(_ context.Context, userID int64, courseID string) error {
	m.enrolled[cacheKey(userID, courseID)] = true
	return nil
}

func (m *enrollmentMock) Unenroll(_ context.Context, userID int64, courseID string) error {
	m.enrolled[cacheKey(userID, courseID)] = false
	return nil
}

func (m *enrollmentMock) EnrolledAt(context.Context, int64, string) (time.Time, error) {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

type loggerMock struct{ warnings int }

func (l *loggerMock) Debug(string, ...interface{}) {}
func (l *loggerMock) Info(string, ...interface{})  {}
func (l *loggerMock) Warn(string, ...interface{})  { l.warnings++ }
func (l *loggerMock) Error(string, ...interface{}) {}
func (l *loggerMock) Fatal(string, ...interface{}) {}

func newCache() (*Enrollment, *storeMock, *enrollmentMock, *loggerMock) {
	store := &storeMock{data: make(map[string]string)}
	next := &enrollmentMock{enrolled: make(map[string]bool)}
	logger := &loggerMock{}
	return &Enrollment{next: next, rdb: store, ttl: time.Minute, logger: logger}, store, next, logger
}

func TestEnrollment_IsEnrolledReadThrough(t *testing.T) {
	ctx := context.Background()
	cache, store, next, _ := newCache()
	next.enrolled[cacheKey(1, "course-v1:x")] = true

	for i := 0; i < 3; i++ {
		enrolled, err := cache.IsEnrolled(ctx, 1, "course-v1:x")
		require.NoError(t, err)
		assert.True(t, enrolled)
	}
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, "1", store.data[cacheKey(1, "course-v1:x")])
}

func TestEnrollment_UnenrollInvalidates(t *testing.T) {
	ctx := context.Background()
	cache, _, next, _ := newCache()
	next.enrolled[cacheKey(1, "course-v1:x")] = true

	enrolled, err := cache.IsEnrolled(ctx, 1, "course-v1:x")
	require.NoError(t, err)
	assert.True(t, enrolled)

	require.NoError(t, cache.Unenroll(ctx, 1, "course-v1:x"))
	enrolled, err = cache.IsEnrolled(ctx, 1, "course-v1:x")
	require.NoError(t, err)
	assert.False(t, enrolled)
	assert.Equal(t, 2, next.calls)
}

func TestEnrollment_CacheDown(t *testing.T) {
	ctx := context.Background()
	cache, store, next, logger := newCache()
	store.err = errors.New("connection refused")
	next.enrolled[cacheKey(2, "course-v1:y")] = true

	enrolled, err := cache.IsEnrolled(ctx, 2, "course-v1:y")
	require.NoError(t, err)
	assert.True(t, enrolled)
	assert.Equal(t, 2, logger.warnings) // read & write
}
