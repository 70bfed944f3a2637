package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisLocker(t *testing.T) (*RedisRunLocker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRunLocker(client, time.Minute), mr
}

func TestRedisRunLocker_ExclusiveUntilUnlock(t *testing.T) {
	ctx := context.Background()
	l, mr := newMiniredisLocker(t)

	token, ok, err := l.TryLock(ctx, "42:R9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(runLockPrefix+"42:R9"))
	assert.Equal(t, time.Minute, mr.TTL(runLockPrefix+"42:R9"))

	_, ok, err = l.TryLock(ctx, "42:R9")
	require.NoError(t, err)
	assert.False(t, ok)

	// unrelated application is independent
	_, ok, err = l.TryLock(ctx, "43:R9")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Unlock(ctx, "42:R9", token))
	assert.False(t, mr.Exists(runLockPrefix+"42:R9"))

	_, ok, err = l.TryLock(ctx, "42:R9")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRunLocker_UnlockChecksOwnership(t *testing.T) {
	ctx := context.Background()
	l, mr := newMiniredisLocker(t)

	_, ok, err := l.TryLock(ctx, "42:R9")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Unlock(ctx, "42:R9", "someone-else"))
	assert.True(t, mr.Exists(runLockPrefix+"42:R9"))
}

func TestRedisRunLocker_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	l, mr := newMiniredisLocker(t)

	_, ok, err := l.TryLock(ctx, "42:R9")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	_, ok, err = l.TryLock(ctx, "42:R9")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRunLocker_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisRunLocker(db, time.Minute)

	mock.CustomMatch(func(expected, actual []interface{}) error { return nil }).
		ExpectSetNX(runLockPrefix+"42:R9", "ignored", time.Minute).
		SetErr(errors.New("READONLY You can't write against a read only replica"))

	_, ok, err := l.TryLock(context.Background(), "42:R9")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
