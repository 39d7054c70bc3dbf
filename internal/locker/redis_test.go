package locker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = NewRedisClient(RedisConfig{Addr: mr.Addr()})
	assert.Error(t, err)
}

func TestRedisLocker_LockAndUnlock(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisLocker(client, RedisConfig{})

	unlock, err := l.Lock(context.Background(), "settle:p1")
	require.NoError(t, err)

	assert.True(t, mr.Exists(keyPrefix+"settle:p1"))
	assert.Equal(t, 30*time.Second, mr.TTL(keyPrefix+"settle:p1"))

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"settle:p1"))
}

func TestRedisLocker_Timeout(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewRedisLocker(client, RedisConfig{
		LockTTL:       time.Minute,
		RetryInterval: 5 * time.Millisecond,
		MaxWait:       30 * time.Millisecond,
	})

	unlock, err := l.Lock(context.Background(), "settle:p1")
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(context.Background(), "settle:p1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	// Other keys are independent.
	unlockOther, err := l.Lock(context.Background(), "settle:p2")
	require.NoError(t, err)
	unlockOther()
}

func TestRedisLocker_ContextCancel(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewRedisLocker(client, RedisConfig{
		LockTTL:       time.Minute,
		RetryInterval: 5 * time.Millisecond,
		MaxWait:       5 * time.Second,
	})

	unlock, err := l.Lock(context.Background(), "settle:p1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = l.Lock(ctx, "settle:p1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRedisLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewRedisLocker(client, RedisConfig{
		LockTTL:       time.Minute,
		RetryInterval: 5 * time.Millisecond,
		MaxWait:       2 * time.Second,
	})

	unlock, err := l.Lock(context.Background(), "settle:p1")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		unlock()
	}()

	unlock2, err := l.Lock(context.Background(), "settle:p1")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ExpiredLockNotReleasedByFormerHolder(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisLocker(client, RedisConfig{
		LockTTL:       time.Second,
		RetryInterval: 5 * time.Millisecond,
		MaxWait:       30 * time.Millisecond,
	})
	key := keyPrefix + "settle:p1"

	unlockFirst, err := l.Lock(context.Background(), "settle:p1")
	require.NoError(t, err)
	firstToken, err := mr.Get(key)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(key))

	unlockSecond, err := l.Lock(context.Background(), "settle:p1")
	require.NoError(t, err)
	secondToken, err := mr.Get(key)
	require.NoError(t, err)
	require.NotEqual(t, firstToken, secondToken)

	// The first holder's release must leave the second holder's lock alone.
	unlockFirst()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, secondToken, got)

	_, err = l.Lock(context.Background(), "settle:p1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlockSecond()
	assert.False(t, mr.Exists(key))
}
