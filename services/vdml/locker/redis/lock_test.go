package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartport-go/services/vdml/locker"
	"smartport-go/services/vdml/locker/redis"
	"smartport-go/types"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func owner(port int) locker.Owner {
	return locker.Owner{Token: uuid.New(), Port: port, Type: types.DeviceGPS, Host: "brain", AtMs: 1700000000000}
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := setup(t)
	l := redis.NewLocker(client, "test:")
	ctx := context.Background()

	o := owner(3)
	unlock, ok, err := l.TryLock(ctx, "port:3", o, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:lock:port:3"))

	got, held, err := l.Owner(ctx, "port:3")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, o, got)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:port:3"))

	_, held, err = l.Owner(ctx, "port:3")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestRedisLocker_ContentionIsImmediate(t *testing.T) {
	_, client := setup(t)
	l1 := redis.NewLocker(client, "test:")
	l2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, ok, err := l1.TryLock(ctx, "port:5", owner(5), 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	_, ok, err = l2.TryLock(ctx, "port:5", owner(5), 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 200*time.Millisecond, "TryLock must not poll")

	require.NoError(t, unlock1(ctx))
	unlock2, ok, err := l2.TryLock(ctx, "port:5", owner(5), 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, client := setup(t)
	l := redis.NewLocker(client, "")
	ctx := context.Background()

	unlockOld, ok, err := l.TryLock(ctx, "port:1", owner(1), time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// TTL expiry hands the port to someone else.
	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(ctx, "port:1", owner(1), time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, unlockOld(ctx))
	assert.True(t, mr.Exists("smartport:lock:port:1"), "old owner must not delete the new lock")
}

func TestRedisLocker_BackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	l := redis.NewLocker(client, "test:")
	mr.Close()

	_, ok, err := l.TryLock(context.Background(), "port:2", owner(2), time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}
