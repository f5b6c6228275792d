package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLockMutualExclusion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	a := NewRedisLock(client, "campaign-send:c1", time.Minute)
	b := NewRedisLock(client, "campaign-send:c1", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok, "second holder must not acquire a held lock")

	require.NoError(t, a.Release(ctx))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok, "lock should be free after release")
}

func TestRedisLockReleaseOnlyOwn(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	a := NewRedisLock(client, "campaign-send:c2", time.Minute)
	b := NewRedisLock(client, "campaign-send:c2", time.Minute)

	ok, _ := a.Acquire(ctx)
	require.True(t, ok)

	// b never acquired; releasing must not free a's lock.
	require.NoError(t, b.Release(ctx))

	ok, _ = b.Acquire(ctx)
	require.False(t, ok)
}
