package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, "spotlight:"), mr
}

func TestTryLockExcludesSecondHolder(t *testing.T) {
	l, _ := newLocker(t)
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, "presenter:1", time.Second)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "presenter:1", time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, unlock(ctx))
	unlock2, err := l.TryLock(ctx, "presenter:1", time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestUnlockDoesNotReleaseForeignLease(t *testing.T) {
	l, mr := newLocker(t)
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)

	// lease expired and someone else took it
	mr.FastForward(2 * time.Second)
	_, err = l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("spotlight:lock:k"))
}

func TestLockHonoursContext(t *testing.T) {
	l, _ := newLocker(t)
	_, err := l.TryLock(context.Background(), "busy", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "busy", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
