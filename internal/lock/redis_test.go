package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), mr.Addr(), ttl, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_LockSetsTokenWithExpiry(t *testing.T) {
	r, mr := newTestRedis(t, 10*time.Second)

	unlock, err := r.Lock(context.Background(), "user-1")
	require.NoError(t, err)

	key := keyPrefix + "user-1"
	require.True(t, mr.Exists(key))
	token, err := mr.Get(key)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 10*time.Second, mr.TTL(key))

	unlock()
	assert.False(t, mr.Exists(key))
}

func TestRedis_SameKeyExcludes(t *testing.T) {
	r, _ := newTestRedis(t, 10*time.Second)

	unlock, err := r.Lock(context.Background(), "user-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = r.Lock(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// other users are not blocked
	unlock2, err := r.Lock(context.Background(), "user-2")
	require.NoError(t, err)
	unlock2()

	acquired := make(chan func(), 1)
	go func() {
		u, err := r.Lock(context.Background(), "user-1")
		if err == nil {
			acquired <- u
		}
	}()

	select {
	case <-acquired:
		t.Fatal("lock taken while held")
	case <-time.After(120 * time.Millisecond):
	}

	unlock()
	select {
	case u := <-acquired:
		u()
	case <-time.After(2 * time.Second):
		t.Fatal("waiter did not get the lock after release")
	}
}

func TestRedis_ReleaseKeepsTakenOverLock(t *testing.T) {
	r, mr := newTestRedis(t, time.Second)
	key := keyPrefix + "user-1"

	unlockA, err := r.Lock(context.Background(), "user-1")
	require.NoError(t, err)
	tokenA, err := mr.Get(key)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(key))

	unlockB, err := r.Lock(context.Background(), "user-1")
	require.NoError(t, err)
	tokenB, err := mr.Get(key)
	require.NoError(t, err)
	require.NotEqual(t, tokenA, tokenB)

	// A's lease expired: its release must not drop B's lock
	unlockA()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, tokenB, got)

	unlockB()
	assert.False(t, mr.Exists(key))
}

func TestRedis_CancelledContext(t *testing.T) {
	r, _ := newTestRedis(t, 10*time.Second)

	unlock, err := r.Lock(context.Background(), "user-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Lock(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	l, closeFn, err := Open(context.Background(), "", DefaultTTL, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Local{}, l)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	l, closeFn, err = Open(context.Background(), mr.Addr(), DefaultTTL, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, l)
	assert.NoError(t, closeFn())

	mr.Close()
	_, _, err = Open(context.Background(), mr.Addr(), DefaultTTL, zap.NewNop())
	assert.Error(t, err)
}
