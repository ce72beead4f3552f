package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	s := NewStore(Config{GCInterval: time.Minute})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "key1", "value1", 0))
	v, err := s.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", v)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ttl_key", "val", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, err := s.Get(ctx, "ttl_key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepDropsExpiredKeys(t *testing.T) {
	s := NewStore(Config{GCInterval: 5 * time.Millisecond})
	defer s.Close()
	require.NoError(t, s.Set(context.Background(), "k", "v", time.Millisecond))

	assert.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		_, ok := s.kv["k"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestDelRemovesEveryKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Set(ctx, "k", "v", 0)
	_ = s.HSet(ctx, "h", "f", "v")
	_ = s.LPush(ctx, "l", "a")

	require.NoError(t, s.Del(ctx, "k", "h", "l"))

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	all, _ := s.HGetAll(ctx, "h")
	assert.Empty(t, all)
	l, _ := s.LRange(ctx, "l", 0, -1)
	assert.Empty(t, l)
}

func TestHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.HSet(ctx, "arena", "e1", "a"))
	require.NoError(t, s.HSet(ctx, "arena", "e2", "b"))

	v, err := s.HGet(ctx, "arena", "e1")
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	all, err := s.HGetAll(ctx, "arena")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"e1": "a", "e2": "b"}, all)

	require.NoError(t, s.HDel(ctx, "arena", "e1"))
	_, err = s.HGet(ctx, "arena", "e1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPushOrderAndTrim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LPush(ctx, "log", "a", "b"))
	require.NoError(t, s.LPush(ctx, "log", "c"))

	all, err := s.LRange(ctx, "log", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, all)

	require.NoError(t, s.LTrim(ctx, "log", 0, 1))
	all, _ = s.LRange(ctx, "log", 0, -1)
	assert.Equal(t, []string{"c", "b"}, all)

	tail, _ := s.LRange(ctx, "log", -1, -1)
	assert.Equal(t, []string{"b"}, tail)

	empty, _ := s.LRange(ctx, "log", 5, 10)
	assert.Empty(t, empty)
}

func TestHSetMany(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.HSet(ctx, "arena", "e1", "old"))
	require.NoError(t, s.HSetMany(ctx, "arena", map[string]string{"e1": "a", "e2": "b"}))
	require.NoError(t, s.HSetMany(ctx, "arena", nil))

	all, err := s.HGetAll(ctx, "arena")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"e1": "a", "e2": "b"}, all)
}

func TestPushCapped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1", "2", "3", "4"} {
		require.NoError(t, s.PushCapped(ctx, "events", 3, v))
	}
	l, err := s.LRange(ctx, "events", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "2"}, l)

	require.NoError(t, s.PushCapped(ctx, "all", 0, "a", "b"))
	l, _ = s.LRange(ctx, "all", 0, -1)
	assert.Equal(t, []string{"b", "a"}, l)
}
