package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreLocalTranslatesNotFound(t *testing.T) {
	s, err := NewStore(CacheConfig{LocalGCInterval: time.Minute})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.HGet(ctx, "arena:entities", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.HSet(ctx, "arena:entities", "e1", "{}"))
	v, err := s.HGet(ctx, "arena:entities", "e1")
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}

func TestNewPubSubLocal(t *testing.T) {
	ps, err := NewPubSub(CacheConfig{LocalPubSubBuf: 4})
	require.NoError(t, err)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "combat.events")
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, "combat.events", `{"kind":"death"}`))

	select {
	case msg := <-ch:
		assert.Equal(t, "combat.events", msg.Channel)
		assert.Equal(t, `{"kind":"death"}`, msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no message")
	}

	cancel()
	_, ok := <-ch
	for ok {
		_, ok = <-ch
	}
}
