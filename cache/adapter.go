// Package cache selects the snapshot store and event bus backend: Redis when
// an address is configured, otherwise in-process.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kasuganosora/combatcore/cache/local"
	cacheredis "github.com/kasuganosora/combatcore/cache/redis"
)

// ErrNotFound is returned by Get and HGet for a missing key or field,
// whichever backend is in use.
var ErrNotFound = errors.New("cache: key not found")

// Store is the KV / Hash / List subset used for arena snapshots and the
// recent-event log.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	HSet(ctx context.Context, key, field, value string) error
	// HSetMany writes every field of a hash in one round trip.
	HSetMany(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error

	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	// PushCapped prepends values and trims the list to its newest limit
	// entries atomically.
	PushCapped(ctx context.Context, key string, limit int64, values ...string) error

	Close() error
}

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// PubSub defines channel publish/subscribe operations.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
}

// CacheConfig holds configuration for both backends.
type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

func (cfg CacheConfig) redis() cacheredis.Config {
	return cacheredis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// NewStore returns a Redis-backed Store if RedisAddr is set, otherwise an
// in-process one.
func NewStore(cfg CacheConfig) (Store, error) {
	if cfg.RedisAddr != "" {
		s, err := cacheredis.NewStore(cfg.redis())
		if err != nil {
			return nil, err
		}
		return &storeAdapter{Store: s, notFound: cacheredis.ErrNotFound}, nil
	}
	return &storeAdapter{Store: local.NewStore(local.Config{GCInterval: cfg.LocalGCInterval}), notFound: local.ErrNotFound}, nil
}

// NewPubSub returns a Redis-backed PubSub if RedisAddr is set, otherwise an
// in-process one.
func NewPubSub(cfg CacheConfig) (PubSub, error) {
	if cfg.RedisAddr != "" {
		rps, err := cacheredis.NewPubSub(cfg.redis())
		if err != nil {
			return nil, err
		}
		return &redisPubSubAdapter{ps: rps}, nil
	}
	return &localPubSubAdapter{ps: local.NewPubSub(cfg.LocalPubSubBuf)}, nil
}

// ---- adapters bridging backend types to this package ----

// storeAdapter maps the backend's not-found sentinel onto ErrNotFound.
type storeAdapter struct {
	Store
	notFound error
}

func (a *storeAdapter) translate(err error) error {
	if errors.Is(err, a.notFound) {
		return ErrNotFound
	}
	return err
}

func (a *storeAdapter) Get(ctx context.Context, key string) (string, error) {
	v, err := a.Store.Get(ctx, key)
	return v, a.translate(err)
}

func (a *storeAdapter) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := a.Store.HGet(ctx, key, field)
	return v, a.translate(err)
}

func forward[T any](in <-chan T, conv func(T) *Message) <-chan *Message {
	out := make(chan *Message, 256)
	go func() {
		defer close(out)
		for msg := range in {
			out <- conv(msg)
		}
	}()
	return out
}

type localPubSubAdapter struct {
	ps *local.PubSub
}

func (a *localPubSubAdapter) Publish(ctx context.Context, channel, message string) error {
	return a.ps.Publish(ctx, channel, message)
}

func (a *localPubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	ch, cancel, err := a.ps.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	return forward(ch, func(m *local.Message) *Message {
		return &Message{Channel: m.Channel, Payload: m.Payload}
	}), cancel, nil
}

type redisPubSubAdapter struct {
	ps *cacheredis.PubSub
}

func (a *redisPubSubAdapter) Publish(ctx context.Context, channel, message string) error {
	return a.ps.Publish(ctx, channel, message)
}

func (a *redisPubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	ch, cancel, err := a.ps.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	return forward(ch, func(m *cacheredis.Message) *Message {
		return &Message{Channel: m.Channel, Payload: m.Payload}
	}), cancel, nil
}
