// Package redis is the Redis cache backend, used when several processes
// share one arena snapshot and event stream.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key or hash field does not exist.
var ErrNotFound = errors.New("cache: key not found")

const (
	pingTimeout   = 5 * time.Second
	subscriberBuf = 256
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

func dial(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// notFound maps goredis.Nil onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, goredis.Nil) {
		return ErrNotFound
	}
	return err
}

// Store keeps arena snapshots and the recent-event list in Redis.
type Store struct {
	rdb *goredis.Client
}

func NewStore(cfg Config) (*Store, error) {
	rdb, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	return v, notFound(err)
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	return s.rdb.HSet(ctx, key, field, value).Err()
}

// HSetMany sends one HSET with every field, so readers never observe half
// of a snapshot batch.
func (s *Store) HSetMany(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.rdb.HSet(ctx, key, fields).Err()
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := s.rdb.HGet(ctx, key, field).Result()
	return v, notFound(err)
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	return s.rdb.HDel(ctx, key, fields...).Err()
}

func (s *Store) LPush(ctx context.Context, key string, values ...string) error {
	return s.rdb.LPush(ctx, key, toArgs(values)...).Err()
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.rdb.LRange(ctx, key, start, stop).Result()
}

func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.rdb.LTrim(ctx, key, start, stop).Err()
}

// PushCapped runs LPUSH and LTRIM in one MULTI block.
func (s *Store) PushCapped(ctx context.Context, key string, limit int64, values ...string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, key, toArgs(values)...)
		if limit > 0 {
			pipe.LTrim(ctx, key, 0, limit-1)
		}
		return nil
	})
	return err
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// Message is a message received from a Redis channel.
type Message struct {
	Channel string
	Payload string
}

// PubSub carries combat events between processes.
type PubSub struct {
	rdb *goredis.Client
}

func NewPubSub(cfg Config) (*PubSub, error) {
	rdb, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &PubSub{rdb: rdb}, nil
}

func (p *PubSub) Publish(ctx context.Context, channel, message string) error {
	return p.rdb.Publish(ctx, channel, message).Err()
}

// Subscribe waits for the subscription to be confirmed before returning, so
// nothing published afterwards is missed. The channel closes when the
// returned cancel func runs or ctx ends.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	sub := p.rdb.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}
	out := make(chan *Message, subscriberBuf)
	done := make(chan struct{})
	go func() {
		defer close(out)
		in := sub.Channel(goredis.WithChannelSize(subscriberBuf))
		for {
			select {
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- &Message{Channel: msg.Channel, Payload: msg.Payload}:
				case <-done:
					return
				}
			case <-ctx.Done():
				_ = sub.Close()
				return
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}

func (p *PubSub) Close() error { return p.rdb.Close() }
