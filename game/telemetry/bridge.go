// Package telemetry forwards entity events to the event bus, the recent-event
// list in the cache store and the persistent combat log.
package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/kasuganosora/combatcore/audit"
	"github.com/kasuganosora/combatcore/cache"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/event"
	"go.uber.org/zap"
)

const (
	// Channel is the pub/sub channel carrying every combat event as JSON.
	Channel = "combat.events"
	// EventLogKey is the capped list of recent events, newest first.
	EventLogKey = "arena:events"
)

// Record is the JSON form of one forwarded event.
type Record struct {
	Tick       uint64     `json:"tick"`
	EntityID   string     `json:"entity_id"`
	EntityName string     `json:"entity_name,omitempty"`
	Variant    string     `json:"variant,omitempty"`
	Kind       event.Kind `json:"kind"`
	Time       float64    `json:"time"`
	Payload    any        `json:"payload,omitempty"`
}

// Sink persists records. *audit.Service implements it.
type Sink interface {
	Log(entry audit.Entry) bool
}

// Options wires the bridge outputs. Any of them may be nil.
type Options struct {
	PubSub  cache.PubSub
	Store   cache.Store
	Sink    Sink
	LogSize int           // recent-event list length; 0 means 200
	Tick    func() uint64 // arena tick stamped on each record
	Buffer  int           // queued records awaiting publish; 0 means 1024
	Logger  *zap.Logger
}

// Bridge subscribes to entities and fans their events out. Handlers run on
// the tick goroutine and only enqueue; Run does the network I/O.
type Bridge struct {
	opts  Options
	queue chan []byte

	mu   sync.Mutex
	subs map[string]*event.Subscription

	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

func New(opts Options) *Bridge {
	if opts.LogSize <= 0 {
		opts.LogSize = 200
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tick == nil {
		opts.Tick = func() uint64 { return 0 }
	}
	return &Bridge{
		opts:  opts,
		queue: make(chan []byte, opts.Buffer),
		subs:  make(map[string]*event.Subscription),
	}
}

// Attach forwards every event of e until Detach. Attaching twice is a no-op.
func (b *Bridge) Attach(e *combat.Entity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[e.ID()]; ok {
		return
	}
	id, name, variant := e.ID(), e.Name(), e.Variant()
	b.subs[id] = e.On(event.All, func(ev event.Event) {
		b.forward(Record{
			Tick:       b.opts.Tick(),
			EntityID:   id,
			EntityName: name,
			Variant:    variant,
			Kind:       ev.Kind,
			Time:       ev.Time,
			Payload:    ev.Payload,
		})
	})
}

// Detach stops forwarding events of the entity with the given ID.
func (b *Bridge) Detach(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		sub.Unsubscribe()
	}
}

// Attached reports how many entities are being forwarded.
func (b *Bridge) Attached() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bridge) forward(r Record) {
	if b.opts.Sink != nil {
		b.opts.Sink.Log(audit.Entry{
			EntityID:   r.EntityID,
			EntityName: r.EntityName,
			Variant:    r.Variant,
			Kind:       string(r.Kind),
			Tick:       r.Tick,
			Payload:    r.Payload,
		})
	}
	if b.opts.PubSub == nil && b.opts.Store == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		b.opts.Logger.Warn("combat event not encodable", zap.String("kind", string(r.Kind)), zap.Error(err))
		return
	}
	select {
	case b.queue <- data:
		b.forwarded.Add(1)
	default:
		b.dropped.Add(1)
	}
}

// Stats returns the enqueued and dropped record counts.
func (b *Bridge) Stats() (forwarded, dropped uint64) {
	return b.forwarded.Load(), b.dropped.Load()
}

// Run publishes queued records until ctx is cancelled, then drains what is
// already queued.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case data := <-b.queue:
			b.publish(ctx, data)
		case <-ctx.Done():
			for {
				select {
				case data := <-b.queue:
					b.publish(context.Background(), data)
				default:
					return
				}
			}
		}
	}
}

func (b *Bridge) publish(ctx context.Context, data []byte) {
	msg := string(data)
	if b.opts.PubSub != nil {
		if err := b.opts.PubSub.Publish(ctx, Channel, msg); err != nil {
			b.opts.Logger.Warn("publish combat event failed", zap.Error(err))
		}
	}
	if b.opts.Store != nil {
		if err := b.opts.Store.PushCapped(ctx, EventLogKey, int64(b.opts.LogSize), msg); err != nil {
			b.opts.Logger.Warn("store combat event failed", zap.Error(err))
		}
	}
}

// Recent reads up to n records from the recent-event list, newest first.
// Records are returned as raw JSON so payloads keep their original shape.
func Recent(ctx context.Context, store cache.Store, n int) ([]json.RawMessage, error) {
	if n <= 0 {
		n = 50
	}
	items, err := store.LRange(ctx, EventLogKey, 0, int64(n-1))
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, s := range items {
		out = append(out, json.RawMessage(s))
	}
	return out, nil
}
