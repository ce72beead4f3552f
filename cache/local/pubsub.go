package local

import (
	"context"
	"sync"
	"sync/atomic"
)

// Message is an in-process pub/sub message.
type Message struct {
	Channel string
	Payload string
}

type subscriber struct {
	ch       chan *Message
	channels []string
}

// PubSub is an in-process fan-out pub/sub. Slow subscribers lose messages
// rather than stall the publisher.
type PubSub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscriber]struct{}
	bufSize int
	dropped atomic.Uint64
}

// NewPubSub creates a PubSub with the given per-subscriber buffer size.
func NewPubSub(bufSize int) *PubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &PubSub{
		subs:    make(map[string]map[*subscriber]struct{}),
		bufSize: bufSize,
	}
}

// Publish delivers message to every current subscriber of channel.
func (ps *PubSub) Publish(_ context.Context, channel, message string) error {
	msg := &Message{Channel: channel, Payload: message}
	// Held for the whole fan-out so cancel cannot close a channel mid-send.
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for s := range ps.subs[channel] {
		select {
		case s.ch <- msg:
		default:
			ps.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe returns one message stream for all channels and a cancel
// function that unsubscribes and closes the stream.
func (ps *PubSub) Subscribe(_ context.Context, channels ...string) (<-chan *Message, func(), error) {
	s := &subscriber{ch: make(chan *Message, ps.bufSize), channels: channels}

	ps.mu.Lock()
	for _, c := range channels {
		set, ok := ps.subs[c]
		if !ok {
			set = make(map[*subscriber]struct{})
			ps.subs[c] = set
		}
		set[s] = struct{}{}
	}
	ps.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ps.mu.Lock()
			defer ps.mu.Unlock()
			for _, c := range s.channels {
				delete(ps.subs[c], s)
				if len(ps.subs[c]) == 0 {
					delete(ps.subs, c)
				}
			}
			close(s.ch)
		})
	}
	return s.ch, cancel, nil
}

// Subscribers reports how many subscriptions channel currently has.
func (ps *PubSub) Subscribers(channel string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[channel])
}

// Dropped counts messages lost to full subscriber buffers.
func (ps *PubSub) Dropped() uint64 { return ps.dropped.Load() }
