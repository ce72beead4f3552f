// Package event is the observer layer of the combat core: each entity owns a
// Center, and scoring, loot, UI or telemetry systems subscribe to it without
// the entity knowing about them.
package event

import (
	"sort"
	"sync"
)

// Kind names a class of combat event.
type Kind string

const (
	Death         Kind = "death"
	Damage        Kind = "damage"
	StateChange   Kind = "state_change"
	AttackIntent  Kind = "attack"
	Grenade       Kind = "grenade"
	Enrage        Kind = "enrage"
	PhaseChange   Kind = "phase_change"
	VocalAlert    Kind = "vocal_alert"
	SpecialAttack Kind = "special_attack"
	TeachingTip   Kind = "teaching_tip"
	Demonstration Kind = "demonstration"

	// All subscribes to every kind.
	All Kind = "*"
)

// Event is one notification emitted by an entity.
type Event struct {
	Kind     Kind    `json:"kind"`
	SourceID string  `json:"source_id"`
	Time     float64 `json:"time"` // source entity clock, seconds
	Payload  any     `json:"payload,omitempty"`
}

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

type entry struct {
	id       uint64
	priority int
	fn       Handler
}

// Center manages handler registrations for one event source.
type Center struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Kind][]*entry
}

// NewCenter creates an empty Center.
func NewCenter() *Center {
	return &Center{handlers: make(map[Kind][]*entry)}
}

// Subscription is the handle returned by Subscribe. Unsubscribe is safe to
// call more than once and from inside a handler.
type Subscription struct {
	center *Center
	kind   Kind
	id     uint64
	once   sync.Once
}

// Unsubscribe removes the handler.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.center == nil {
		return
	}
	s.once.Do(func() { s.center.remove(s.kind, s.id) })
}

// Subscribe registers fn for kind with default priority.
func (c *Center) Subscribe(kind Kind, fn Handler) *Subscription {
	return c.SubscribePriority(kind, 0, fn)
}

// SubscribePriority registers fn for kind; lower priority runs first, ties
// keep registration order.
func (c *Center) SubscribePriority(kind Kind, priority int, fn Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	e := &entry{id: c.nextID, priority: priority, fn: fn}
	entries := append(c.handlers[kind], e)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	c.handlers[kind] = entries
	return &Subscription{center: c, kind: kind, id: e.id}
}

func (c *Center) remove(kind Kind, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.handlers[kind]
	n := 0
	for _, e := range entries {
		if e.id != id {
			entries[n] = e
			n++
		}
	}
	c.handlers[kind] = entries[:n]
}

// Emit delivers ev to the handlers of ev.Kind and then to All handlers.
// The handler list is copied first, so handlers may (un)subscribe freely.
func (c *Center) Emit(ev Event) {
	c.mu.RLock()
	entries := make([]*entry, 0, len(c.handlers[ev.Kind])+len(c.handlers[All]))
	entries = append(entries, c.handlers[ev.Kind]...)
	if ev.Kind != All {
		entries = append(entries, c.handlers[All]...)
	}
	c.mu.RUnlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// Count returns the number of handlers registered for kind.
func (c *Center) Count(kind Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers[kind])
}

// Clear drops every registration.
func (c *Center) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = make(map[Kind][]*entry)
}
