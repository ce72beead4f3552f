// Package world hosts the arena: a sequential loop that feeds the target to
// every combatant, advances them in spawn order and reaps the dead.
package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/spawn"
	"go.uber.org/zap"
)

var (
	ErrQueueFull       = errors.New("world: command queue full")
	ErrDuplicateEntity = errors.New("world: duplicate entity id")
	ErrEntityNotFound  = errors.New("world: entity not found")
)

// Spawner builds entities; *spawn.Factory satisfies it.
type Spawner interface {
	Spawn(spec spawn.Spec) (*combat.Entity, error)
}

// Placement is a spawn request as the arena remembers it.
type Placement struct {
	Spec    spawn.Spec
	Respawn bool
}

// Options tunes an Arena. Zero values use the defaults.
type Options struct {
	MaxDelta     float64 // seconds; longer steps are clamped
	CommandQueue int
	Logger       *zap.Logger

	OnAdd    func(e *combat.Entity, p Placement)
	OnRemove func(e *combat.Entity, p Placement)
}

func (o Options) withDefaults() Options {
	if o.MaxDelta <= 0 {
		o.MaxDelta = 0.1
	}
	if o.CommandQueue <= 0 {
		o.CommandQueue = 64
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type slot struct {
	entity    *combat.Entity
	placement Placement
}

// Arena owns a set of entities and the single target they fight. Step is
// meant to be called from one goroutine; the read accessors are safe from
// any goroutine.
type Arena struct {
	mu       sync.RWMutex
	spawner  Spawner
	slots    map[string]*slot
	order    []string
	target   *combat.TargetRef
	clock    float64
	tick     atomic.Uint64
	commands chan Command
	opts     Options
	logger   *zap.Logger
}

func NewArena(spawner Spawner, opts Options) *Arena {
	opts = opts.withDefaults()
	return &Arena{
		spawner:  spawner,
		slots:    make(map[string]*slot),
		commands: make(chan Command, opts.CommandQueue),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Enqueue hands cmd to the tick goroutine. It never blocks.
func (a *Arena) Enqueue(cmd Command) error {
	select {
	case a.commands <- cmd:
		return nil
	default:
		a.logger.Warn("arena command dropped", zap.String("command", cmd.name))
		return ErrQueueFull
	}
}

// Step advances the arena by dt seconds.
func (a *Arena) Step(dt float64) {
	if dt < 0 {
		dt = 0
	}
	if dt > a.opts.MaxDelta {
		dt = a.opts.MaxDelta
	}

	a.mu.Lock()
	a.drain()
	a.tick.Add(1)
	a.clock += dt
	for _, id := range a.order {
		e := a.slots[id].entity
		if !e.Alive() {
			continue
		}
		if a.target != nil && a.target.ID != e.ID() {
			e.SetTarget(*a.target)
		} else {
			e.ClearTarget()
		}
		e.Update(dt)
	}
	removed := a.reap()
	a.mu.Unlock()

	for _, s := range removed {
		a.logger.Info("entity removed",
			zap.String("entity", s.entity.ID()),
			zap.Uint64("tick", a.tick.Load()))
		if a.opts.OnRemove != nil {
			a.opts.OnRemove(s.entity, s.placement)
		}
	}
}

// Stepper adapts Step to a wall-clock ticker such as scheduler.AddStepper.
func (a *Arena) Stepper() func(elapsed time.Duration) {
	return func(elapsed time.Duration) { a.Step(elapsed.Seconds()) }
}

func (a *Arena) drain() {
	for {
		select {
		case cmd := <-a.commands:
			if err := cmd.apply(a); err != nil {
				a.logger.Warn("arena command failed", zap.String("command", cmd.name), zap.Error(err))
			}
		default:
			return
		}
	}
}

// reap drops dead entities, keeping spawn order for the survivors.
func (a *Arena) reap() []*slot {
	var removed []*slot
	kept := a.order[:0]
	for _, id := range a.order {
		s := a.slots[id]
		if s.entity.Alive() {
			kept = append(kept, id)
			continue
		}
		delete(a.slots, id)
		removed = append(removed, s)
	}
	a.order = kept
	return removed
}

// Spawn builds an entity through the spawner and adds it.
func (a *Arena) Spawn(p Placement) (*combat.Entity, error) {
	a.mu.Lock()
	e, err := a.spawn(p)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	a.added(e, p)
	return e, nil
}

func (a *Arena) spawn(p Placement) (*combat.Entity, error) {
	if a.spawner == nil {
		return nil, fmt.Errorf("spawn %q: no spawner", p.Spec.Archetype)
	}
	if p.Spec.ID != "" {
		if _, ok := a.slots[p.Spec.ID]; ok {
			return nil, fmt.Errorf("spawn %q: %w", p.Spec.ID, ErrDuplicateEntity)
		}
	}
	e, err := a.spawner.Spawn(p.Spec)
	if err != nil {
		return nil, fmt.Errorf("spawn %q: %w", p.Spec.Archetype, err)
	}
	if err := a.add(e, p); err != nil {
		return nil, err
	}
	return e, nil
}

// Add inserts an already built entity.
func (a *Arena) Add(e *combat.Entity, p Placement) error {
	a.mu.Lock()
	err := a.add(e, p)
	a.mu.Unlock()
	if err == nil {
		a.added(e, p)
	}
	return err
}

func (a *Arena) add(e *combat.Entity, p Placement) error {
	if _, ok := a.slots[e.ID()]; ok {
		return fmt.Errorf("add %q: %w", e.ID(), ErrDuplicateEntity)
	}
	a.slots[e.ID()] = &slot{entity: e, placement: p}
	a.order = append(a.order, e.ID())
	return nil
}

func (a *Arena) added(e *combat.Entity, p Placement) {
	a.logger.Info("entity added",
		zap.String("entity", e.ID()),
		zap.String("archetype", e.Name()),
		zap.String("variant", e.Variant()))
	if a.opts.OnAdd != nil {
		a.opts.OnAdd(e, p)
	}
}

// Remove takes an entity out without killing it. OnRemove is not called.
func (a *Arena) Remove(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.slots[id]; !ok {
		return false
	}
	delete(a.slots, id)
	for i, oid := range a.order {
		if oid == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

// SetTarget sets the opponent injected into every entity on the next step.
func (a *Arena) SetTarget(ref combat.TargetRef) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target = &ref
}

func (a *Arena) ClearTarget() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target = nil
}

func (a *Arena) Target() (combat.TargetRef, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.target == nil {
		return combat.TargetRef{}, false
	}
	return *a.target, true
}

// Snapshot copies every entity, sorted by ID.
func (a *Arena) Snapshot() []combat.Snapshot {
	a.mu.RLock()
	out := make([]combat.Snapshot, 0, len(a.slots))
	for _, s := range a.slots {
		out = append(out, s.entity.Snapshot())
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entity copies one entity.
func (a *Arena) Entity(id string) (combat.Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.slots[id]
	if !ok {
		return combat.Snapshot{}, false
	}
	return s.entity.Snapshot(), true
}

func (a *Arena) Tick() uint64 { return a.tick.Load() }

// Clock is the simulated time in seconds, the sum of clamped steps.
func (a *Arena) Clock() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.clock
}

func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.slots)
}
