// Package spawn builds combat entities from archetype bundles.
package spawn

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/kasuganosora/combatcore/game/boss"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/perception"
	"github.com/kasuganosora/combatcore/game/tactic"
	"github.com/kasuganosora/combatcore/resource"
	"go.uber.org/zap"
)

// ErrUnknownVariant is returned for an archetype whose variant has no builder.
var ErrUnknownVariant = errors.New("spawn: unknown variant")

// Source resolves archetype names. *resource.Loader implements it.
type Source interface {
	Get(name string) (resource.Archetype, error)
}

// Spec describes one spawn request.
type Spec struct {
	Archetype string
	ID        string // empty generates "<archetype>-<n>"
	Position  geom.Vec3
	Facing    geom.Vec3 // zero faces +Z
}

// Callback runs after every successful spawn.
type Callback func(e *combat.Entity, a resource.Archetype)

// Option customizes a Factory.
type Option func(*Factory)

func WithLogger(l *zap.Logger) Option { return func(f *Factory) { f.logger = l } }

// WithSeed makes soldier randomness reproducible. Each soldier gets its own
// generator seeded from the factory's.
func WithSeed(seed int64) Option {
	return func(f *Factory) { f.rng = rand.New(rand.NewSource(seed)) }
}

// WithOccluder gives every spawned entity a line-of-sight test.
func WithOccluder(o perception.Occluder) Option { return func(f *Factory) { f.occluder = o } }

// Factory turns archetypes into live entities.
type Factory struct {
	source   Source
	logger   *zap.Logger
	occluder perception.Occluder

	mu        sync.Mutex
	rng       *rand.Rand
	seq       map[string]int
	callbacks []Callback
}

func NewFactory(source Source, opts ...Option) *Factory {
	f := &Factory{source: source, seq: make(map[string]int)}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return f
}

// OnSpawn registers cb for every later spawn.
func (f *Factory) OnSpawn(cb Callback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, cb)
}

// Spawn resolves spec.Archetype and builds the entity.
func (f *Factory) Spawn(spec Spec) (*combat.Entity, error) {
	a, err := f.source.Get(spec.Archetype)
	if err != nil {
		return nil, err
	}
	return f.Build(a, spec)
}

// Build creates an entity from an already resolved archetype.
func (f *Factory) Build(a resource.Archetype, spec Spec) (*combat.Entity, error) {
	f.mu.Lock()
	if spec.ID == "" {
		f.seq[a.Name]++
		spec.ID = a.Name + "-" + strconv.Itoa(f.seq[a.Name])
	}
	seed := f.rng.Int63()
	callbacks := append([]Callback(nil), f.callbacks...)
	f.mu.Unlock()

	cfg := EntityConfig(a, spec)
	cfg.Logger = f.logger
	var opts []combat.Option
	if f.occluder != nil {
		opts = append(opts, combat.WithOccluder(f.occluder))
	}

	var e *combat.Entity
	switch a.Variant {
	case resource.VariantRusher:
		rc := tactic.DefaultRusherConfig
		if a.Rusher != nil {
			rc = *a.Rusher
		}
		e = NewRusher(cfg, rc, append(opts, orchestration(a)...)...)
	case resource.VariantSoldier:
		sc := tactic.DefaultSoldierConfig
		if a.Soldier != nil {
			sc = *a.Soldier
		}
		e = NewSoldier(cfg, sc, rand.New(rand.NewSource(seed)), append(opts, orchestration(a)...)...)
	case resource.VariantInstructor:
		ic := boss.DefaultInstructorConfig
		if a.Instructor != nil {
			ic = *a.Instructor
		}
		enrage := boss.DefaultInstructorEnrage
		if a.Enrage != nil {
			enrage = *a.Enrage
		}
		var bopts []boss.Option
		if a.CatchUp {
			bopts = append(bopts, boss.CatchUp())
		}
		e = NewInstructor(cfg, ic, a.Phases, enrage, opts, bopts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, a.Variant)
	}

	f.logger.Info("entity spawned",
		zap.String("id", e.ID()),
		zap.String("archetype", a.Name),
		zap.String("variant", a.Variant))
	for _, cb := range callbacks {
		cb(e, a)
	}
	return e, nil
}

// orchestration gives a rank-and-file archetype that declares phases a boss
// orchestrator.
func orchestration(a resource.Archetype) []combat.Option {
	if len(a.Phases) == 0 && a.Enrage == nil {
		return nil
	}
	var enrage boss.Enrage
	if a.Enrage != nil {
		enrage = *a.Enrage
	}
	var bopts []boss.Option
	if a.CatchUp {
		bopts = append(bopts, boss.CatchUp())
	}
	return []combat.Option{combat.WithPhaseController(boss.New(a.Phases, enrage, bopts...))}
}

// EntityConfig maps an archetype onto a combat.Config.
func EntityConfig(a resource.Archetype, spec Spec) combat.Config {
	facing := spec.Facing
	if facing.IsZero() {
		facing = geom.V(0, 0, 1)
	}
	pc := a.Perception
	if pc == (perception.Config{}) {
		pc = perception.DefaultConfig
	}
	return combat.Config{
		ID:             spec.ID,
		Name:           a.Name,
		Variant:        a.Variant,
		Position:       spec.Position,
		Facing:         facing,
		MaxHealth:      a.MaxHealth,
		Armor:          a.Armor,
		Damage:         a.Damage,
		Movement:       a.Movement,
		Perception:     pc,
		AttackCooldown: a.AttackCooldown,
		MemorySeconds:  a.MemorySeconds,
		Patrol:         a.Patrol,
		Cover:          a.Cover,
	}
}

// NewRusher builds an aggressive melee entity.
func NewRusher(cfg combat.Config, rc tactic.RusherConfig, opts ...combat.Option) *combat.Entity {
	if cfg.Variant == "" {
		cfg.Variant = resource.VariantRusher
	}
	return combat.New(cfg, tactic.NewRusher(rc), opts...)
}

// NewSoldier builds a ranged, cover-seeking entity.
func NewSoldier(cfg combat.Config, sc tactic.SoldierConfig, rng *rand.Rand, opts ...combat.Option) *combat.Entity {
	if cfg.Variant == "" {
		cfg.Variant = resource.VariantSoldier
	}
	return combat.New(cfg, tactic.NewSoldier(sc, rng), opts...)
}

// NewInstructor builds the two-phase instructor boss. Nil phases use the
// default training/combat split.
func NewInstructor(cfg combat.Config, ic boss.InstructorConfig, phases []boss.Phase, enrage boss.Enrage, opts []combat.Option, bopts ...boss.Option) *combat.Entity {
	if cfg.Variant == "" {
		cfg.Variant = resource.VariantInstructor
	}
	in := boss.NewInstructor(ic, phases, enrage, bopts...)
	return combat.New(cfg, in, append(opts, combat.WithPhaseController(in.Orchestrator()))...)
}
