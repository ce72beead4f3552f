// Package combat implements the per-entity combat state machine: stats,
// transform, behavioral state, perception and the single behavior tree each
// hostile combatant owns.
package combat

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/kasuganosora/combatcore/game/ai"
	"github.com/kasuganosora/combatcore/game/event"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/perception"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Movement is the steering tuning of one combatant.
type Movement struct {
	WalkSpeed    float64 `json:"walk_speed" yaml:"walk_speed" toml:"walk_speed" validate:"gte=0"`
	RunSpeed     float64 `json:"run_speed" yaml:"run_speed" toml:"run_speed" validate:"gte=0"`
	ArriveRadius float64 `json:"arrive_radius" yaml:"arrive_radius" toml:"arrive_radius" validate:"gte=0"`
}

// CoverSpot is a position offering partial protection. Facing points away
// from the expected threat. Quality is a static bonus; the selection score
// is computed when a spot is chosen, never stored.
type CoverSpot struct {
	Position geom.Vec3 `json:"position" yaml:"position" toml:"position"`
	Facing   geom.Vec3 `json:"facing" yaml:"facing" toml:"facing"`
	Quality  float64   `json:"quality" yaml:"quality" toml:"quality"`
}

// TargetRef is a weak reference to the entity's opponent: identity plus
// the position the host last reported. It is never owned.
type TargetRef struct {
	ID       string    `json:"id"`
	Position geom.Vec3 `json:"position"`
}

// Config is the construction bundle handed over by a spawner.
type Config struct {
	ID       string
	Name     string
	Variant  string
	Position geom.Vec3
	Facing   geom.Vec3

	MaxHealth float64
	Health    float64 // 0 means full health
	Armor     float64
	Damage    float64

	Movement       Movement
	Perception     perception.Config
	AttackCooldown float64 // seconds
	MemorySeconds  float64 // forget an unseen target after this long; 0 uses the default

	Patrol []geom.Vec3
	Cover  []CoverSpot // shared, read-only

	Logger *zap.Logger
}

const defaultMemorySeconds = 8.0

// Option customizes an Entity during construction.
type Option func(*Entity)

// WithPhaseController attaches an orchestration component such as a boss
// phase controller.
func WithPhaseController(pc PhaseController) Option {
	return func(e *Entity) { e.phase = pc }
}

// WithOccluder plugs a world occlusion test into perception.
func WithOccluder(o perception.Occluder) Option {
	return func(e *Entity) { e.perception.Occluder = o }
}

// Entity is one hostile combatant. It is the sole mutator of its own
// fields and is driven by Update once per tick.
type Entity struct {
	id      string
	name    string
	variant string

	Position geom.Vec3
	Facing   geom.Vec3
	Velocity geom.Vec3

	health    float64
	maxHealth float64
	armor     float64

	baseDamage float64
	damage     float64
	movement   Movement
	speedMul   float64
	modifiers  map[string]Modifier
	modOrder   []string

	state     State
	prevState State
	machine   *fsm.FSM

	alive         bool
	stunned       bool
	stunRemaining float64
	preStun       State

	target       *TargetRef
	lastAttacker string
	perception   *perception.Model
	memory       float64

	patrol      patrolRoute
	cover       []CoverSpot
	activeCover *CoverSpot

	attackCooldown float64
	lastAttack     float64

	clock      float64
	lastDt     float64
	lastStatus ai.Status

	tactic Tactic
	phase  PhaseController
	tree   *ai.BehaviorTree
	events *event.Center
	logger *zap.Logger
}

// New builds an entity and its behavior tree. The tree is built once and
// reused for the entity's whole lifetime.
func New(cfg Config, tactic Tactic, opts ...Option) *Entity {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MemorySeconds <= 0 {
		cfg.MemorySeconds = defaultMemorySeconds
	}
	health := cfg.Health
	if health <= 0 || health > cfg.MaxHealth {
		health = cfg.MaxHealth
	}
	e := &Entity{
		id:             cfg.ID,
		name:           cfg.Name,
		variant:        cfg.Variant,
		Position:       cfg.Position,
		Facing:         cfg.Facing.Norm(),
		health:         health,
		maxHealth:      cfg.MaxHealth,
		armor:          math.Max(0, cfg.Armor),
		baseDamage:     cfg.Damage,
		damage:         cfg.Damage,
		movement:       cfg.Movement,
		speedMul:       1,
		modifiers:      make(map[string]Modifier),
		state:          StateIdle,
		prevState:      StateIdle,
		alive:          health > 0,
		perception:     perception.NewModel(cfg.Perception),
		memory:         cfg.MemorySeconds,
		patrol:         newPatrolRoute(cfg.Patrol),
		cover:          cfg.Cover,
		attackCooldown: cfg.AttackCooldown,
		lastAttack:     math.Inf(-1),
		tactic:         tactic,
		events:         event.NewCenter(),
		logger:         cfg.Logger.With(zap.String("entity", cfg.ID), zap.String("variant", cfg.Variant)),
	}
	e.machine = newMachine(e)
	if !e.alive {
		e.machine.SetState(StateDead.String())
		e.state = StateDead
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.phase != nil {
		e.phase.Attach(e)
	}
	e.tree = &ai.BehaviorTree{}
	if tactic != nil {
		e.tree.Root = tactic.BuildTree(e)
	}
	return e
}

// ---- Identity & accessors ----

func (e *Entity) ID() string                       { return e.id }
func (e *Entity) Name() string                     { return e.name }
func (e *Entity) Variant() string                  { return e.variant }
func (e *Entity) State() State                     { return e.state }
func (e *Entity) PreviousState() State             { return e.prevState }
func (e *Entity) Health() float64                  { return e.health }
func (e *Entity) MaxHealth() float64               { return e.maxHealth }
func (e *Entity) Armor() float64                   { return e.armor }
func (e *Entity) Alive() bool                      { return e.alive }
func (e *Entity) Stunned() bool                    { return e.stunned }
func (e *Entity) StunRemaining() float64           { return e.stunRemaining }
func (e *Entity) Clock() float64                   { return e.clock }
func (e *Entity) Tactic() Tactic                   { return e.tactic }
func (e *Entity) PhaseController() PhaseController { return e.phase }
func (e *Entity) Logger() *zap.Logger              { return e.logger }
func (e *Entity) Events() *event.Center            { return e.events }
func (e *Entity) LastStatus() ai.Status            { return e.lastStatus }
func (e *Entity) LastAttacker() string             { return e.lastAttacker }
func (e *Entity) Movement() Movement               { return e.movement }

// HealthFraction returns health / maxHealth, or 0 for a zero max.
func (e *Entity) HealthFraction() float64 {
	if e.maxHealth <= 0 {
		return 0
	}
	return e.health / e.maxHealth
}

// Perception returns the latest perception snapshot.
func (e *Entity) Perception() perception.Snapshot { return e.perception.Snapshot() }

// ---- Target ----

// SetTarget injects or refreshes the opponent reference. Hosts call it
// whenever the target moves.
func (e *Entity) SetTarget(ref TargetRef) {
	r := ref
	e.target = &r
}

// ClearTarget drops the opponent reference and the perception memory.
func (e *Entity) ClearTarget() {
	e.target = nil
	e.perception.Forget()
}

// Target returns the injected opponent reference.
func (e *Entity) Target() (TargetRef, bool) {
	if e.target == nil {
		return TargetRef{}, false
	}
	return *e.target, true
}

// TargetKnown reports whether the entity currently remembers a target.
func (e *Entity) TargetKnown() bool {
	return e.target != nil && e.perception.Snapshot().HasMemory
}

// AimPoint is where the entity believes its target is.
func (e *Entity) AimPoint() geom.Vec3 { return e.perception.Snapshot().LastKnownPosition }

// ---- State machine ----

// SetState moves to s. It is a no-op for the current state, for dead
// entities, and while stunned (only the stun itself may restore state).
// Reports whether a transition happened.
func (e *Entity) SetState(s State) bool {
	if s == e.state || !e.alive {
		return false
	}
	if e.stunned && s != StateDead {
		return false
	}
	return e.transition(s)
}

func (e *Entity) transition(s State) bool {
	from := e.state
	if err := e.machine.Event(context.Background(), transitionEvent(s)); err != nil {
		e.logger.Debug("transition rejected",
			zap.Stringer("from", from), zap.Stringer("to", s), zap.Error(err))
		return false
	}
	e.logger.Debug("state change", zap.Stringer("from", from), zap.Stringer("to", s))
	e.emit(event.StateChange, StateChangeInfo{From: from, To: s})
	return true
}

func (e *Entity) enterState(s State) {
	switch s {
	case StateIdle, StatePatrol, StateStunned, StateDead:
		e.Velocity = geom.Zero
	}
	if h, ok := e.tactic.(StateHooks); ok {
		h.OnEnter(e, s)
	}
}

func (e *Entity) exitState(s State) {
	if s == StateCover {
		e.activeCover = nil
	}
	if h, ok := e.tactic.(StateHooks); ok {
		h.OnExit(e, s)
	}
}

// ---- Tick ----

// Update runs one tick. Hosts must clamp dt; no sub-stepping happens here.
func (e *Entity) Update(dt float64) {
	if !e.alive || dt < 0 {
		return
	}
	e.clock += dt
	e.lastDt = dt

	if e.stunned {
		e.stunRemaining -= dt
		if e.stunRemaining <= 1e-9 {
			e.endStun()
		}
		return
	}

	if e.tactic != nil {
		e.tactic.Tick(e, dt)
	}
	if e.phase != nil {
		e.phase.Tick(e, dt)
	}
	if !e.alive || e.stunned {
		return
	}

	e.refreshPerception()

	if e.phase == nil || !e.phase.Suppressing() {
		e.lastStatus = e.tree.Tick(e.newContext(dt))
	}

	if e.alive && !e.stunned {
		e.Position = e.Position.Add(e.Velocity.Scale(dt))
	}
}

func (e *Entity) refreshPerception() {
	var pos *geom.Vec3
	if e.target != nil {
		p := e.target.Position
		pos = &p
	}
	snap := e.perception.Sense(e.Position, e.Facing, pos, e.clock)
	if snap.HasMemory && !snap.HasLineOfSight && snap.Since(e.clock) > e.memory {
		e.logger.Debug("target memory expired", zap.Float64("last_seen", snap.LastSeen))
		e.perception.Forget()
	}
}

func (e *Entity) newContext(dt float64) *ai.Context {
	ctx := ai.NewContext(e, dt, e.clock)
	snap := e.perception.Snapshot()
	ctx.Perception = snap
	if e.target != nil {
		ctx.Target = ai.Target{ID: e.target.ID, Position: snap.LastKnownPosition, Valid: snap.HasMemory}
	}
	return ctx
}

// AgentOf extracts the entity from a behavior tree context.
func AgentOf(ctx *ai.Context) *Entity {
	e, _ := ctx.Agent.(*Entity)
	return e
}

// ---- Snapshot ----

// Snapshot is a read-only copy of an entity for UI and telemetry.
type Snapshot struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Variant       string         `json:"variant"`
	State         string         `json:"state"`
	PreviousState string         `json:"previous_state"`
	Health        float64        `json:"health"`
	MaxHealth     float64        `json:"max_health"`
	Armor         float64        `json:"armor"`
	Damage        float64        `json:"damage"`
	Alive         bool           `json:"alive"`
	Stunned       bool           `json:"stunned"`
	Position      geom.Vec3      `json:"position"`
	Facing        geom.Vec3      `json:"facing"`
	Velocity      geom.Vec3      `json:"velocity"`
	Clock         float64        `json:"clock"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// Snapshot copies the observable state.
func (e *Entity) Snapshot() Snapshot {
	s := Snapshot{
		ID:            e.id,
		Name:          e.name,
		Variant:       e.variant,
		State:         e.state.String(),
		PreviousState: e.prevState.String(),
		Health:        e.health,
		MaxHealth:     e.maxHealth,
		Armor:         e.armor,
		Damage:        e.damage,
		Alive:         e.alive,
		Stunned:       e.stunned,
		Position:      e.Position,
		Facing:        e.Facing,
		Velocity:      e.Velocity,
		Clock:         e.clock,
	}
	for _, c := range []any{e.tactic, e.phase} {
		d, ok := c.(Describer)
		if !ok {
			continue
		}
		if s.Extra == nil {
			s.Extra = map[string]any{}
		}
		for k, v := range d.Describe() {
			s.Extra[k] = v
		}
	}
	return s
}
