package combat

import "github.com/kasuganosora/combatcore/game/ai"

// Tactic is the strategy object that gives an entity its behavior. The
// entity builds its single behavior tree from BuildTree at construction.
type Tactic interface {
	Name() string
	BuildTree(e *Entity) ai.Node
	// Tick advances tactic timers before perception and the tree run.
	Tick(e *Entity, dt float64)
	// OnDamage runs inside TakeDamage after the base pipeline, unless the
	// hit was lethal.
	OnDamage(e *Entity, info DamageInfo)
}

// StateHooks is implemented by tactics that layer extra work on state
// transitions. The entity's own bookkeeping always runs first.
type StateHooks interface {
	OnEnter(e *Entity, s State)
	OnExit(e *Entity, s State)
}

// PhaseController is an optional component that reacts to damage and can
// suspend decision making, as boss orchestration does.
type PhaseController interface {
	Attach(e *Entity)
	Tick(e *Entity, dt float64)
	AfterDamage(e *Entity, info DamageInfo)
	// Suppressing reports whether tree evaluation should be skipped this tick.
	Suppressing() bool
}

// Describer contributes extra fields to an entity snapshot.
type Describer interface {
	Describe() map[string]any
}
