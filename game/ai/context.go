package ai

import (
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/perception"
)

// Context is passed to every behavior tree node during a tick. It is
// rebuilt by the caller each tick; the engine never looks anything up
// on its own.
type Context struct {
	// Agent is the owning combatant. Opaque to the engine.
	Agent      any
	Target     Target
	Perception perception.Snapshot
	DeltaTime  float64 // seconds since last tick
	Now        float64 // owner clock, seconds
	Blackboard Blackboard
}

// Target is the weak reference to whatever the agent is fighting.
type Target struct {
	ID       string
	Position geom.Vec3
	Valid    bool
}

// NewContext returns a Context with an empty blackboard.
func NewContext(agent any, dt, now float64) *Context {
	return &Context{
		Agent:      agent,
		DeltaTime:  dt,
		Now:        now,
		Blackboard: Blackboard{},
	}
}

// Blackboard is the per-tick scratch space shared by the nodes of a tree.
type Blackboard map[string]any

func (b Blackboard) Set(key string, v any) { b[key] = v }

func (b Blackboard) Has(key string) bool {
	_, ok := b[key]
	return ok
}

func (b Blackboard) Bool(key string) bool {
	v, _ := b[key].(bool)
	return v
}

func (b Blackboard) Float(key string) float64 {
	switch v := b[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (b Blackboard) Str(key string) string {
	v, _ := b[key].(string)
	return v
}
