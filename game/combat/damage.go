package combat

import (
	"math"

	"github.com/kasuganosora/combatcore/game/event"
	"github.com/kasuganosora/combatcore/game/geom"
	"go.uber.org/zap"
)

// ArmorAbsorbRatio is the largest share of one hit armor can soak.
const ArmorAbsorbRatio = 0.5

// TakeDamage runs the damage pipeline: armor absorbs up to half of the hit,
// the rest comes off health. A lethal hit kills; otherwise the tactic and
// then the phase controller react within this same call.
func (e *Entity) TakeDamage(amount float64, source string) {
	if !e.alive || amount <= 0 {
		return
	}
	absorbed := math.Min(e.armor, amount*ArmorAbsorbRatio)
	e.armor = math.Max(0, e.armor-absorbed)
	lost := amount - absorbed
	e.health = math.Max(0, e.health-lost)
	if source != "" {
		e.lastAttacker = source
	}

	info := DamageInfo{
		Amount:   amount,
		Absorbed: absorbed,
		Lost:     lost,
		Health:   e.health,
		Armor:    e.armor,
		Source:   source,
	}
	e.emit(event.Damage, info)

	if e.health <= 0 {
		e.Die(source)
		return
	}
	if e.tactic != nil {
		e.tactic.OnDamage(e, info)
	}
	if e.phase != nil && e.alive {
		e.phase.AfterDamage(e, info)
	}
}

// Heal restores health up to the maximum. Dead entities stay dead.
func (e *Entity) Heal(amount float64) {
	if !e.alive || amount <= 0 {
		return
	}
	e.health = math.Min(e.maxHealth, e.health+amount)
}

// Die kills the entity. Death observers fire exactly once.
func (e *Entity) Die(source string) {
	if !e.alive {
		return
	}
	e.alive = false
	e.stunned = false
	e.stunRemaining = 0
	e.health = 0
	e.Velocity = geom.Zero
	e.transition(StateDead)
	e.logger.Info("combatant died", zap.String("source", source))
	e.emit(event.Death, DeathInfo{Source: source, Position: e.Position})
}

// Stun freezes the entity for duration seconds and remembers the state to
// return to. Stunning a stunned entity only extends the remaining time.
func (e *Entity) Stun(duration float64) {
	if !e.alive || duration <= 0 {
		return
	}
	if e.stunned {
		if duration > e.stunRemaining {
			e.stunRemaining = duration
		}
		return
	}
	e.preStun = e.state
	e.stunned = true
	e.stunRemaining = duration
	e.Velocity = geom.Zero
	e.transition(StateStunned)
	e.logger.Debug("stunned", zap.Float64("duration", duration), zap.Stringer("resume", e.preStun))
}

func (e *Entity) endStun() {
	e.stunned = false
	e.stunRemaining = 0
	e.transition(e.preStun)
}

// PreStunState returns the state a stunned entity will return to.
func (e *Entity) PreStunState() State { return e.preStun }
