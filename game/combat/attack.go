package combat

import (
	"github.com/kasuganosora/combatcore/game/event"
	"github.com/kasuganosora/combatcore/game/geom"
)

// AttackKind classifies an attack intent.
type AttackKind string

const (
	AttackMelee   AttackKind = "melee"
	AttackRound   AttackKind = "round" // one round of a burst
	AttackGrenade AttackKind = "grenade"
	AttackSpecial AttackKind = "special"
)

// Attack is an intent handed to the external weapon/damage module. The core
// never resolves hits itself.
type Attack struct {
	Kind        AttackKind `json:"kind"`
	Name        string     `json:"name,omitempty"`
	Damage      float64    `json:"damage"`
	TargetID    string     `json:"target_id,omitempty"`
	Origin      geom.Vec3  `json:"origin"`
	Aim         geom.Vec3  `json:"aim"`
	Unmitigated bool       `json:"unmitigated,omitempty"`
}

// AttackCooldown returns the interval between cooldown-gated attacks.
func (e *Entity) AttackCooldown() float64 { return e.attackCooldown }

// SetAttackCooldown changes the interval between attacks.
func (e *Entity) SetAttackCooldown(sec float64) { e.attackCooldown = sec }

// LastAttackAt returns the clock time of the last cooldown-gated attack.
func (e *Entity) LastAttackAt() float64 { return e.lastAttack }

// CanAttack reports whether the attack cooldown has elapsed.
func (e *Entity) CanAttack() bool {
	return e.clock-e.lastAttack >= e.attackCooldown-1e-9
}

// Attack starts the cooldown and emits an attack intent at the aim point.
func (e *Entity) Attack(kind AttackKind) Attack {
	e.lastAttack = e.clock
	return e.EmitAttack(Attack{Kind: kind, Damage: e.damage})
}

// EmitAttack fills in origin, target and aim when unset and publishes the
// intent without touching the cooldown. Bursts and throws use it directly.
func (e *Entity) EmitAttack(a Attack) Attack {
	a.Origin = e.Position
	if a.Aim.IsZero() {
		a.Aim = e.AimPoint()
	}
	if a.TargetID == "" && e.target != nil {
		a.TargetID = e.target.ID
	}
	kind := event.AttackIntent
	if a.Kind == AttackGrenade {
		kind = event.Grenade
	}
	e.emit(kind, a)
	return a
}
