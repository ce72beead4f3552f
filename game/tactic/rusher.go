// Package tactic holds the strategies that give rank-and-file combatants
// their behavior: the aggressive melee Rusher and the cover-seeking Soldier.
package tactic

import (
	"github.com/kasuganosora/combatcore/game/ai"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/event"
	"go.uber.org/zap"
)

// RusherConfig tunes the Rusher strategy.
type RusherConfig struct {
	NearDistance       float64 `json:"near_distance" yaml:"near_distance" toml:"near_distance" validate:"gte=0"`
	EnrageThreshold    float64 `json:"enrage_threshold" yaml:"enrage_threshold" toml:"enrage_threshold" validate:"gte=0,lte=1"`
	FrenzySpeed        float64 `json:"frenzy_speed" yaml:"frenzy_speed" toml:"frenzy_speed" validate:"gte=0"`
	VocalAlertInterval float64 `json:"vocal_alert_interval" yaml:"vocal_alert_interval" toml:"vocal_alert_interval" validate:"gte=0"`
	// AttackInterval seeds the entity cooldown when its own is zero.
	AttackInterval float64 `json:"attack_interval" yaml:"attack_interval" toml:"attack_interval" validate:"gte=0"`
}

// DefaultRusherConfig is applied field by field where a bundle leaves zeros.
var DefaultRusherConfig = RusherConfig{
	NearDistance:       2,
	EnrageThreshold:    0.3,
	FrenzySpeed:        1.5,
	VocalAlertInterval: 5,
	AttackInterval:     1,
}

func (c RusherConfig) withDefaults() RusherConfig {
	if c.NearDistance <= 0 {
		c.NearDistance = DefaultRusherConfig.NearDistance
	}
	if c.EnrageThreshold <= 0 {
		c.EnrageThreshold = DefaultRusherConfig.EnrageThreshold
	}
	if c.FrenzySpeed <= 0 {
		c.FrenzySpeed = DefaultRusherConfig.FrenzySpeed
	}
	if c.VocalAlertInterval <= 0 {
		c.VocalAlertInterval = DefaultRusherConfig.VocalAlertInterval
	}
	if c.AttackInterval <= 0 {
		c.AttackInterval = DefaultRusherConfig.AttackInterval
	}
	return c
}

// Rusher closes the distance and hits on a cooldown. Below the enrage
// threshold it speeds up, attacks twice as often and keeps shouting for
// help.
type Rusher struct {
	cfg        RusherConfig
	enraged    bool
	alertTimer float64
}

// NewRusher creates the strategy. One instance per entity.
func NewRusher(cfg RusherConfig) *Rusher {
	return &Rusher{cfg: cfg.withDefaults()}
}

func (r *Rusher) Name() string { return "rusher" }

// Enraged reports whether the frenzy has triggered.
func (r *Rusher) Enraged() bool { return r.enraged }

// Config returns the effective tuning.
func (r *Rusher) Config() RusherConfig { return r.cfg }

func (r *Rusher) BuildTree(e *combat.Entity) ai.Node {
	if e.AttackCooldown() <= 0 {
		e.SetAttackCooldown(r.cfg.AttackInterval)
	}
	return ai.NewSelector(
		ai.NewSequence(
			combat.HasTarget(),
			ai.NewSelector(
				ai.NewSequence(
					ai.If(func(ctx *ai.Context) bool {
						return e.DistanceTo(ctx.Target.Position) > r.cfg.NearDistance
					}),
					combat.Chase(e),
				),
				ai.Do(func(ctx *ai.Context) ai.Status { return r.strike(e, ctx) }),
			),
		),
		combat.Investigate(e),
		combat.IdleOrPatrol(e),
	)
}

func (r *Rusher) strike(e *combat.Entity, ctx *ai.Context) ai.Status {
	e.SetState(combat.StateAttack)
	e.Stop()
	e.Face(ctx.Target.Position)
	if !e.CanAttack() {
		return ai.StatusRunning
	}
	e.Attack(combat.AttackMelee)
	return ai.StatusSuccess
}

func (r *Rusher) Tick(e *combat.Entity, dt float64) {
	if !r.enraged {
		r.checkEnrage(e)
		return
	}
	r.alertTimer -= dt
	if r.alertTimer <= 1e-9 && e.TargetKnown() {
		r.alert(e)
	}
}

func (r *Rusher) OnDamage(e *combat.Entity, _ combat.DamageInfo) { r.checkEnrage(e) }

// checkEnrage also runs from Tick, so a rusher spawned already hurt
// enrages on its first update.
func (r *Rusher) checkEnrage(e *combat.Entity) {
	if r.enraged || !e.Alive() || e.HealthFraction() >= r.cfg.EnrageThreshold {
		return
	}
	r.enraged = true
	e.SetModifier("frenzy", combat.Modifier{Damage: 1, Speed: r.cfg.FrenzySpeed})
	e.SetAttackCooldown(e.AttackCooldown() / 2)
	e.Logger().Debug("rusher enraged",
		zap.Float64("health", e.Health()), zap.Float64("cooldown", e.AttackCooldown()))
	e.Emit(event.Enrage, combat.EnrageInfo{
		HealthFraction:   e.HealthFraction(),
		DamageMultiplier: 1,
		SpeedMultiplier:  r.cfg.FrenzySpeed,
	})
	if e.TargetKnown() {
		r.alert(e)
	} else {
		r.alertTimer = 0
	}
}

func (r *Rusher) alert(e *combat.Entity) {
	r.alertTimer = r.cfg.VocalAlertInterval
	ref, _ := e.Target()
	e.Emit(event.VocalAlert, combat.VocalAlertInfo{
		Position: e.Position,
		TargetID: ref.ID,
		Target:   e.AimPoint(),
	})
}

func (r *Rusher) Describe() map[string]any {
	return map[string]any{"enraged": r.enraged}
}
