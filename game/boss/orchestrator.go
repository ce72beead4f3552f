// Package boss layers multi-phase orchestration over a combat entity and
// provides the two-phase Instructor boss.
package boss

import (
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/event"
	"go.uber.org/zap"
)

const (
	phaseModifier  = "phase"
	enrageModifier = "enrage"
)

// Hook runs on a phase boundary.
type Hook func(e *combat.Entity, p Phase)

// Phase is one health band of a boss fight.
type Phase struct {
	Name             string   `json:"name" yaml:"name" toml:"name" validate:"required"`
	HealthBudget     float64  `json:"health_budget" yaml:"health_budget" toml:"health_budget" validate:"gt=0"`
	DamageMultiplier float64  `json:"damage_multiplier" yaml:"damage_multiplier" toml:"damage_multiplier" validate:"gte=0"`
	SpeedMultiplier  float64  `json:"speed_multiplier" yaml:"speed_multiplier" toml:"speed_multiplier" validate:"gte=0"`
	Mechanics        []string `json:"mechanics,omitempty" yaml:"mechanics" toml:"mechanics"`

	OnEnter Hook `json:"-" yaml:"-" toml:"-"`
	OnExit  Hook `json:"-" yaml:"-" toml:"-"`
}

func (p Phase) modifier() combat.Modifier {
	return combat.Modifier{Damage: orOne(p.DamageMultiplier), Speed: orOne(p.SpeedMultiplier)}
}

// Enrage is the one-way low-health buff. A zero Threshold disables it.
type Enrage struct {
	Threshold        float64 `json:"threshold" yaml:"threshold" toml:"threshold" validate:"gte=0,lte=1"`
	DamageMultiplier float64 `json:"damage_multiplier" yaml:"damage_multiplier" toml:"damage_multiplier" validate:"gte=0"`
	SpeedMultiplier  float64 `json:"speed_multiplier" yaml:"speed_multiplier" toml:"speed_multiplier" validate:"gte=0"`
}

func orOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

// PhaseChangeInfo is the payload of a phase-change event.
type PhaseChangeInfo struct {
	From      int      `json:"from"`
	To        int      `json:"to"`
	Name      string   `json:"name"`
	Mechanics []string `json:"mechanics,omitempty"`
}

// SpecialInfo is the payload of a special-attack event, raised once when
// the attack begins and once when it ends.
type SpecialInfo struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration,omitempty"`
	Active   bool    `json:"active"`
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// CatchUp makes one damage check advance through every threshold the hit
// crossed instead of a single phase. Each intermediate phase's hooks run.
func CatchUp() Option {
	return func(o *Orchestrator) { o.catchUp = true }
}

// Orchestrator is a combat.PhaseController driving phases, enrage and the
// special-attack gate.
type Orchestrator struct {
	phases     []Phase
	thresholds []float64
	index      int

	enrage  Enrage
	enraged bool

	special          string
	specialRemaining float64

	catchUp bool
	entity  *combat.Entity
}

// New builds an orchestrator. Thresholds are computed once here:
// threshold[i] = 1 - sum(budget[0..i]) / total. Phases with a zero total
// budget split the bar evenly.
func New(phases []Phase, enrage Enrage, opts ...Option) *Orchestrator {
	if len(phases) == 0 {
		phases = []Phase{{Name: "default", HealthBudget: 1}}
	}
	o := &Orchestrator{
		phases:     append([]Phase(nil), phases...),
		thresholds: make([]float64, len(phases)),
		enrage:     enrage,
	}
	total := 0.0
	for _, p := range o.phases {
		if p.HealthBudget > 0 {
			total += p.HealthBudget
		}
	}
	cum := 0.0
	for i, p := range o.phases {
		if total > 0 {
			if p.HealthBudget > 0 {
				cum += p.HealthBudget
			}
			o.thresholds[i] = 1 - cum/total
		} else {
			o.thresholds[i] = 1 - float64(i+1)/float64(len(o.phases))
		}
	}
	o.thresholds[len(o.thresholds)-1] = 0
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Attach binds the entity and applies the first phase's multipliers. The
// first phase's OnEnter does not run.
func (o *Orchestrator) Attach(e *combat.Entity) {
	o.entity = e
	e.SetModifier(phaseModifier, o.phases[o.index].modifier())
}

func (o *Orchestrator) PhaseIndex() int { return o.index }

func (o *Orchestrator) Phase() Phase { return o.phases[o.index] }

func (o *Orchestrator) Phases() []Phase { return o.phases }

func (o *Orchestrator) Enraged() bool { return o.enraged }

// SpecialActive reports whether a special attack is in progress.
func (o *Orchestrator) SpecialActive() bool { return o.special != "" }

// Special returns the active special attack and its remaining time.
func (o *Orchestrator) Special() (string, float64) { return o.special, o.specialRemaining }

// Thresholds returns a copy of the phase health thresholds.
func (o *Orchestrator) Thresholds() []float64 {
	return append([]float64(nil), o.thresholds...)
}

// Suppressing is true while a special attack holds the behavior tree.
func (o *Orchestrator) Suppressing() bool { return o.SpecialActive() }

func (o *Orchestrator) Tick(e *combat.Entity, dt float64) {
	if o.special == "" {
		return
	}
	o.specialRemaining -= dt
	if o.specialRemaining <= 1e-9 {
		o.EndSpecial()
	}
}

// AfterDamage runs the phase check and then the enrage check.
func (o *Orchestrator) AfterDamage(e *combat.Entity, _ combat.DamageInfo) {
	frac := e.HealthFraction()
	for o.index < len(o.phases)-1 && frac <= o.thresholds[o.index] {
		o.advance(e)
		if !o.catchUp {
			break
		}
	}
	if !o.enraged && o.enrage.Threshold > 0 && frac < o.enrage.Threshold {
		o.enraged = true
		m := combat.Modifier{Damage: orOne(o.enrage.DamageMultiplier), Speed: orOne(o.enrage.SpeedMultiplier)}
		e.SetModifier(enrageModifier, m)
		e.Logger().Debug("boss enraged", zap.Float64("health_fraction", frac))
		e.Emit(event.Enrage, combat.EnrageInfo{
			HealthFraction:   frac,
			DamageMultiplier: m.Damage,
			SpeedMultiplier:  m.Speed,
		})
	}
}

func (o *Orchestrator) advance(e *combat.Entity) {
	from := o.index
	old := o.phases[from]
	if old.OnExit != nil {
		old.OnExit(e, old)
	}
	o.index++
	next := o.phases[o.index]
	e.SetModifier(phaseModifier, next.modifier())
	if next.OnEnter != nil {
		next.OnEnter(e, next)
	}
	e.Logger().Debug("boss phase change",
		zap.Int("from", from), zap.Int("to", o.index), zap.String("phase", next.Name))
	e.Emit(event.PhaseChange, PhaseChangeInfo{From: from, To: o.index, Name: next.Name, Mechanics: next.Mechanics})
}

// BeginSpecial starts a special attack lasting duration seconds. Only one
// may be active at a time; the behavior tree is skipped until it ends.
func (o *Orchestrator) BeginSpecial(name string, duration float64) bool {
	e := o.entity
	if e == nil || !e.Alive() || o.special != "" || name == "" {
		return false
	}
	o.special = name
	o.specialRemaining = duration
	e.Stop()
	e.Logger().Debug("special attack", zap.String("name", name), zap.Float64("duration", duration))
	e.Emit(event.SpecialAttack, SpecialInfo{Name: name, Duration: duration, Active: true})
	return true
}

// EndSpecial ends the active special attack early. No-op when none is active.
func (o *Orchestrator) EndSpecial() {
	if o.special == "" {
		return
	}
	name := o.special
	o.special = ""
	o.specialRemaining = 0
	if o.entity != nil {
		o.entity.Emit(event.SpecialAttack, SpecialInfo{Name: name, Active: false})
	}
}

// Reset returns to phase 0 with its multipliers, clears enrage and ends
// any special attack.
func (o *Orchestrator) Reset() {
	o.EndSpecial()
	o.index = 0
	o.enraged = false
	if o.entity != nil {
		o.entity.SetModifier(phaseModifier, o.phases[0].modifier())
		o.entity.RemoveModifier(enrageModifier)
	}
}

func (o *Orchestrator) Describe() map[string]any {
	return map[string]any{
		"phase":          o.index,
		"phase_name":     o.phases[o.index].Name,
		"enraged":        o.enraged,
		"special_active": o.SpecialActive(),
	}
}
