package resource

import (
	"github.com/kasuganosora/combatcore/game/boss"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/perception"
	"github.com/kasuganosora/combatcore/game/tactic"
)

// Archetype variants.
const (
	VariantRusher     = "rusher"
	VariantSoldier    = "soldier"
	VariantInstructor = "instructor"
)

// Archetype is one combatant template from a content bundle.
type Archetype struct {
	Name    string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Variant string `json:"variant" yaml:"variant" toml:"variant" validate:"required,oneof=rusher soldier instructor"`

	MaxHealth      float64 `json:"max_health" yaml:"max_health" toml:"max_health" validate:"gt=0"`
	Armor          float64 `json:"armor" yaml:"armor" toml:"armor" validate:"gte=0"`
	Damage         float64 `json:"damage" yaml:"damage" toml:"damage" validate:"gte=0"`
	AttackCooldown float64 `json:"attack_cooldown" yaml:"attack_cooldown" toml:"attack_cooldown" validate:"gte=0"`
	MemorySeconds  float64 `json:"memory_seconds" yaml:"memory_seconds" toml:"memory_seconds" validate:"gte=0"`

	Movement   combat.Movement   `json:"movement" yaml:"movement" toml:"movement"`
	Perception perception.Config `json:"perception" yaml:"perception" toml:"perception"`

	Patrol []geom.Vec3        `json:"patrol,omitempty" yaml:"patrol" toml:"patrol"`
	Cover  []combat.CoverSpot `json:"cover,omitempty" yaml:"cover" toml:"cover"`

	Rusher     *tactic.RusherConfig   `json:"rusher,omitempty" yaml:"rusher" toml:"rusher"`
	Soldier    *tactic.SoldierConfig  `json:"soldier,omitempty" yaml:"soldier" toml:"soldier"`
	Instructor *boss.InstructorConfig `json:"instructor,omitempty" yaml:"instructor" toml:"instructor"`

	Phases  []boss.Phase `json:"phases,omitempty" yaml:"phases" toml:"phases" validate:"omitempty,dive"`
	Enrage  *boss.Enrage `json:"enrage,omitempty" yaml:"enrage" toml:"enrage"`
	CatchUp bool         `json:"catch_up,omitempty" yaml:"catch_up" toml:"catch_up"`
}

// IsBoss reports whether the archetype runs under a phase orchestrator.
func (a *Archetype) IsBoss() bool {
	return a.Variant == VariantInstructor || len(a.Phases) > 0
}

// bundle is the on-disk layout of a content file.
type bundle struct {
	Archetypes []Archetype `json:"archetypes" yaml:"archetypes" toml:"archetypes"`
}
