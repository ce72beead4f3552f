package boss

import (
	"testing"

	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/event"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/perception"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstructor(t *testing.T, cfg InstructorConfig) (*combat.Entity, *Instructor) {
	t.Helper()
	in := NewInstructor(cfg, nil, DefaultInstructorEnrage)
	e := combat.New(combat.Config{
		ID:         "instructor",
		Variant:    "instructor",
		Facing:     geom.V(1, 0, 0),
		MaxHealth:  1000,
		Damage:     10,
		Movement:   combat.Movement{WalkSpeed: 2, RunSpeed: 4, ArriveRadius: 0.25},
		Perception: perception.Config{HearingRange: 5, ViewAngle: 120, ViewDistance: 60},
	}, in, combat.WithPhaseController(in.Orchestrator()))
	return e, in
}

func attacks(e *combat.Entity) *[]combat.Attack {
	var out []combat.Attack
	e.On(event.AttackIntent, func(ev event.Event) { out = append(out, ev.Payload.(combat.Attack)) })
	return &out
}

func tick(e *combat.Entity, n int) {
	for i := 0; i < n; i++ {
		e.Update(0.1)
	}
}

func TestInstructor_TrainingKeepsDistance(t *testing.T) {
	e, in := newInstructor(t, InstructorConfig{})
	require.True(t, in.Training())
	assert.InDelta(t, 5.0, e.Damage(), 1e-9)

	e.SetTarget(combat.TargetRef{ID: "p", Position: geom.V(3, 0, 0)})
	tick(e, 1)
	assert.Equal(t, combat.StateRetreat, e.State())

	e.Position = geom.Zero
	e.SetTarget(combat.TargetRef{ID: "p", Position: geom.V(20, 0, 0)})
	tick(e, 1)
	assert.Equal(t, combat.StateChase, e.State())

	e.Position = geom.Zero
	e.SetTarget(combat.TargetRef{ID: "p", Position: geom.V(9, 0, 0)})
	tick(e, 1)
	assert.Equal(t, combat.StateIdle, e.State())
	assert.Equal(t, geom.Zero, e.Velocity)
}

func TestInstructor_TeachesWithoutAttacking(t *testing.T) {
	e, in := newInstructor(t, InstructorConfig{})
	e.SetTarget(combat.TargetRef{ID: "p", Position: geom.V(9, 0, 0)})
	hits := attacks(e)
	var tips []TeachingTipInfo
	e.On(event.TeachingTip, func(ev event.Event) { tips = append(tips, ev.Payload.(TeachingTipInfo)) })

	tick(e, 100)

	assert.Empty(t, *hits)
	require.Len(t, tips, 3)
	for i, tip := range tips {
		assert.Equal(t, DefaultInstructorConfig.Tips[i], tip.Text)
	}
	n, demos := in.TeachingCounters()
	assert.Equal(t, 3, n)
	assert.Equal(t, 4, demos)
}

func TestInstructor_EnteringCombatResetsTeaching(t *testing.T) {
	e, in := newInstructor(t, InstructorConfig{})
	e.SetTarget(combat.TargetRef{ID: "p", Position: geom.V(9, 0, 0)})
	tick(e, 50)
	tips, _ := in.TeachingCounters()
	require.Positive(t, tips)

	e.TakeDamage(500, "p")
	assert.False(t, in.Training())
	tips, demos := in.TeachingCounters()
	assert.Zero(t, tips)
	assert.Zero(t, demos)
	assert.InDelta(t, 10.0, e.Damage(), 1e-9)
}

func TestInstructor_ComboThenCooldown(t *testing.T) {
	e, _ := newInstructor(t, InstructorConfig{})
	e.TakeDamage(500, "p")
	e.SetTarget(combat.TargetRef{ID: "p", Position: geom.V(2, 0, 0)})
	hits := attacks(e)

	tick(e, 20)

	require.Len(t, *hits, 3)
	for _, a := range *hits {
		assert.Equal(t, "combo", a.Name)
		assert.False(t, a.Unmitigated)
	}
	assert.Equal(t, combat.StateAttack, e.State())
}

func TestInstructor_SpecialThrowSuppressesTree(t *testing.T) {
	e, in := newInstructor(t, InstructorConfig{SpecialCooldown: 0.5})
	e.TakeDamage(500, "p")
	e.SetTarget(combat.TargetRef{ID: "p", Position: geom.V(10, 0, 0)})
	hits := attacks(e)

	tick(e, 4)
	assert.Equal(t, combat.StateChase, e.State())
	assert.False(t, in.Orchestrator().SpecialActive())

	tick(e, 1)
	require.True(t, in.Orchestrator().SpecialActive())
	require.Len(t, *hits, 1)
	assert.Equal(t, combat.AttackSpecial, (*hits)[0].Kind)
	assert.Equal(t, "disabling_throw", (*hits)[0].Name)

	pos := e.Position
	tick(e, 10)
	assert.Equal(t, pos, e.Position)
	assert.True(t, in.Orchestrator().SpecialActive())

	tick(e, 6)
	assert.False(t, in.Orchestrator().SpecialActive())
}

func TestInstructor_EnragedRapidStrikes(t *testing.T) {
	e, in := newInstructor(t, InstructorConfig{})
	e.TakeDamage(500, "p")
	e.TakeDamage(300, "p")
	require.True(t, in.Orchestrator().Enraged())

	e.SetTarget(combat.TargetRef{ID: "p", Position: geom.V(2, 0, 0)})
	hits := attacks(e)
	tick(e, 10)

	require.Len(t, *hits, 3)
	for _, a := range *hits {
		assert.Equal(t, "rapid_strike", a.Name)
		assert.True(t, a.Unmitigated)
		assert.InDelta(t, 15.0, a.Damage, 1e-9)
	}
}
