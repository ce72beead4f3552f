package boss

import (
	"testing"

	"github.com/kasuganosora/combatcore/game/ai"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTactic struct{ ticks int }

func (c *countingTactic) Name() string { return "counting" }
func (c *countingTactic) BuildTree(*combat.Entity) ai.Node {
	return ai.Do(func(*ai.Context) ai.Status { c.ticks++; return ai.StatusSuccess })
}
func (c *countingTactic) Tick(*combat.Entity, float64)               {}
func (c *countingTactic) OnDamage(*combat.Entity, combat.DamageInfo) {}

func newBoss(t *testing.T, phases []Phase, enrage Enrage, opts ...Option) (*combat.Entity, *Orchestrator, *countingTactic) {
	t.Helper()
	o := New(phases, enrage, opts...)
	tac := &countingTactic{}
	e := combat.New(combat.Config{
		ID:        "boss",
		MaxHealth: 1000,
		Damage:    10,
		Movement:  combat.Movement{WalkSpeed: 2, RunSpeed: 4},
	}, tac, combat.WithPhaseController(o))
	return e, o, tac
}

func equalPhases(n int) []Phase {
	phases := make([]Phase, n)
	for i := range phases {
		phases[i] = Phase{Name: string(rune('a' + i)), HealthBudget: 100}
	}
	return phases
}

func TestThresholds(t *testing.T) {
	o := New([]Phase{{Name: "one", HealthBudget: 500}, {Name: "two", HealthBudget: 500}}, Enrage{})
	assert.Equal(t, []float64{0.5, 0}, o.Thresholds())

	o = New(equalPhases(3), Enrage{})
	th := o.Thresholds()
	require.Len(t, th, 3)
	assert.InDelta(t, 2.0/3, th[0], 1e-9)
	assert.InDelta(t, 1.0/3, th[1], 1e-9)
	assert.Equal(t, 0.0, th[2])

	o = New([]Phase{{Name: "x"}, {Name: "y"}}, Enrage{})
	assert.Equal(t, []float64{0.5, 0}, o.Thresholds())

	o = New(nil, Enrage{})
	assert.Equal(t, []float64{0}, o.Thresholds())
}

func TestAdvancesAtHalfAndNeverRegresses(t *testing.T) {
	e, o, _ := newBoss(t, []Phase{{Name: "one", HealthBudget: 500}, {Name: "two", HealthBudget: 500}}, Enrage{})

	e.TakeDamage(499, "p")
	assert.Equal(t, 0, o.PhaseIndex())
	e.TakeDamage(1, "p")
	assert.Equal(t, 1, o.PhaseIndex())
	assert.Equal(t, "two", o.Phase().Name)

	e.Heal(600)
	e.TakeDamage(1, "p")
	assert.Equal(t, 1, o.PhaseIndex())
}

func TestOnePhasePerCheck(t *testing.T) {
	e, o, _ := newBoss(t, equalPhases(3), Enrage{})
	e.TakeDamage(800, "p")
	assert.Equal(t, 1, o.PhaseIndex())
	e.TakeDamage(1, "p")
	assert.Equal(t, 2, o.PhaseIndex())
}

func TestCatchUpRunsEveryHook(t *testing.T) {
	var calls []string
	phases := equalPhases(3)
	for i := range phases {
		phases[i].OnEnter = func(_ *combat.Entity, p Phase) { calls = append(calls, "enter:"+p.Name) }
		phases[i].OnExit = func(_ *combat.Entity, p Phase) { calls = append(calls, "exit:"+p.Name) }
	}
	e, o, _ := newBoss(t, phases, Enrage{}, CatchUp())
	e.On(event.PhaseChange, func(ev event.Event) {
		calls = append(calls, "event:"+ev.Payload.(PhaseChangeInfo).Name)
	})

	e.TakeDamage(800, "p")
	assert.Equal(t, 2, o.PhaseIndex())
	assert.Equal(t, []string{
		"exit:a", "enter:b", "event:b",
		"exit:b", "enter:c", "event:c",
	}, calls)
}

func TestPhaseMultipliersDoNotCompound(t *testing.T) {
	phases := []Phase{
		{Name: "soft", HealthBudget: 1, DamageMultiplier: 0.5, SpeedMultiplier: 0.5},
		{Name: "hard", HealthBudget: 1, DamageMultiplier: 2, SpeedMultiplier: 1},
	}
	e, o, _ := newBoss(t, phases, Enrage{})
	assert.InDelta(t, 5.0, e.Damage(), 1e-9)
	assert.InDelta(t, 2.0, e.RunSpeed(), 1e-9)

	e.TakeDamage(500, "p")
	require.Equal(t, 1, o.PhaseIndex())
	assert.InDelta(t, 20.0, e.Damage(), 1e-9)
	assert.InDelta(t, 4.0, e.RunSpeed(), 1e-9)

	o.Reset()
	assert.Equal(t, 0, o.PhaseIndex())
	assert.InDelta(t, 5.0, e.Damage(), 1e-9)
}

func TestEnrageIsOneWay(t *testing.T) {
	e, o, _ := newBoss(t, nil, Enrage{Threshold: 0.25, DamageMultiplier: 2, SpeedMultiplier: 1.5})
	n := 0
	e.On(event.Enrage, func(event.Event) { n++ })

	e.TakeDamage(750, "p")
	assert.False(t, o.Enraged(), "exactly at the threshold is not below it")
	e.TakeDamage(10, "p")
	assert.True(t, o.Enraged())
	assert.InDelta(t, 20.0, e.Damage(), 1e-9)
	assert.InDelta(t, 6.0, e.RunSpeed(), 1e-9)

	e.Heal(700)
	e.TakeDamage(1, "p")
	assert.True(t, o.Enraged())
	assert.Equal(t, 1, n)

	o.Reset()
	assert.False(t, o.Enraged())
	assert.InDelta(t, 10.0, e.Damage(), 1e-9)
}

func TestSpecialGate(t *testing.T) {
	e, o, tac := newBoss(t, nil, Enrage{})
	var specials []SpecialInfo
	e.On(event.SpecialAttack, func(ev event.Event) { specials = append(specials, ev.Payload.(SpecialInfo)) })

	require.True(t, o.BeginSpecial("slam", 1))
	assert.False(t, o.BeginSpecial("other", 1))
	assert.True(t, o.SpecialActive())

	for i := 0; i < 9; i++ {
		e.Update(0.1)
	}
	assert.Zero(t, tac.ticks)
	assert.True(t, o.SpecialActive())

	e.Update(0.1)
	assert.False(t, o.SpecialActive())
	assert.Equal(t, 1, tac.ticks)

	require.Len(t, specials, 2)
	assert.Equal(t, SpecialInfo{Name: "slam", Duration: 1, Active: true}, specials[0])
	assert.Equal(t, SpecialInfo{Name: "slam"}, specials[1])
}

func TestEndSpecialEarly(t *testing.T) {
	e, o, tac := newBoss(t, nil, Enrage{})
	o.BeginSpecial("slam", 5)
	o.EndSpecial()
	o.EndSpecial()
	e.Update(0.1)
	assert.Equal(t, 1, tac.ticks)
	assert.True(t, o.BeginSpecial("slam", 5))
}

func TestSpecialRefusedWhenDead(t *testing.T) {
	e, o, _ := newBoss(t, nil, Enrage{})
	e.Die("p")
	assert.False(t, o.BeginSpecial("slam", 1))
}

func TestDescribeInSnapshot(t *testing.T) {
	e, _, _ := newBoss(t, []Phase{{Name: "one", HealthBudget: 1}, {Name: "two", HealthBudget: 1}}, Enrage{})
	e.TakeDamage(600, "")
	s := e.Snapshot()
	assert.Equal(t, 1, s.Extra["phase"])
	assert.Equal(t, "two", s.Extra["phase_name"])
}
