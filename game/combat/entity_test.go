package combat

import (
	"math/rand"
	"testing"

	"github.com/kasuganosora/combatcore/game/ai"
	"github.com/kasuganosora/combatcore/game/event"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/perception"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTactic counts tree ticks and hook calls.
type recordingTactic struct {
	root    ai.Node
	ticks   int
	damages []DamageInfo
	hooks   []string
}

func (r *recordingTactic) Name() string { return "recording" }

func (r *recordingTactic) BuildTree(*Entity) ai.Node {
	return ai.Do(func(ctx *ai.Context) ai.Status {
		r.ticks++
		if r.root != nil {
			return r.root.Tick(ctx)
		}
		return ai.StatusSuccess
	})
}

func (r *recordingTactic) Tick(*Entity, float64) {}

func (r *recordingTactic) OnDamage(_ *Entity, info DamageInfo) { r.damages = append(r.damages, info) }

func (r *recordingTactic) OnEnter(_ *Entity, s State) { r.hooks = append(r.hooks, "enter:"+s.String()) }

func (r *recordingTactic) OnExit(_ *Entity, s State) { r.hooks = append(r.hooks, "exit:"+s.String()) }

func testConfig() Config {
	return Config{
		ID:             "e1",
		Name:           "Grunt",
		Variant:        "test",
		MaxHealth:      100,
		Armor:          20,
		Damage:         10,
		Movement:       Movement{WalkSpeed: 2, RunSpeed: 5, ArriveRadius: 0.5},
		Perception:     perception.Config{HearingRange: 5, ViewAngle: 90, ViewDistance: 50},
		AttackCooldown: 1,
		Facing:         geom.V(1, 0, 0),
	}
}

func newTestEntity(t *testing.T) (*Entity, *recordingTactic) {
	t.Helper()
	tac := &recordingTactic{}
	return New(testConfig(), tac), tac
}

// ---- Damage ----

func TestTakeDamage_ArmorAbsorbsHalf(t *testing.T) {
	e, _ := newTestEntity(t)
	e.TakeDamage(30, "player")
	assert.Equal(t, 5.0, e.Armor())
	assert.Equal(t, 85.0, e.Health())
}

func TestTakeDamage_ArmorDepleted(t *testing.T) {
	e, _ := newTestEntity(t)
	e.TakeDamage(30, "")
	e.TakeDamage(30, "")
	assert.Equal(t, 0.0, e.Armor())
	assert.Equal(t, 60.0, e.Health()) // 85 - (30 - 5)
}

func TestTakeDamage_NonPositiveIgnored(t *testing.T) {
	e, tac := newTestEntity(t)
	e.TakeDamage(0, "")
	e.TakeDamage(-5, "")
	assert.Equal(t, 100.0, e.Health())
	assert.Empty(t, tac.damages)
}

func TestTakeDamage_TacticSeesDamage(t *testing.T) {
	e, tac := newTestEntity(t)
	e.TakeDamage(10, "p1")
	require.Len(t, tac.damages, 1)
	assert.Equal(t, 5.0, tac.damages[0].Absorbed)
	assert.Equal(t, "p1", e.LastAttacker())
}

func TestDeath_FiresOnce(t *testing.T) {
	e, _ := newTestEntity(t)
	deaths := 0
	e.OnDeath(func(DeathInfo) { deaths++ })

	e.TakeDamage(1000, "p1")
	e.TakeDamage(1000, "p1")
	e.TakeDamage(0, "p1")
	e.Die("again")

	assert.Equal(t, 1, deaths)
	assert.False(t, e.Alive())
	assert.Equal(t, StateDead, e.State())
	assert.Equal(t, 0.0, e.Health())
	assert.Equal(t, geom.Zero, e.Velocity)
}

func TestHealthStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e, _ := newTestEntity(t)
	for i := 0; i < 200; i++ {
		if rng.Intn(3) == 0 {
			e.Heal(rng.Float64() * 40)
		} else {
			e.TakeDamage(rng.Float64()*15-2, "")
		}
		assert.GreaterOrEqual(t, e.Health(), 0.0)
		assert.LessOrEqual(t, e.Health(), e.MaxHealth())
		assert.Equal(t, !e.Alive(), e.State() == StateDead)
	}
}

func TestHeal_DeadStaysDead(t *testing.T) {
	e, _ := newTestEntity(t)
	e.Die("")
	e.Heal(50)
	assert.Equal(t, 0.0, e.Health())
}

// ---- State machine ----

func TestSetState_Idempotent(t *testing.T) {
	e, _ := newTestEntity(t)
	changes := 0
	e.OnStateChange(func(StateChangeInfo) { changes++ })

	assert.True(t, e.SetState(StateChase))
	assert.False(t, e.SetState(StateChase))
	assert.Equal(t, 1, changes)
	assert.Equal(t, StateIdle, e.PreviousState())
}

func TestSetState_HookOrder(t *testing.T) {
	e, tac := newTestEntity(t)
	e.OnStateChange(func(c StateChangeInfo) {
		tac.hooks = append(tac.hooks, "notify:"+c.From.String()+">"+c.To.String())
	})
	e.SetState(StateChase)
	assert.Equal(t, []string{"exit:idle", "enter:chase", "notify:idle>chase"}, tac.hooks)
}

func TestSetState_DeadIsTerminal(t *testing.T) {
	e, _ := newTestEntity(t)
	e.Die("")
	assert.False(t, e.SetState(StateIdle))
	assert.Equal(t, StateDead, e.State())
}

func TestEnterPatrol_ZeroesVelocity(t *testing.T) {
	e, _ := newTestEntity(t)
	e.Velocity = geom.V(3, 0, 0)
	e.SetState(StatePatrol)
	assert.Equal(t, geom.Zero, e.Velocity)
}

func TestExitCover_ClearsActiveSpot(t *testing.T) {
	e, _ := newTestEntity(t)
	e.SetState(StateCover)
	e.SetActiveCover(CoverSpot{Position: geom.V(1, 0, 1)})
	_, ok := e.ActiveCover()
	require.True(t, ok)

	e.SetState(StateAttack)
	_, ok = e.ActiveCover()
	assert.False(t, ok)
}

func TestStateNames(t *testing.T) {
	for s := StateIdle; s <= StateDead; s++ {
		parsed, ok := ParseState(s.String())
		assert.True(t, ok)
		assert.Equal(t, s, parsed)
	}
	_, ok := ParseState("flying")
	assert.False(t, ok)
	assert.Equal(t, "unknown", State(42).String())
}

// ---- Stun ----

func TestStun_RestoresPreStunState(t *testing.T) {
	e, _ := newTestEntity(t)
	e.SetState(StateChase)
	e.Stun(2.0)
	assert.Equal(t, StateStunned, e.State())
	assert.True(t, e.Stunned())

	for i := 0; i < 19; i++ {
		e.Update(0.1)
	}
	assert.Equal(t, StateStunned, e.State())

	e.Update(0.1)
	assert.Equal(t, StateChase, e.State())
	assert.False(t, e.Stunned())
}

func TestStun_SkipsTreeAndBlocksTransitions(t *testing.T) {
	e, tac := newTestEntity(t)
	e.Stun(1)
	e.Update(0.1)
	assert.Equal(t, 0, tac.ticks)
	assert.False(t, e.SetState(StateAttack))
	assert.Equal(t, StateStunned, e.State())
	assert.Equal(t, StateIdle, e.PreStunState())
}

func TestStun_ExtendsOnlyUpward(t *testing.T) {
	e, _ := newTestEntity(t)
	e.Stun(1)
	e.Stun(0.5)
	assert.Equal(t, 1.0, e.StunRemaining())
	e.Stun(3)
	assert.Equal(t, 3.0, e.StunRemaining())
}

func TestStun_DamageWhileStunned(t *testing.T) {
	e, _ := newTestEntity(t)
	e.SetState(StateAttack)
	e.Stun(1)
	e.TakeDamage(10, "")
	assert.Equal(t, StateStunned, e.State())

	e.TakeDamage(500, "")
	assert.Equal(t, StateDead, e.State())
	assert.False(t, e.Stunned())
}

// ---- Tick ----

func TestUpdate_IntegratesVelocity(t *testing.T) {
	e, _ := newTestEntity(t)
	e.Velocity = geom.V(2, 0, 0)
	e.Update(0.5)
	assert.InDelta(t, 1.0, e.Position.X, 1e-9)
	assert.InDelta(t, 0.5, e.Clock(), 1e-9)
}

func TestUpdate_DeadDoesNothing(t *testing.T) {
	e, tac := newTestEntity(t)
	e.Die("")
	e.Update(0.1)
	assert.Equal(t, 0, tac.ticks)
	assert.Equal(t, 0.0, e.Clock())
}

func TestUpdate_BuildsContext(t *testing.T) {
	var seen *ai.Context
	tac := &recordingTactic{root: ai.Do(func(ctx *ai.Context) ai.Status {
		seen = ctx
		return ai.StatusSuccess
	})}
	e := New(testConfig(), tac)
	e.SetTarget(TargetRef{ID: "p1", Position: geom.V(10, 0, 0)})
	e.Update(0.1)

	require.NotNil(t, seen)
	assert.Same(t, e, AgentOf(seen))
	assert.True(t, seen.Target.Valid)
	assert.Equal(t, "p1", seen.Target.ID)
	assert.True(t, seen.Perception.HasLineOfSight)
	assert.InDelta(t, 10.0, seen.Perception.Distance, 1e-9)
	assert.Equal(t, ai.StatusSuccess, e.LastStatus())
}

func TestUpdate_ForgetsStaleTarget(t *testing.T) {
	cfg := testConfig()
	cfg.MemorySeconds = 1
	e := New(cfg, &recordingTactic{})
	e.SetTarget(TargetRef{ID: "p1", Position: geom.V(10, 0, 0)})
	e.Update(0.1)
	require.True(t, e.TargetKnown())

	e.SetTarget(TargetRef{ID: "p1", Position: geom.V(-10, 0, 0)}) // behind
	for i := 0; i < 8; i++ {
		e.Update(0.1)
	}
	assert.True(t, e.TargetKnown())
	for i := 0; i < 3; i++ {
		e.Update(0.1)
	}
	assert.False(t, e.TargetKnown())
}

func TestNilTactic_FailsSoft(t *testing.T) {
	e := New(testConfig(), nil)
	assert.NotPanics(t, func() { e.Update(0.1) })
	assert.Equal(t, ai.StatusFailure, e.LastStatus())
}

func TestNew_ZeroHealthIsDead(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHealth = 0
	e := New(cfg, nil)
	assert.False(t, e.Alive())
	assert.Equal(t, StateDead, e.State())
}

func TestNew_GeneratesID(t *testing.T) {
	cfg := testConfig()
	cfg.ID = ""
	e := New(cfg, nil)
	assert.NotEmpty(t, e.ID())
}

// ---- Modifiers ----

func TestModifiers_DoNotCompound(t *testing.T) {
	e, _ := newTestEntity(t)
	e.SetModifier("phase", Modifier{Damage: 0.5, Speed: 0.8})
	e.SetModifier("phase", Modifier{Damage: 1.0, Speed: 1.0})
	assert.Equal(t, 10.0, e.Damage())
	assert.Equal(t, 5.0, e.RunSpeed())

	e.SetModifier("phase", Modifier{Damage: 1.5, Speed: 1.2})
	e.SetModifier("enrage", Modifier{Damage: 2, Speed: 1.5})
	assert.InDelta(t, 30.0, e.Damage(), 1e-9)
	assert.InDelta(t, 2*1.2*1.5, e.WalkSpeed(), 1e-9)

	e.RemoveModifier("enrage")
	assert.InDelta(t, 15.0, e.Damage(), 1e-9)
	_, ok := e.Modifier("enrage")
	assert.False(t, ok)
}

// ---- Attacks ----

func TestAttack_Cooldown(t *testing.T) {
	e, _ := newTestEntity(t)
	var intents []Attack
	e.On(event.AttackIntent, func(ev event.Event) { intents = append(intents, ev.Payload.(Attack)) })

	require.True(t, e.CanAttack())
	e.Attack(AttackMelee)
	assert.False(t, e.CanAttack())

	for i := 0; i < 10; i++ {
		e.Update(0.1)
	}
	assert.True(t, e.CanAttack())
	require.Len(t, intents, 1)
	assert.Equal(t, 10.0, intents[0].Damage)
}

func TestEmitAttack_GrenadeEvent(t *testing.T) {
	e, _ := newTestEntity(t)
	n := 0
	e.On(event.Grenade, func(event.Event) { n++ })
	e.EmitAttack(Attack{Kind: AttackGrenade, Aim: geom.V(3, 0, 3)})
	assert.Equal(t, 1, n)
}

// ---- Movement ----

func TestMoveToward_Arrives(t *testing.T) {
	e, _ := newTestEntity(t)
	assert.False(t, e.MoveToward(geom.V(10, 0, 0), 5))
	assert.InDelta(t, 5.0, e.Velocity.Len(), 1e-9)
	assert.InDelta(t, 1.0, e.Facing.X, 1e-9)

	e.Position = geom.V(9.8, 0, 0)
	assert.True(t, e.MoveToward(geom.V(10, 0, 0), 5))
	assert.Equal(t, geom.Zero, e.Velocity)
}

func TestMoveAway_KeepsFacingThreat(t *testing.T) {
	e, _ := newTestEntity(t)
	e.MoveAway(geom.V(5, 0, 0), 2)
	assert.InDelta(t, -2.0, e.Velocity.X, 1e-9)
	assert.InDelta(t, 1.0, e.Facing.X, 1e-9)
}

func TestPatrol_PingPong(t *testing.T) {
	cfg := testConfig()
	cfg.Patrol = []geom.Vec3{geom.V(0, 0, 0), geom.V(1, 0, 0), geom.V(2, 0, 0)}
	e := New(cfg, nil)

	var visited []int
	for i := 0; i < 5; i++ {
		wp, idx := e.Waypoint()
		visited = append(visited, idx)
		e.Position = wp
		e.PatrolStep()
	}
	assert.Equal(t, []int{0, 1, 2, 1, 0}, visited)
}

func TestIdleOrPatrol(t *testing.T) {
	cfg := testConfig()
	cfg.Patrol = []geom.Vec3{geom.V(5, 0, 0), geom.V(10, 0, 0)}
	e := New(cfg, &recordingTactic{})
	node := IdleOrPatrol(e)

	assert.Equal(t, ai.StatusRunning, node.Tick(ai.NewContext(e, 0.1, 0)))
	assert.Equal(t, StatePatrol, e.State())

	idle := New(testConfig(), nil)
	assert.Equal(t, ai.StatusSuccess, IdleOrPatrol(idle).Tick(ai.NewContext(idle, 0.1, 0)))
	assert.Equal(t, StateIdle, idle.State())
}

func TestInvestigate_FacesHeardTarget(t *testing.T) {
	tac := &recordingTactic{}
	e := New(testConfig(), tac)
	tac.root = Investigate(e)
	e.SetTarget(TargetRef{ID: "p1", Position: geom.V(-3, 0, 0)})
	e.Update(0.1)
	assert.InDelta(t, -1.0, e.Facing.X, 1e-9)

	e.Update(0.1)
	assert.True(t, e.Perception().HasLineOfSight)
}

// ---- Snapshot ----

type describingTactic struct{ recordingTactic }

func (describingTactic) Describe() map[string]any { return map[string]any{"mode": "test"} }

func TestSnapshot(t *testing.T) {
	e := New(testConfig(), &describingTactic{})
	e.SetState(StateChase)
	s := e.Snapshot()
	assert.Equal(t, "chase", s.State)
	assert.Equal(t, "idle", s.PreviousState)
	assert.Equal(t, "test", s.Extra["mode"])
}
