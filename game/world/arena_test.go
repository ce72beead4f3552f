package world

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/combatcore/cache/local"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/perception"
	"github.com/kasuganosora/combatcore/game/spawn"
	"github.com/kasuganosora/combatcore/game/tactic"
	"github.com/kasuganosora/combatcore/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRusher(id string, pos geom.Vec3) *combat.Entity {
	return combat.New(combat.Config{
		ID:             id,
		Name:           "grunt",
		Variant:        "rusher",
		Position:       pos,
		Facing:         geom.V(1, 0, 0),
		MaxHealth:      100,
		Damage:         10,
		Movement:       combat.Movement{WalkSpeed: 2, RunSpeed: 5, ArriveRadius: 0.25},
		Perception:     perception.Config{HearingRange: 5, ViewAngle: 120, ViewDistance: 60},
		AttackCooldown: 1,
	}, tactic.NewRusher(tactic.RusherConfig{}))
}

// stubSpawner builds rushers and counts calls.
type stubSpawner struct {
	mu    sync.Mutex
	calls int
	seq   int
	err   error
}

func (s *stubSpawner) Spawn(spec spawn.Spec) (*combat.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	id := spec.ID
	if id == "" {
		s.seq++
		id = spec.Archetype + "-" + strconv.Itoa(s.seq)
	}
	return newRusher(id, spec.Position), nil
}

func TestStepInjectsTargetAndAdvances(t *testing.T) {
	a := NewArena(nil, Options{})
	e := newRusher("r1", geom.Zero)
	require.NoError(t, a.Add(e, Placement{}))

	a.Step(0.1)
	assert.Equal(t, combat.StateIdle, e.State())
	assert.Equal(t, uint64(1), a.Tick())

	a.SetTarget(combat.TargetRef{ID: "player", Position: geom.V(20, 0, 0)})
	a.Step(0.1)
	ref, ok := e.Target()
	require.True(t, ok)
	assert.Equal(t, "player", ref.ID)
	assert.Equal(t, combat.StateChase, e.State())
	assert.Greater(t, e.Position.X, 0.0)

	a.ClearTarget()
	a.Step(0.1)
	_, ok = e.Target()
	assert.False(t, ok)
}

func TestStepClampsDelta(t *testing.T) {
	a := NewArena(nil, Options{MaxDelta: 0.1})
	e := newRusher("r1", geom.Zero)
	require.NoError(t, a.Add(e, Placement{}))

	a.Step(5)
	assert.InDelta(t, 0.1, a.Clock(), 1e-9)
	assert.InDelta(t, 0.1, e.Clock(), 1e-9)

	a.Step(-1)
	assert.InDelta(t, 0.1, a.Clock(), 1e-9)
	assert.Equal(t, uint64(2), a.Tick())
}

func TestCommandsApplyOnNextStep(t *testing.T) {
	a := NewArena(nil, Options{})
	e := newRusher("r1", geom.Zero)
	require.NoError(t, a.Add(e, Placement{}))

	require.NoError(t, a.Enqueue(DamageCommand("r1", 30, "admin")))
	assert.Equal(t, 100.0, e.Health())

	a.Step(0.1)
	assert.Equal(t, 70.0, e.Health())
	assert.Equal(t, "admin", e.LastAttacker())

	require.NoError(t, a.Enqueue(StunCommand("r1", 1)))
	a.Step(0.05)
	assert.True(t, e.Stunned())
	assert.Equal(t, combat.StateStunned, e.State())

	require.NoError(t, a.Enqueue(DamageCommand("ghost", 10, "admin")))
	assert.NotPanics(t, func() { a.Step(0.1) })
}

func TestDeadEntitiesRemovedSameTick(t *testing.T) {
	var removed []string
	var placements []Placement
	a := NewArena(nil, Options{OnRemove: func(e *combat.Entity, p Placement) {
		removed = append(removed, e.ID())
		placements = append(placements, p)
	}})
	p := Placement{Spec: spawn.Spec{Archetype: "grunt", ID: "r1"}, Respawn: true}
	require.NoError(t, a.Add(newRusher("r1", geom.Zero), p))
	require.NoError(t, a.Add(newRusher("r2", geom.Zero), Placement{}))

	require.NoError(t, a.Enqueue(KillCommand("r1", "admin")))
	a.Step(0.1)

	assert.Equal(t, []string{"r1"}, removed)
	assert.Equal(t, []Placement{p}, placements)
	assert.Equal(t, 1, a.Len())
	_, ok := a.Entity("r1")
	assert.False(t, ok)
}

func TestSpawnAndDuplicates(t *testing.T) {
	sp := &stubSpawner{}
	var added []string
	a := NewArena(sp, Options{OnAdd: func(e *combat.Entity, _ Placement) { added = append(added, e.ID()) }})

	e, err := a.Spawn(Placement{Spec: spawn.Spec{Archetype: "grunt", ID: "g", Position: geom.V(1, 0, 0)}})
	require.NoError(t, err)
	assert.Equal(t, geom.V(1, 0, 0), e.Position)

	_, err = a.Spawn(Placement{Spec: spawn.Spec{Archetype: "grunt", ID: "g"}})
	assert.ErrorIs(t, err, ErrDuplicateEntity)
	assert.Equal(t, 1, sp.calls)

	assert.ErrorIs(t, a.Add(newRusher("g", geom.Zero), Placement{}), ErrDuplicateEntity)

	sp.err = errors.New("boom")
	_, err = a.Spawn(Placement{Spec: spawn.Spec{Archetype: "grunt"}})
	assert.Error(t, err)

	assert.Equal(t, []string{"g"}, added)
}

func TestSpawnCommand(t *testing.T) {
	a := NewArena(&stubSpawner{}, Options{})
	require.NoError(t, a.Enqueue(SpawnCommand(Placement{Spec: spawn.Spec{Archetype: "grunt", ID: "late"}})))
	assert.Zero(t, a.Len())
	a.Step(0.1)
	snap, ok := a.Entity("late")
	require.True(t, ok)
	assert.Equal(t, "rusher", snap.Variant)
}

func TestTargetCommands(t *testing.T) {
	a := NewArena(nil, Options{})
	require.NoError(t, a.Enqueue(SetTargetCommand(combat.TargetRef{ID: "p", Position: geom.V(3, 0, 0)})))
	a.Step(0.1)
	ref, ok := a.Target()
	require.True(t, ok)
	assert.Equal(t, "p", ref.ID)

	require.NoError(t, a.Enqueue(ClearTargetCommand()))
	a.Step(0.1)
	_, ok = a.Target()
	assert.False(t, ok)
}

func TestEnqueueFull(t *testing.T) {
	a := NewArena(nil, Options{CommandQueue: 1})
	require.NoError(t, a.Enqueue(ClearTargetCommand()))
	assert.ErrorIs(t, a.Enqueue(ClearTargetCommand()), ErrQueueFull)
}

func TestSnapshotSortedAndRemove(t *testing.T) {
	a := NewArena(nil, Options{})
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, a.Add(newRusher(id, geom.Zero), Placement{}))
	}
	snaps := a.Snapshot()
	require.Len(t, snaps, 3)
	assert.Equal(t, "a", snaps[0].ID)
	assert.Equal(t, "c", snaps[2].ID)

	assert.True(t, a.Remove("b"))
	assert.False(t, a.Remove("b"))
	assert.Equal(t, 2, a.Len())
}

func TestStepper(t *testing.T) {
	a := NewArena(nil, Options{})
	a.Stepper()(50 * time.Millisecond)
	assert.InDelta(t, 0.05, a.Clock(), 1e-9)
}

// recordingDelayer runs delays on demand.
type recordingDelayer struct {
	names  []string
	delays []time.Duration
	fns    []scheduler.TaskFn
}

func (d *recordingDelayer) AddDelay(name string, delay time.Duration, fn scheduler.TaskFn) {
	d.names = append(d.names, name)
	d.delays = append(d.delays, delay)
	d.fns = append(d.fns, fn)
}

func TestRespawner(t *testing.T) {
	timers := &recordingDelayer{}
	a := NewArena(&stubSpawner{}, Options{})
	r := NewRespawner(a, timers, 10*time.Second, nil)

	dead := newRusher("g", geom.Zero)
	r.OnRemove(dead, Placement{Spec: spawn.Spec{Archetype: "grunt", ID: "g"}})
	assert.Empty(t, timers.names)

	r.OnRemove(dead, Placement{Spec: spawn.Spec{Archetype: "grunt", ID: "g"}, Respawn: true})
	require.Len(t, timers.fns, 1)
	assert.Equal(t, "respawn:g", timers.names[0])
	assert.Equal(t, 10*time.Second, timers.delays[0])

	timers.fns[0]()
	a.Step(0.1)
	_, ok := a.Entity("g")
	assert.True(t, ok)
}

func TestRespawnAfterDeathEndToEnd(t *testing.T) {
	timers := &recordingDelayer{}
	var r *Respawner
	a := NewArena(&stubSpawner{}, Options{OnRemove: func(e *combat.Entity, p Placement) { r.OnRemove(e, p) }})
	r = NewRespawner(a, timers, time.Second, nil)

	_, err := a.Spawn(Placement{Spec: spawn.Spec{Archetype: "grunt", ID: "g"}, Respawn: true})
	require.NoError(t, err)
	require.NoError(t, a.Enqueue(DamageCommand("g", 1000, "admin")))
	a.Step(0.1)
	assert.Zero(t, a.Len())

	require.Len(t, timers.fns, 1)
	timers.fns[0]()
	a.Step(0.1)
	snap, ok := a.Entity("g")
	require.True(t, ok)
	assert.True(t, snap.Alive)
	assert.Equal(t, 100.0, snap.Health)
}

func TestPublisherMirrorsArena(t *testing.T) {
	store := local.NewStore(local.Config{})
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	a := NewArena(nil, Options{})
	require.NoError(t, a.Add(newRusher("r1", geom.Zero), Placement{}))
	require.NoError(t, a.Add(newRusher("r2", geom.Zero), Placement{}))
	a.SetTarget(combat.TargetRef{ID: "player"})
	a.Step(0.1)

	p := NewPublisher(a, store, nil)
	require.NoError(t, p.Publish(ctx))

	all, err := store.HGetAll(ctx, EntitiesKey)
	require.NoError(t, err)
	require.Len(t, all, 2)
	var snap combat.Snapshot
	require.NoError(t, json.Unmarshal([]byte(all["r1"]), &snap))
	assert.Equal(t, "r1", snap.ID)

	raw, err := store.Get(ctx, StatusKey)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, uint64(1), st.Tick)
	assert.Equal(t, 2, st.Entities)
	assert.Equal(t, "player", st.TargetID)

	a.Remove("r2")
	require.NoError(t, p.Publish(ctx))
	all, err = store.HGetAll(ctx, EntitiesKey)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "r1")
}
