package tactic

import (
	"math"
	"math/rand"
	"time"

	"github.com/kasuganosora/combatcore/game/ai"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/geom"
	"go.uber.org/zap"
)

// SoldierConfig tunes the Soldier strategy. Times are in seconds.
type SoldierConfig struct {
	MinDistance float64 `json:"min_distance" yaml:"min_distance" toml:"min_distance" validate:"gte=0"`
	MaxDistance float64 `json:"max_distance" yaml:"max_distance" toml:"max_distance" validate:"gte=0"`

	CoverHealthFraction  float64 `json:"cover_health_fraction" yaml:"cover_health_fraction" toml:"cover_health_fraction" validate:"gte=0,lte=1"`
	SuppressionPerHit    float64 `json:"suppression_per_hit" yaml:"suppression_per_hit" toml:"suppression_per_hit" validate:"gte=0"`
	SuppressionThreshold float64 `json:"suppression_threshold" yaml:"suppression_threshold" toml:"suppression_threshold" validate:"gte=0"`

	BurstRounds  int     `json:"burst_rounds" yaml:"burst_rounds" toml:"burst_rounds" validate:"gte=0"`
	BurstSpacing float64 `json:"burst_spacing" yaml:"burst_spacing" toml:"burst_spacing" validate:"gte=0"`
	BurstPause   float64 `json:"burst_pause" yaml:"burst_pause" toml:"burst_pause" validate:"gte=0"`

	GrenadeCooldownMin float64 `json:"grenade_cooldown_min" yaml:"grenade_cooldown_min" toml:"grenade_cooldown_min" validate:"gte=0"`
	GrenadeCooldownMax float64 `json:"grenade_cooldown_max" yaml:"grenade_cooldown_max" toml:"grenade_cooldown_max" validate:"gtefield=GrenadeCooldownMin"`
	GrenadeRange       float64 `json:"grenade_range" yaml:"grenade_range" toml:"grenade_range" validate:"gte=0"`
	GrenadeJitter      float64 `json:"grenade_jitter" yaml:"grenade_jitter" toml:"grenade_jitter" validate:"gte=0"`
	GrenadeDamage      float64 `json:"grenade_damage" yaml:"grenade_damage" toml:"grenade_damage" validate:"gte=0"` // 0 means twice the entity damage

	RepositionMin float64 `json:"reposition_min" yaml:"reposition_min" toml:"reposition_min" validate:"gte=0"`
	RepositionMax float64 `json:"reposition_max" yaml:"reposition_max" toml:"reposition_max" validate:"gtefield=RepositionMin"`
	ProbeRadius   float64 `json:"probe_radius" yaml:"probe_radius" toml:"probe_radius" validate:"gte=0"`

	Weights CoverWeights `json:"weights" yaml:"weights" toml:"weights"`
}

var DefaultSoldierConfig = SoldierConfig{
	MinDistance:          8,
	MaxDistance:          20,
	CoverHealthFraction:  0.5,
	SuppressionPerHit:    1,
	SuppressionThreshold: 2,
	BurstRounds:          3,
	BurstSpacing:         0.15,
	BurstPause:           0.5,
	GrenadeCooldownMin:   8,
	GrenadeCooldownMax:   12,
	GrenadeRange:         25,
	GrenadeJitter:        1.5,
	RepositionMin:        3,
	RepositionMax:        5,
	ProbeRadius:          6,
	Weights:              DefaultCoverWeights,
}

func (c SoldierConfig) withDefaults() SoldierConfig {
	d := DefaultSoldierConfig
	def := func(v *float64, fallback float64) {
		if *v <= 0 {
			*v = fallback
		}
	}
	def(&c.MinDistance, d.MinDistance)
	def(&c.MaxDistance, d.MaxDistance)
	def(&c.CoverHealthFraction, d.CoverHealthFraction)
	def(&c.SuppressionPerHit, d.SuppressionPerHit)
	def(&c.SuppressionThreshold, d.SuppressionThreshold)
	def(&c.BurstSpacing, d.BurstSpacing)
	def(&c.BurstPause, d.BurstPause)
	def(&c.GrenadeCooldownMin, d.GrenadeCooldownMin)
	def(&c.GrenadeCooldownMax, d.GrenadeCooldownMax)
	def(&c.GrenadeRange, d.GrenadeRange)
	def(&c.GrenadeJitter, d.GrenadeJitter)
	def(&c.RepositionMin, d.RepositionMin)
	def(&c.RepositionMax, d.RepositionMax)
	def(&c.ProbeRadius, d.ProbeRadius)
	if c.BurstRounds <= 0 {
		c.BurstRounds = d.BurstRounds
	}
	if c.Weights == (CoverWeights{}) {
		c.Weights = d.Weights
	}
	if c.MaxDistance < c.MinDistance {
		c.MaxDistance = c.MinDistance
	}
	if c.GrenadeCooldownMax < c.GrenadeCooldownMin {
		c.GrenadeCooldownMax = c.GrenadeCooldownMin
	}
	if c.RepositionMax < c.RepositionMin {
		c.RepositionMax = c.RepositionMin
	}
	return c
}

// Soldier fights at range from an engagement band, falls back to cover
// when hurt or pinned down, fires in short bursts and lobs grenades.
type Soldier struct {
	cfg SoldierConfig
	rng *rand.Rand

	suppression float64

	roundsLeft int
	roundTimer float64

	grenadeTimer    float64
	repositionTimer float64
	repositioning   bool
	inBand          bool
	lastSpot        *geom.Vec3
}

// NewSoldier creates the strategy. rng drives grenade jitter and timer
// rolls; nil seeds one from the clock.
func NewSoldier(cfg SoldierConfig, rng *rand.Rand) *Soldier {
	cfg = cfg.withDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Soldier{cfg: cfg, rng: rng, roundsLeft: cfg.BurstRounds}
	s.grenadeTimer = s.between(cfg.GrenadeCooldownMin, cfg.GrenadeCooldownMax)
	s.repositionTimer = s.between(cfg.RepositionMin, cfg.RepositionMax)
	return s
}

func (s *Soldier) Name() string { return "soldier" }

func (s *Soldier) Config() SoldierConfig { return s.cfg }

// Suppression returns the accumulated suppression in seconds.
func (s *Soldier) Suppression() float64 { return s.suppression }

// NeedsCover reports whether the soldier is hurt or pinned down.
func (s *Soldier) NeedsCover(e *combat.Entity) bool {
	return e.HealthFraction() < s.cfg.CoverHealthFraction || s.suppression > s.cfg.SuppressionThreshold
}

func (s *Soldier) between(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Soldier) BuildTree(e *combat.Entity) ai.Node {
	dist := func(ctx *ai.Context) float64 { return e.DistanceTo(ctx.Target.Position) }
	return ai.NewSelector(
		ai.NewSequence(
			combat.HasTarget(),
			ai.NewSelector(
				// a throw never consumes the tick
				&ai.Failer{Child: ai.NewSequence(
					ai.If(func(ctx *ai.Context) bool {
						return s.grenadeTimer <= 1e-9 && dist(ctx) <= s.cfg.GrenadeRange
					}),
					ai.Do(func(ctx *ai.Context) ai.Status { return s.throw(e, ctx) }),
				)},
				ai.NewSequence(
					ai.If(func(*ai.Context) bool { return s.holdCover(e) }),
					ai.Do(func(ctx *ai.Context) ai.Status { return s.cover(e, ctx) }),
				),
				ai.NewSequence(
					ai.If(func(ctx *ai.Context) bool { return dist(ctx) < s.cfg.MinDistance }),
					ai.Do(func(ctx *ai.Context) ai.Status {
						e.SetState(combat.StateRetreat)
						e.MoveAway(ctx.Target.Position, e.RunSpeed())
						return ai.StatusRunning
					}),
				),
				ai.NewSequence(
					ai.If(func(ctx *ai.Context) bool { return dist(ctx) > s.cfg.MaxDistance }),
					combat.Chase(e),
				),
				ai.NewSequence(
					ai.If(func(*ai.Context) bool { return s.repositionTimer <= 1e-9 }),
					ai.Do(func(ctx *ai.Context) ai.Status { return s.reposition(e, ctx) }),
				),
				ai.Do(func(ctx *ai.Context) ai.Status { return s.engage(e, ctx) }),
			),
		),
		combat.Investigate(e),
		combat.IdleOrPatrol(e),
	)
}

// Tick runs timers. The reposition timer only advances while the last
// tree pass fought from the band, or while a reposition is under way.
func (s *Soldier) Tick(e *combat.Entity, dt float64) {
	s.suppression = math.Max(0, s.suppression-dt)
	s.roundTimer -= dt
	s.grenadeTimer -= dt
	if s.inBand || (s.repositioning && e.State() == combat.StateCover) {
		s.repositionTimer -= dt
	}
	s.inBand = false
}

// OnDamage raises suppression and, when that or the hit itself makes
// cover necessary, moves to Cover before TakeDamage returns.
func (s *Soldier) OnDamage(e *combat.Entity, _ combat.DamageInfo) {
	s.suppression += s.cfg.SuppressionPerHit
	if s.NeedsCover(e) && e.State() != combat.StateCover {
		s.repositioning = false
		s.takeCover(e, threatOf(e), nil)
	}
}

func (s *Soldier) OnEnter(*combat.Entity, combat.State) {}

func (s *Soldier) OnExit(_ *combat.Entity, from combat.State) {
	if from == combat.StateCover {
		s.repositioning = false
		s.repositionTimer = s.between(s.cfg.RepositionMin, s.cfg.RepositionMax)
	}
}

// holdCover keeps the cover branch active while cover is needed or a
// reposition is under way.
func (s *Soldier) holdCover(e *combat.Entity) bool {
	return s.NeedsCover(e) || (e.State() == combat.StateCover && s.repositioning)
}

func (s *Soldier) takeCover(e *combat.Entity, threat geom.Vec3, avoid *geom.Vec3) bool {
	spots := e.CoverSpots()
	if len(spots) == 0 {
		spots = ProbeCover(e.Position, threat, s.cfg.ProbeRadius)
	}
	spot, ok := SelectCover(spots, e.Position, threat, s.cfg.MaxDistance, s.cfg.Weights, avoid)
	if !ok {
		return false
	}
	if e.State() != combat.StateCover && !e.SetState(combat.StateCover) {
		return false
	}
	e.SetActiveCover(spot)
	p := spot.Position
	s.lastSpot = &p
	e.Logger().Debug("taking cover",
		zap.Float64("x", p.X), zap.Float64("z", p.Z), zap.Bool("reposition", s.repositioning))
	return true
}

func (s *Soldier) cover(e *combat.Entity, ctx *ai.Context) ai.Status {
	if _, ok := e.ActiveCover(); !ok || e.State() != combat.StateCover {
		if !s.takeCover(e, ctx.Target.Position, nil) {
			return ai.StatusFailure
		}
	}
	spot, _ := e.ActiveCover()
	if !e.MoveToward(spot.Position, e.RunSpeed()) {
		return ai.StatusRunning
	}
	if s.repositioning && !s.NeedsCover(e) && s.repositionTimer <= 1e-9 {
		s.repositioning = false
		s.repositionTimer = s.between(s.cfg.RepositionMin, s.cfg.RepositionMax)
		return ai.StatusFailure
	}
	e.Face(ctx.Target.Position)
	if ctx.Perception.HasLineOfSight {
		s.fire(e)
	}
	return ai.StatusRunning
}

func (s *Soldier) reposition(e *combat.Entity, ctx *ai.Context) ai.Status {
	s.inBand = true
	s.repositioning = true
	if !s.takeCover(e, ctx.Target.Position, s.lastSpot) {
		s.repositioning = false
		return ai.StatusFailure
	}
	s.repositionTimer = s.between(s.cfg.RepositionMin, s.cfg.RepositionMax)
	return ai.StatusRunning
}

func (s *Soldier) engage(e *combat.Entity, ctx *ai.Context) ai.Status {
	s.inBand = true
	if !ctx.Perception.HasLineOfSight {
		e.SetState(combat.StateChase)
		if e.MoveToward(ctx.Target.Position, e.WalkSpeed()) {
			return ai.StatusSuccess
		}
		return ai.StatusRunning
	}
	e.SetState(combat.StateAttack)
	e.Stop()
	e.Face(ctx.Target.Position)
	s.fire(e)
	return ai.StatusRunning
}

// fire emits one burst round when the spacing or pause has elapsed.
func (s *Soldier) fire(e *combat.Entity) bool {
	if s.roundTimer > 1e-9 {
		return false
	}
	e.EmitAttack(combat.Attack{Kind: combat.AttackRound, Name: "burst", Damage: e.Damage()})
	s.roundsLeft--
	next := s.cfg.BurstSpacing
	if s.roundsLeft <= 0 {
		s.roundsLeft = s.cfg.BurstRounds
		next = s.cfg.BurstPause
	}
	s.roundTimer = math.Max(s.roundTimer, 0) + next
	return true
}

func (s *Soldier) throw(e *combat.Entity, ctx *ai.Context) ai.Status {
	j := s.cfg.GrenadeJitter
	aim := ctx.Target.Position.Add(geom.V(s.between(-j, j), 0, s.between(-j, j)))
	dmg := s.cfg.GrenadeDamage
	if dmg <= 0 {
		dmg = 2 * e.Damage()
	}
	e.EmitAttack(combat.Attack{Kind: combat.AttackGrenade, Name: "grenade", Damage: dmg, Aim: aim})
	s.grenadeTimer = s.between(s.cfg.GrenadeCooldownMin, s.cfg.GrenadeCooldownMax)
	return ai.StatusSuccess
}

// threatOf guesses where fire is coming from: the remembered target, the
// injected target, or straight ahead.
func threatOf(e *combat.Entity) geom.Vec3 {
	if e.TargetKnown() {
		return e.AimPoint()
	}
	if ref, ok := e.Target(); ok {
		return ref.Position
	}
	return e.Position.Add(e.Facing.Scale(10))
}

func (s *Soldier) Describe() map[string]any {
	return map[string]any{
		"suppression":      s.suppression,
		"rounds_left":      s.roundsLeft,
		"grenade_cooldown": math.Max(0, s.grenadeTimer),
		"repositioning":    s.repositioning,
	}
}
