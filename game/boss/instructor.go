package boss

import (
	"github.com/kasuganosora/combatcore/game/ai"
	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/event"
	"go.uber.org/zap"
)

// InstructorConfig tunes the Instructor boss. Times are in seconds.
type InstructorConfig struct {
	// training
	KeepMin      float64  `json:"keep_min" yaml:"keep_min" toml:"keep_min" validate:"gte=0"`
	KeepMax      float64  `json:"keep_max" yaml:"keep_max" toml:"keep_max" validate:"gtefield=KeepMin"`
	TipInterval  float64  `json:"tip_interval" yaml:"tip_interval" toml:"tip_interval" validate:"gte=0"`
	Tips         []string `json:"tips" yaml:"tips" toml:"tips"`
	DemoInterval float64  `json:"demo_interval" yaml:"demo_interval" toml:"demo_interval" validate:"gte=0"`
	Demos        []string `json:"demos" yaml:"demos" toml:"demos"`

	// combat
	MeleeRange      float64 `json:"melee_range" yaml:"melee_range" toml:"melee_range" validate:"gte=0"`
	ComboCount      int     `json:"combo_count" yaml:"combo_count" toml:"combo_count" validate:"gte=0"`
	ComboWindow     float64 `json:"combo_window" yaml:"combo_window" toml:"combo_window" validate:"gte=0"`
	ComboSpacing    float64 `json:"combo_spacing" yaml:"combo_spacing" toml:"combo_spacing" validate:"gte=0"`
	ComboCooldown   float64 `json:"combo_cooldown" yaml:"combo_cooldown" toml:"combo_cooldown" validate:"gte=0"`
	SpecialName     string  `json:"special_name" yaml:"special_name" toml:"special_name"`
	SpecialCooldown float64 `json:"special_cooldown" yaml:"special_cooldown" toml:"special_cooldown" validate:"gte=0"`
	SpecialRange    float64 `json:"special_range" yaml:"special_range" toml:"special_range" validate:"gte=0"`
	SpecialDuration float64 `json:"special_duration" yaml:"special_duration" toml:"special_duration" validate:"gte=0"`
	RapidCooldown   float64 `json:"rapid_cooldown" yaml:"rapid_cooldown" toml:"rapid_cooldown" validate:"gte=0"`
}

var DefaultInstructorConfig = InstructorConfig{
	KeepMin:      6,
	KeepMax:      12,
	TipInterval:  4,
	Tips:         []string{"Watch my stance before I strike.", "Move out of the line when I wind up.", "Use cover when I throw."},
	DemoInterval: 3,
	Demos:        []string{"guard", "sidestep", "feint"},

	MeleeRange:      3,
	ComboCount:      3,
	ComboWindow:     2,
	ComboSpacing:    0.4,
	ComboCooldown:   3,
	SpecialName:     "disabling_throw",
	SpecialCooldown: 10,
	SpecialRange:    15,
	SpecialDuration: 1.5,
	RapidCooldown:   0.35,
}

// DefaultInstructorPhases is a 50/50 split between training and combat.
var DefaultInstructorPhases = []Phase{
	{Name: "training", HealthBudget: 500, DamageMultiplier: 0.5, SpeedMultiplier: 0.7, Mechanics: []string{"teaching"}},
	{Name: "combat", HealthBudget: 500, DamageMultiplier: 1, SpeedMultiplier: 1, Mechanics: []string{"combo", "special"}},
}

// DefaultInstructorEnrage fires at a quarter of max health.
var DefaultInstructorEnrage = Enrage{Threshold: 0.25, DamageMultiplier: 1.5, SpeedMultiplier: 1.3}

func (c InstructorConfig) withDefaults() InstructorConfig {
	d := DefaultInstructorConfig
	def := func(v *float64, fallback float64) {
		if *v <= 0 {
			*v = fallback
		}
	}
	def(&c.KeepMin, d.KeepMin)
	def(&c.KeepMax, d.KeepMax)
	def(&c.TipInterval, d.TipInterval)
	def(&c.DemoInterval, d.DemoInterval)
	def(&c.MeleeRange, d.MeleeRange)
	def(&c.ComboWindow, d.ComboWindow)
	def(&c.ComboSpacing, d.ComboSpacing)
	def(&c.ComboCooldown, d.ComboCooldown)
	def(&c.SpecialCooldown, d.SpecialCooldown)
	def(&c.SpecialRange, d.SpecialRange)
	def(&c.SpecialDuration, d.SpecialDuration)
	def(&c.RapidCooldown, d.RapidCooldown)
	if c.ComboCount <= 0 {
		c.ComboCount = d.ComboCount
	}
	if c.SpecialName == "" {
		c.SpecialName = d.SpecialName
	}
	if len(c.Tips) == 0 {
		c.Tips = d.Tips
	}
	if len(c.Demos) == 0 {
		c.Demos = d.Demos
	}
	if c.KeepMax < c.KeepMin {
		c.KeepMax = c.KeepMin
	}
	return c
}

// TeachingTipInfo is the payload of a teaching-tip event.
type TeachingTipInfo struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// DemonstrationInfo is the payload of a demonstration event.
type DemonstrationInfo struct {
	Action string `json:"action"`
}

// Instructor is a two-phase boss. In training it keeps its distance,
// talks the player through its moves and shows them off without dealing
// damage. In combat it chains combos, throws a disabling projectile on a
// cooldown and, once enraged, lands rapid unmitigated strikes.
type Instructor struct {
	cfg  InstructorConfig
	orch *Orchestrator

	tipTimer   float64
	tipIndex   int
	tipsGiven  int
	demoTimer  float64
	demoIndex  int
	demosShown int

	comboHits     int
	comboWindow   float64
	comboSpacing  float64
	comboCooldown float64
	specialTimer  float64
	rapidTimer    float64
}

// NewInstructor builds the tactic and its orchestrator. Nil phases use
// DefaultInstructorPhases; the first phase is training, every later one is
// combat. The hook resetting the teaching counters is chained in front of
// phase 1's own OnEnter.
func NewInstructor(cfg InstructorConfig, phases []Phase, enrage Enrage, opts ...Option) *Instructor {
	if len(phases) == 0 {
		phases = DefaultInstructorPhases
	}
	in := &Instructor{cfg: cfg.withDefaults()}
	phases = append([]Phase(nil), phases...)
	if len(phases) > 1 {
		user := phases[1].OnEnter
		phases[1].OnEnter = func(e *combat.Entity, p Phase) {
			in.enterCombat(e)
			if user != nil {
				user(e, p)
			}
		}
	}
	in.orch = New(phases, enrage, opts...)
	in.specialTimer = in.cfg.SpecialCooldown
	return in
}

// Orchestrator returns the phase controller to attach to the entity.
func (in *Instructor) Orchestrator() *Orchestrator { return in.orch }

func (in *Instructor) Name() string { return "instructor" }

func (in *Instructor) Config() InstructorConfig { return in.cfg }

// Training reports whether the boss is still in its first phase.
func (in *Instructor) Training() bool { return in.orch.PhaseIndex() == 0 }

// TeachingCounters returns how many tips and demonstrations were given in
// the current training stint.
func (in *Instructor) TeachingCounters() (tips, demos int) { return in.tipsGiven, in.demosShown }

func (in *Instructor) enterCombat(e *combat.Entity) {
	in.tipTimer, in.tipIndex, in.tipsGiven = 0, 0, 0
	in.demoTimer, in.demoIndex, in.demosShown = 0, 0, 0
	in.comboHits, in.comboCooldown = 0, 0
	e.Logger().Debug("instructor entering combat")
}

func (in *Instructor) BuildTree(e *combat.Entity) ai.Node {
	dist := func(ctx *ai.Context) float64 { return e.DistanceTo(ctx.Target.Position) }
	inMelee := func(ctx *ai.Context) bool { return dist(ctx) <= in.cfg.MeleeRange }

	training := ai.NewSelector(
		ai.NewSequence(
			ai.If(func(ctx *ai.Context) bool { return dist(ctx) < in.cfg.KeepMin }),
			ai.Do(func(ctx *ai.Context) ai.Status {
				e.SetState(combat.StateRetreat)
				e.MoveAway(ctx.Target.Position, e.WalkSpeed())
				return ai.StatusRunning
			}),
		),
		ai.NewSequence(
			ai.If(func(ctx *ai.Context) bool { return dist(ctx) > in.cfg.KeepMax }),
			ai.Do(func(ctx *ai.Context) ai.Status {
				e.SetState(combat.StateChase)
				e.MoveToward(ctx.Target.Position, e.WalkSpeed())
				return ai.StatusRunning
			}),
		),
		ai.Do(func(ctx *ai.Context) ai.Status { return in.teach(e, ctx) }),
	)

	fight := ai.NewSelector(
		ai.NewSequence(
			ai.If(func(ctx *ai.Context) bool { return in.orch.Enraged() && inMelee(ctx) }),
			ai.Do(func(ctx *ai.Context) ai.Status { return in.rapid(e, ctx) }),
		),
		ai.NewSequence(
			ai.If(func(ctx *ai.Context) bool {
				return in.specialTimer <= 1e-9 && ctx.Perception.HasLineOfSight && dist(ctx) <= in.cfg.SpecialRange
			}),
			ai.Do(func(ctx *ai.Context) ai.Status { return in.throw(e, ctx) }),
		),
		ai.NewSequence(
			ai.If(inMelee),
			ai.Do(func(ctx *ai.Context) ai.Status { return in.combo(e, ctx) }),
		),
		combat.Chase(e),
	)

	return ai.NewSelector(
		ai.NewSequence(
			combat.HasTarget(),
			ai.NewSelector(
				ai.NewSequence(ai.If(func(*ai.Context) bool { return in.Training() }), training),
				fight,
			),
		),
		combat.Investigate(e),
		combat.IdleOrPatrol(e),
	)
}

func (in *Instructor) teach(e *combat.Entity, ctx *ai.Context) ai.Status {
	e.SetState(combat.StateIdle)
	e.Stop()
	e.Face(ctx.Target.Position)
	if in.tipTimer <= 1e-9 {
		tip := TeachingTipInfo{Index: in.tipIndex, Text: in.cfg.Tips[in.tipIndex%len(in.cfg.Tips)]}
		in.tipIndex = (in.tipIndex + 1) % len(in.cfg.Tips)
		in.tipsGiven++
		in.tipTimer = in.cfg.TipInterval
		e.Emit(event.TeachingTip, tip)
	}
	if in.demoTimer <= 1e-9 {
		action := in.cfg.Demos[in.demoIndex%len(in.cfg.Demos)]
		in.demoIndex = (in.demoIndex + 1) % len(in.cfg.Demos)
		in.demosShown++
		in.demoTimer = in.cfg.DemoInterval
		e.Emit(event.Demonstration, DemonstrationInfo{Action: action})
	}
	return ai.StatusRunning
}

func (in *Instructor) rapid(e *combat.Entity, ctx *ai.Context) ai.Status {
	e.SetState(combat.StateAttack)
	e.Stop()
	e.Face(ctx.Target.Position)
	if in.rapidTimer > 1e-9 {
		return ai.StatusRunning
	}
	in.rapidTimer = in.cfg.RapidCooldown
	e.EmitAttack(combat.Attack{Kind: combat.AttackMelee, Name: "rapid_strike", Damage: e.Damage(), Unmitigated: true})
	return ai.StatusSuccess
}

func (in *Instructor) throw(e *combat.Entity, ctx *ai.Context) ai.Status {
	e.SetState(combat.StateAttack)
	e.Face(ctx.Target.Position)
	if !in.orch.BeginSpecial(in.cfg.SpecialName, in.cfg.SpecialDuration) {
		return ai.StatusFailure
	}
	in.specialTimer = in.cfg.SpecialCooldown
	e.EmitAttack(combat.Attack{Kind: combat.AttackSpecial, Name: in.cfg.SpecialName, Damage: e.Damage()})
	return ai.StatusSuccess
}

func (in *Instructor) combo(e *combat.Entity, ctx *ai.Context) ai.Status {
	e.SetState(combat.StateAttack)
	e.Stop()
	e.Face(ctx.Target.Position)
	if in.comboCooldown > 1e-9 || in.comboSpacing > 1e-9 {
		return ai.StatusRunning
	}
	if in.comboHits == 0 {
		in.comboWindow = in.cfg.ComboWindow
	}
	in.comboHits++
	in.comboSpacing = in.cfg.ComboSpacing
	e.EmitAttack(combat.Attack{Kind: combat.AttackMelee, Name: "combo", Damage: e.Damage()})
	if in.comboHits >= in.cfg.ComboCount {
		in.endCombo(e)
	}
	return ai.StatusSuccess
}

func (in *Instructor) endCombo(e *combat.Entity) {
	e.Logger().Debug("combo finished", zap.Int("hits", in.comboHits))
	in.comboHits = 0
	in.comboCooldown = in.cfg.ComboCooldown
}

func (in *Instructor) Tick(e *combat.Entity, dt float64) {
	if in.Training() {
		in.tipTimer -= dt
		in.demoTimer -= dt
		return
	}
	// the throw cooldown starts once the special attack is over
	if !in.orch.SpecialActive() {
		in.specialTimer -= dt
	}
	in.rapidTimer -= dt
	in.comboSpacing -= dt
	in.comboCooldown -= dt
	if in.comboHits > 0 {
		in.comboWindow -= dt
		if in.comboWindow <= 1e-9 {
			in.endCombo(e)
		}
	}
}

func (in *Instructor) OnDamage(*combat.Entity, combat.DamageInfo) {}

func (in *Instructor) Describe() map[string]any {
	return map[string]any{
		"training":   in.Training(),
		"tips_given": in.tipsGiven,
		"combo_hits": in.comboHits,
	}
}
