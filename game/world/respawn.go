package world

import (
	"time"

	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/scheduler"
	"go.uber.org/zap"
)

// Delayer runs a named one-shot task; *scheduler.Scheduler satisfies it.
type Delayer interface {
	AddDelay(name string, delay time.Duration, fn scheduler.TaskFn)
}

// Respawner brings back entities whose placement asks for it.
type Respawner struct {
	arena  *Arena
	delay  time.Duration
	timers Delayer
	logger *zap.Logger
}

func NewRespawner(arena *Arena, timers Delayer, delay time.Duration, logger *zap.Logger) *Respawner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Respawner{arena: arena, delay: delay, timers: timers, logger: logger}
}

// OnRemove matches Options.OnRemove.
func (r *Respawner) OnRemove(e *combat.Entity, p Placement) {
	if !p.Respawn {
		return
	}
	name := "respawn:" + e.ID()
	r.logger.Info("respawn scheduled",
		zap.String("entity", e.ID()),
		zap.String("archetype", p.Spec.Archetype),
		zap.Duration("delay", r.delay))
	r.timers.AddDelay(name, r.delay, func() {
		if err := r.arena.Enqueue(SpawnCommand(p)); err != nil {
			r.logger.Warn("respawn not queued", zap.String("entity", e.ID()), zap.Error(err))
		}
	})
}
