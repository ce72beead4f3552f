package combat

import "github.com/kasuganosora/combatcore/game/ai"

// Shared subtrees used by every tactic. All of them are safe to re-run each
// tick: they only set state, velocity and facing.

// HasTarget succeeds while the entity remembers a target.
func HasTarget() ai.Node {
	return ai.If(func(ctx *ai.Context) bool { return ctx.Target.Valid })
}

// SeesTarget succeeds while the target is in line of sight.
func SeesTarget() ai.Node {
	return ai.If(func(ctx *ai.Context) bool { return ctx.Perception.HasLineOfSight })
}

// Investigate stops and turns toward a target that is heard but not seen,
// so the view cone can pick it up on the next tick.
func Investigate(e *Entity) ai.Node {
	return ai.NewSequence(
		ai.If(func(ctx *ai.Context) bool {
			return e.target != nil && ctx.Perception.CanHear && !ctx.Perception.HasLineOfSight && !ctx.Target.Valid
		}),
		ai.Do(func(*ai.Context) ai.Status {
			e.SetState(StateIdle)
			e.Stop()
			e.Face(e.target.Position)
			return ai.StatusRunning
		}),
	)
}

// IdleOrPatrol is the fallback when no target is known: walk the patrol
// route if there is one, otherwise stand idle.
func IdleOrPatrol(e *Entity) ai.Node {
	return ai.NewSelector(
		ai.NewSequence(
			ai.If(func(*ai.Context) bool { return e.HasPatrol() }),
			ai.Do(func(*ai.Context) ai.Status {
				e.SetState(StatePatrol)
				e.PatrolStep()
				return ai.StatusRunning
			}),
		),
		ai.Do(func(*ai.Context) ai.Status {
			e.SetState(StateIdle)
			e.Stop()
			return ai.StatusSuccess
		}),
	)
}

// Chase runs toward the remembered target position.
func Chase(e *Entity) ai.Node {
	return ai.Do(func(ctx *ai.Context) ai.Status {
		e.SetState(StateChase)
		if e.MoveToward(ctx.Target.Position, e.RunSpeed()) {
			return ai.StatusSuccess
		}
		return ai.StatusRunning
	})
}
