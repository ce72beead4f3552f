package world

import (
	"fmt"

	"github.com/kasuganosora/combatcore/game/combat"
)

// Command is a mutation applied at the start of the next step, on the tick
// goroutine.
type Command struct {
	name  string
	apply func(a *Arena) error
}

func (c Command) Name() string { return c.name }

func (a *Arena) lookup(id string) (*combat.Entity, error) {
	s, ok := a.slots[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrEntityNotFound)
	}
	return s.entity, nil
}

// DamageCommand deals amount to an entity on behalf of source.
func DamageCommand(id string, amount float64, source string) Command {
	return Command{name: "damage", apply: func(a *Arena) error {
		e, err := a.lookup(id)
		if err != nil {
			return err
		}
		e.TakeDamage(amount, source)
		return nil
	}}
}

func StunCommand(id string, seconds float64) Command {
	return Command{name: "stun", apply: func(a *Arena) error {
		e, err := a.lookup(id)
		if err != nil {
			return err
		}
		e.Stun(seconds)
		return nil
	}}
}

func KillCommand(id, source string) Command {
	return Command{name: "kill", apply: func(a *Arena) error {
		e, err := a.lookup(id)
		if err != nil {
			return err
		}
		e.Die(source)
		return nil
	}}
}

// SpawnCommand spawns on the tick goroutine. OnAdd runs with the arena
// locked, so it must not call back into the arena.
func SpawnCommand(p Placement) Command {
	return Command{name: "spawn", apply: func(a *Arena) error {
		e, err := a.spawn(p)
		if err != nil {
			return err
		}
		a.added(e, p)
		return nil
	}}
}

func SetTargetCommand(ref combat.TargetRef) Command {
	return Command{name: "set_target", apply: func(a *Arena) error {
		a.target = &ref
		return nil
	}}
}

func ClearTargetCommand() Command {
	return Command{name: "clear_target", apply: func(a *Arena) error {
		a.target = nil
		return nil
	}}
}
