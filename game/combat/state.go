package combat

import (
	"context"

	"github.com/looplab/fsm"
)

// State enumerates the behavioral states of a combatant. Dead is terminal.
type State int

const (
	StateIdle State = iota
	StatePatrol
	StateChase
	StateAttack
	StateRetreat
	StateCover
	StateStunned
	StateDead
)

var stateNames = [...]string{"idle", "patrol", "chase", "attack", "retreat", "cover", "stunned", "dead"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ParseState maps a state name back to its State.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return StateIdle, false
}

func transitionEvent(s State) string { return "to_" + s.String() }

// newMachine builds the transition table: every state may be entered from
// every non-dead state, nothing leaves Dead. The generic leave/enter
// callbacks run the entity's exit and enter hooks in that order.
func newMachine(e *Entity) *fsm.FSM {
	src := make([]string, 0, len(stateNames)-1)
	for s := StateIdle; s < StateDead; s++ {
		src = append(src, s.String())
	}
	events := make(fsm.Events, 0, len(stateNames))
	for s := StateIdle; s <= StateDead; s++ {
		events = append(events, fsm.EventDesc{Name: transitionEvent(s), Src: src, Dst: s.String()})
	}
	return fsm.NewFSM(StateIdle.String(), events, fsm.Callbacks{
		"leave_state": func(_ context.Context, ev *fsm.Event) {
			if old, ok := ParseState(ev.Src); ok {
				e.exitState(old)
			}
		},
		"enter_state": func(_ context.Context, ev *fsm.Event) {
			old, _ := ParseState(ev.Src)
			next, ok := ParseState(ev.Dst)
			if !ok {
				return
			}
			e.prevState = old
			e.state = next
			e.enterState(next)
		},
	})
}
