package combat

import (
	"github.com/kasuganosora/combatcore/game/event"
	"github.com/kasuganosora/combatcore/game/geom"
)

// DamageInfo is the payload of a damage event.
type DamageInfo struct {
	Amount   float64 `json:"amount"`
	Absorbed float64 `json:"absorbed"`
	Lost     float64 `json:"lost"`
	Health   float64 `json:"health"`
	Armor    float64 `json:"armor"`
	Source   string  `json:"source,omitempty"`
}

// DeathInfo is the payload of a death event.
type DeathInfo struct {
	Source   string    `json:"source,omitempty"`
	Position geom.Vec3 `json:"position"`
}

// StateChangeInfo is the payload of a state-change event.
type StateChangeInfo struct {
	From State `json:"-"`
	To   State `json:"-"`
}

// MarshalJSON emits state names rather than numbers.
func (s StateChangeInfo) MarshalJSON() ([]byte, error) {
	return []byte(`{"from":"` + s.From.String() + `","to":"` + s.To.String() + `"}`), nil
}

func (e *Entity) emit(kind event.Kind, payload any) {
	e.events.Emit(event.Event{Kind: kind, SourceID: e.id, Time: e.clock, Payload: payload})
}

// Emit publishes a component-defined event on the entity's center.
func (e *Entity) Emit(kind event.Kind, payload any) { e.emit(kind, payload) }

// OnDeath subscribes to the entity's death.
func (e *Entity) OnDeath(fn func(DeathInfo)) *event.Subscription {
	return e.events.Subscribe(event.Death, func(ev event.Event) {
		if p, ok := ev.Payload.(DeathInfo); ok {
			fn(p)
		}
	})
}

// OnDamage subscribes to every damage instance.
func (e *Entity) OnDamage(fn func(DamageInfo)) *event.Subscription {
	return e.events.Subscribe(event.Damage, func(ev event.Event) {
		if p, ok := ev.Payload.(DamageInfo); ok {
			fn(p)
		}
	})
}

// OnStateChange subscribes to state transitions.
func (e *Entity) OnStateChange(fn func(StateChangeInfo)) *event.Subscription {
	return e.events.Subscribe(event.StateChange, func(ev event.Event) {
		if p, ok := ev.Payload.(StateChangeInfo); ok {
			fn(p)
		}
	})
}

// On subscribes to any event kind raised by the entity or its components.
func (e *Entity) On(kind event.Kind, fn event.Handler) *event.Subscription {
	return e.events.Subscribe(kind, fn)
}

// EnrageInfo is the payload of an enrage event.
type EnrageInfo struct {
	HealthFraction   float64 `json:"health_fraction"`
	DamageMultiplier float64 `json:"damage_multiplier"`
	SpeedMultiplier  float64 `json:"speed_multiplier"`
}

// VocalAlertInfo is the payload of a vocal alert. Group-alert systems
// listen for it to pull nearby allies in.
type VocalAlertInfo struct {
	Position geom.Vec3 `json:"position"`
	TargetID string    `json:"target_id,omitempty"`
	Target   geom.Vec3 `json:"target"`
}
