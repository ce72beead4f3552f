package combat

import "go.uber.org/zap"

// Modifier is a named multiplicative layer over the base damage and speed.
// Effective values are always base × every active modifier, recomputed on
// each change, so layers never compound against already modified values.
type Modifier struct {
	Damage float64
	Speed  float64
}

// SetModifier adds or replaces the named layer.
func (e *Entity) SetModifier(name string, m Modifier) {
	if _, ok := e.modifiers[name]; !ok {
		e.modOrder = append(e.modOrder, name)
	}
	e.modifiers[name] = m
	e.recompute()
	e.logger.Debug("modifier set", zap.String("name", name),
		zap.Float64("damage", m.Damage), zap.Float64("speed", m.Speed))
}

// RemoveModifier drops the named layer.
func (e *Entity) RemoveModifier(name string) {
	if _, ok := e.modifiers[name]; !ok {
		return
	}
	delete(e.modifiers, name)
	n := 0
	for _, k := range e.modOrder {
		if k != name {
			e.modOrder[n] = k
			n++
		}
	}
	e.modOrder = e.modOrder[:n]
	e.recompute()
}

// Modifier returns the named layer.
func (e *Entity) Modifier(name string) (Modifier, bool) {
	m, ok := e.modifiers[name]
	return m, ok
}

func (e *Entity) recompute() {
	dmg, spd := 1.0, 1.0
	for _, k := range e.modOrder {
		m := e.modifiers[k]
		dmg *= m.Damage
		spd *= m.Speed
	}
	e.damage = e.baseDamage * dmg
	e.speedMul = spd
}

// Damage returns the effective damage per attack.
func (e *Entity) Damage() float64 { return e.damage }

// BaseDamage returns the unmodified damage.
func (e *Entity) BaseDamage() float64 { return e.baseDamage }

// SpeedMultiplier returns the product of all speed layers.
func (e *Entity) SpeedMultiplier() float64 { return e.speedMul }

// WalkSpeed returns the effective walk speed.
func (e *Entity) WalkSpeed() float64 { return e.movement.WalkSpeed * e.speedMul }

// RunSpeed returns the effective run speed.
func (e *Entity) RunSpeed() float64 { return e.movement.RunSpeed * e.speedMul }
