package combat

import (
	"math"

	"github.com/kasuganosora/combatcore/game/geom"
)

// Steering is direct-line only: there is no navigation mesh, entities head
// straight for the point they are given.

// MoveToward steers toward p at speed and reports whether p is within the
// arrive radius, in which case the entity stops.
func (e *Entity) MoveToward(p geom.Vec3, speed float64) bool {
	to := p.Sub(e.Position).Flat()
	d := to.Len()
	if d <= math.Max(e.movement.ArriveRadius, 1e-6) {
		e.Velocity = geom.Zero
		return true
	}
	dir := to.Scale(1 / d)
	// never overshoot the point within one tick of the last known length
	if e.lastDt > 0 && speed*e.lastDt > d {
		speed = d / e.lastDt
	}
	e.Velocity = dir.Scale(speed)
	e.Facing = dir
	return false
}

// MoveAway backs off from p at speed while still facing it.
func (e *Entity) MoveAway(p geom.Vec3, speed float64) {
	away := e.Position.Sub(p).Flat().Norm()
	if away.IsZero() {
		away = e.Facing.Flat().Scale(-1).Norm()
	}
	if away.IsZero() {
		away = geom.V(-1, 0, 0)
	}
	e.Velocity = away.Scale(speed)
	e.Facing = away.Scale(-1)
}

// Face turns toward p without moving.
func (e *Entity) Face(p geom.Vec3) {
	dir := p.Sub(e.Position).Flat().Norm()
	if !dir.IsZero() {
		e.Facing = dir
	}
}

// Stop zeroes velocity.
func (e *Entity) Stop() { e.Velocity = geom.Zero }

// DistanceTo returns the distance from the entity to p.
func (e *Entity) DistanceTo(p geom.Vec3) float64 { return geom.Dist(e.Position, p) }

// ---- Patrol ----

type patrolRoute struct {
	points []geom.Vec3
	index  int
	dir    int
}

func newPatrolRoute(points []geom.Vec3) patrolRoute {
	return patrolRoute{points: points, dir: 1}
}

func (r *patrolRoute) advance() {
	if len(r.points) < 2 {
		return
	}
	next := r.index + r.dir
	if next < 0 || next >= len(r.points) {
		r.dir = -r.dir
		next = r.index + r.dir
	}
	r.index = next
}

// HasPatrol reports whether a patrol route was configured.
func (e *Entity) HasPatrol() bool { return len(e.patrol.points) > 0 }

// Waypoint returns the current patrol waypoint and index.
func (e *Entity) Waypoint() (geom.Vec3, int) {
	if !e.HasPatrol() {
		return geom.Zero, -1
	}
	return e.patrol.points[e.patrol.index], e.patrol.index
}

// PatrolStep walks toward the current waypoint and moves on to the next
// one (ping-pong at the ends) on arrival.
func (e *Entity) PatrolStep() bool {
	if !e.HasPatrol() {
		return false
	}
	wp := e.patrol.points[e.patrol.index]
	if e.MoveToward(wp, e.WalkSpeed()) {
		e.patrol.advance()
	}
	return true
}

// ---- Cover ----

// CoverSpots returns the shared cover list. Callers must not modify it.
func (e *Entity) CoverSpots() []CoverSpot { return e.cover }

// ActiveCover returns the cover spot the entity is using.
func (e *Entity) ActiveCover() (CoverSpot, bool) {
	if e.activeCover == nil {
		return CoverSpot{}, false
	}
	return *e.activeCover, true
}

// SetActiveCover records the chosen cover spot.
func (e *Entity) SetActiveCover(c CoverSpot) {
	cs := c
	e.activeCover = &cs
}
