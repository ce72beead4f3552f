// Package perception derives what a combatant knows about its target from
// two transforms and a view cone / range / hearing configuration.
package perception

import "github.com/kasuganosora/combatcore/game/geom"

// Config is the static perception tuning of one combatant.
type Config struct {
	HearingRange float64 `json:"hearing_range" yaml:"hearing_range" toml:"hearing_range" mapstructure:"hearing_range" validate:"gte=0"`
	ViewAngle    float64 `json:"view_angle" yaml:"view_angle" toml:"view_angle" mapstructure:"view_angle" validate:"gte=0,lte=360"` // full cone, degrees
	ViewDistance float64 `json:"view_distance" yaml:"view_distance" toml:"view_distance" mapstructure:"view_distance" validate:"gte=0"`
}

// DefaultConfig is used when a bundle leaves perception empty.
var DefaultConfig = Config{HearingRange: 10, ViewAngle: 120, ViewDistance: 40}

// Occluder tests world geometry between two points. The core ships no
// implementation; a collision collaborator provides one.
type Occluder interface {
	Blocked(from, to geom.Vec3) bool
}

// Snapshot is the perception state for one tick. It is rebuilt every tick
// and never persisted.
type Snapshot struct {
	HasLineOfSight    bool      `json:"has_line_of_sight"`
	CanHear           bool      `json:"can_hear"`
	Distance          float64   `json:"distance"`
	LastSeen          float64   `json:"last_seen"` // entity clock seconds
	LastKnownPosition geom.Vec3 `json:"last_known_position"`
	HasMemory         bool      `json:"has_memory"`
	Config            Config    `json:"-"`
}

// Since returns how long ago the target was last seen, or -1 without memory.
func (s Snapshot) Since(now float64) float64 {
	if !s.HasMemory {
		return -1
	}
	return now - s.LastSeen
}

// Model holds perception memory between ticks.
type Model struct {
	Config   Config
	Occluder Occluder

	snap Snapshot
}

// NewModel creates a Model. A zero Config falls back to DefaultConfig.
func NewModel(cfg Config) *Model {
	if cfg == (Config{}) {
		cfg = DefaultConfig
	}
	return &Model{Config: cfg, snap: Snapshot{Config: cfg}}
}

// InCone reports whether target lies within the view cone and range of an
// observer at origin looking along facing. A zero facing sees all around.
func (m *Model) InCone(origin, facing, target geom.Vec3) bool {
	to := target.Sub(origin)
	if to.Len() > m.Config.ViewDistance {
		return false
	}
	return geom.AngleBetween(facing, to) <= m.Config.ViewAngle/2
}

// Sense refreshes the snapshot. Memory of the last sighting persists
// across ticks where the target is not visible.
func (m *Model) Sense(origin, facing geom.Vec3, target *geom.Vec3, now float64) Snapshot {
	m.snap.Config = m.Config
	if target == nil {
		m.snap.HasLineOfSight = false
		m.snap.CanHear = false
		return m.snap
	}
	dist := geom.Dist(origin, *target)
	m.snap.Distance = dist
	m.snap.CanHear = dist <= m.Config.HearingRange
	los := m.InCone(origin, facing, *target)
	if los && m.Occluder != nil && m.Occluder.Blocked(origin, *target) {
		los = false
	}
	m.snap.HasLineOfSight = los
	if los {
		m.snap.LastSeen = now
		m.snap.LastKnownPosition = *target
		m.snap.HasMemory = true
	}
	return m.snap
}

// Snapshot returns the most recent snapshot.
func (m *Model) Snapshot() Snapshot { return m.snap }

// Forget drops the remembered sighting.
func (m *Model) Forget() {
	m.snap.HasMemory = false
	m.snap.HasLineOfSight = false
	m.snap.LastSeen = 0
	m.snap.LastKnownPosition = geom.Zero
}
