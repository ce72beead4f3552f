package tactic

import (
	"math"

	"github.com/kasuganosora/combatcore/game/combat"
	"github.com/kasuganosora/combatcore/game/geom"
)

// CoverWeights balances the three cover scoring terms.
type CoverWeights struct {
	Self    float64 `json:"self" yaml:"self" toml:"self"`
	Band    float64 `json:"band" yaml:"band" toml:"band"`
	Quality float64 `json:"quality" yaml:"quality" toml:"quality"`
}

// DefaultCoverWeights favors nearby spots that face away from the threat.
var DefaultCoverWeights = CoverWeights{Self: 10, Band: 0.25, Quality: 1}

// ScoreCover rates a spot for an entity at self hiding from threat.
// Closeness is 1/(1+d). The band term is how far the spot lies beyond
// maxDistance from the threat. The quality term adds the spot's static
// bonus to the alignment of its facing with the away-from-threat direction.
func ScoreCover(spot combat.CoverSpot, self, threat geom.Vec3, maxDistance float64, w CoverWeights) float64 {
	closeness := 1 / (1 + geom.Dist(self, spot.Position))
	beyond := math.Max(0, geom.Dist(spot.Position, threat)-maxDistance)
	align := 0.0
	if f := spot.Facing.Flat().Norm(); !f.IsZero() {
		align = f.Dot(spot.Position.Sub(threat).Flat().Norm())
	}
	return w.Self*closeness + w.Band*beyond + w.Quality*(align+spot.Quality)
}

// SelectCover returns the best scoring spot. A spot at avoid is skipped
// when there is any alternative, so repositioning always picks a fresh one.
func SelectCover(spots []combat.CoverSpot, self, threat geom.Vec3, maxDistance float64, w CoverWeights, avoid *geom.Vec3) (combat.CoverSpot, bool) {
	var (
		best      combat.CoverSpot
		bestScore = math.Inf(-1)
		found     bool
	)
	for _, s := range spots {
		if avoid != nil && len(spots) > 1 && geom.Dist(s.Position, *avoid) < 1e-6 {
			continue
		}
		if score := ScoreCover(s, self, threat, maxDistance, w); score > bestScore {
			best, bestScore, found = s, score, true
		}
	}
	return best, found
}

// ProbeCover generates six candidate spots at radius around self: ±X, ±Z
// and the two diagonals leading away from threat. No occlusion test is
// done, so these are only positions, not real cover.
func ProbeCover(self, threat geom.Vec3, radius float64) []combat.CoverSpot {
	away := self.Sub(threat).Flat().Norm()
	if away.IsZero() {
		away = geom.V(0, 0, -1)
	}
	dirs := []geom.Vec3{
		geom.V(1, 0, 0), geom.V(-1, 0, 0),
		geom.V(0, 0, 1), geom.V(0, 0, -1),
		away.Rotate(45), away.Rotate(-45),
	}
	spots := make([]combat.CoverSpot, 0, len(dirs))
	for _, d := range dirs {
		p := self.Add(d.Scale(radius))
		spots = append(spots, combat.CoverSpot{
			Position: p,
			Facing:   p.Sub(threat).Flat().Norm(),
		})
	}
	return spots
}
