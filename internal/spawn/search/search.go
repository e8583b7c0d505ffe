// Package search implements the two bounded safe-cell searches: a single
// column walk and a randomized surface probe around an origin.
package search

import (
	"math"

	"safespawn.ai/internal/spawn/model"
)

const (
	// MaxExcursion caps how far the column walk may move from the origin in
	// either direction.
	MaxExcursion = 64
	// NearbyAttempts is the sample budget of one nearby search.
	NearbyAttempts = 15
)

// Hazards is the classifier surface the searches consult.
type Hazards interface {
	IsBodyHazard(t model.BlockType) bool
	IsFloorHazard(t model.BlockType) bool
}

// Sampler yields uniform ints in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type Sampler interface {
	IntN(n int) int
}

func cell(t model.Terrain, world string, x, y, z, minY, maxY int) model.BlockType {
	if y < minY || y > maxY {
		return 0
	}
	return t.CellType(world, x, y, z)
}

func empty(t model.Terrain, world string, x, y, z, minY, maxY int) bool {
	if y < minY || y > maxY {
		return true
	}
	return t.IsEmpty(t.CellType(world, x, y, z))
}

// Vertical walks the origin's column to a standing cell that is clear for a
// two-cell body and not resting on a floor hazard. It keeps the origin's
// horizontal position and facing.
func Vertical(t model.Terrain, h Hazards, origin model.Coordinate) (model.Coordinate, bool) {
	world := origin.World
	minY, maxY := t.MinHeight(world), t.MaxHeight(world)
	x, startY, z := origin.Block()
	if startY > maxY {
		startY = maxY
	}
	if startY < minY {
		return model.Coordinate{}, false
	}

	y := startY
	for y > minY && empty(t, world, x, y-1, z, minY, maxY) {
		y--
		if startY-y > MaxExcursion {
			return model.Coordinate{}, false
		}
	}
	if empty(t, world, x, y-1, z, minY, maxY) {
		return model.Coordinate{}, false
	}

	for h.IsBodyHazard(cell(t, world, x, y, z, minY, maxY)) || h.IsBodyHazard(cell(t, world, x, y+1, z, minY, maxY)) {
		if y >= maxY {
			return model.Coordinate{}, false
		}
		y++
		if y-startY > MaxExcursion {
			return model.Coordinate{}, false
		}
	}

	if h.IsFloorHazard(cell(t, world, x, y-1, z, minY, maxY)) {
		return model.Coordinate{}, false
	}

	out := origin
	out.Y = float64(y)
	return out, true
}

// Nearby samples up to NearbyAttempts columns around the origin and returns
// the first one whose surface is standable. Candidates stand at the center of
// their column and that center lies within [-radius, radius) of the origin on
// both axes.
func Nearby(t model.Terrain, h Hazards, rng Sampler, origin model.Coordinate, radius int) (model.Coordinate, bool) {
	if radius <= 0 {
		return model.Coordinate{}, false
	}
	world := origin.World
	minY, maxY := t.MinHeight(world), t.MaxHeight(world)
	x0 := firstColumn(origin.X, radius)
	z0 := firstColumn(origin.Z, radius)

	for i := 0; i < NearbyAttempts; i++ {
		x := x0 + rng.IntN(2*radius)
		z := z0 + rng.IntN(2*radius)
		top := t.HighestNonEmptyY(world, x, z)
		if top < minY || top >= maxY {
			continue
		}
		surface := t.CellType(world, x, top, z)
		if t.IsEmpty(surface) || h.IsFloorHazard(surface) {
			continue
		}
		return model.Coordinate{
			World: world,
			X:     float64(x) + 0.5,
			Y:     float64(top + 1),
			Z:     float64(z) + 0.5,
			Yaw:   origin.Yaw,
			Pitch: origin.Pitch,
		}, true
	}
	return model.Coordinate{}, false
}

// firstColumn is the lowest column whose center is at least o-radius. The
// 2*radius columns starting there all have centers in [o-radius, o+radius).
func firstColumn(o float64, radius int) int {
	return int(math.Ceil(o - float64(radius) - 0.5))
}
