package model

import (
	"math"
	"time"

	"github.com/dogwalk/gameserver/game/geom"
)

// epsilon is the float64 machine epsilon. Velocities below it on both
// axes count as standing still.
var epsilon = math.Nextafter(1, 2) - 1

// ClampedMove advances a point along the roads for the given time slice
// and returns where it ends up. The move succeeds in full when the
// target lies on any road near the path. Otherwise the point slides to
// the farthest road edge reachable on a road it currently stands on,
// and stopped is true so the caller can drop the velocity. A point that
// is not moving, or that stands clear of every road, stays put.
func (m *Map) ClampedMove(from geom.Point2D, speed geom.Vec2D, dir Direction, delta time.Duration) (pos geom.Point2D, stopped bool) {
	if dir == DirNone ||
		(math.Abs(speed.X) < epsilon && math.Abs(speed.Y) < epsilon) {
		return from, false
	}

	seconds := delta.Seconds()
	to := geom.Point2D{X: from.X + speed.X*seconds, Y: from.Y + speed.Y*seconds}

	candidates := m.roadsNear(from, to)
	if len(candidates) == 0 {
		return from, false
	}

	for _, i := range candidates {
		if m.roads[i].Contains(to) {
			return to, false
		}
	}

	// The target is off-road. Clamp the move against every road the
	// point stands on and keep the stop point farthest from the start.
	best := from
	bestDist := 0.0
	for _, i := range candidates {
		road := m.roads[i]
		if !road.Contains(from) {
			continue
		}
		candidate := stopPoint(from, to, road, dir)
		if dist := from.Sub(candidate).Len(); dist > bestDist {
			bestDist = dist
			best = candidate
		}
	}

	return best, true
}

// stopPoint clamps the target against the road edge in the direction of
// travel, keeping the cross-axis coordinate of the start point.
func stopPoint(from, to geom.Point2D, road Road, dir Direction) geom.Point2D {
	b := road.Bounds()
	switch dir {
	case DirEast:
		return geom.Point2D{X: math.Min(to.X, b.MaxX), Y: from.Y}
	case DirWest:
		return geom.Point2D{X: math.Max(to.X, b.MinX), Y: from.Y}
	case DirNorth:
		return geom.Point2D{X: from.X, Y: math.Max(to.Y, b.MinY)}
	case DirSouth:
		return geom.Point2D{X: from.X, Y: math.Min(to.Y, b.MaxY)}
	default:
		return from
	}
}
