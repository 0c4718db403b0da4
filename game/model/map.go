package model

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/tidwall/rtree"

	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/geom"
)

// Road is one axis-aligned road segment with integer endpoints. The
// walkable area is the segment widened by RoadHalfWidth on every side,
// endpoints included, so crossing roads overlap at intersections.
type Road struct {
	x0, y0 int
	x1, y1 int
}

// IsHorizontal reports whether the road runs along the x axis.
func (r Road) IsHorizontal() bool {
	return r.y0 == r.y1
}

// Start returns the first endpoint of the segment.
func (r Road) Start() geom.Point2D {
	return geom.Point2D{X: float64(r.x0), Y: float64(r.y0)}
}

// End returns the second endpoint of the segment.
func (r Road) End() geom.Point2D {
	return geom.Point2D{X: float64(r.x1), Y: float64(r.y1)}
}

// Bounds returns the walkable rectangle of the road.
func (r Road) Bounds() geom.Rect {
	return geom.Rect{
		MinX: math.Min(float64(r.x0), float64(r.x1)) - RoadHalfWidth,
		MinY: math.Min(float64(r.y0), float64(r.y1)) - RoadHalfWidth,
		MaxX: math.Max(float64(r.x0), float64(r.x1)) + RoadHalfWidth,
		MaxY: math.Max(float64(r.y0), float64(r.y1)) + RoadHalfWidth,
	}
}

// Contains reports whether the point lies on the road, borders included.
func (r Road) Contains(p geom.Point2D) bool {
	return r.Bounds().Contains(p)
}

// Office is a deposit point where dogs turn carried loot into score. Its
// string id carries a leading sigil followed by the numeric id used by
// the collision engine.
type Office struct {
	id       string
	gatherID uint32
	pos      geom.Point2D
	offset   geom.Vec2D
}

// ID returns the office id as written in the map definition.
func (o Office) ID() string { return o.id }

// GatherID returns the numeric id the office is registered under in the
// collision engine.
func (o Office) GatherID() uint32 { return o.gatherID }

// Pos returns the office position.
func (o Office) Pos() geom.Point2D { return o.pos }

// Offset returns the drawing offset of the office sprite.
func (o Office) Offset() geom.Vec2D { return o.offset }

// Map is the simulation view of one map definition: its road graph,
// offices and loot economy, plus the per-map speed and bag limits.
type Map struct {
	id          string
	name        string
	src         *config.Map
	roads       []Road
	offices     []Office
	lootValues  []int
	dogSpeed    float64
	bagCapacity int
	index       rtree.RTreeG[int]
}

// NewMap builds the simulation map from its definition, resolving the
// per-map overrides against the catalog defaults and indexing the roads
// for movement queries.
func NewMap(cfg *config.Config, src *config.Map) (*Map, error) {
	values, err := src.LootValues()
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", src.ID, err)
	}

	m := &Map{
		id:          src.ID,
		name:        src.Name,
		src:         src,
		lootValues:  values,
		dogSpeed:    cfg.DogSpeedFor(src),
		bagCapacity: cfg.BagCapacityFor(src),
	}

	for _, r := range src.Roads {
		road := Road{x0: r.X0, y0: r.Y0, x1: r.X0, y1: r.Y0}
		if r.X1 != nil {
			road.x1 = *r.X1
		} else {
			road.y1 = *r.Y1
		}
		m.roads = append(m.roads, road)
	}
	for i, road := range m.roads {
		b := road.Bounds()
		m.index.Insert([2]float64{b.MinX, b.MinY}, [2]float64{b.MaxX, b.MaxY}, i)
	}

	for _, o := range src.Offices {
		if len(o.ID) < 2 {
			return nil, fmt.Errorf("map %s: office id %q is too short", src.ID, o.ID)
		}
		gatherID, err := strconv.ParseUint(o.ID[1:], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("map %s: office id %q has no numeric part: %w", src.ID, o.ID, err)
		}
		m.offices = append(m.offices, Office{
			id:       o.ID,
			gatherID: uint32(gatherID),
			pos:      geom.Point2D{X: float64(o.X), Y: float64(o.Y)},
			offset:   geom.Vec2D{X: float64(o.OffsetX), Y: float64(o.OffsetY)},
		})
	}

	return m, nil
}

// ID returns the map id.
func (m *Map) ID() string { return m.id }

// Name returns the human-readable map name.
func (m *Map) Name() string { return m.name }

// Definition returns the raw map definition the map was built from.
func (m *Map) Definition() *config.Map { return m.src }

// Roads returns the road segments of the map.
func (m *Map) Roads() []Road { return m.roads }

// Offices returns the deposit offices of the map.
func (m *Map) Offices() []Office { return m.offices }

// LootTypeCount returns how many loot types the map defines.
func (m *Map) LootTypeCount() int { return len(m.lootValues) }

// LootValue returns the score value of the given loot type.
func (m *Map) LootValue(typeIndex int) (int, bool) {
	if typeIndex < 0 || typeIndex >= len(m.lootValues) {
		return 0, false
	}
	return m.lootValues[typeIndex], true
}

// DogSpeed returns the dog speed on this map, units per second.
func (m *Map) DogSpeed() float64 { return m.dogSpeed }

// BagCapacity returns how many loot items a dog can carry on this map.
func (m *Map) BagCapacity() int { return m.bagCapacity }

// SpawnPoint returns where a new dog appears: the start of the first
// road, or a random road point when randomized spawning is on.
func (m *Map) SpawnPoint(randomize bool, rng *rand.Rand) geom.Point2D {
	if randomize {
		return m.RandomPointOnRoad(rng)
	}
	return m.roads[0].Start()
}

// RandomPointOnRoad picks a uniformly random integer point on a
// uniformly chosen road.
func (m *Map) RandomPointOnRoad(rng *rand.Rand) geom.Point2D {
	road := m.roads[rng.Intn(len(m.roads))]
	if road.IsHorizontal() {
		lo, hi := road.x0, road.x1
		if lo > hi {
			lo, hi = hi, lo
		}
		return geom.Point2D{X: float64(lo + rng.Intn(hi-lo+1)), Y: float64(road.y0)}
	}
	lo, hi := road.y0, road.y1
	if lo > hi {
		lo, hi = hi, lo
	}
	return geom.Point2D{X: float64(road.x0), Y: float64(lo + rng.Intn(hi-lo+1))}
}

// roadsNear returns the indexes of roads whose walkable rectangle the
// segment from..to could touch. Candidates come from the spatial index
// and are verified against the exact rectangle, so the result is precise.
func (m *Map) roadsNear(from, to geom.Point2D) []int {
	queryMin := [2]float64{math.Min(from.X, to.X), math.Min(from.Y, to.Y)}
	queryMax := [2]float64{math.Max(from.X, to.X), math.Max(from.Y, to.Y)}

	var found []int
	m.index.Search(queryMin, queryMax, func(_, _ [2]float64, i int) bool {
		if m.roads[i].Bounds().IntersectsSegment(from, to) {
			found = append(found, i)
		}
		return true
	})
	return found
}
