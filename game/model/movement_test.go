package model

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogwalk/gameserver/game/geom"
)

func townMap(t *testing.T) *Map {
	t.Helper()
	return newTestGame(t, townCatalog, Settings{}).Maps()[0]
}

func TestClampedMove(t *testing.T) {
	m := townMap(t)

	tests := []struct {
		name    string
		from    geom.Point2D
		speed   geom.Vec2D
		dir     Direction
		delta   time.Duration
		want    geom.Point2D
		stopped bool
	}{
		{
			name:  "standing still",
			from:  geom.Point2D{X: 5, Y: 0},
			dir:   DirNone,
			delta: time.Second,
			want:  geom.Point2D{X: 5, Y: 0},
		},
		{
			name:  "full move along the road",
			from:  geom.Point2D{X: 2, Y: 0},
			speed: geom.Vec2D{X: 2, Y: 0},
			dir:   DirEast,
			delta: time.Second,
			want:  geom.Point2D{X: 4, Y: 0},
		},
		{
			name:    "clamp east at the far edge",
			from:    geom.Point2D{X: 9, Y: 0},
			speed:   geom.Vec2D{X: 2, Y: 0},
			dir:     DirEast,
			delta:   time.Second,
			want:    geom.Point2D{X: 10.4, Y: 0},
			stopped: true,
		},
		{
			name:    "clamp west at the near edge",
			from:    geom.Point2D{X: 1, Y: 0},
			speed:   geom.Vec2D{X: -2, Y: 0},
			dir:     DirWest,
			delta:   time.Second,
			want:    geom.Point2D{X: -0.4, Y: 0},
			stopped: true,
		},
		{
			name:    "clamp north on the vertical road",
			from:    geom.Point2D{X: 10, Y: 1},
			speed:   geom.Vec2D{X: 0, Y: -2},
			dir:     DirNorth,
			delta:   time.Second,
			want:    geom.Point2D{X: 10, Y: -0.4},
			stopped: true,
		},
		{
			name:    "clamp south at the road end",
			from:    geom.Point2D{X: 10, Y: 9.5},
			speed:   geom.Vec2D{X: 0, Y: 2},
			dir:     DirSouth,
			delta:   time.Second,
			want:    geom.Point2D{X: 10, Y: 10.4},
			stopped: true,
		},
		{
			name:    "off-center dog keeps its lane",
			from:    geom.Point2D{X: 9.7, Y: 0.2},
			speed:   geom.Vec2D{X: 2, Y: 0},
			dir:     DirEast,
			delta:   time.Second,
			want:    geom.Point2D{X: 10.4, Y: 0.2},
			stopped: true,
		},
		{
			name:  "clear of every road",
			from:  geom.Point2D{X: 5, Y: 5},
			speed: geom.Vec2D{X: 2, Y: 0},
			dir:   DirEast,
			delta: time.Second,
			want:  geom.Point2D{X: 5, Y: 5},
		},
		{
			name:  "zero time slice",
			from:  geom.Point2D{X: 9, Y: 0},
			speed: geom.Vec2D{X: 2, Y: 0},
			dir:   DirEast,
			delta: 0,
			want:  geom.Point2D{X: 9, Y: 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, stopped := m.ClampedMove(tc.from, tc.speed, tc.dir, tc.delta)
			assert.InDelta(t, tc.want.X, got.X, 1e-9)
			assert.InDelta(t, tc.want.Y, got.Y, 1e-9)
			assert.Equal(t, tc.stopped, stopped)
		})
	}
}

func TestClampedMovePicksFarthestStop(t *testing.T) {
	// Two collinear roads overlapping around x=10: a dog standing on
	// both and running east must stop at the farther edge.
	catalog := `{
	  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
	  "maps": [{
	    "id": "strip", "name": "Strip",
	    "roads": [
	      {"x0": 0, "y0": 0, "x1": 10},
	      {"x0": 10, "y0": 0, "x1": 14}
	    ],
	    "buildings": [],
	    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [{"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10}]
	  }]
	}`
	m := newTestGame(t, catalog, Settings{}).Maps()[0]

	got, stopped := m.ClampedMove(geom.Point2D{X: 10, Y: 0}, geom.Vec2D{X: 10, Y: 0}, DirEast, time.Second)
	assert.True(t, stopped)
	assert.InDelta(t, 14.4, got.X, 1e-9)
	assert.Zero(t, got.Y)
}

func TestRoadGeometry(t *testing.T) {
	m := townMap(t)
	roads := m.Roads()
	require.Len(t, roads, 2)

	h := roads[0]
	assert.True(t, h.IsHorizontal())
	b := h.Bounds()
	assert.InDelta(t, -0.4, b.MinX, 1e-9)
	assert.InDelta(t, -0.4, b.MinY, 1e-9)
	assert.InDelta(t, 10.4, b.MaxX, 1e-9)
	assert.InDelta(t, 0.4, b.MaxY, 1e-9)
	assert.True(t, h.Contains(geom.Point2D{X: -0.4, Y: -0.4}), "borders belong to the road")
	assert.False(t, h.Contains(geom.Point2D{X: 10.5, Y: 0}))

	v := roads[1]
	assert.False(t, v.IsHorizontal())
	assert.True(t, v.Contains(geom.Point2D{X: 9.6, Y: 10}))
}

func TestRandomPointOnRoad(t *testing.T) {
	m := townMap(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		p := m.RandomPointOnRoad(rng)
		assert.Equal(t, math.Trunc(p.X), p.X, "coordinates are integral")
		assert.Equal(t, math.Trunc(p.Y), p.Y)

		onRoad := false
		for _, r := range m.Roads() {
			if r.Contains(p) {
				onRoad = true
			}
		}
		require.True(t, onRoad, "point %v must lie on a road", p)
	}
}

func TestSpawnPoint(t *testing.T) {
	m := townMap(t)
	rng := rand.New(rand.NewSource(7))

	fixed := m.SpawnPoint(false, rng)
	assert.Equal(t, geom.Point2D{X: 0, Y: 0}, fixed, "fixed spawns use the first road's start")

	random := m.SpawnPoint(true, rng)
	onRoad := false
	for _, r := range m.Roads() {
		if r.Contains(random) {
			onRoad = true
		}
	}
	assert.True(t, onRoad)
}
