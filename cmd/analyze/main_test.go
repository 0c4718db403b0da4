package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/geom"
	"github.com/dogwalk/gameserver/game/model"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func analyze(t *testing.T, path string) string {
	t.Helper()
	var buf bytes.Buffer
	analyzeCatalog(&buf, path)
	return buf.String()
}

func TestAnalyzeCatalog(t *testing.T) {
	path := writeCatalog(t, `{
	  "lootGeneratorConfig": {"period": 2.0, "probability": 0.35},
	  "maps": [{
	    "id": "town", "name": "Town", "dogSpeed": 2.0,
	    "roads": [
	      {"x0": 0, "y0": 0, "x1": 20},
	      {"x0": 0, "y0": 20, "x1": 20},
	      {"x0": 0, "y0": 0, "y1": 20},
	      {"x0": 20, "y0": 0, "y1": 20}
	    ],
	    "buildings": [],
	    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [
	      {"name": "coin", "file": "coin.obj", "type": "obj", "scale": 0.02, "value": 1},
	      {"name": "wallet", "file": "wallet.obj", "type": "obj", "scale": 0.01, "value": 30}
	    ]
	  }]
	}`)

	out := analyze(t, path)
	assert.Contains(t, out, "Map town (Town)")
	assert.Contains(t, out, "Roads: 4 (2 horizontal, 2 vertical), 4 intersections")
	assert.Contains(t, out, "Walkable length: 80 units across a 20x20 extent")
	assert.Contains(t, out, "Dog speed: 2.0 units/s, bag capacity: 3")
	assert.Contains(t, out, "Corner-to-corner walk: about 20s")
	assert.Contains(t, out, "Road graph is connected")
	assert.Contains(t, out, "All 1 offices are within gathering range")
	assert.Contains(t, out, "Loot: 2 types, values 1..30, average 15.5")
}

func TestAnalyzeCatalog_ShippedCatalog(t *testing.T) {
	out := analyze(t, "../../data/config.json")
	assert.Contains(t, out, "Map town (Town)")
	assert.Contains(t, out, "Map riverside (Riverside)")
	assert.NotContains(t, out, "WARNING")
	assert.NotContains(t, out, "CRITICAL")
}

func TestAnalyzeCatalog_MissingFile(t *testing.T) {
	out := analyze(t, "/non/existent/catalog.json")
	assert.Contains(t, out, "Error loading catalog")
}

func TestAnalyzeCatalog_BadJSON(t *testing.T) {
	out := analyze(t, writeCatalog(t, `{"maps": [}`))
	assert.Contains(t, out, "Error loading catalog")
}

func TestAnalyzeCatalog_UnreachableOffice(t *testing.T) {
	path := writeCatalog(t, `{
	  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
	  "maps": [{
	    "id": "town", "name": "Town",
	    "roads": [{"x0": 0, "y0": 0, "x1": 10}],
	    "buildings": [],
	    "offices": [{"id": "o0", "x": 50, "y": 50, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [{"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10}]
	  }]
	}`)

	out := analyze(t, path)
	assert.Contains(t, out, "CRITICAL: office o0")
	assert.Contains(t, out, "no dog can deposit there")
}

func TestAnalyzeCatalog_DisconnectedRoad(t *testing.T) {
	path := writeCatalog(t, `{
	  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
	  "maps": [{
	    "id": "town", "name": "Town",
	    "roads": [
	      {"x0": 0, "y0": 0, "x1": 10},
	      {"x0": 0, "y0": 20, "x1": 10}
	    ],
	    "buildings": [],
	    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [{"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10}]
	  }]
	}`)

	out := analyze(t, path)
	assert.Contains(t, out, "WARNING: 1 roads are not connected to road 0")
}

func TestSpawnRate(t *testing.T) {
	cfg := &config.Config{LootGeneratorConfig: config.LootGenerator{Period: 2.0, Probability: 0.35}}
	assert.InDelta(t, 10.5, spawnRate(cfg), 1e-9)

	cfg.LootGeneratorConfig.Period = 0
	assert.Zero(t, spawnRate(cfg))
}

func TestIntersections(t *testing.T) {
	cfg, err := config.Parse([]byte(`{
	  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
	  "maps": [{
	    "id": "town", "name": "Town",
	    "roads": [
	      {"x0": 0, "y0": 0, "x1": 20},
	      {"x0": 0, "y0": 10, "x1": 20},
	      {"x0": 5, "y0": 0, "y1": 10},
	      {"x0": 15, "y0": 0, "y1": 10}
	    ],
	    "buildings": [],
	    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [{"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10}]
	  }]
	}`))
	require.NoError(t, err)

	m, err := model.NewMap(cfg, &cfg.Maps[0])
	require.NoError(t, err)

	assert.Equal(t, 4, intersections(m.Roads()), "two crossing streets per avenue")
	assert.Empty(t, disconnectedRoads(m.Roads()))
}

func TestNearestRoadDistance(t *testing.T) {
	cfg, err := config.Parse([]byte(`{
	  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
	  "maps": [{
	    "id": "town", "name": "Town",
	    "roads": [{"x0": 0, "y0": 0, "x1": 10}],
	    "buildings": [],
	    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [{"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10}]
	  }]
	}`))
	require.NoError(t, err)

	m, err := model.NewMap(cfg, &cfg.Maps[0])
	require.NoError(t, err)
	roads := m.Roads()

	assert.Zero(t, nearestRoadDistance(roads, geom.Point2D{X: 5, Y: 0}))
	assert.InDelta(t, 1.6, nearestRoadDistance(roads, geom.Point2D{X: 5, Y: 2}), 1e-9)
}
