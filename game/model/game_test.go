package model

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/geom"
	"github.com/dogwalk/gameserver/game/lootgen"
)

// townCatalog is an L-shaped world: a horizontal road from (0,0) to
// (10,0) meeting a vertical road from (10,0) to (10,10), with one office
// at the west end.
const townCatalog = `{
  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
  "maps": [{
    "id": "town",
    "name": "Town",
    "dogSpeed": 2.0,
    "roads": [
      {"x0": 0, "y0": 0, "x1": 10},
      {"x0": 10, "y0": 0, "y1": 10}
    ],
    "buildings": [{"x": 2, "y": 2, "w": 3, "h": 3}],
    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
    "lootTypes": [
      {"name": "key", "file": "key.obj", "type": "obj", "rotation": 90, "color": "#338844", "scale": 0.03, "value": 10},
      {"name": "wallet", "file": "wallet.obj", "type": "obj", "rotation": 0, "color": "#883344", "scale": 0.01, "value": 30}
    ]
  }]
}`

func newTestGame(t *testing.T, catalog string, settings Settings, opts ...Option) *Game {
	t.Helper()
	cfg, err := config.Parse([]byte(catalog))
	require.NoError(t, err)
	g, err := NewGame(cfg, NewCounters(), settings, opts...)
	require.NoError(t, err)
	return g
}

type sinkFunc func(ctx context.Context, rec PlayerRecord) error

func (f sinkFunc) SaveRecord(ctx context.Context, rec PlayerRecord) error {
	return f(ctx, rec)
}

func TestSpawnDog(t *testing.T) {
	g := newTestGame(t, townCatalog, Settings{})

	dog, sess, err := g.SpawnDog("town", "Fido")
	require.NoError(t, err)
	assert.Equal(t, geom.Point2D{X: 0, Y: 0}, dog.Pos(), "spawn is the start of the first road")
	assert.Equal(t, "Fido", dog.Name())
	assert.Equal(t, DirNone, dog.Direction())

	dog2, sess2, err := g.SpawnDog("town", "Rex")
	require.NoError(t, err)
	assert.Same(t, sess, sess2, "one session per map")
	assert.Len(t, sess.Dogs(), 2)
	assert.NotEqual(t, dog.ID(), dog2.ID())

	_, _, err = g.SpawnDog("nowhere", "Ghost")
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestClampedStopAtRoadEdge(t *testing.T) {
	g := newTestGame(t, townCatalog, Settings{})
	dog, _, err := g.SpawnDog("town", "Fido")
	require.NoError(t, err)

	dog.SetPos(geom.Point2D{X: 9, Y: 0})
	dog.SetMove(DirEast, 2.0)

	require.NoError(t, g.Update(context.Background(), time.Second))

	assert.InDelta(t, 10.4, dog.Pos().X, 1e-9, "move clamps at the road edge")
	assert.Zero(t, dog.Pos().Y)
	assert.Equal(t, geom.Vec2D{}, dog.Speed(), "hitting the edge drops the velocity")
	assert.Equal(t, DirEast, dog.Direction(), "facing survives the stop")
}

func TestMoveThroughJunction(t *testing.T) {
	g := newTestGame(t, townCatalog, Settings{})
	dog, _, err := g.SpawnDog("town", "Fido")
	require.NoError(t, err)

	dog.SetPos(geom.Point2D{X: 8, Y: 0})
	dog.SetMove(DirEast, 2.0)
	require.NoError(t, g.Update(context.Background(), time.Second))
	assert.Equal(t, geom.Point2D{X: 10, Y: 0}, dog.Pos())
	assert.Equal(t, geom.Vec2D{X: 2, Y: 0}, dog.Speed(), "a full move keeps the velocity")

	dog.SetMove(DirSouth, 2.0)
	require.NoError(t, g.Update(context.Background(), time.Second))
	assert.Equal(t, geom.Point2D{X: 10, Y: 2}, dog.Pos(), "the turn continues on the crossing road")
	assert.Equal(t, geom.Vec2D{X: 0, Y: 2}, dog.Speed())
}

func TestPickupAndDeposit(t *testing.T) {
	g := newTestGame(t, townCatalog, Settings{})
	dog, sess, err := g.SpawnDog("town", "Fido")
	require.NoError(t, err)

	loot := NewLoot(g.Counters(), 1, 30, geom.Point2D{X: 3, Y: 0})
	sess.AddLoot(loot)

	// Sweep east over the item.
	dog.SetMove(DirEast, 2.0)
	require.NoError(t, g.Update(context.Background(), 2*time.Second))

	require.Len(t, dog.Bag(), 1)
	assert.Equal(t, loot.ID(), dog.Bag()[0].ID())
	assert.Empty(t, sess.Loot(), "a picked item leaves the map")
	assert.Equal(t, 0, dog.Score(), "carrying scores nothing yet")

	// Walk back over the office.
	dog.SetMove(DirWest, 2.0)
	require.NoError(t, g.Update(context.Background(), 2*time.Second))

	assert.Equal(t, geom.Point2D{X: 0, Y: 0}, dog.Pos())
	assert.Empty(t, dog.Bag(), "the deposit empties the bag")
	assert.Equal(t, 30, dog.Score())
}

func TestPickupAndDepositSameTick(t *testing.T) {
	g := newTestGame(t, townCatalog, Settings{})
	dog, sess, err := g.SpawnDog("town", "Fido")
	require.NoError(t, err)

	loot := NewLoot(g.Counters(), 0, 3, geom.Point2D{X: 3, Y: 0})
	sess.AddLoot(loot)

	// One sweep from (5,0) to the west edge crosses the item at x=3 and
	// the office at x=0, in that order.
	dog.SetPos(geom.Point2D{X: 5, Y: 0})
	dog.SetMove(DirWest, 2.0)
	require.NoError(t, g.Update(context.Background(), 3*time.Second))

	assert.Empty(t, dog.Bag(), "the office past the item empties the bag")
	assert.Equal(t, 3, dog.Score())
	assert.Empty(t, sess.Loot())
}

func TestBagCapacityBound(t *testing.T) {
	catalog := `{
	  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
	  "maps": [{
	    "id": "town", "name": "Town", "dogSpeed": 2.0, "bagCapacity": 1,
	    "roads": [{"x0": 0, "y0": 0, "x1": 10}],
	    "buildings": [],
	    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [{"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10}]
	  }]
	}`
	g := newTestGame(t, catalog, Settings{})
	dog, sess, err := g.SpawnDog("town", "Fido")
	require.NoError(t, err)

	first := NewLoot(g.Counters(), 0, 10, geom.Point2D{X: 2, Y: 0})
	second := NewLoot(g.Counters(), 0, 10, geom.Point2D{X: 3, Y: 0})
	sess.AddLoot(first)
	sess.AddLoot(second)

	dog.SetMove(DirEast, 2.0)
	require.NoError(t, g.Update(context.Background(), 2*time.Second))

	require.Len(t, dog.Bag(), 1)
	assert.Equal(t, first.ID(), dog.Bag()[0].ID(), "items are claimed in sweep order")
	require.Len(t, sess.Loot(), 1)
	assert.Equal(t, second.ID(), sess.Loot()[0].ID(), "the overflow item stays on the map")
}

func TestRetirement(t *testing.T) {
	catalog := `{
	  "dogRetirementTime": 1.0,
	  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
	  "maps": [{
	    "id": "town", "name": "Town",
	    "roads": [{"x0": 0, "y0": 0, "x1": 10}],
	    "buildings": [],
	    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [{"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10}]
	  }]
	}`
	g := newTestGame(t, catalog, Settings{})

	var records []PlayerRecord
	g.SetRecordSink(sinkFunc(func(_ context.Context, rec PlayerRecord) error {
		records = append(records, rec)
		return nil
	}))
	var removed []uint32
	g.SetRetireObserver(func(dogID uint32) { removed = append(removed, dogID) })

	idler, sess, err := g.SpawnDog("town", "Idler")
	require.NoError(t, err)
	keeper, _, err := g.SpawnDog("town", "Keeper")
	require.NoError(t, err)

	step := 600 * time.Millisecond
	g.AddTestTime(step)
	require.NoError(t, g.Update(context.Background(), step))
	assert.Len(t, sess.Dogs(), 2, "600ms idle is under the 1s threshold")

	// Keeper pings an action between ticks, which resets its idle clock.
	keeper.SetMove(DirNone, 0)

	g.AddTestTime(step)
	require.NoError(t, g.Update(context.Background(), step))

	require.Len(t, sess.Dogs(), 1, "the idler crosses the threshold on the second tick")
	assert.Equal(t, keeper.ID(), sess.Dogs()[0].ID())
	assert.Equal(t, []uint32{idler.ID()}, removed)

	require.Len(t, records, 1)
	assert.Equal(t, idler.UUID(), records[0].UUID)
	assert.Equal(t, "Idler", records[0].Name)
	assert.Equal(t, 0, records[0].Score)
	assert.Equal(t, int64(1200), records[0].PlayTimeMS)
}

func TestRetirementRetriesAfterSinkError(t *testing.T) {
	catalog := `{
	  "dogRetirementTime": 0.5,
	  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
	  "maps": [{
	    "id": "town", "name": "Town",
	    "roads": [{"x0": 0, "y0": 0, "x1": 10}],
	    "buildings": [],
	    "offices": [{"id": "o0", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [{"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10}]
	  }]
	}`
	g := newTestGame(t, catalog, Settings{})

	fail := true
	var saved int
	g.SetRecordSink(sinkFunc(func(context.Context, PlayerRecord) error {
		if fail {
			return errors.New("connection refused")
		}
		saved++
		return nil
	}))

	_, sess, err := g.SpawnDog("town", "Fido")
	require.NoError(t, err)

	g.AddTestTime(time.Second)
	require.NoError(t, g.Update(context.Background(), time.Second))
	assert.Len(t, sess.Dogs(), 1, "a failed record write keeps the dog around")
	assert.Zero(t, saved)

	fail = false
	g.AddTestTime(time.Second)
	require.NoError(t, g.Update(context.Background(), time.Second))
	assert.Empty(t, sess.Dogs(), "the next tick retries the retirement")
	assert.Equal(t, 1, saved)
}

func TestLootSpawning(t *testing.T) {
	g := newTestGame(t, townCatalog, Settings{},
		WithRandom(rand.New(rand.NewSource(42))),
		WithLootGenerator(lootgen.New(5*time.Second, 1.0)))

	_, sess, err := g.SpawnDog("town", "Fido")
	require.NoError(t, err)

	g.AddTestTime(time.Second)
	require.NoError(t, g.Update(context.Background(), time.Second))

	require.Len(t, sess.Loot(), 1, "probability 1 covers the shortage at once")
	l := sess.Loot()[0]
	assert.Less(t, l.Type(), 2)
	onRoad := false
	for _, r := range sess.Map().Roads() {
		if r.Contains(l.Pos()) {
			onRoad = true
		}
	}
	assert.True(t, onRoad, "loot lands on a road")
	value, ok := sess.Map().LootValue(l.Type())
	require.True(t, ok)
	assert.Equal(t, value, l.Value())
}

func TestGameClock(t *testing.T) {
	g := newTestGame(t, townCatalog, Settings{Mode: ModeTest})
	assert.Equal(t, time.Duration(0), g.Now())
	g.AddTestTime(500 * time.Millisecond)
	g.AddTestTime(250 * time.Millisecond)
	assert.Equal(t, 750*time.Millisecond, g.Now())

	real := newTestGame(t, townCatalog, Settings{Mode: ModeNormal})
	real.AddTestTime(time.Hour)
	assert.Less(t, real.Now(), time.Minute, "test time does not move the wall clock")
}

func TestCountersRestore(t *testing.T) {
	c := NewCounters()
	assert.Equal(t, uint32(0), c.NextDogID())
	assert.Equal(t, uint32(1), c.NextDogID())
	assert.Equal(t, uint32(0), c.NextLootID())

	c.Restore(10, 20, 3, 4)
	dog, loot, session, player := c.Watermarks()
	assert.Equal(t, uint32(10), dog)
	assert.Equal(t, uint32(20), loot)
	assert.Equal(t, uint32(3), session)
	assert.Equal(t, uint32(4), player)

	c.Restore(5, 5, 0, 0)
	dog, loot, _, _ = c.Watermarks()
	assert.Equal(t, uint32(10), dog, "watermarks never roll back")
	assert.Equal(t, uint32(20), loot)

	assert.Equal(t, uint32(10), c.NextDogID())
}

func TestOfficeIDParsing(t *testing.T) {
	catalog := `{
	  "lootGeneratorConfig": {"period": 5.0, "probability": 0.5},
	  "maps": [{
	    "id": "town", "name": "Town",
	    "roads": [{"x0": 0, "y0": 0, "x1": 10}],
	    "buildings": [],
	    "offices": [{"id": "x12", "x": 0, "y": 0, "offsetX": 1, "offsetY": 1}],
	    "lootTypes": [{"name": "key", "file": "key.obj", "type": "obj", "scale": 0.03, "value": 10}]
	  }]
	}`
	g := newTestGame(t, catalog, Settings{})
	offices := g.Maps()[0].Offices()
	require.Len(t, offices, 1)
	assert.Equal(t, uint32(12), offices[0].GatherID())

	cfg, err := config.Parse([]byte(townCatalog))
	require.NoError(t, err)
	cfg.Maps[0].Offices[0].ID = "oX"
	_, err = NewGame(cfg, NewCounters(), Settings{})
	assert.Error(t, err, "a non-numeric office id is rejected at startup")
}

func TestCheckpointOnSchedule(t *testing.T) {
	g := newTestGame(t, townCatalog, Settings{SaveInterval: time.Second})

	var saves int
	g.SetCheckpoint(func() error { saves++; return nil })

	require.NoError(t, g.Update(context.Background(), 400*time.Millisecond))
	require.NoError(t, g.Update(context.Background(), 400*time.Millisecond))
	assert.Zero(t, saves, "800ms of game time is under the interval")

	require.NoError(t, g.Update(context.Background(), 400*time.Millisecond))
	assert.Equal(t, 1, saves, "the interval elapses on the third tick")

	require.NoError(t, g.Update(context.Background(), 900*time.Millisecond))
	assert.Equal(t, 1, saves, "the timer restarts after a save")
	require.NoError(t, g.Update(context.Background(), 100*time.Millisecond))
	assert.Equal(t, 2, saves)
}

func TestCheckpointFailureSurfaces(t *testing.T) {
	g := newTestGame(t, townCatalog, Settings{SaveInterval: time.Second})

	boom := errors.New("disk full")
	g.SetCheckpoint(func() error { return boom })

	err := g.Update(context.Background(), 2*time.Second)
	require.ErrorIs(t, err, boom)

	// The timer was not reset, so the next tick tries again.
	g.SetCheckpoint(func() error { return nil })
	require.NoError(t, g.Update(context.Background(), time.Millisecond))
}
