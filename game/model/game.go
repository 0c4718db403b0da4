package model

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/dogwalk/gameserver/game/collision"
	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/lootgen"
)

// ErrMapNotFound reports a join or lookup against an unknown map id.
var ErrMapNotFound = errors.New("map not found")

// Mode selects the game clock.
type Mode int

const (
	// ModeTest advances time only through AddTestTime. The tick
	// endpoint is exposed in this mode.
	ModeTest Mode = iota
	// ModeNormal follows the wall clock from server start and is driven
	// by the internal ticker.
	ModeNormal
)

// Settings carries the world knobs that come from the command line
// rather than from the map catalog.
type Settings struct {
	Mode            Mode
	RandomizeSpawns bool
	// SaveInterval is how much game time may pass between automatic
	// checkpoints. Zero disables them.
	SaveInterval time.Duration
}

// Option tweaks a Game at construction time.
type Option func(*Game)

// WithLogger sets the logger for pipeline diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(g *Game) { g.log = log }
}

// WithRandom sets the random source used for spawn points and loot
// types. Tests inject a seeded source here.
func WithRandom(rng *rand.Rand) Option {
	return func(g *Game) { g.rng = rng }
}

// WithLootGenerator replaces the loot generator built from the catalog
// settings.
func WithLootGenerator(gen *lootgen.Generator) Option {
	return func(g *Game) { g.gen = gen }
}

// Game is the whole simulated world: every map, every session, the game
// clock and the shared id counters. It is not safe for concurrent use.
type Game struct {
	maps     []*Map
	mapByID  map[string]*Map
	sessions map[string]*GameSession
	order    []*GameSession
	counters *Counters
	gen      *lootgen.Generator
	rng      *rand.Rand
	log      *zap.Logger

	mode            Mode
	randomizeSpawns bool
	retirement      time.Duration
	startedAt       time.Time
	testClock       time.Duration

	saveInterval time.Duration
	saveTimer    time.Duration
	checkpoint   func() error

	records  RecordSink
	onRetire func(dogID uint32)
}

// NewGame builds the world from the map catalog.
func NewGame(cfg *config.Config, counters *Counters, settings Settings, opts ...Option) (*Game, error) {
	g := &Game{
		mapByID:         make(map[string]*Map),
		sessions:        make(map[string]*GameSession),
		counters:        counters,
		gen:             lootgen.New(cfg.LootPeriod(), cfg.LootGeneratorConfig.Probability),
		log:             zap.NewNop(),
		mode:            settings.Mode,
		randomizeSpawns: settings.RandomizeSpawns,
		retirement:      cfg.RetirementTime(),
		startedAt:       time.Now(),
		saveInterval:    settings.SaveInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for i := range cfg.Maps {
		m, err := NewMap(cfg, &cfg.Maps[i])
		if err != nil {
			return nil, fmt.Errorf("failed to build map: %w", err)
		}
		g.maps = append(g.maps, m)
		g.mapByID[m.ID()] = m
	}

	return g, nil
}

// Maps returns every map in catalog order.
func (g *Game) Maps() []*Map { return g.maps }

// FindMap returns the map with the given id, or nil.
func (g *Game) FindMap(id string) *Map { return g.mapByID[id] }

// Counters returns the shared id registry.
func (g *Game) Counters() *Counters { return g.counters }

// Mode returns the clock mode the game runs in.
func (g *Game) Mode() Mode { return g.mode }

// SetRecordSink routes retirement records to s. Without a sink retired
// dogs leave no trace.
func (g *Game) SetRecordSink(s RecordSink) { g.records = s }

// SetRetireObserver registers fn to run after a dog's record is written
// and before the dog leaves its session. The player registry hooks in
// here to drop the retiring player's token.
func (g *Game) SetRetireObserver(fn func(dogID uint32)) { g.onRetire = fn }

// SetCheckpoint registers the save hook run every SaveInterval of game
// time.
func (g *Game) SetCheckpoint(fn func() error) { g.checkpoint = fn }

// Sessions returns every live session in creation order.
func (g *Game) Sessions() []*GameSession { return g.order }

// SessionByID returns the session with the given id, or nil.
func (g *Game) SessionByID(id uint32) *GameSession {
	for _, s := range g.order {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// AttachSession adds a restored session to the world.
func (g *Game) AttachSession(s *GameSession) error {
	mapID := s.Map().ID()
	if _, ok := g.sessions[mapID]; ok {
		return fmt.Errorf("map %s already has a session", mapID)
	}
	g.sessions[mapID] = s
	g.order = append(g.order, s)
	return nil
}

// SpawnDog creates a dog on the map's spawn point and adds it to the
// map's session, creating the session on first join.
func (g *Game) SpawnDog(mapID, name string) (*Dog, *GameSession, error) {
	m := g.FindMap(mapID)
	if m == nil {
		return nil, nil, ErrMapNotFound
	}
	sess := g.sessions[mapID]
	if sess == nil {
		sess = NewSession(g.counters, m)
		g.sessions[mapID] = sess
		g.order = append(g.order, sess)
	}
	dog := NewDog(g.counters, name, m.SpawnPoint(g.randomizeSpawns, g.rng), g.Now())
	sess.AddDog(dog)
	return dog, sess, nil
}

// Now returns the game clock: accumulated test time in ModeTest, wall
// time since construction otherwise.
func (g *Game) Now() time.Duration {
	if g.mode == ModeTest {
		return g.testClock
	}
	return time.Since(g.startedAt)
}

// AddTestTime advances the test clock. It does nothing in ModeNormal.
func (g *Game) AddTestTime(delta time.Duration) {
	if g.mode == ModeTest {
		g.testClock += delta
	}
}

// Update advances the world by delta: per session it moves the dogs,
// spawns loot, applies gather events and retires idle dogs; then it
// checkpoints when the save interval has elapsed. The returned error
// comes from the checkpoint hook only.
func (g *Game) Update(ctx context.Context, delta time.Duration) error {
	for _, sess := range g.order {
		var world collision.Batch

		g.moveDogs(sess, delta, &world)
		g.spawnLoot(sess, delta)
		registerLoot(sess, &world)
		registerOffices(sess.Map(), &world)
		g.applyGatherEvents(sess, collision.FindGatherEvents(&world))
		g.retireIdleDogs(ctx, sess)
	}

	if g.checkpoint != nil && g.saveInterval > 0 {
		g.saveTimer += delta
		if g.saveTimer >= g.saveInterval {
			if err := g.checkpoint(); err != nil {
				return fmt.Errorf("failed to checkpoint world: %w", err)
			}
			g.saveTimer = 0
		}
	}
	return nil
}

// moveDogs advances every dog along the roads and records the swept
// paths as gatherers. A dog whose position did not change accrues idle
// time; everything else resets it.
func (g *Game) moveDogs(sess *GameSession, delta time.Duration, world *collision.Batch) {
	for _, dog := range sess.Dogs() {
		from := dog.Pos()
		to, stopped := sess.Map().ClampedMove(from, dog.Speed(), dog.Direction(), delta)
		if stopped {
			dog.Stop()
		}

		world.AddGatherer(collision.Gatherer{
			Start: from,
			End:   to,
			Width: dog.Width(),
			ID:    dog.ID(),
		})

		if to == from {
			dog.markInactive(delta)
		} else {
			dog.markActive()
			dog.SetPos(to)
		}
	}
}

// spawnLoot asks the generator how many items the session is short of
// and drops them on random road points with random types.
func (g *Game) spawnLoot(sess *GameSession, delta time.Duration) {
	m := sess.Map()
	count := g.gen.Generate(delta, uint(len(sess.Loot())), uint(len(sess.Dogs())))
	for i := uint(0); i < count; i++ {
		typeIndex := g.rng.Intn(m.LootTypeCount())
		value, _ := m.LootValue(typeIndex)
		sess.AddLoot(NewLoot(g.counters, typeIndex, value, m.RandomPointOnRoad(g.rng)))
	}
}

func registerLoot(sess *GameSession, world *collision.Batch) {
	for _, l := range sess.Loot() {
		world.AddItem(collision.Item{
			Pos:   l.Pos(),
			Width: l.Width(),
			ID:    l.ID(),
			Type:  collision.ItemLoot,
		})
	}
}

func registerOffices(m *Map, world *collision.Batch) {
	for _, o := range m.Offices() {
		world.AddItem(collision.Item{
			Pos:   o.Pos(),
			Width: OfficeWidth,
			ID:    o.GatherID(),
			Type:  collision.ItemOffice,
		})
	}
}

// applyGatherEvents walks the tick's collision events in time order.
// Office hits bank the bag; loot hits move the item into the bag when
// the item is still on the map and the bag has room.
func (g *Game) applyGatherEvents(sess *GameSession, events []collision.Event) {
	onMap := make(map[uint32]bool, len(sess.Loot()))
	for _, l := range sess.Loot() {
		onMap[l.ID()] = true
	}
	claimed := make(map[uint32]bool)

	for _, ev := range events {
		if ev.Type != collision.ItemOffice && !onMap[ev.ItemID] {
			continue
		}
		dog := sess.DogByID(ev.GathererID)
		if dog == nil {
			continue
		}

		if ev.Type == collision.ItemOffice {
			dog.ReleaseLoot()
			continue
		}
		if claimed[ev.ItemID] {
			continue
		}
		if len(dog.Bag()) >= sess.Map().BagCapacity() {
			continue
		}
		if loot := sess.TakeLoot(ev.ItemID); loot != nil {
			dog.AddToBag(loot, sess.Map().BagCapacity())
			claimed[ev.ItemID] = true
		}
	}
}

// retireIdleDogs writes a record for every dog idle past the threshold
// and removes it from the session. A failed record write keeps the dog
// in the session so the next tick retries.
func (g *Game) retireIdleDogs(ctx context.Context, sess *GameSession) {
	var retired []uint32
	for _, dog := range sess.Dogs() {
		if dog.IdleTime() < g.retirement {
			continue
		}
		if g.records != nil {
			rec := PlayerRecord{
				UUID:       dog.UUID(),
				Name:       dog.Name(),
				Score:      dog.Score(),
				PlayTimeMS: (g.Now() - dog.JoinedAt()).Milliseconds(),
			}
			if err := g.records.SaveRecord(ctx, rec); err != nil {
				g.log.Error("failed to save retirement record",
					zap.Uint32("dogId", dog.ID()),
					zap.String("name", dog.Name()),
					zap.Error(err))
				continue
			}
		}
		if g.onRetire != nil {
			g.onRetire(dog.ID())
		}
		retired = append(retired, dog.ID())
	}
	for _, id := range retired {
		sess.RemoveDog(id)
	}
}
