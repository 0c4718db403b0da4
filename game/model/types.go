package model

import (
	"context"

	"github.com/google/uuid"
)

// World geometry shared by every map. Roads are segments widened into
// rectangles by RoadHalfWidth on each side; the other widths are the
// gather radii fed into the collision engine.
const (
	RoadHalfWidth = 0.4
	DogWidth      = 0.6
	LootWidth     = 0.0
	OfficeWidth   = 0.5
)

// Direction is the facing of a dog. It doubles as the wire encoding for
// state responses, so String returns the single-letter protocol form.
type Direction int

const (
	DirNone Direction = iota
	DirNorth
	DirSouth
	DirWest
	DirEast
)

// String returns the protocol letter for the direction. DirNone encodes
// as the empty string.
func (d Direction) String() string {
	switch d {
	case DirNorth:
		return "U"
	case DirSouth:
		return "D"
	case DirWest:
		return "L"
	case DirEast:
		return "R"
	default:
		return ""
	}
}

// DirectionFromMove maps a move command to a direction. Only the four
// single-letter commands name a direction; everything else, including
// the empty stop command, is DirNone.
func DirectionFromMove(move string) Direction {
	switch move {
	case "U":
		return DirNorth
	case "D":
		return DirSouth
	case "L":
		return DirWest
	case "R":
		return DirEast
	default:
		return DirNone
	}
}

// DogStatus tells whether a dog did anything during the last tick.
type DogStatus int

const (
	StatusActive DogStatus = iota
	StatusInactive
)

// PlayerRecord is one finished game: the row written to the leaderboard
// when a dog retires.
type PlayerRecord struct {
	UUID       uuid.UUID
	Name       string
	Score      int
	PlayTimeMS int64
}

// RecordSink receives the record of every retired dog. A failed write
// cancels that dog's retirement; the dog stays in the session and the
// next tick retries.
type RecordSink interface {
	SaveRecord(ctx context.Context, rec PlayerRecord) error
}

// Counters mints the sequential ids for every entity kind. A single
// instance is shared by the whole world so that a restored checkpoint
// can bump the watermarks past every id it contains.
type Counters struct {
	dog     uint32
	loot    uint32
	session uint32
	player  uint32
}

// NewCounters returns a registry with all sequences at zero.
func NewCounters() *Counters {
	return &Counters{}
}

// NextDogID returns the next dog id.
func (c *Counters) NextDogID() uint32 {
	id := c.dog
	c.dog++
	return id
}

// NextLootID returns the next loot id.
func (c *Counters) NextLootID() uint32 {
	id := c.loot
	c.loot++
	return id
}

// NextSessionID returns the next session id.
func (c *Counters) NextSessionID() uint32 {
	id := c.session
	c.session++
	return id
}

// NextPlayerID returns the next player id.
func (c *Counters) NextPlayerID() uint32 {
	id := c.player
	c.player++
	return id
}

// Watermarks reports the current sequence values in dog, loot, session,
// player order. Checkpoints persist these so ids never repeat across a
// restore.
func (c *Counters) Watermarks() (dog, loot, session, player uint32) {
	return c.dog, c.loot, c.session, c.player
}

// Restore raises each sequence to at least the given watermark. Values
// below the current position are ignored, so replaying an old checkpoint
// cannot roll ids backwards.
func (c *Counters) Restore(dog, loot, session, player uint32) {
	if dog > c.dog {
		c.dog = dog
	}
	if loot > c.loot {
		c.loot = loot
	}
	if session > c.session {
		c.session = session
	}
	if player > c.player {
		c.player = player
	}
}
