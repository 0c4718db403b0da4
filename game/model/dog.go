package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/dogwalk/gameserver/game/geom"
)

// Dog is one player avatar. Besides its place and motion on the map it
// tracks the carried loot, the score, and the idle clock that decides
// retirement.
type Dog struct {
	id       uint32
	uid      uuid.UUID
	name     string
	pos      geom.Point2D
	speed    geom.Vec2D
	dir      Direction
	width    float64
	bag      []*Loot
	score    int
	joinedAt time.Duration
	idle     time.Duration
	status   DogStatus
}

// NewDog creates a dog standing at pos. joinedAt is the game clock at
// join time and anchors the play time written on retirement.
func NewDog(c *Counters, name string, pos geom.Point2D, joinedAt time.Duration) *Dog {
	return &Dog{
		id:       c.NextDogID(),
		uid:      uuid.New(),
		name:     name,
		pos:      pos,
		width:    DogWidth,
		joinedAt: joinedAt,
		status:   StatusActive,
	}
}

// RestoreDog rebuilds a dog from checkpoint data, keeping its id. The
// dog gets a fresh UUID and a zero join time, so a restored dog's play
// time counts from the restore.
func RestoreDog(id uint32, name string, pos geom.Point2D, speed geom.Vec2D, dir Direction, width float64, score int, bag []*Loot) *Dog {
	return &Dog{
		id:     id,
		uid:    uuid.New(),
		name:   name,
		pos:    pos,
		speed:  speed,
		dir:    dir,
		width:  width,
		score:  score,
		bag:    bag,
		status: StatusActive,
	}
}

// ID returns the dog id.
func (d *Dog) ID() uint32 { return d.id }

// UUID returns the retirement record key of the dog.
func (d *Dog) UUID() uuid.UUID { return d.uid }

// Name returns the player name the dog was created with.
func (d *Dog) Name() string { return d.name }

// Pos returns the dog's position.
func (d *Dog) Pos() geom.Point2D { return d.pos }

// SetPos moves the dog to p.
func (d *Dog) SetPos(p geom.Point2D) { d.pos = p }

// Speed returns the dog's velocity.
func (d *Dog) Speed() geom.Vec2D { return d.speed }

// Stop zeroes the dog's velocity, keeping its facing.
func (d *Dog) Stop() { d.speed = geom.Vec2D{} }

// Direction returns the dog's facing.
func (d *Dog) Direction() Direction { return d.dir }

// Width returns the dog's gather radius.
func (d *Dog) Width() float64 { return d.width }

// Score returns the points banked so far.
func (d *Dog) Score() int { return d.score }

// Bag returns the loot the dog is carrying, in pickup order.
func (d *Dog) Bag() []*Loot { return d.bag }

// JoinedAt returns the game clock value at join time.
func (d *Dog) JoinedAt() time.Duration { return d.joinedAt }

// IdleTime returns how long the dog has been standing still.
func (d *Dog) IdleTime() time.Duration { return d.idle }

// Status reports whether the dog moved during the last tick.
func (d *Dog) Status() DogStatus { return d.status }

// SetMove points the dog according to a move command: the direction plus
// the matching axis velocity. DirNone stops the dog. Any command marks
// the dog active and resets its idle clock.
func (d *Dog) SetMove(dir Direction, speed float64) {
	switch dir {
	case DirNorth:
		d.speed = geom.Vec2D{X: 0, Y: -speed}
	case DirSouth:
		d.speed = geom.Vec2D{X: 0, Y: speed}
	case DirWest:
		d.speed = geom.Vec2D{X: -speed, Y: 0}
	case DirEast:
		d.speed = geom.Vec2D{X: speed, Y: 0}
	default:
		d.speed = geom.Vec2D{}
	}
	d.dir = dir
	d.markActive()
}

// AddToBag puts the item into the bag and reports whether it fit.
func (d *Dog) AddToBag(l *Loot, capacity int) bool {
	if len(d.bag) >= capacity {
		return false
	}
	d.bag = append(d.bag, l)
	return true
}

// ReleaseLoot empties the bag into the score and returns the points
// gained.
func (d *Dog) ReleaseLoot() int {
	gained := 0
	for _, l := range d.bag {
		gained += l.Value()
	}
	d.score += gained
	d.bag = nil
	return gained
}

func (d *Dog) markActive() {
	d.status = StatusActive
	d.idle = 0
}

func (d *Dog) markInactive(delta time.Duration) {
	d.status = StatusInactive
	d.idle += delta
}
